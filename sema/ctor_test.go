package sema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ctor(params ...Parameter) *Method {
	return &Method{Name: "X", Kind: MethodKindConstructor, Params: params}
}

func param(t Type) Parameter { return Parameter{Type: t} }

func defaulted(t Type) Parameter { return Parameter{Type: t, HasDefault: true} }

func lref(t Type) Type { return &ReferenceType{Referent: t} }

func rref(t Type) Type { return &ReferenceType{Referent: t, IsRValue: true} }

func constOf(t Type) Type { return &QualifierType{Type: t, IsConst: true} }

func TestClassifyConstructor(t *testing.T) {
	h := NewHierarchy()
	xid := declare(h, "X")
	other := declare(h, "X")
	owner, err := h.Class(xid)
	require.NoError(t, err)
	x := classType(h, xid)

	tests := []struct {
		name string
		ctor *Method
		want CtorKind
	}{
		{"X(const X&)", ctor(param(lref(constOf(x)))), CtorCopy},
		{"X(X&)", ctor(param(lref(x))), CtorCopy},
		{"X(volatile X&)", ctor(param(lref(&QualifierType{Type: x, IsVolatile: true}))), CtorCopy},
		{"X(X&&)", ctor(param(rref(x))), CtorMove},
		{"X(const X&&)", ctor(param(rref(constOf(x)))), CtorMove},
		{"X(int)", ctor(param(intType)), CtorNeither},
		{"X(X)", ctor(param(x)), CtorNeither},
		{"X(const X*)", ctor(param(&PointerType{Pointee: constOf(x)})), CtorNeither},
		{"X()", ctor(), CtorNeither},
		{"X(const X&, int = 0)", ctor(param(lref(constOf(x))), defaulted(intType)), CtorCopy},
		{"X(const X&, int)", ctor(param(lref(constOf(x))), param(intType)), CtorNeither},
		{"X(const X& = X())", ctor(defaulted(lref(constOf(x)))), CtorCopy},
		{"typedef of reference", ctor(param(&TypedefType{Name: "XRef", Underlying: lref(constOf(x))})), CtorCopy},
		{"reference to typedef", ctor(param(rref(&TypedefType{Name: "Self", Underlying: x}))), CtorMove},
		{"same name other class", ctor(param(lref(constOf(classType(h, other))))), CtorNeither},
		{"template constructor", &Method{Name: "X", Kind: MethodKindConstructor, Template: true, Params: []Parameter{param(lref(constOf(x)))}}, CtorNeither},
		{"not a constructor", &Method{Name: "operator=", Params: []Parameter{param(lref(constOf(x)))}}, CtorNeither},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyConstructor(tt.ctor, owner))
		})
	}

	assert.Equal(t, CtorNeither, ClassifyConstructor(nil, owner))
	assert.Equal(t, "copy", CtorCopy.String())
	assert.Equal(t, "move", CtorMove.String())
	assert.Equal(t, "neither", CtorNeither.String())
}

func TestClassifyConstructor_ClassTemplate(t *testing.T) {
	h := NewHierarchy()
	tmpl, tps := declareTemplate(h, "X", 0, "T")
	owner, err := h.Class(tmpl)
	require.NoError(t, err)

	self := owner.DeferredInstance()
	copyCtor := ctor(param(lref(constOf(self))))
	moveCtor := ctor(param(rref(self)))
	fromInt := ctor(param(lref(constOf(&DeferredInstanceType{
		Template: tmpl,
		Name:     "X",
		Args:     []Argument{typeArg(intType)},
	}))))
	fromT := ctor(param(lref(constOf(tps[0].AsType()))))
	addMethods(t, h, tmpl, copyCtor, moveCtor, fromInt, fromT)

	assert.Equal(t, CtorCopy, ClassifyConstructor(copyCtor, owner))
	assert.Equal(t, CtorMove, ClassifyConstructor(moveCtor, owner))
	assert.Equal(t, CtorNeither, ClassifyConstructor(fromInt, owner), "X<int> is not X<T>")
	assert.Equal(t, CtorNeither, ClassifyConstructor(fromT, owner))

	t.Run("specialization", func(t *testing.T) {
		spec, err := h.Instantiate(tmpl, []Argument{typeArg(charType)})
		require.NoError(t, err)

		copies, err := CopyConstructors(h, spec, InstantiationContext{})
		require.NoError(t, err)
		require.Len(t, copies, 1)
		assert.Same(t, copyCtor, copies[0].Declaration())

		moves, err := MoveConstructors(h, spec, InstantiationContext{})
		require.NoError(t, err)
		require.Len(t, moves, 1)
		assert.Same(t, moveCtor, moves[0].Declaration())
	})

	t.Run("specialization for int", func(t *testing.T) {
		spec, err := h.Instantiate(tmpl, []Argument{typeArg(intType)})
		require.NoError(t, err)

		copies, err := CopyConstructors(h, spec, InstantiationContext{})
		require.NoError(t, err)
		assert.Len(t, copies, 2, "X(const X<int>&) copies X<int>")
	})
}
