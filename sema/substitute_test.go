package sema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstitute(t *testing.T) {
	T := &TemplateParamType{ID: NewParameterID(0, 0), Name: "T"}
	unbound := &TemplateParamType{ID: NewParameterID(0, 5), Name: "V"}
	intRef := &ReferenceType{Referent: intType}
	intRRef := &ReferenceType{Referent: intType, IsRValue: true}

	tests := []struct {
		name  string
		in    Type
		bound Type
		want  string
	}{
		{"parameter", T, intType, "int"},
		{"unbound parameter kept", unbound, intType, "V"},
		{"pointer", &PointerType{Pointee: T, IsConst: true}, charType, "char * const"},
		{"const T&", &ReferenceType{Referent: &QualifierType{Type: T, IsConst: true}}, intType, "const int &"},
		{"qualifiers merge", &QualifierType{Type: T, IsVolatile: true}, &QualifierType{Type: intType, IsConst: true}, "const volatile int"},
		{"cv on reference dropped", &ReferenceType{Referent: &QualifierType{Type: T, IsConst: true}}, intRef, "int &"},
		{"T& with T=int&&", &ReferenceType{Referent: T}, intRRef, "int &"},
		{"T&& with T=int&", &ReferenceType{Referent: T, IsRValue: true}, intRef, "int &"},
		{"T&& with T=int&&", &ReferenceType{Referent: T, IsRValue: true}, intRRef, "int &&"},
		{"T&& with T=int", &ReferenceType{Referent: T, IsRValue: true}, intType, "int &&"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewSubstitutionMap()
			m.Put(T.ID, typeArg(tt.bound))

			got, err := Substitute(tt.in, m, -1, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}

	t.Run("typedef underlying substituted", func(t *testing.T) {
		m := NewSubstitutionMap()
		m.Put(T.ID, typeArg(intType))

		got, err := Substitute(&TypedefType{Name: "value_type", Underlying: T}, m, -1, nil)
		require.NoError(t, err)
		assert.Equal(t, "value_type", got.String())
		assert.True(t, SameType(intType, got))
	})

	t.Run("empty map returns input", func(t *testing.T) {
		got, err := Substitute(T, EmptySubstitutions, -1, nil)
		require.NoError(t, err)
		assert.Same(t, T, got)
	})
}

func TestSameType(t *testing.T) {
	h := NewHierarchy()
	x1 := declare(h, "X")
	x2 := declare(h, "X")

	assert.True(t, SameType(intType, &TypedefType{Name: "myint", Underlying: intType}))
	assert.True(t, SameType(
		&QualifierType{Type: &QualifierType{Type: intType, IsConst: true}, IsVolatile: true},
		&QualifierType{Type: intType, IsConst: true, IsVolatile: true},
	))
	assert.False(t, SameType(intType, &QualifierType{Type: intType, IsConst: true}))
	assert.False(t, SameType(classType(h, x1), classType(h, x2)), "classes compare by id, not name")
	assert.False(t, SameType(&ReferenceType{Referent: intType}, &ReferenceType{Referent: intType, IsRValue: true}))
}

func TestSubstituteTypes_PackExpansion(t *testing.T) {
	ts := NewParameterID(0, 0)
	pattern := &ReferenceType{Referent: &QualifierType{Type: &TemplateParamType{ID: ts, Name: "Ts"}, IsConst: true}}
	expansion := &PackExpansionType{Pattern: pattern}

	t.Run("expands per element", func(t *testing.T) {
		m := NewSubstitutionMap()
		m.PutPack(ts, typeArg(intType), typeArg(charType))

		got, err := SubstituteTypes([]Type{intType, expansion}, m, nil)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "int", got[0].String())
		assert.Equal(t, "const int &", got[1].String())
		assert.Equal(t, "const char &", got[2].String())
	})

	t.Run("empty pack", func(t *testing.T) {
		m := NewSubstitutionMap()
		m.PutPack(ts)

		got, err := SubstituteTypes([]Type{expansion}, m, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("unbound pack kept", func(t *testing.T) {
		m := NewSubstitutionMap()
		m.Put(NewParameterID(1, 0), typeArg(intType))

		got, err := SubstituteTypes([]Type{expansion}, m, nil)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Same(t, expansion, got[0])
	})

	t.Run("scalar-bound pack", func(t *testing.T) {
		m := NewSubstitutionMap()
		m.Put(ts, typeArg(intType))

		_, err := SubstituteTypes([]Type{expansion}, m, nil)
		assert.True(t, errors.Is(err, ErrUnboundParameter))
	})
}

func TestSubstituteArguments(t *testing.T) {
	n := NewParameterID(0, 0)
	ns := NewParameterID(0, 1)

	m := NewSubstitutionMap()
	m.Put(n, ValueArgument{Value: IntValue(4), Type: intType})
	m.PutPack(ns, ValueArgument{Value: IntValue(1), Type: intType}, ValueArgument{Value: IntValue(2), Type: intType})

	args := []Argument{
		ValueArgument{Value: ParamValue(n), Type: intType},
		ValueArgument{Value: ParamValue(ns), Type: &PackExpansionType{Pattern: intType}},
	}
	got, err := SubstituteArguments(args, m, -1, nil)
	require.NoError(t, err)
	require.Len(t, got, 3)

	var values []int64
	for _, a := range got {
		v, ok := a.(ValueArgument).Value.Int()
		require.True(t, ok)
		values = append(values, v)
	}
	assert.Equal(t, []int64{4, 1, 2}, values)
	assert.False(t, IsDependentArgument(NewPack(got...)))
}

func TestSubstitute_InstantiatesDeferred(t *testing.T) {
	h := NewHierarchy()
	tmpl, tps := declareTemplate(h, "B", 0, "T")
	deferred := &DeferredInstanceType{Template: tmpl, Name: "B", Args: []Argument{tps[0].AsArgument()}}
	assert.True(t, IsDependent(deferred))

	m := NewSubstitutionMap()
	m.Put(tps[0].ID, typeArg(intType))

	t.Run("without instantiator", func(t *testing.T) {
		got, err := Substitute(deferred, m, -1, nil)
		require.NoError(t, err)
		require.IsType(t, &DeferredInstanceType{}, got)
		assert.False(t, IsDependent(got))
		assert.Equal(t, "B<int>", got.String())
	})

	t.Run("with instantiator", func(t *testing.T) {
		got, err := Substitute(deferred, m, -1, h)
		require.NoError(t, err)
		require.IsType(t, &ClassType{}, got)

		want, ok := h.ByName("B<int>")
		require.True(t, ok)
		assert.Equal(t, want, got.(*ClassType).ID)
	})

	t.Run("instantiation error", func(t *testing.T) {
		plain := declare(h, "Plain")
		bad := &DeferredInstanceType{Template: plain, Name: "Plain", Args: []Argument{tps[0].AsArgument()}}
		_, err := Substitute(bad, m, -1, h)
		assert.True(t, errors.Is(err, ErrNotTemplate))
	})
}
