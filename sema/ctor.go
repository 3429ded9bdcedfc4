package sema

import "fmt"

// CtorKind classifies a constructor.
type CtorKind uint8

const (
	CtorNeither CtorKind = iota
	CtorCopy
	CtorMove
)

func (k CtorKind) String() string {
	switch k {
	case CtorCopy:
		return "copy"
	case CtorMove:
		return "move"
	default:
		return "neither"
	}
}

// ClassifyConstructor reports whether ctor is a copy or a move constructor
// of owner.
//
// A constructor qualifies if it is not a template, can be called with a
// single argument, and its first parameter is a reference to owner, possibly
// cv-qualified. An lvalue reference makes it a copy constructor, an rvalue
// reference a move constructor. Inside a class template the parameter must
// name the template applied to its own parameters.
func ClassifyConstructor(ctor *Method, owner *Class) CtorKind {
	if ctor == nil || owner == nil || ctor.Kind != MethodKindConstructor || ctor.Template {
		return CtorNeither
	}
	if len(ctor.Params) < 1 || ctor.RequiredArgumentCount() > 1 {
		return CtorNeither
	}

	ref, ok := StripTypedefs(ctor.Params[0].Type).(*ReferenceType)
	if !ok {
		return CtorNeither
	}
	kind := CtorCopy
	if ref.IsRValue {
		kind = CtorMove
	}

	if !SameType(StripQualifiers(ref.Referent), owner.SelfType()) {
		return CtorNeither
	}
	return kind
}

// CopyConstructors returns the copy constructors declared by class.
func CopyConstructors(r Resolver, class ClassID, at InstantiationContext) ([]*Method, error) {
	return constructorsOfKind(r, class, at, CtorCopy)
}

// MoveConstructors returns the move constructors declared by class.
func MoveConstructors(r Resolver, class ClassID, at InstantiationContext) ([]*Method, error) {
	return constructorsOfKind(r, class, at, CtorMove)
}

func constructorsOfKind(r Resolver, class ClassID, at InstantiationContext, kind CtorKind) ([]*Method, error) {
	owner, err := r.Class(class)
	if err != nil {
		return nil, err
	}
	methods, err := r.DeclaredMethods(class, at)
	if err != nil {
		return nil, fmt.Errorf("methods of %s: %w", owner.Name, err)
	}
	var out []*Method
	for _, m := range methods {
		if ClassifyConstructor(m, owner) == kind {
			out = append(out, m)
		}
	}
	return out, nil
}
