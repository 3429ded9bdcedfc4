package sema

import "fmt"

// Instantiator resolves a class template and a complete argument list to
// the class of the specialization.
type Instantiator interface {
	Instantiate(template ClassID, args []Argument) (ClassID, error)
}

// Substitute replaces the template parameters in t by their bindings in m.
// packOffset selects the pack element used for pack-bound parameters; pass
// -1 outside of a pack expansion. Unbound parameters are left in place.
// When inst is non-nil, deferred instances whose arguments become
// non-dependent are instantiated.
func Substitute(t Type, m *SubstitutionMap, packOffset int, inst Instantiator) (Type, error) {
	if t == nil || m == nil || m.IsEmpty() {
		return t, nil
	}

	switch tt := t.(type) {
	case *TemplateParamType:
		arg, ok := m.Argument(tt.ID, packOffset)
		if !ok {
			return t, nil
		}
		if ta, isType := arg.(TypeArgument); isType {
			return ta.Type, nil
		}
		return t, nil

	case *DeferredInstanceType:
		args, err := SubstituteArguments(tt.Args, m, packOffset, inst)
		if err != nil {
			return nil, err
		}
		if inst != nil && !anyDependent(args) {
			id, err := inst.Instantiate(tt.Template, args)
			if err != nil {
				return nil, fmt.Errorf("instantiating %s: %w", tt.Name, err)
			}
			return &ClassType{ID: id, Name: tt.Name + "<" + argumentsString(args) + ">"}, nil
		}
		return &DeferredInstanceType{Template: tt.Template, Name: tt.Name, Args: args}, nil

	case *QualifierType:
		inner, err := Substitute(tt.Type, m, packOffset, inst)
		if err != nil {
			return nil, err
		}
		return qualify(inner, tt.IsConst, tt.IsVolatile), nil

	case *PointerType:
		pointee, err := Substitute(tt.Pointee, m, packOffset, inst)
		if err != nil {
			return nil, err
		}
		if pointee == tt.Pointee {
			return t, nil
		}
		return &PointerType{Pointee: pointee, IsConst: tt.IsConst, IsVolatile: tt.IsVolatile}, nil

	case *ReferenceType:
		referent, err := Substitute(tt.Referent, m, packOffset, inst)
		if err != nil {
			return nil, err
		}
		if referent == tt.Referent {
			return t, nil
		}
		// Reference collapsing: T& with T = U&& is U&, T&& with T = U& is U&.
		if inner, ok := StripTypedefs(referent).(*ReferenceType); ok {
			return &ReferenceType{Referent: inner.Referent, IsRValue: tt.IsRValue && inner.IsRValue}, nil
		}
		return &ReferenceType{Referent: referent, IsRValue: tt.IsRValue}, nil

	case *TypedefType:
		underlying, err := Substitute(tt.Underlying, m, packOffset, inst)
		if err != nil {
			return nil, err
		}
		if underlying == tt.Underlying {
			return t, nil
		}
		return &TypedefType{Name: tt.Name, Underlying: underlying}, nil

	case *PackExpansionType:
		if packOffset < 0 {
			return t, nil
		}
		return Substitute(tt.Pattern, m, packOffset, inst)

	default:
		return t, nil
	}
}

// SubstituteTypes substitutes a list of types, expanding pack expansions
// whose parameters are bound to packs into one type per pack element.
func SubstituteTypes(types []Type, m *SubstitutionMap, inst Instantiator) ([]Type, error) {
	out := make([]Type, 0, len(types))
	for _, t := range types {
		pe, isPack := t.(*PackExpansionType)
		if !isPack {
			st, err := Substitute(t, m, -1, inst)
			if err != nil {
				return nil, err
			}
			out = append(out, st)
			continue
		}

		n, ok, err := packSize(pe.Pattern, m)
		if err != nil {
			return nil, err
		}
		if !ok {
			out = append(out, t)
			continue
		}
		for i := 0; i < n; i++ {
			st, err := Substitute(pe.Pattern, m, i, inst)
			if err != nil {
				return nil, err
			}
			out = append(out, st)
		}
	}
	return out, nil
}

// SubstituteArgument substitutes the template parameters in a single
// argument.
func SubstituteArgument(a Argument, m *SubstitutionMap, packOffset int, inst Instantiator) (Argument, error) {
	switch aa := a.(type) {
	case TypeArgument:
		t, err := Substitute(aa.Type, m, packOffset, inst)
		if err != nil {
			return nil, err
		}
		return TypeArgument{Type: t}, nil

	case ValueArgument:
		t, err := Substitute(aa.Type, m, packOffset, inst)
		if err != nil {
			return nil, err
		}
		if id, ok := aa.Value.Param(); ok {
			if bound, ok := m.Argument(id, packOffset); ok {
				if va, isValue := bound.(ValueArgument); isValue {
					return va, nil
				}
			}
		}
		return ValueArgument{Value: aa.Value, Type: t}, nil

	case PackArgument:
		elems, err := SubstituteArguments(aa.Elements, m, packOffset, inst)
		if err != nil {
			return nil, err
		}
		return NewPack(elems...), nil

	default:
		return a, nil
	}
}

// SubstituteArguments substitutes an argument list. Arguments that are pack
// expansions over pack-bound parameters expand into one argument per
// element.
func SubstituteArguments(args []Argument, m *SubstitutionMap, packOffset int, inst Instantiator) ([]Argument, error) {
	out := make([]Argument, 0, len(args))
	for _, a := range args {
		pattern, isExpansion := expansionPattern(a)
		if !isExpansion || packOffset >= 0 {
			sa, err := SubstituteArgument(unexpand(a, packOffset), m, packOffset, inst)
			if err != nil {
				return nil, err
			}
			out = append(out, sa)
			continue
		}

		n, ok, err := packSize(pattern, m)
		if err != nil {
			return nil, err
		}
		if !ok {
			out = append(out, a)
			continue
		}
		for i := 0; i < n; i++ {
			sa, err := SubstituteArgument(unexpand(a, i), m, i, inst)
			if err != nil {
				return nil, err
			}
			out = append(out, sa)
		}
	}
	return out, nil
}

func expansionPattern(a Argument) (Type, bool) {
	switch aa := a.(type) {
	case TypeArgument:
		if pe, ok := aa.Type.(*PackExpansionType); ok {
			return pe.Pattern, true
		}
	case ValueArgument:
		if pe, ok := aa.Type.(*PackExpansionType); ok {
			if id, ok := aa.Value.Param(); ok {
				return &TemplateParamType{ID: id}, true
			}
			return pe.Pattern, true
		}
	}
	return nil, false
}

// unexpand strips the pack expansion from an argument once a pack element
// has been selected.
func unexpand(a Argument, packOffset int) Argument {
	if packOffset < 0 {
		return a
	}
	switch aa := a.(type) {
	case TypeArgument:
		if pe, ok := aa.Type.(*PackExpansionType); ok {
			return TypeArgument{Type: pe.Pattern}
		}
	case ValueArgument:
		if pe, ok := aa.Type.(*PackExpansionType); ok {
			return ValueArgument{Value: aa.Value, Type: pe.Pattern}
		}
	}
	return a
}

// packSize finds the length of the pack bound to the first pack-bound
// parameter mentioned in pattern. It returns false if no parameter of the
// pattern is bound at all, and ErrUnboundParameter if the mentioned
// parameters are bound only to scalars.
func packSize(pattern Type, m *SubstitutionMap) (int, bool, error) {
	ids := mentionedParameters(pattern, nil)
	anyBound := false
	for _, id := range ids {
		if elems, ok := m.GetPack(id); ok {
			return len(elems), true, nil
		}
		if _, ok := m.Get(id); ok {
			anyBound = true
		}
	}
	if anyBound {
		return 0, false, fmt.Errorf("%w: expansion of %s", ErrUnboundParameter, pattern)
	}
	return 0, false, nil
}

func mentionedParameters(t Type, acc []ParameterID) []ParameterID {
	switch tt := t.(type) {
	case *TemplateParamType:
		return append(acc, tt.ID)
	case *DeferredInstanceType:
		for _, a := range tt.Args {
			acc = mentionedInArgument(a, acc)
		}
	case *QualifierType:
		return mentionedParameters(tt.Type, acc)
	case *PointerType:
		return mentionedParameters(tt.Pointee, acc)
	case *ReferenceType:
		return mentionedParameters(tt.Referent, acc)
	case *TypedefType:
		return mentionedParameters(tt.Underlying, acc)
	case *PackExpansionType:
		return mentionedParameters(tt.Pattern, acc)
	}
	return acc
}

func mentionedInArgument(a Argument, acc []ParameterID) []ParameterID {
	switch aa := a.(type) {
	case TypeArgument:
		return mentionedParameters(aa.Type, acc)
	case ValueArgument:
		if id, ok := aa.Value.Param(); ok {
			acc = append(acc, id)
		}
		return mentionedParameters(aa.Type, acc)
	case PackArgument:
		for _, e := range aa.Elements {
			acc = mentionedInArgument(e, acc)
		}
	}
	return acc
}

func anyDependent(args []Argument) bool {
	for _, a := range args {
		if IsDependentArgument(a) {
			return true
		}
	}
	return false
}

// qualify applies cv-qualifiers to t, merging with existing top-level
// qualifiers. Qualifiers applied to a reference are dropped.
func qualify(t Type, isConst, isVolatile bool) Type {
	if !isConst && !isVolatile {
		return t
	}
	switch tt := StripTypedefs(t).(type) {
	case *ReferenceType:
		return t
	case *QualifierType:
		return &QualifierType{
			Type:       tt.Type,
			IsConst:    isConst || tt.IsConst,
			IsVolatile: isVolatile || tt.IsVolatile,
		}
	}
	return &QualifierType{Type: t, IsConst: isConst, IsVolatile: isVolatile}
}
