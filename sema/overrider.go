package sema

import (
	"fmt"
	"strings"
)

// Overrider is a method as found in a particular subobject.
type Overrider struct {
	Method    *Method
	Subobject int
}

// Ambiguity is a virtual method that has more than one final overrider in
// one subobject.
type Ambiguity struct {
	Method     *Method
	Subobject  int
	Overriders []Overrider
}

// FinalOverriderMap maps each virtual method of a class, per subobject in
// which it occurs, to its final overriders. An entry with a single element
// equal to the method itself means the method is not overridden there; an
// entry with several elements is an ambiguous final overrider.
type FinalOverriderMap struct {
	set     *SubobjectSet
	methods []*Method
	entries map[*Method]map[int][]Overrider
	order   map[*Method][]int
}

// SubobjectSet returns the subobjects the map was computed over.
func (m *FinalOverriderMap) SubobjectSet() *SubobjectSet { return m.set }

// Methods returns the virtual methods in discovery order.
func (m *FinalOverriderMap) Methods() []*Method { return m.methods }

// Subobjects returns the subobjects that contain method, in discovery
// order.
func (m *FinalOverriderMap) Subobjects(method *Method) []int { return m.order[method] }

// Overriders returns the final overriders of method in subobject.
func (m *FinalOverriderMap) Overriders(method *Method, subobject int) []Overrider {
	return m.entries[method][subobject]
}

// Ambiguities returns every (method, subobject) pair with more than one
// final overrider.
func (m *FinalOverriderMap) Ambiguities() []Ambiguity {
	var out []Ambiguity
	for _, method := range m.methods {
		for _, sub := range m.order[method] {
			if ovs := m.entries[method][sub]; len(ovs) > 1 {
				out = append(out, Ambiguity{Method: method, Subobject: sub, Overriders: ovs})
			}
		}
	}
	return out
}

// UnimplementedPureVirtuals returns the pure virtual methods that are their
// own only final overrider in some subobject. Each method is reported once.
func (m *FinalOverriderMap) UnimplementedPureVirtuals() []*Method {
	var out []*Method
	for _, method := range m.methods {
		if !method.Pure {
			continue
		}
		for _, sub := range m.order[method] {
			ovs := m.entries[method][sub]
			if len(ovs) == 1 && ovs[0].Method == method {
				out = append(out, method)
				break
			}
		}
	}
	return out
}

// ResolveFinalOverriders computes the final overriders of every virtual
// method in set.
//
// For a method declared in subobject S, the candidates are the methods with
// the same signature declared in S or in any subobject that contains S. A
// candidate is dropped when another candidate's subobject contains its own.
// The remaining candidates, in discovery order, are the final overriders.
func ResolveFinalOverriders(r Resolver, set *SubobjectSet, at InstantiationContext) (*FinalOverriderMap, error) {
	n := set.Len()
	declared := make([][]*Method, n)
	keys := make([][]string, n)
	byClass := make(map[ClassID][]*Method)
	for so := range set.All() {
		methods, ok := byClass[so.Class]
		if !ok {
			var err error
			methods, err = r.DeclaredMethods(so.Class, at)
			if err != nil {
				return nil, fmt.Errorf("methods of %s: %w", so.Class, err)
			}
			byClass[so.Class] = methods
		}
		declared[so.ID] = methods
		keys[so.ID] = make([]string, len(methods))
		for i, method := range methods {
			if canOverride(method) {
				keys[so.ID][i] = SignatureKey(method)
			}
		}
	}

	// virtualBelow[s] holds the signatures that are virtual in some proper
	// base subobject of s.
	virtualBelow := make([]map[string]bool, n)
	var virtualIn func(s int) map[string]bool
	virtualIn = func(s int) map[string]bool {
		if virtualBelow[s] != nil {
			return virtualBelow[s]
		}
		below := make(map[string]bool)
		for _, b := range set.Bases(s) {
			for k := range virtualIn(b) {
				below[k] = true
			}
			for i, method := range declared[b] {
				if key := keys[b][i]; key != "" && (method.Virtual || virtualIn(b)[key]) {
					below[key] = true
				}
			}
		}
		virtualBelow[s] = below
		return below
	}

	fom := &FinalOverriderMap{
		set:     set,
		entries: make(map[*Method]map[int][]Overrider),
		order:   make(map[*Method][]int),
	}
	for so := range set.All() {
		for i, method := range declared[so.ID] {
			key := keys[so.ID][i]
			if key == "" || !(method.Virtual || virtualIn(so.ID)[key]) {
				continue
			}
			if _, seen := fom.entries[method]; !seen {
				fom.methods = append(fom.methods, method)
				fom.entries[method] = make(map[int][]Overrider)
			}
			fom.entries[method][so.ID] = finalOverriders(set, declared, keys, so.ID, key)
			fom.order[method] = append(fom.order[method], so.ID)
		}
	}
	return fom, nil
}

func finalOverriders(set *SubobjectSet, declared [][]*Method, keys [][]string, sub int, key string) []Overrider {
	var candidates []Overrider
	for outer := range set.Len() {
		if !set.Contains(outer, sub) {
			continue
		}
		for i, method := range declared[outer] {
			if keys[outer][i] == key {
				candidates = append(candidates, Overrider{Method: method, Subobject: outer})
				break
			}
		}
	}

	final := candidates[:0:0]
	for _, c := range candidates {
		dominated := false
		for _, d := range candidates {
			if d.Subobject != c.Subobject && set.Contains(d.Subobject, c.Subobject) {
				dominated = true
				break
			}
		}
		if !dominated {
			final = append(final, c)
		}
	}
	return final
}

func canOverride(m *Method) bool {
	return m.Kind != MethodKindConstructor && !m.Static && !m.Template
}

// SignatureKey returns the identity of a member function signature for
// overriding: the name, parameter types without top-level cv-qualifiers or
// typedefs, and the function's cv- and ref-qualifiers. All destructors
// share one key.
func SignatureKey(m *Method) string {
	var sb strings.Builder
	if m.Kind == MethodKindDestructor {
		sb.WriteString("~")
	} else {
		sb.WriteString(m.Name)
	}
	sb.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			sb.WriteByte(',')
		}
		writeTypeKey(&sb, unqualified(p.Type))
	}
	sb.WriteByte(')')
	if m.IsConst {
		sb.WriteByte('C')
	}
	if m.IsVolatile {
		sb.WriteByte('V')
	}
	sb.WriteString(m.RefQualifier.String())
	return sb.String()
}

// unqualified strips typedefs and top-level cv-qualifiers, including those
// of a pointer itself.
func unqualified(t Type) Type {
	t = StripQualifiers(t)
	if p, ok := t.(*PointerType); ok && (p.IsConst || p.IsVolatile) {
		return &PointerType{Pointee: p.Pointee}
	}
	return t
}

// ComputeFinalOverriderMap enumerates the subobjects of class and resolves
// the final overriders of its virtual methods.
func ComputeFinalOverriderMap(r Resolver, class ClassID, at InstantiationContext) (*FinalOverriderMap, error) {
	set, err := EnumerateSubobjects(r, class, at)
	if err != nil {
		return nil, err
	}
	return ResolveFinalOverriders(r, set, at)
}

// UnimplementedPureVirtuals returns the pure virtual methods class leaves
// without a final overrider.
func UnimplementedPureVirtuals(r Resolver, class ClassID, at InstantiationContext) ([]*Method, error) {
	fom, err := ComputeFinalOverriderMap(r, class, at)
	if err != nil {
		return nil, err
	}
	return fom.UnimplementedPureVirtuals(), nil
}
