package sema

import (
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"
	"sync/atomic"
)

// SubstitutionMap maps template parameters to the arguments bound to them.
//
// Clones share storage until one side is modified. A SubstitutionMap is not
// safe for concurrent mutation; concurrent reads and Clone are safe.
type SubstitutionMap struct {
	bindings map[ParameterID]Argument
	shared   atomic.Bool
	frozen   bool
}

// EmptySubstitutions is the shared map that binds nothing. It must not be
// modified; Put on it panics.
var EmptySubstitutions = &SubstitutionMap{frozen: true}

// NewSubstitutionMap returns an empty, modifiable map.
func NewSubstitutionMap() *SubstitutionMap {
	return &SubstitutionMap{bindings: make(map[ParameterID]Argument)}
}

// Put binds id to arg, replacing any previous binding. Packs are flattened
// one level.
func (m *SubstitutionMap) Put(id ParameterID, arg Argument) {
	m.ensureWritable()
	if p, ok := arg.(PackArgument); ok {
		arg = NewPack(p.Elements...)
	}
	m.bindings[id] = arg
}

// PutPack binds id to a pack of the given elements.
func (m *SubstitutionMap) PutPack(id ParameterID, elems ...Argument) {
	m.Put(id, NewPack(elems...))
}

// Get returns the scalar argument bound to id. It returns false if id is
// unbound or bound to a pack.
func (m *SubstitutionMap) Get(id ParameterID) (Argument, bool) {
	arg, ok := m.bindings[id]
	if !ok {
		return nil, false
	}
	if _, isPack := arg.(PackArgument); isPack {
		return nil, false
	}
	return arg, true
}

// GetPack returns the elements of the pack bound to id. It returns false
// unless id is bound to a pack.
func (m *SubstitutionMap) GetPack(id ParameterID) ([]Argument, bool) {
	arg, ok := m.bindings[id]
	if !ok {
		return nil, false
	}
	p, isPack := arg.(PackArgument)
	if !isPack {
		return nil, false
	}
	return p.Elements, true
}

// Argument returns the argument for id at packOffset. For a pack binding it
// returns the element at packOffset, false when the offset is out of range.
// For a scalar binding the offset is ignored and the scalar is returned.
func (m *SubstitutionMap) Argument(id ParameterID, packOffset int) (Argument, bool) {
	arg, ok := m.bindings[id]
	if !ok {
		return nil, false
	}
	p, isPack := arg.(PackArgument)
	if !isPack {
		return arg, true
	}
	if packOffset < 0 || packOffset >= len(p.Elements) {
		return nil, false
	}
	return p.Elements[packOffset], true
}

// Merge copies the bindings of other that m does not bind yet. Bindings
// already present in m win, so an inner template's map merged with its
// enclosing template's map keeps the inner bindings.
func (m *SubstitutionMap) Merge(other *SubstitutionMap) {
	if other == nil || other == m {
		return
	}
	for id, arg := range other.bindings {
		if _, exists := m.bindings[id]; exists {
			continue
		}
		m.ensureWritable()
		m.bindings[id] = arg
	}
}

// Clone returns an independent map with the same bindings. Storage is
// shared until either map is modified.
func (m *SubstitutionMap) Clone() *SubstitutionMap {
	if len(m.bindings) == 0 {
		return NewSubstitutionMap()
	}
	m.shared.Store(true)
	c := &SubstitutionMap{bindings: m.bindings}
	c.shared.Store(true)
	return c
}

// Len returns the number of bound parameters.
func (m *SubstitutionMap) Len() int {
	return len(m.bindings)
}

// IsEmpty reports whether nothing is bound.
func (m *SubstitutionMap) IsEmpty() bool {
	return len(m.bindings) == 0
}

// Keys returns the bound parameter ids in ascending order.
func (m *SubstitutionMap) Keys() []ParameterID {
	keys := make([]ParameterID, 0, len(m.bindings))
	for id := range m.bindings {
		keys = append(keys, id)
	}
	slices.Sort(keys)
	return keys
}

// All returns an iterator over the bindings in ascending parameter order.
func (m *SubstitutionMap) All() iter.Seq2[ParameterID, Argument] {
	return func(yield func(ParameterID, Argument) bool) {
		for _, id := range m.Keys() {
			if !yield(id, m.bindings[id]) {
				return
			}
		}
	}
}

func (m *SubstitutionMap) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	first := true
	for id, arg := range m.All() {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&sb, "%s: %s", id, arg)
	}
	sb.WriteByte('}')
	return sb.String()
}

func (m *SubstitutionMap) ensureWritable() {
	if m.frozen {
		panic("sema: modification of EmptySubstitutions")
	}
	if m.bindings == nil {
		m.bindings = make(map[ParameterID]Argument)
		return
	}
	if m.shared.Load() {
		m.bindings = maps.Clone(m.bindings)
		m.shared.Store(false)
	}
}

// BindArguments binds an explicit template argument list to a template
// parameter list. Arguments from the first pack parameter onwards are
// collected into a single pack.
func BindArguments(params []TemplateParameter, args []Argument) (*SubstitutionMap, error) {
	m := NewSubstitutionMap()
	for i, p := range params {
		if p.IsPack {
			if i != len(params)-1 {
				return nil, fmt.Errorf("%w: pack %s is not the last parameter", ErrArgumentCount, p.Name)
			}
			rest := []Argument{}
			if i < len(args) {
				rest = args[i:]
			}
			m.PutPack(p.ID, rest...)
			return m, nil
		}
		if i >= len(args) {
			return nil, fmt.Errorf("%w: want %d, got %d", ErrArgumentCount, len(params), len(args))
		}
		if _, isPack := args[i].(PackArgument); isPack {
			return nil, fmt.Errorf("%w: pack bound to non-pack parameter %s", ErrArgumentCount, p.Name)
		}
		m.Put(p.ID, args[i])
	}
	if len(args) > len(params) {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrArgumentCount, len(params), len(args))
	}
	return m, nil
}
