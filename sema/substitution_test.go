package sema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	intType  = &BasicType{Name: "int"}
	charType = &BasicType{Name: "char"}
)

func typeArg(t Type) Argument { return TypeArgument{Type: t} }

func TestParameterID(t *testing.T) {
	id := NewParameterID(2, 5)

	assert.Equal(t, ParameterID(0x00020005), id)
	assert.Equal(t, uint16(2), id.Nesting())
	assert.Equal(t, uint16(5), id.Position())
	assert.Equal(t, "#2.5", id.String())
	assert.Less(t, NewParameterID(0, 0xFFFF), NewParameterID(1, 0), "nesting level dominates ordering")
}

func TestSubstitutionMap_Put(t *testing.T) {
	p := NewParameterID(0, 0)

	t.Run("idempotent", func(t *testing.T) {
		m := NewSubstitutionMap()
		m.Put(p, typeArg(intType))
		m.Put(p, typeArg(intType))

		got, ok := m.Get(p)
		require.True(t, ok)
		assert.True(t, SameArgument(typeArg(intType), got))
		assert.Equal(t, 1, m.Len())
	})

	t.Run("rebind overwrites", func(t *testing.T) {
		m := NewSubstitutionMap()
		m.Put(p, typeArg(intType))
		m.Put(p, typeArg(charType))

		got, ok := m.Get(p)
		require.True(t, ok)
		assert.True(t, SameArgument(typeArg(charType), got))
	})

	t.Run("unbound", func(t *testing.T) {
		m := NewSubstitutionMap()
		_, ok := m.Get(p)
		assert.False(t, ok)
		_, ok = m.GetPack(p)
		assert.False(t, ok)
		_, ok = m.Argument(p, 0)
		assert.False(t, ok)
	})
}

func TestSubstitutionMap_MergePrecedence(t *testing.T) {
	p := NewParameterID(0, 0)
	q := NewParameterID(0, 1)

	inner := NewSubstitutionMap()
	inner.Put(p, typeArg(intType))

	outer := NewSubstitutionMap()
	outer.Put(p, typeArg(charType))
	outer.Put(q, typeArg(charType))

	inner.Merge(outer)

	got, ok := inner.Get(p)
	require.True(t, ok)
	assert.True(t, SameArgument(typeArg(intType), got), "receiver binding must survive the merge")

	got, ok = inner.Get(q)
	require.True(t, ok)
	assert.True(t, SameArgument(typeArg(charType), got), "bindings missing from the receiver are copied")

	got, ok = outer.Get(p)
	require.True(t, ok)
	assert.True(t, SameArgument(typeArg(charType), got), "argument map is left untouched")
}

func TestSubstitutionMap_Packs(t *testing.T) {
	pack := NewParameterID(0, 0)
	scalar := NewParameterID(0, 1)

	m := NewSubstitutionMap()
	m.PutPack(pack, typeArg(intType), NewPack(typeArg(charType), typeArg(intType)))
	m.Put(scalar, typeArg(charType))

	t.Run("scalar lookup of pack", func(t *testing.T) {
		_, ok := m.Get(pack)
		assert.False(t, ok)
	})

	t.Run("pack lookup of scalar", func(t *testing.T) {
		_, ok := m.GetPack(scalar)
		assert.False(t, ok)
	})

	t.Run("nested packs are flattened", func(t *testing.T) {
		elems, ok := m.GetPack(pack)
		require.True(t, ok)
		require.Len(t, elems, 3)
		for _, e := range elems {
			_, isPack := e.(PackArgument)
			assert.False(t, isPack)
		}
	})

	t.Run("pack offset", func(t *testing.T) {
		got, ok := m.Argument(pack, 1)
		require.True(t, ok)
		assert.True(t, SameArgument(typeArg(charType), got))

		_, ok = m.Argument(pack, 3)
		assert.False(t, ok)
		_, ok = m.Argument(pack, -1)
		assert.False(t, ok)
	})

	t.Run("offset ignored for scalar", func(t *testing.T) {
		for _, offset := range []int{-1, 0, 7} {
			got, ok := m.Argument(scalar, offset)
			require.True(t, ok)
			assert.True(t, SameArgument(typeArg(charType), got))
		}
	})
}

func TestSubstitutionMap_EmptySingleton(t *testing.T) {
	assert.True(t, EmptySubstitutions.IsEmpty())
	assert.Empty(t, EmptySubstitutions.Keys())
	assert.Panics(t, func() {
		EmptySubstitutions.Put(NewParameterID(0, 0), typeArg(intType))
	})
	assert.Panics(t, func() {
		other := NewSubstitutionMap()
		other.Put(NewParameterID(0, 0), typeArg(intType))
		EmptySubstitutions.Merge(other)
	})

	// Merging nothing into the singleton is not a modification.
	assert.NotPanics(t, func() {
		EmptySubstitutions.Merge(NewSubstitutionMap())
	})

	clone := EmptySubstitutions.Clone()
	clone.Put(NewParameterID(0, 0), typeArg(intType))
	assert.True(t, EmptySubstitutions.IsEmpty())
}

func TestSubstitutionMap_CloneIsCopyOnWrite(t *testing.T) {
	p := NewParameterID(0, 0)
	q := NewParameterID(0, 1)

	m := NewSubstitutionMap()
	m.Put(p, typeArg(intType))

	c := m.Clone()
	c.Put(p, typeArg(charType))
	m.Put(q, typeArg(intType))

	got, _ := m.Get(p)
	assert.True(t, SameArgument(typeArg(intType), got))
	got, _ = c.Get(p)
	assert.True(t, SameArgument(typeArg(charType), got))

	_, ok := c.Get(q)
	assert.False(t, ok)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 1, c.Len())
}

func TestSubstitutionMap_KeysAndString(t *testing.T) {
	m := NewSubstitutionMap()
	m.Put(NewParameterID(1, 0), typeArg(charType))
	m.Put(NewParameterID(0, 1), typeArg(intType))
	m.PutPack(NewParameterID(0, 0))

	assert.Equal(t, []ParameterID{
		NewParameterID(0, 0),
		NewParameterID(0, 1),
		NewParameterID(1, 0),
	}, m.Keys())
	assert.Equal(t, "{#0.0: {}, #0.1: int, #1.0: char}", m.String())

	var visited []ParameterID
	for id := range m.All() {
		visited = append(visited, id)
		if len(visited) == 2 {
			break
		}
	}
	assert.Len(t, visited, 2)
}

func TestBindArguments(t *testing.T) {
	tp := TemplateParameter{ID: NewParameterID(0, 0), Name: "T"}
	ts := TemplateParameter{ID: NewParameterID(0, 1), Name: "Ts", IsPack: true}
	n := TemplateParameter{ID: NewParameterID(0, 1), Name: "N", NonType: intType}

	t.Run("trailing arguments form the pack", func(t *testing.T) {
		m, err := BindArguments([]TemplateParameter{tp, ts}, []Argument{typeArg(intType), typeArg(charType), typeArg(intType)})
		require.NoError(t, err)

		elems, ok := m.GetPack(ts.ID)
		require.True(t, ok)
		assert.Len(t, elems, 2)
	})

	t.Run("empty pack", func(t *testing.T) {
		m, err := BindArguments([]TemplateParameter{tp, ts}, []Argument{typeArg(intType)})
		require.NoError(t, err)

		elems, ok := m.GetPack(ts.ID)
		require.True(t, ok)
		assert.Empty(t, elems)
	})

	t.Run("non-type argument", func(t *testing.T) {
		m, err := BindArguments([]TemplateParameter{tp, n}, []Argument{typeArg(intType), ValueArgument{Value: IntValue(3), Type: intType}})
		require.NoError(t, err)

		got, ok := m.Get(n.ID)
		require.True(t, ok)
		v, ok := got.(ValueArgument).Value.Int()
		require.True(t, ok)
		assert.Equal(t, int64(3), v)
	})

	tests := []struct {
		name   string
		params []TemplateParameter
		args   []Argument
	}{
		{"too few", []TemplateParameter{tp, n}, []Argument{typeArg(intType)}},
		{"too many", []TemplateParameter{tp}, []Argument{typeArg(intType), typeArg(charType)}},
		{"pack not last", []TemplateParameter{ts, tp}, []Argument{typeArg(intType)}},
		{"pack for scalar", []TemplateParameter{tp}, []Argument{NewPack(typeArg(intType))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BindArguments(tt.params, tt.args)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrArgumentCount))
		})
	}
}
