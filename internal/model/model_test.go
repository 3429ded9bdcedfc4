package model

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skdltmxn/cxxsema/sema"
)

var noContext = sema.InstantiationContext{}

func load(t *testing.T, name string) *Model {
	t.Helper()
	m, err := Load(filepath.Join("testdata", name))
	require.NoError(t, err)
	return m
}

func classID(t *testing.T, m *Model, name string) sema.ClassID {
	t.Helper()
	id, err := m.Lookup(name)
	require.NoError(t, err)
	return id
}

func methodStrings(methods []*sema.Method) []string {
	out := make([]string, len(methods))
	for i, m := range methods {
		out[i] = m.String()
	}
	return out
}

func TestLoadDiamond(t *testing.T) {
	m := load(t, "diamond.yaml")
	h := m.Hierarchy

	assert.Equal(t, filepath.Join("testdata", "diamond.yaml"), m.Path)
	assert.Len(t, m.Hash, 16)
	assert.Equal(t, 4, h.Len())

	square := classID(t, m, "Square")
	bases, err := h.DirectBases(square, noContext)
	require.NoError(t, err)
	require.Len(t, bases.Edges, 2)
	assert.Equal(t, classID(t, m, "Named"), bases.Edges[0].Base)
	assert.False(t, bases.Edges[0].Virtual)
	assert.Equal(t, sema.VisibilityPublic, bases.Edges[0].Visibility)

	sized, err := h.DirectBases(classID(t, m, "Sized"), noContext)
	require.NoError(t, err)
	require.Len(t, sized.Edges, 1)
	assert.True(t, sized.Edges[0].Virtual)
	assert.Equal(t, sema.VisibilityProtected, sized.Edges[0].Visibility)

	methods, err := h.DeclaredMethods(square, noContext)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Square(const Square &)",
		"Square(Square &&)",
		"Square(Length, int)",
		"~Square()",
	}, methodStrings(methods))

	assert.Equal(t, sema.MethodKindConstructor, methods[0].Kind)
	assert.Equal(t, sema.MethodKindDestructor, methods[3].Kind)
	assert.Equal(t, 1, methods[2].RequiredArgumentCount())

	td, ok := methods[2].Params[0].Type.(*sema.TypedefType)
	require.True(t, ok)
	assert.Equal(t, "double", td.Underlying.String())

	sq, err := h.Class(square)
	require.NoError(t, err)
	assert.Equal(t, sema.CtorCopy, sema.ClassifyConstructor(methods[0], sq))
	assert.Equal(t, sema.CtorMove, sema.ClassifyConstructor(methods[1], sq))
	assert.Equal(t, sema.CtorNeither, sema.ClassifyConstructor(methods[2], sq))
}

func TestLoadDiamondOverriders(t *testing.T) {
	m := load(t, "diamond.yaml")

	pure, err := sema.UnimplementedPureVirtuals(m.Hierarchy, classID(t, m, "Square"), noContext)
	require.NoError(t, err)
	assert.Empty(t, pure)

	pure, err = sema.UnimplementedPureVirtuals(m.Hierarchy, classID(t, m, "Named"), noContext)
	require.NoError(t, err)
	assert.Equal(t, []string{"area() const"}, methodStrings(pure))
}

func TestLoadTemplates(t *testing.T) {
	m := load(t, "templates.yaml")
	h := m.Hierarchy

	t.Run("non-type argument", func(t *testing.T) {
		id, ok := h.ByName("Holder<int, 3>")
		require.True(t, ok, "instantiated eagerly")
		c, err := h.Class(id)
		require.NoError(t, err)

		methods, err := h.DeclaredMethods(id, noContext)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"Holder(const Holder<int, 3> &)",
			"Holder(Holder<int, 3> &&)",
			"get(int)",
		}, methodStrings(methods))
		assert.Equal(t, sema.CtorCopy, sema.ClassifyConstructor(methods[0], c))
		assert.Equal(t, sema.CtorMove, sema.ClassifyConstructor(methods[1], c))

		pure, err := sema.UnimplementedPureVirtuals(h, id, noContext)
		require.NoError(t, err)
		assert.Empty(t, pure)
	})

	t.Run("pack base", func(t *testing.T) {
		id := classID(t, m, "Tuple<int, char>")
		bases, err := h.DirectBases(id, noContext)
		require.NoError(t, err)
		require.Len(t, bases.Edges, 2)
		assert.Equal(t, classID(t, m, "Base<int>"), bases.Edges[0].Base)
		assert.Equal(t, classID(t, m, "Base<char>"), bases.Edges[1].Base)

		pure, err := sema.UnimplementedPureVirtuals(h, id, noContext)
		require.NoError(t, err)
		assert.Equal(t, []string{"get(int)", "get(char)"}, methodStrings(pure))
	})

	t.Run("member template", func(t *testing.T) {
		id, ok := h.ByName("Outer<long>::Inner<char>")
		require.True(t, ok)
		c, err := h.Class(id)
		require.NoError(t, err)

		methods, err := h.DeclaredMethods(id, noContext)
		require.NoError(t, err)
		require.Len(t, methods, 2)
		assert.Equal(t, "pair(long, char)", methods[0].String())
		assert.Equal(t, sema.CtorCopy, sema.ClassifyConstructor(methods[1], c))
	})

	t.Run("lookup instantiates on demand", func(t *testing.T) {
		before := h.Len()
		id := classID(t, m, "Holder<char, 1>")
		assert.Equal(t, before+1, h.Len())
		assert.Equal(t, id, classID(t, m, "Holder<char, 1>"))
	})

	t.Run("targets", func(t *testing.T) {
		targets := m.Targets()
		assert.Contains(t, targets, classID(t, m, "Holder<int, 3>"))
		assert.Contains(t, targets, classID(t, m, "Outer<long>"))
		for _, name := range []string{"Base", "Holder", "Tuple", "Outer", "Outer::Inner"} {
			id, ok := h.ByName(name)
			require.True(t, ok)
			assert.NotContains(t, targets, id, name)
		}
	})
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{
			name: "unknown field",
			doc:  "classes:\n  - name: A\n    colour: red\n",
			want: ErrInvalidModel,
		},
		{
			name: "missing name",
			doc:  "classes:\n  - bases: []\n",
			want: ErrInvalidModel,
		},
		{
			name: "bad visibility",
			doc:  "classes:\n  - name: A\n    bases: [{type: int, visibility: friend}]\n",
			want: ErrInvalidModel,
		},
		{
			name: "bad class key",
			doc:  "classes:\n  - name: A\n    key: interface\n",
			want: ErrInvalidModel,
		},
		{
			name: "duplicate class",
			doc:  "classes:\n  - name: A\n  - name: A\n",
			want: ErrDuplicateClass,
		},
		{
			name: "unknown base",
			doc:  "classes:\n  - name: A\n    bases: [{type: Missing}]\n",
			want: ErrUnknownType,
		},
		{
			name: "unknown enclosing",
			doc:  "classes:\n  - name: A\n    enclosing: Missing\n",
			want: ErrUnknownType,
		},
		{
			name: "template without arguments",
			doc:  "classes:\n  - name: T1\n    template: [{name: X}]\n  - name: A\n    bases: [{type: T1}]\n",
			want: ErrMissingArgs,
		},
		{
			name: "arguments to a non-template",
			doc:  "classes:\n  - name: A\ninstantiations: [\"A<int>\"]\n",
			want: sema.ErrNotTemplate,
		},
		{
			name: "instantiation of a non-class",
			doc:  "instantiations: [\"int *\"]\n",
			want: ErrNotClass,
		},
		{
			name: "forward reference to a later template",
			doc:  "classes:\n  - name: A\n    methods: [{name: f, params: [{type: X<1>}]}]\n  - name: X\n    template: [{name: T}]\n    methods: [{name: g, params: [{type: T}]}]\n",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestClassKeyAccess(t *testing.T) {
	doc := `
classes:
  - name: V
  - name: C
    key: class
    bases: [{type: V}, {type: V, visibility: public}]
    methods: [{name: f}]
  - name: S
    key: struct
    bases: [{type: V}]
    methods: [{name: f}]
  - name: Plain
    bases: [{type: V}]
    methods: [{name: f}]
`
	m, err := Parse([]byte(doc))
	require.NoError(t, err)

	tests := []struct {
		class  string
		base   []sema.Visibility
		method sema.Visibility
	}{
		{"C", []sema.Visibility{sema.VisibilityPrivate, sema.VisibilityPublic}, sema.VisibilityPrivate},
		{"S", []sema.Visibility{sema.VisibilityPublic}, sema.VisibilityPublic},
		{"Plain", []sema.Visibility{sema.VisibilityPublic}, sema.VisibilityPublic},
	}
	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			id := classID(t, m, tt.class)
			bases, err := m.Hierarchy.DirectBases(id, noContext)
			require.NoError(t, err)
			got := make([]sema.Visibility, len(bases.Edges))
			for i, e := range bases.Edges {
				got[i] = e.Visibility
			}
			assert.Equal(t, tt.base, got)

			methods, err := m.Hierarchy.DeclaredMethods(id, noContext)
			require.NoError(t, err)
			require.Len(t, methods, 1)
			assert.Equal(t, tt.method, methods[0].Visibility)
		})
	}
}

func TestParseEmpty(t *testing.T) {
	m, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Hierarchy.Len())
	assert.Empty(t, m.Targets())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestHashChangesWithContent(t *testing.T) {
	a, err := Parse([]byte("classes: [{name: A}]"))
	require.NoError(t, err)
	b, err := Parse([]byte("classes: [{name: B}]"))
	require.NoError(t, err)
	same, err := Parse([]byte("classes: [{name: A}]"))
	require.NoError(t, err)

	assert.NotEqual(t, a.Hash, b.Hash)
	assert.Equal(t, a.Hash, same.Hash)
}
