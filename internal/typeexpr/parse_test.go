package typeexpr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"int", "int"},
		{"  unsigned long long  ", "unsigned long long"},
		{"unsigned long *", "unsigned long *"},
		{"const X &", "const X &"},
		{"X const&", "const X &"},
		{"X&&", "X &&"},
		{"volatile const int", "const volatile int"},
		{"T * const", "T * const"},
		{"char **", "char * *"},
		{"X<T>", "X<T>"},
		{"X<int, 3>", "X<int, 3>"},
		{"X<-1>", "X<-1>"},
		{"Outer<int>::Inner", "Outer<int>::Inner"},
		{"Outer<int>::Inner<char> &", "Outer<int>::Inner<char> &"},
		{"ns::Widget", "ns::Widget"},
		{"Map<K, List<V>>", "Map<K, List<V>>"},
		{"Tuple<>", "Tuple<>"},
		{"Ts...", "Ts..."},
		{"const Ts &...", "const Ts &..."},
		{"X<Ts...>", "X<Ts...>"},
		{"struct S *", "S *"},
		{"typename T", "T"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			node, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, node.String())
		})
	}
}

func TestParseTree(t *testing.T) {
	node, err := Parse("const B<T, 2> &")
	require.NoError(t, err)

	ref, ok := node.(*Reference)
	require.True(t, ok)
	assert.Equal(t, NodeKindReference, ref.Kind())
	assert.False(t, ref.RValue)

	q, ok := ref.Referent.(*Qualified)
	require.True(t, ok)
	assert.True(t, q.Const)
	assert.False(t, q.Volatile)

	named, ok := q.Inner.(*Named)
	require.True(t, ok)
	assert.Equal(t, "B", named.Name)
	assert.True(t, named.HasArgs)
	require.Len(t, named.Args, 2)
	assert.Equal(t, &Named{Name: "T"}, named.Args[0])
	assert.Equal(t, &Integer{Value: 2}, named.Args[1])
}

func TestParseQualifiedTemplateName(t *testing.T) {
	// Template arguments attach to the last name component only.
	node, err := Parse("ns::Box<int>")
	require.NoError(t, err)

	named, ok := node.(*Named)
	require.True(t, ok)
	assert.Equal(t, "ns::Box", named.Name)
	assert.Equal(t, []Node{&Named{Name: "int"}}, named.Args)
}

func TestParseNestedSpecialization(t *testing.T) {
	node, err := Parse("a::Outer<T>::Inner<char>")
	require.NoError(t, err)

	inner, ok := node.(*Named)
	require.True(t, ok)
	assert.Equal(t, "Inner", inner.Name)
	assert.Equal(t, []Node{&Named{Name: "char"}}, inner.Args)
	require.NotNil(t, inner.Scope)
	assert.Equal(t, "a::Outer", inner.Scope.Name)
	assert.Equal(t, []Node{&Named{Name: "T"}}, inner.Scope.Args)
	assert.Nil(t, inner.Scope.Scope)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		want  error
	}{
		{"", ErrEmptyInput},
		{"   ", ErrEmptyInput},
		{"const", ErrUnexpectedEnd},
		{"X<int", ErrUnexpectedEnd},
		{"X<int;", ErrUnexpectedToken},
		{"X<,>", ErrUnexpectedToken},
		{"int )", ErrUnexpectedToken},
		{"ns::", ErrUnexpectedToken},
		{"X<int>::", ErrUnexpectedToken},
		{"X<int><char>", ErrUnexpectedToken},
		{"*int", ErrUnexpectedToken},
		{"X<99999999999999999999>", ErrUnexpectedToken},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestSyntaxErrorPosition(t *testing.T) {
	_, err := Parse("int )")
	var serr *SyntaxError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, 4, serr.Pos)
	assert.Equal(t, "int )", serr.Input)
}

func TestIsFundamental(t *testing.T) {
	assert.True(t, IsFundamental("int"))
	assert.True(t, IsFundamental("unsigned long long"))
	assert.False(t, IsFundamental(""))
	assert.False(t, IsFundamental("Widget"))
	assert.False(t, IsFundamental("unsigned Widget"))
}
