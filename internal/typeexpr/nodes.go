// Package typeexpr parses C++ type spellings such as "const X<T> &" into a
// syntax tree.
package typeexpr

import (
	"fmt"
	"strconv"
	"strings"
)

// NodeKind identifies the type of AST node.
type NodeKind int

const (
	NodeKindUnknown NodeKind = iota
	NodeKindNamed
	NodeKindInteger
	NodeKindQualified
	NodeKindPointer
	NodeKindReference
	NodeKindPackExpansion
)

// Node is the interface implemented by all AST nodes.
type Node interface {
	Kind() NodeKind
	fmt.Stringer
}

// Named is a type name, possibly qualified with "::" and possibly followed
// by a template argument list. Fundamental types made of several keywords,
// like "unsigned long", are a single Named node. A name nested in a template
// specialization, like "Outer<int>::Inner", has that specialization as Scope.
type Named struct {
	Scope   *Named
	Name    string
	Args    []Node
	HasArgs bool // an argument list was written, even if empty
}

func (n *Named) Kind() NodeKind { return NodeKindNamed }

func (n *Named) String() string {
	s := n.Name
	if n.Scope != nil {
		s = n.Scope.String() + "::" + s
	}
	if !n.HasArgs {
		return s
	}
	parts := make([]string, len(n.Args))
	for i, a := range n.Args {
		parts[i] = a.String()
	}
	return s + "<" + strings.Join(parts, ", ") + ">"
}

// Integer is an integral non-type template argument.
type Integer struct {
	Value int64
}

func (n *Integer) Kind() NodeKind { return NodeKindInteger }
func (n *Integer) String() string { return strconv.FormatInt(n.Value, 10) }

// Qualified is a cv-qualified type.
type Qualified struct {
	Inner    Node
	Const    bool
	Volatile bool
}

func (n *Qualified) Kind() NodeKind { return NodeKindQualified }

func (n *Qualified) String() string {
	var q []string
	if n.Const {
		q = append(q, "const")
	}
	if n.Volatile {
		q = append(q, "volatile")
	}
	return strings.Join(q, " ") + " " + n.Inner.String()
}

// Pointer is a pointer, itself optionally cv-qualified.
type Pointer struct {
	Pointee  Node
	Const    bool
	Volatile bool
}

func (n *Pointer) Kind() NodeKind { return NodeKindPointer }

func (n *Pointer) String() string {
	s := n.Pointee.String() + " *"
	if n.Const {
		s += " const"
	}
	if n.Volatile {
		s += " volatile"
	}
	return s
}

// Reference is an lvalue or rvalue reference.
type Reference struct {
	Referent Node
	RValue   bool
}

func (n *Reference) Kind() NodeKind { return NodeKindReference }

func (n *Reference) String() string {
	if n.RValue {
		return n.Referent.String() + " &&"
	}
	return n.Referent.String() + " &"
}

// PackExpansion is a pattern followed by "...".
type PackExpansion struct {
	Pattern Node
}

func (n *PackExpansion) Kind() NodeKind { return NodeKindPackExpansion }
func (n *PackExpansion) String() string { return n.Pattern.String() + "..." }
