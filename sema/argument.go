package sema

import (
	"strconv"
	"strings"
)

// Argument is a template argument: a type, a non-type value, or a pack.
// The set of implementations is closed.
type Argument interface {
	isArgument()
	String() string
}

// TypeArgument binds a type.
type TypeArgument struct {
	Type Type
}

// ValueArgument binds a non-type value of the given type.
type ValueArgument struct {
	Value Value
	Type  Type
}

// PackArgument binds a variadic list of arguments to a single parameter.
// Elements never contain another PackArgument; use NewPack to build one.
type PackArgument struct {
	Elements []Argument
}

func (TypeArgument) isArgument()  {}
func (ValueArgument) isArgument() {}
func (PackArgument) isArgument()  {}

func (a TypeArgument) String() string  { return a.Type.String() }
func (a ValueArgument) String() string { return a.Value.String() }
func (a PackArgument) String() string  { return "{" + argumentsString(a.Elements) + "}" }

// NewPack builds a pack, flattening nested packs one level.
func NewPack(elems ...Argument) PackArgument {
	flat := make([]Argument, 0, len(elems))
	for _, e := range elems {
		if p, ok := e.(PackArgument); ok {
			flat = append(flat, p.Elements...)
			continue
		}
		flat = append(flat, e)
	}
	return PackArgument{Elements: flat}
}

// Value is a non-type template argument value. It is either a concrete
// integer or a reference to a non-type template parameter.
type Value struct {
	n         int64
	param     ParameterID
	dependent bool
}

// IntValue returns a concrete integral value.
func IntValue(n int64) Value {
	return Value{n: n}
}

// ParamValue returns a value that refers to a non-type template parameter.
func ParamValue(id ParameterID) Value {
	return Value{param: id, dependent: true}
}

// Int returns the integral value, or false for a dependent value.
func (v Value) Int() (int64, bool) {
	if v.dependent {
		return 0, false
	}
	return v.n, true
}

// Param returns the referenced template parameter, or false for a concrete
// value.
func (v Value) Param() (ParameterID, bool) {
	if !v.dependent {
		return 0, false
	}
	return v.param, true
}

func (v Value) String() string {
	if v.dependent {
		return v.param.String()
	}
	return strconv.FormatInt(v.n, 10)
}

// IsDependentArgument reports whether a mentions a template parameter.
func IsDependentArgument(a Argument) bool {
	switch aa := a.(type) {
	case TypeArgument:
		return IsDependent(aa.Type)
	case ValueArgument:
		return aa.Value.dependent
	case PackArgument:
		for _, e := range aa.Elements {
			if IsDependentArgument(e) {
				return true
			}
		}
	}
	return false
}

// SameArgument reports whether two arguments are identical. Types compare
// with SameType, values by value.
func SameArgument(a, b Argument) bool {
	if a == nil || b == nil {
		return a == b
	}
	return ArgumentKey(a) == ArgumentKey(b)
}

// ArgumentKey returns a canonical identity key for a.
func ArgumentKey(a Argument) string {
	var sb strings.Builder
	writeArgumentKey(&sb, a)
	return sb.String()
}

// ArgumentsKey returns a canonical identity key for an argument list.
func ArgumentsKey(args []Argument) string {
	var sb strings.Builder
	for i, a := range args {
		if i > 0 {
			sb.WriteByte(',')
		}
		writeArgumentKey(&sb, a)
	}
	return sb.String()
}

func writeArgumentKey(sb *strings.Builder, a Argument) {
	switch aa := a.(type) {
	case TypeArgument:
		sb.WriteString("t:")
		writeTypeKey(sb, aa.Type)
	case ValueArgument:
		sb.WriteString("v:")
		if aa.Value.dependent {
			sb.WriteString("p")
			sb.WriteString(strconv.FormatUint(uint64(aa.Value.param), 10))
		} else {
			sb.WriteString(strconv.FormatInt(aa.Value.n, 10))
		}
	case PackArgument:
		sb.WriteString("P[")
		for i, e := range aa.Elements {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeArgumentKey(sb, e)
		}
		sb.WriteByte(']')
	default:
		sb.WriteString("?")
	}
}

func argumentsString(args []Argument) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ", ")
}
