package sema

import (
	"strconv"
	"strings"
)

// TypeKind identifies the category of a type.
type TypeKind uint8

const (
	TypeKindUnknown TypeKind = iota
	TypeKindBasic
	TypeKindClass
	TypeKindTemplateParam
	TypeKindDeferredInstance
	TypeKindQualifier
	TypeKindPointer
	TypeKindReference
	TypeKindTypedef
	TypeKindPackExpansion
)

func (k TypeKind) String() string {
	switch k {
	case TypeKindBasic:
		return "basic"
	case TypeKindClass:
		return "class"
	case TypeKindTemplateParam:
		return "template_param"
	case TypeKindDeferredInstance:
		return "deferred_instance"
	case TypeKindQualifier:
		return "qualifier"
	case TypeKindPointer:
		return "pointer"
	case TypeKindReference:
		return "reference"
	case TypeKindTypedef:
		return "typedef"
	case TypeKindPackExpansion:
		return "pack_expansion"
	default:
		return "unknown"
	}
}

// Type is implemented by all type nodes.
type Type interface {
	// Kind returns the type kind.
	Kind() TypeKind

	// String returns the type as it would be spelled in source.
	String() string
}

// BasicType is a fundamental type such as int or void.
type BasicType struct {
	Name string
}

func (t *BasicType) Kind() TypeKind { return TypeKindBasic }
func (t *BasicType) String() string { return t.Name }

// ClassType refers to a class in the arena. Identity is the ClassID; the
// name is for display only.
type ClassType struct {
	ID   ClassID
	Name string
}

func (t *ClassType) Kind() TypeKind { return TypeKindClass }
func (t *ClassType) String() string { return t.Name }

// TemplateParamType is a use of a template type parameter.
type TemplateParamType struct {
	ID   ParameterID
	Name string
}

func (t *TemplateParamType) Kind() TypeKind { return TypeKindTemplateParam }

func (t *TemplateParamType) String() string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID.String()
}

// DeferredInstanceType stands for an instance of a class template whose
// instantiation has been deferred because its arguments are dependent.
type DeferredInstanceType struct {
	Template ClassID
	Name     string
	Args     []Argument
}

func (t *DeferredInstanceType) Kind() TypeKind { return TypeKindDeferredInstance }

func (t *DeferredInstanceType) String() string {
	return t.Name + "<" + argumentsString(t.Args) + ">"
}

// QualifierType is a cv-qualified type.
type QualifierType struct {
	Type       Type
	IsConst    bool
	IsVolatile bool
}

func (t *QualifierType) Kind() TypeKind { return TypeKindQualifier }

func (t *QualifierType) String() string {
	q := qualifierString(t.IsConst, t.IsVolatile)
	if q == "" {
		return t.Type.String()
	}
	return q + " " + t.Type.String()
}

// PointerType is a pointer, itself optionally cv-qualified.
type PointerType struct {
	Pointee    Type
	IsConst    bool
	IsVolatile bool
}

func (t *PointerType) Kind() TypeKind { return TypeKindPointer }

func (t *PointerType) String() string {
	s := t.Pointee.String() + " *"
	if q := qualifierString(t.IsConst, t.IsVolatile); q != "" {
		s += " " + q
	}
	return s
}

// ReferenceType is an lvalue or rvalue reference.
type ReferenceType struct {
	Referent Type
	IsRValue bool
}

func (t *ReferenceType) Kind() TypeKind { return TypeKindReference }

func (t *ReferenceType) String() string {
	if t.IsRValue {
		return t.Referent.String() + " &&"
	}
	return t.Referent.String() + " &"
}

// TypedefType is an alias for another type. Typedefs are transparent for
// type identity.
type TypedefType struct {
	Name       string
	Underlying Type
}

func (t *TypedefType) Kind() TypeKind { return TypeKindTypedef }
func (t *TypedefType) String() string { return t.Name }

// PackExpansionType is a pattern followed by an ellipsis, e.g. Ts... .
type PackExpansionType struct {
	Pattern Type
}

func (t *PackExpansionType) Kind() TypeKind { return TypeKindPackExpansion }
func (t *PackExpansionType) String() string { return t.Pattern.String() + "..." }

func qualifierString(isConst, isVolatile bool) string {
	switch {
	case isConst && isVolatile:
		return "const volatile"
	case isConst:
		return "const"
	case isVolatile:
		return "volatile"
	default:
		return ""
	}
}

// StripTypedefs removes typedef indirection at the top level of t.
func StripTypedefs(t Type) Type {
	for {
		td, ok := t.(*TypedefType)
		if !ok {
			return t
		}
		t = td.Underlying
	}
}

// StripQualifiers removes typedef indirection and cv-qualification at the
// top level of t.
func StripQualifiers(t Type) Type {
	for {
		switch tt := t.(type) {
		case *TypedefType:
			t = tt.Underlying
		case *QualifierType:
			t = tt.Type
		default:
			return t
		}
	}
}

// Qualifiers reports the top-level cv-qualification of t, looking through
// typedefs.
func Qualifiers(t Type) (isConst, isVolatile bool) {
	for {
		switch tt := t.(type) {
		case *TypedefType:
			t = tt.Underlying
		case *QualifierType:
			isConst = isConst || tt.IsConst
			isVolatile = isVolatile || tt.IsVolatile
			t = tt.Type
		case *PointerType:
			return isConst || tt.IsConst, isVolatile || tt.IsVolatile
		default:
			return isConst, isVolatile
		}
	}
}

// SameType reports whether a and b denote the same type. Comparison is
// structural: typedefs are transparent and classes compare by id, never by
// name.
func SameType(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return TypeKey(a) == TypeKey(b)
}

// TypeKey returns a canonical identity key for t. Two types have the same
// key exactly when SameType reports them equal.
func TypeKey(t Type) string {
	var sb strings.Builder
	writeTypeKey(&sb, t)
	return sb.String()
}

func writeTypeKey(sb *strings.Builder, t Type) {
	if t == nil {
		sb.WriteString("?")
		return
	}

	isConst, isVolatile := false, false
	for {
		if td, ok := t.(*TypedefType); ok {
			t = td.Underlying
			continue
		}
		if q, ok := t.(*QualifierType); ok {
			isConst = isConst || q.IsConst
			isVolatile = isVolatile || q.IsVolatile
			t = q.Type
			continue
		}
		break
	}
	if p, ok := t.(*PointerType); ok {
		isConst = isConst || p.IsConst
		isVolatile = isVolatile || p.IsVolatile
	}
	if isConst {
		sb.WriteByte('C')
	}
	if isVolatile {
		sb.WriteByte('V')
	}

	switch tt := t.(type) {
	case *BasicType:
		sb.WriteString("b:")
		sb.WriteString(tt.Name)
	case *ClassType:
		sb.WriteString("c:")
		sb.WriteString(strconv.FormatUint(uint64(tt.ID), 10))
	case *TemplateParamType:
		sb.WriteString("p:")
		sb.WriteString(strconv.FormatUint(uint64(tt.ID), 10))
	case *DeferredInstanceType:
		sb.WriteString("d:")
		sb.WriteString(strconv.FormatUint(uint64(tt.Template), 10))
		sb.WriteByte('<')
		for i, a := range tt.Args {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeArgumentKey(sb, a)
		}
		sb.WriteByte('>')
	case *PointerType:
		sb.WriteString("*(")
		writeTypeKey(sb, tt.Pointee)
		sb.WriteByte(')')
	case *ReferenceType:
		if tt.IsRValue {
			sb.WriteString("&&(")
		} else {
			sb.WriteString("&(")
		}
		writeTypeKey(sb, tt.Referent)
		sb.WriteByte(')')
	case *PackExpansionType:
		sb.WriteString("...(")
		writeTypeKey(sb, tt.Pattern)
		sb.WriteByte(')')
	default:
		sb.WriteString("?")
	}
}

// IsDependent reports whether t mentions a template parameter.
func IsDependent(t Type) bool {
	switch tt := t.(type) {
	case *TemplateParamType:
		return true
	case *DeferredInstanceType:
		for _, a := range tt.Args {
			if IsDependentArgument(a) {
				return true
			}
		}
		return false
	case *QualifierType:
		return IsDependent(tt.Type)
	case *PointerType:
		return IsDependent(tt.Pointee)
	case *ReferenceType:
		return IsDependent(tt.Referent)
	case *TypedefType:
		return IsDependent(tt.Underlying)
	case *PackExpansionType:
		return true
	default:
		return false
	}
}
