package sema

import "fmt"

// ParameterID identifies a template parameter by its nesting level and its
// position within the owning template parameter list.
// Bits 16-31 hold the nesting level, bits 0-15 the position.
type ParameterID uint32

// NewParameterID encodes a nesting level and a position.
func NewParameterID(nesting, position uint16) ParameterID {
	return ParameterID(uint32(nesting)<<16 | uint32(position))
}

// Nesting extracts the template nesting level (bits 16-31).
func (id ParameterID) Nesting() uint16 {
	return uint16(id >> 16)
}

// Position extracts the parameter position (bits 0-15).
func (id ParameterID) Position() uint16 {
	return uint16(id & 0xFFFF)
}

func (id ParameterID) String() string {
	return fmt.Sprintf("#%d.%d", id.Nesting(), id.Position())
}

// TemplateParameter describes one parameter of a class or function template.
type TemplateParameter struct {
	ID     ParameterID
	Name   string
	IsPack bool
	// NonType is the parameter's type for non-type parameters, nil for
	// type parameters.
	NonType Type
}

// AsType returns the type naming this parameter.
func (p TemplateParameter) AsType() Type {
	return &TemplateParamType{ID: p.ID, Name: p.Name}
}

// AsArgument returns the argument that refers to this parameter itself.
// A template's own parameters used as arguments form its deferred instance.
// Pack parameters yield a pack expansion of the parameter.
func (p TemplateParameter) AsArgument() Argument {
	if p.NonType != nil {
		typ := p.NonType
		if p.IsPack {
			typ = &PackExpansionType{Pattern: typ}
		}
		return ValueArgument{Value: ParamValue(p.ID), Type: typ}
	}
	var typ Type = p.AsType()
	if p.IsPack {
		typ = &PackExpansionType{Pattern: typ}
	}
	return TypeArgument{Type: typ}
}
