package sema

import (
	"strconv"
	"strings"
)

// ClassID identifies a class in a Resolver. The zero value is not a class.
type ClassID uint32

// IsValid reports whether id names a class.
func (id ClassID) IsValid() bool { return id != 0 }

func (id ClassID) String() string {
	return "class#" + strconv.FormatUint(uint64(id), 10)
}

// Visibility is the access level of a base or member.
type Visibility uint8

const (
	VisibilityNone Visibility = iota
	VisibilityPrivate
	VisibilityProtected
	VisibilityPublic
)

func (v Visibility) String() string {
	switch v {
	case VisibilityPrivate:
		return "private"
	case VisibilityProtected:
		return "protected"
	case VisibilityPublic:
		return "public"
	default:
		return ""
	}
}

// ParseVisibility converts an access keyword. Unknown keywords yield
// VisibilityNone.
func ParseVisibility(s string) Visibility {
	switch strings.ToLower(s) {
	case "private":
		return VisibilityPrivate
	case "protected":
		return VisibilityProtected
	case "public":
		return VisibilityPublic
	default:
		return VisibilityNone
	}
}

// BaseDecl is a base specifier as written. Type may be dependent in a
// class template.
type BaseDecl struct {
	Type       Type
	Virtual    bool
	Visibility Visibility
}

// BaseEdge is a resolved base specifier. It refers to the base by id and
// never owns it.
type BaseEdge struct {
	Base       ClassID
	Virtual    bool
	Visibility Visibility
}

// BaseList is the result of a direct-bases query.
type BaseList struct {
	Edges []BaseEdge

	// Dependent holds base types that could not be resolved to a class
	// because they still depend on template parameters.
	Dependent []Type

	incomplete bool
}

// IncompleteBases is the base list of a class whose definition is not
// available. It is distinct from a complete class with no bases.
func IncompleteBases() BaseList {
	return BaseList{incomplete: true}
}

// IsIncomplete reports whether the bases are unknown because the class is
// incomplete.
func (l BaseList) IsIncomplete() bool { return l.incomplete }

// MethodKind distinguishes special member functions.
type MethodKind uint8

const (
	MethodKindRegular MethodKind = iota
	MethodKindConstructor
	MethodKindDestructor
)

func (k MethodKind) String() string {
	switch k {
	case MethodKindConstructor:
		return "constructor"
	case MethodKindDestructor:
		return "destructor"
	default:
		return "method"
	}
}

// RefQualifier is the ref-qualifier of a member function.
type RefQualifier uint8

const (
	RefQualifierNone RefQualifier = iota
	RefQualifierLValue
	RefQualifierRValue
)

func (q RefQualifier) String() string {
	switch q {
	case RefQualifierLValue:
		return "&"
	case RefQualifierRValue:
		return "&&"
	default:
		return ""
	}
}

// Parameter is a function parameter.
type Parameter struct {
	Name       string
	Type       Type
	HasDefault bool
}

// Method is a member function declaration.
type Method struct {
	Name         string
	Kind         MethodKind
	Params       []Parameter
	IsConst      bool
	IsVolatile   bool
	RefQualifier RefQualifier
	Visibility   Visibility

	Virtual  bool // declared virtual
	Pure     bool // declared = 0
	Static   bool
	Template bool // member function template

	// Owner is the class that declares the method.
	Owner ClassID

	// Specialized is the template member this method was specialized from,
	// nil for methods as declared.
	Specialized *Method
}

// RequiredArgumentCount returns the number of parameters without a default
// argument before the first defaulted one.
func (m *Method) RequiredArgumentCount() int {
	for i, p := range m.Params {
		if p.HasDefault {
			return i
		}
	}
	return len(m.Params)
}

// Declaration returns the method as originally declared, following
// specializations back to the template member.
func (m *Method) Declaration() *Method {
	for m.Specialized != nil {
		m = m.Specialized
	}
	return m
}

// IsPureVirtual reports whether m is declared pure virtual.
func (m *Method) IsPureVirtual() bool { return m.Pure }

func (m *Method) String() string {
	var sb strings.Builder
	if m.Kind == MethodKindDestructor && !strings.HasPrefix(m.Name, "~") {
		sb.WriteByte('~')
	}
	sb.WriteString(m.Name)
	sb.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		if p.Type != nil {
			sb.WriteString(p.Type.String())
		}
	}
	sb.WriteByte(')')
	if q := qualifierString(m.IsConst, m.IsVolatile); q != "" {
		sb.WriteByte(' ')
		sb.WriteString(q)
	}
	if m.RefQualifier != RefQualifierNone {
		sb.WriteByte(' ')
		sb.WriteString(m.RefQualifier.String())
	}
	return sb.String()
}

// Class is a class, a class template, or a specialization of a class
// template.
type Class struct {
	ID       ClassID
	Name     string
	Complete bool

	// Bases and Methods are the declared members. Specializations leave
	// them empty; their members are derived from the template.
	Bases   []BaseDecl
	Methods []*Method

	// TemplateParams is non-empty for a class template.
	TemplateParams []TemplateParameter

	// Template, Args and Bindings describe a specialization: the primary
	// template, the arguments it was instantiated with and the resulting
	// bindings, including those of the enclosing specialization.
	Template ClassID
	Args     []Argument
	Bindings *SubstitutionMap

	// Enclosing is the class this one is nested in, if any.
	Enclosing ClassID
}

// IsTemplate reports whether c is a primary class template.
func (c *Class) IsTemplate() bool {
	return len(c.TemplateParams) > 0 && !c.Template.IsValid()
}

// IsSpecialization reports whether c is an instance of a class template.
func (c *Class) IsSpecialization() bool {
	return c.Template.IsValid()
}

// TemplateParameters returns the template parameter list, empty for
// ordinary classes.
func (c *Class) TemplateParameters() []TemplateParameter {
	return c.TemplateParams
}

// DeferredInstance returns the template applied to its own parameters,
// the type a class template's members use to name the class itself.
func (c *Class) DeferredInstance() *DeferredInstanceType {
	args := make([]Argument, len(c.TemplateParams))
	for i, p := range c.TemplateParams {
		args[i] = p.AsArgument()
	}
	return &DeferredInstanceType{Template: c.ID, Name: c.Name, Args: args}
}

// SelfType returns the type naming c from inside its own scope: the
// deferred instance for a class template, the class type otherwise.
func (c *Class) SelfType() Type {
	if c.IsTemplate() {
		return c.DeferredInstance()
	}
	return &ClassType{ID: c.ID, Name: c.Name}
}

// HasVisibility is implemented by declarations with an access level.
type HasVisibility interface {
	GetVisibility() Visibility
}

// HasTemplateParameters is implemented by declarations that may be
// templates.
type HasTemplateParameters interface {
	TemplateParameters() []TemplateParameter
}

// GetVisibility returns the member's access level.
func (m *Method) GetVisibility() Visibility { return m.Visibility }

// GetVisibility returns the base specifier's access level.
func (b BaseEdge) GetVisibility() Visibility { return b.Visibility }

// InstantiationContext identifies the point of instantiation a query is
// made from. It is compared by key only.
type InstantiationContext struct {
	key string
}

// NewInstantiationContext returns a context with the given key.
func NewInstantiationContext(key string) InstantiationContext {
	return InstantiationContext{key: key}
}

// Key returns the context's identity key. The zero context has key "".
func (c InstantiationContext) Key() string { return c.key }

// Resolver supplies the declarations the resolution algorithms run over.
// Implementations may memoize by class and instantiation context.
type Resolver interface {
	// Class returns the class with the given id.
	Class(id ClassID) (*Class, error)

	// DirectBases returns the resolved direct bases of a class. The list
	// of an incomplete class reports IsIncomplete.
	DirectBases(id ClassID, at InstantiationContext) (BaseList, error)

	// DeclaredMethods returns the member functions declared by a class,
	// specialized for specializations.
	DeclaredMethods(id ClassID, at InstantiationContext) ([]*Method, error)
}
