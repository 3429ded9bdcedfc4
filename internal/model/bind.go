package model

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/skdltmxn/cxxsema/internal/typeexpr"
	"github.com/skdltmxn/cxxsema/sema"
)

// binder turns parsed type spellings into sema types.
type binder struct {
	h        *sema.Hierarchy
	typedefs map[string]sema.Type
}

func newBinder(h *sema.Hierarchy) *binder {
	return &binder{h: h, typedefs: make(map[string]sema.Type)}
}

// scope is the lookup context of a spelling: the classes it is written in,
// innermost first, and the template parameters visible there.
type scope struct {
	chain  []*sema.Class
	params map[string]sema.TemplateParameter
}

var global = &scope{}

// declareClasses adds every class with its template parameters. Bases and
// methods are bound later so that they can refer to any class in the file.
func (b *binder) declareClasses(decls []ClassDecl) error {
	for _, d := range decls {
		var enclosing *sema.Class
		name := d.Name
		if d.Enclosing != "" {
			id, ok := b.h.ByName(d.Enclosing)
			if !ok {
				return fmt.Errorf("class %s: enclosing %w: %s", d.Name, ErrUnknownType, d.Enclosing)
			}
			enclosing, _ = b.h.Class(id)
			if !strings.HasPrefix(name, enclosing.Name+"::") {
				name = enclosing.Name + "::" + name
			}
		}
		if _, exists := b.h.ByName(name); exists {
			return fmt.Errorf("%w: %s", ErrDuplicateClass, name)
		}

		c := &sema.Class{Name: name, Complete: !d.Incomplete}
		outer := global
		if enclosing != nil {
			c.Enclosing = enclosing.ID
			outer = b.classScope(enclosing)
		}

		nesting := uint16(0)
		for _, p := range outer.chain {
			if len(p.TemplateParams) > 0 {
				nesting++
			}
		}

		s := outer.clone()
		if s.params == nil {
			s.params = make(map[string]sema.TemplateParameter)
		}
		for i, pd := range d.Template {
			p := sema.TemplateParameter{
				ID:     sema.NewParameterID(nesting, uint16(i)),
				Name:   pd.Name,
				IsPack: pd.Pack,
			}
			if pd.Type != "" {
				t, err := b.bindSpelling(pd.Type, s)
				if err != nil {
					return fmt.Errorf("class %s: parameter %s: %w", name, pd.Name, err)
				}
				p.NonType = t
			}
			c.TemplateParams = append(c.TemplateParams, p)
			s.params[p.Name] = p
		}

		b.h.Add(c)
	}
	return nil
}

func (b *binder) declareTypedefs(decls []TypedefDecl) error {
	for _, d := range decls {
		t, err := b.bindSpelling(d.Type, global)
		if err != nil {
			return fmt.Errorf("typedef %s: %w", d.Name, err)
		}
		b.typedefs[d.Name] = t
	}
	return nil
}

// defineClasses binds the bases and methods of every declared class.
func (b *binder) defineClasses(decls []ClassDecl) error {
	for _, d := range decls {
		name := d.Name
		if d.Enclosing != "" && !strings.HasPrefix(name, d.Enclosing+"::") {
			name = d.Enclosing + "::" + name
		}
		id, _ := b.h.ByName(name)
		c, err := b.h.Class(id)
		if err != nil {
			return err
		}
		s := b.classScope(c)
		access := defaultAccess(d.Key)

		for _, bs := range d.Bases {
			t, err := b.bindSpelling(bs.Type, s)
			if err != nil {
				return fmt.Errorf("class %s: base %s: %w", name, bs.Type, err)
			}
			err = b.h.AddBase(id, sema.BaseDecl{
				Type:       t,
				Virtual:    bs.Virtual,
				Visibility: visibility(bs.Visibility, access),
			})
			if err != nil {
				return err
			}
		}

		for _, md := range d.Methods {
			m, err := b.bindMethod(md, c, s, access)
			if err != nil {
				return fmt.Errorf("class %s: method %s: %w", name, md.Name, err)
			}
			if err := b.h.AddMethod(id, m); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *binder) bindMethod(d MethodDecl, c *sema.Class, s *scope, access sema.Visibility) (*sema.Method, error) {
	m := &sema.Method{
		Name:       d.Name,
		IsConst:    d.Const,
		IsVolatile: d.Volatile,
		Visibility: visibility(d.Visibility, access),
		Virtual:    d.Virtual || d.Pure,
		Pure:       d.Pure,
		Static:     d.Static,
		Template:   d.Template,
	}

	switch {
	case d.Kind == "constructor":
		m.Kind = sema.MethodKindConstructor
	case d.Kind == "destructor":
		m.Kind = sema.MethodKindDestructor
	case d.Kind == "regular":
	case d.Name == lastComponent(c.Name):
		m.Kind = sema.MethodKindConstructor
	case strings.HasPrefix(d.Name, "~"):
		m.Kind = sema.MethodKindDestructor
	}

	switch d.Ref {
	case "&":
		m.RefQualifier = sema.RefQualifierLValue
	case "&&":
		m.RefQualifier = sema.RefQualifierRValue
	}

	for _, pd := range d.Params {
		t, err := b.bindSpelling(pd.Type, s)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", pd.Type, err)
		}
		m.Params = append(m.Params, sema.Parameter{Name: pd.Name, Type: t, HasDefault: pd.Default})
	}
	return m, nil
}

// lookup binds a spelling at namespace scope and returns the class it
// names, instantiating specializations as needed.
func (b *binder) lookup(spelling string) (sema.ClassID, error) {
	t, err := b.bindSpelling(spelling, global)
	if err != nil {
		return 0, err
	}
	switch ct := sema.StripQualifiers(t).(type) {
	case *sema.ClassType:
		return ct.ID, nil
	case *sema.DeferredInstanceType:
		return 0, fmt.Errorf("%w: %s", ErrDependent, spelling)
	default:
		return 0, fmt.Errorf("%w: %s", ErrNotClass, spelling)
	}
}

// inTemplate reports whether c is a primary template or is nested in one.
func (b *binder) inTemplate(c *sema.Class) bool {
	for {
		if c.IsTemplate() {
			return true
		}
		if !c.Enclosing.IsValid() {
			return false
		}
		enc, err := b.h.Class(c.Enclosing)
		if err != nil {
			return false
		}
		c = enc
	}
}

// classScope returns the scope of the body of c.
func (b *binder) classScope(c *sema.Class) *scope {
	var chain []*sema.Class
	for cur := c; ; {
		chain = append(chain, cur)
		if !cur.Enclosing.IsValid() {
			break
		}
		enc, err := b.h.Class(cur.Enclosing)
		if err != nil {
			break
		}
		cur = enc
	}

	s := &scope{chain: chain, params: make(map[string]sema.TemplateParameter)}
	for i := len(chain) - 1; i >= 0; i-- {
		for _, p := range chain[i].TemplateParams {
			s.params[p.Name] = p
		}
	}
	return s
}

func (s *scope) clone() *scope {
	return &scope{chain: slices.Clone(s.chain), params: maps.Clone(s.params)}
}

// encloses reports whether the body of class id is part of s.
func (s *scope) encloses(id sema.ClassID) bool {
	for _, c := range s.chain {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (b *binder) bindSpelling(spelling string, s *scope) (sema.Type, error) {
	n, err := typeexpr.Parse(spelling)
	if err != nil {
		return nil, err
	}
	return b.bindType(n, s)
}

func (b *binder) bindType(n typeexpr.Node, s *scope) (sema.Type, error) {
	switch n := n.(type) {
	case *typeexpr.Named:
		return b.bindNamed(n, s)
	case *typeexpr.Qualified:
		inner, err := b.bindType(n.Inner, s)
		if err != nil {
			return nil, err
		}
		return &sema.QualifierType{Type: inner, IsConst: n.Const, IsVolatile: n.Volatile}, nil
	case *typeexpr.Pointer:
		pointee, err := b.bindType(n.Pointee, s)
		if err != nil {
			return nil, err
		}
		return &sema.PointerType{Pointee: pointee, IsConst: n.Const, IsVolatile: n.Volatile}, nil
	case *typeexpr.Reference:
		referent, err := b.bindType(n.Referent, s)
		if err != nil {
			return nil, err
		}
		return &sema.ReferenceType{Referent: referent, IsRValue: n.RValue}, nil
	case *typeexpr.PackExpansion:
		pattern, err := b.bindType(n.Pattern, s)
		if err != nil {
			return nil, err
		}
		return &sema.PackExpansionType{Pattern: pattern}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotAType, n)
	}
}

func (b *binder) bindNamed(n *typeexpr.Named, s *scope) (sema.Type, error) {
	if n.Scope != nil || n.HasArgs {
		return b.bindSpecialization(n, s)
	}
	if typeexpr.IsFundamental(n.Name) {
		return &sema.BasicType{Name: n.Name}, nil
	}
	if p, ok := s.params[n.Name]; ok {
		if p.NonType != nil {
			return nil, fmt.Errorf("%w: %s is a non-type parameter", ErrNotAType, n.Name)
		}
		return p.AsType(), nil
	}
	if t, ok := b.typedefs[n.Name]; ok {
		return &sema.TypedefType{Name: n.Name, Underlying: t}, nil
	}

	c, ok := b.findClass(n.Name, s)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, n.Name)
	}
	if c.IsTemplate() {
		// The injected class name of a template names the template applied
		// to its own parameters.
		if !s.encloses(c.ID) {
			return nil, fmt.Errorf("%w: %s", ErrMissingArgs, c.Name)
		}
		return c.SelfType(), nil
	}
	return &sema.ClassType{ID: c.ID, Name: c.Name}, nil
}

func (b *binder) bindSpecialization(n *typeexpr.Named, s *scope) (sema.Type, error) {
	var (
		c         *sema.Class
		enclosing sema.ClassID
		deferred  bool
	)

	if n.Scope != nil {
		st, err := b.bindNamed(n.Scope, s)
		if err != nil {
			return nil, err
		}
		var outer sema.ClassID
		switch st := sema.StripQualifiers(st).(type) {
		case *sema.ClassType:
			enclosing = st.ID
			sc, err := b.h.Class(st.ID)
			if err != nil {
				return nil, err
			}
			outer = sc.ID
			if sc.IsSpecialization() {
				outer = sc.Template
			}
		case *sema.DeferredInstanceType:
			outer = st.Template
			deferred = true
		default:
			return nil, fmt.Errorf("%w: %s", ErrNotClass, n.Scope)
		}
		oc, err := b.h.Class(outer)
		if err != nil {
			return nil, err
		}
		id, ok := b.h.ByName(oc.Name + "::" + n.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownType, n)
		}
		if c, err = b.h.Class(id); err != nil {
			return nil, err
		}
	} else {
		var ok bool
		if c, ok = b.findClass(n.Name, s); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownType, n.Name)
		}
		// A member template named from inside its unspecialized enclosing
		// template is instantiated once the enclosing one is.
		if c.Enclosing.IsValid() && s.encloses(c.Enclosing) {
			enc, err := b.h.Class(c.Enclosing)
			deferred = err == nil && b.inTemplate(enc)
		}
	}

	if !n.HasArgs {
		if c.IsTemplate() && !s.encloses(c.ID) {
			return nil, fmt.Errorf("%w: %s", ErrMissingArgs, c.Name)
		}
		return &sema.ClassType{ID: c.ID, Name: c.Name}, nil
	}
	if !c.IsTemplate() {
		return nil, fmt.Errorf("%w: %s", sema.ErrNotTemplate, c.Name)
	}

	args, err := b.bindArguments(n.Args, c.TemplateParams, s)
	if err != nil {
		return nil, err
	}
	if deferred || anyDependent(args) {
		return &sema.DeferredInstanceType{Template: c.ID, Name: c.Name, Args: args}, nil
	}

	id, err := b.h.InstantiateIn(enclosing, c.ID, args)
	if err != nil {
		return nil, err
	}
	spec, err := b.h.Class(id)
	if err != nil {
		return nil, err
	}
	return &sema.ClassType{ID: id, Name: spec.Name}, nil
}

func (b *binder) bindArguments(nodes []typeexpr.Node, params []sema.TemplateParameter, s *scope) ([]sema.Argument, error) {
	args := make([]sema.Argument, 0, len(nodes))
	for i, n := range nodes {
		var param *sema.TemplateParameter
		switch {
		case i < len(params):
			param = &params[i]
		case len(params) > 0 && params[len(params)-1].IsPack:
			param = &params[len(params)-1]
		}
		a, err := b.bindArgument(n, param, s)
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	return args, nil
}

func (b *binder) bindArgument(n typeexpr.Node, param *sema.TemplateParameter, s *scope) (sema.Argument, error) {
	switch n := n.(type) {
	case *typeexpr.Integer:
		var typ sema.Type = &sema.BasicType{Name: "int"}
		if param != nil && param.NonType != nil {
			typ = param.NonType
		}
		return sema.ValueArgument{Value: sema.IntValue(n.Value), Type: typ}, nil
	case *typeexpr.Named:
		if p, ok := s.nonTypeParam(n); ok {
			return sema.ValueArgument{Value: sema.ParamValue(p.ID), Type: p.NonType}, nil
		}
	case *typeexpr.PackExpansion:
		if named, ok := n.Pattern.(*typeexpr.Named); ok {
			if p, ok := s.nonTypeParam(named); ok && p.IsPack {
				return p.AsArgument(), nil
			}
		}
	}

	t, err := b.bindType(n, s)
	if err != nil {
		return nil, err
	}
	return sema.TypeArgument{Type: t}, nil
}

// findClass looks name up from the innermost class of s outwards, then at
// namespace scope. A class's own name refers to itself.
func (b *binder) findClass(name string, s *scope) (*sema.Class, bool) {
	for _, c := range s.chain {
		if c.Name == name || lastComponent(c.Name) == name {
			return c, true
		}
		if id, ok := b.h.ByName(c.Name + "::" + name); ok {
			nested, err := b.h.Class(id)
			return nested, err == nil
		}
	}
	id, ok := b.h.ByName(name)
	if !ok {
		return nil, false
	}
	c, err := b.h.Class(id)
	return c, err == nil
}

func (s *scope) nonTypeParam(n *typeexpr.Named) (sema.TemplateParameter, bool) {
	if n.Scope != nil || n.HasArgs {
		return sema.TemplateParameter{}, false
	}
	p, ok := s.params[n.Name]
	return p, ok && p.NonType != nil
}

func anyDependent(args []sema.Argument) bool {
	for _, a := range args {
		if sema.IsDependentArgument(a) {
			return true
		}
	}
	return false
}

// defaultAccess returns the access implied by a class key.
func defaultAccess(key string) sema.Visibility {
	if key == "class" {
		return sema.VisibilityPrivate
	}
	return sema.VisibilityPublic
}

func visibility(s string, def sema.Visibility) sema.Visibility {
	if s == "" {
		return def
	}
	return sema.ParseVisibility(s)
}

func lastComponent(name string) string {
	if i := strings.LastIndex(name, "::"); i >= 0 {
		return name[i+2:]
	}
	return name
}
