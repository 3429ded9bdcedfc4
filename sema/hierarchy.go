package sema

import (
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// Hierarchy is an in-memory Resolver. Classes live in an arena indexed by
// ClassID; bases and owners are referenced by id only.
//
// Specializations of class templates are created on demand by Instantiate
// and memoized by template and arguments. Their bases and member functions
// are derived from the template and cached.
//
// A Hierarchy is safe for concurrent use.
type Hierarchy struct {
	mu      sync.RWMutex
	classes []*Class
	byName  map[string]ClassID
	specs   map[specKey]ClassID
	methods map[ClassID][]*Method
}

type specKey struct {
	enclosing ClassID
	template  ClassID
	args      string
}

// NewHierarchy returns an empty hierarchy.
func NewHierarchy() *Hierarchy {
	return &Hierarchy{
		byName:  make(map[string]ClassID),
		specs:   make(map[specKey]ClassID),
		methods: make(map[ClassID][]*Method),
	}
}

// Add registers c, assigns its id and returns it. The owner of each of the
// class's methods is set to the new id.
func (h *Hierarchy) Add(c *Class) ClassID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addLocked(c)
}

func (h *Hierarchy) addLocked(c *Class) ClassID {
	c.ID = ClassID(len(h.classes) + 1)
	h.classes = append(h.classes, c)
	if _, exists := h.byName[c.Name]; !exists && c.Name != "" {
		h.byName[c.Name] = c.ID
	}
	for _, m := range c.Methods {
		m.Owner = c.ID
	}
	return c.ID
}

// AddBase appends a base specifier to a declared class.
func (h *Hierarchy) AddBase(id ClassID, b BaseDecl) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, err := h.classLocked(id)
	if err != nil {
		return err
	}
	c.Bases = append(c.Bases, b)
	return nil
}

// SetComplete marks a declared class complete or incomplete. Callers that
// cache results over the hierarchy must invalidate them.
func (h *Hierarchy) SetComplete(id ClassID, complete bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, err := h.classLocked(id)
	if err != nil {
		return err
	}
	c.Complete = complete
	return nil
}

// AddMethod appends a member function to a declared class. Cached members
// of the class's specializations are dropped.
func (h *Hierarchy) AddMethod(id ClassID, m *Method) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, err := h.classLocked(id)
	if err != nil {
		return err
	}
	m.Owner = id
	c.Methods = append(c.Methods, m)
	for sid := range h.methods {
		if h.classes[sid-1].Template == id {
			delete(h.methods, sid)
		}
	}
	return nil
}

// ByName looks up a class by name. Specializations are registered under
// their spelled name, e.g. "B<int>".
func (h *Hierarchy) ByName(name string) (ClassID, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	id, ok := h.byName[name]
	return id, ok
}

// Len returns the number of classes, specializations included.
func (h *Hierarchy) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.classes)
}

// All returns an iterator over a snapshot of the classes in id order.
func (h *Hierarchy) All() iter.Seq[*Class] {
	h.mu.RLock()
	snapshot := slices.Clone(h.classes)
	h.mu.RUnlock()

	return func(yield func(*Class) bool) {
		for _, c := range snapshot {
			if !yield(c) {
				return
			}
		}
	}
}

// Class returns the class with the given id. The result must not be
// modified.
func (h *Hierarchy) Class(id ClassID) (*Class, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.classLocked(id)
}

func (h *Hierarchy) classLocked(id ClassID) (*Class, error) {
	if !id.IsValid() || int(id) > len(h.classes) {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, id)
	}
	return h.classes[id-1], nil
}

// Instantiate returns the specialization of template for args, creating it
// on first use.
func (h *Hierarchy) Instantiate(template ClassID, args []Argument) (ClassID, error) {
	return h.InstantiateIn(0, template, args)
}

// InstantiateIn is Instantiate for a member template of the specialization
// enclosing. The bindings of enclosing are merged below the template's own,
// so the inner template's parameters shadow the outer ones.
func (h *Hierarchy) InstantiateIn(enclosing, template ClassID, args []Argument) (ClassID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tmpl, err := h.classLocked(template)
	if err != nil {
		return 0, err
	}
	if !tmpl.IsTemplate() {
		return 0, fmt.Errorf("%w: %s", ErrNotTemplate, tmpl.Name)
	}

	key := specKey{enclosing: enclosing, template: template, args: ArgumentsKey(args)}
	if id, ok := h.specs[key]; ok {
		return id, nil
	}

	bindings, err := BindArguments(tmpl.TemplateParams, args)
	if err != nil {
		return 0, fmt.Errorf("instantiating %s: %w", tmpl.Name, err)
	}

	name := tmpl.Name
	outer := tmpl.Enclosing
	if enclosing.IsValid() {
		enc, err := h.classLocked(enclosing)
		if err != nil {
			return 0, err
		}
		if enc.Bindings != nil {
			bindings.Merge(enc.Bindings)
		}
		if i := strings.LastIndex(name, "::"); i >= 0 {
			name = name[i+2:]
		}
		name = enc.Name + "::" + name
		outer = enclosing
	}

	spec := &Class{
		Name:      name + "<" + argumentsString(args) + ">",
		Complete:  tmpl.Complete,
		Template:  template,
		Args:      slices.Clone(args),
		Bindings:  bindings,
		Enclosing: outer,
	}
	id := h.addLocked(spec)
	h.specs[key] = id
	return id, nil
}

// declSource returns the class, the class whose declarations describe it
// and the bindings to apply to those declarations.
func (h *Hierarchy) declSource(id ClassID) (c, src *Class, bindings *SubstitutionMap, err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, err = h.classLocked(id)
	if err != nil {
		return nil, nil, nil, err
	}
	if !c.IsSpecialization() {
		return c, c, EmptySubstitutions, nil
	}
	src, err = h.classLocked(c.Template)
	if err != nil {
		return nil, nil, nil, err
	}
	return c, src, c.Bindings, nil
}

// DirectBases resolves the base specifiers of a class. Bases of a
// specialization are substituted and instantiated; bases that remain
// dependent are reported in BaseList.Dependent.
func (h *Hierarchy) DirectBases(id ClassID, _ InstantiationContext) (BaseList, error) {
	c, src, bindings, err := h.declSource(id)
	if err != nil {
		return BaseList{}, err
	}
	h.mu.RLock()
	complete := src.Complete
	decls := slices.Clone(src.Bases)
	h.mu.RUnlock()
	if !complete {
		return IncompleteBases(), nil
	}

	inst := h.scoped(c)
	list := BaseList{Edges: make([]BaseEdge, 0, len(decls))}
	for _, d := range decls {
		types, err := SubstituteTypes([]Type{d.Type}, bindings, inst)
		if err != nil {
			return BaseList{}, fmt.Errorf("bases of %s: %w", c.Name, err)
		}
		for _, t := range types {
			base, dependent, err := h.resolveBase(t, inst)
			if err != nil {
				return BaseList{}, fmt.Errorf("bases of %s: %w", c.Name, err)
			}
			if dependent {
				list.Dependent = append(list.Dependent, t)
				continue
			}
			list.Edges = append(list.Edges, BaseEdge{
				Base:       base,
				Virtual:    d.Virtual,
				Visibility: d.Visibility,
			})
		}
	}
	return list, nil
}

func (h *Hierarchy) resolveBase(t Type, inst Instantiator) (ClassID, bool, error) {
	switch bt := StripQualifiers(t).(type) {
	case *ClassType:
		return bt.ID, false, nil
	case *DeferredInstanceType:
		if IsDependent(bt) {
			return 0, true, nil
		}
		id, err := inst.Instantiate(bt.Template, bt.Args)
		return id, false, err
	case *TemplateParamType, *PackExpansionType:
		return 0, true, nil
	default:
		return 0, false, fmt.Errorf("%w: %s", ErrInvalidBase, t)
	}
}

// DeclaredMethods returns the member functions of a class. For a
// specialization they are the template's members with parameter types
// substituted; the specialized methods are created once and reused, so
// they keep their identity across calls.
func (h *Hierarchy) DeclaredMethods(id ClassID, _ InstantiationContext) ([]*Method, error) {
	c, src, bindings, err := h.declSource(id)
	if err != nil {
		return nil, err
	}
	if !c.IsSpecialization() {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return slices.Clone(c.Methods), nil
	}

	h.mu.RLock()
	cached, ok := h.methods[id]
	decls := slices.Clone(src.Methods)
	h.mu.RUnlock()
	if ok {
		return slices.Clone(cached), nil
	}

	methods := make([]*Method, 0, len(decls))
	for _, m := range decls {
		sm, err := h.specializeMethod(m, c, bindings)
		if err != nil {
			return nil, fmt.Errorf("specializing %s::%s: %w", c.Name, m.Name, err)
		}
		methods = append(methods, sm)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if cached, ok := h.methods[id]; ok {
		return slices.Clone(cached), nil
	}
	h.methods[id] = methods
	return slices.Clone(methods), nil
}

func (h *Hierarchy) specializeMethod(m *Method, owner *Class, bindings *SubstitutionMap) (*Method, error) {
	inst := h.scoped(owner)
	sm := *m
	sm.Owner = owner.ID
	sm.Specialized = m
	sm.Params = make([]Parameter, 0, len(m.Params))
	for _, p := range m.Params {
		if _, isPack := p.Type.(*PackExpansionType); isPack {
			types, err := SubstituteTypes([]Type{p.Type}, bindings, inst)
			if err != nil {
				return nil, err
			}
			if len(types) == 1 && types[0] == p.Type {
				sm.Params = append(sm.Params, p)
				continue
			}
			for i, t := range types {
				sm.Params = append(sm.Params, Parameter{Name: p.Name + strconv.Itoa(i), Type: t})
			}
			continue
		}
		t, err := Substitute(p.Type, bindings, -1, inst)
		if err != nil {
			return nil, err
		}
		sm.Params = append(sm.Params, Parameter{Name: p.Name, Type: t, HasDefault: p.HasDefault})
	}
	return &sm, nil
}

// scoped returns an Instantiator for types written inside scope. Member
// templates of a specialization enclosing scope are instantiated as members
// of that specialization.
func (h *Hierarchy) scoped(scope *Class) Instantiator {
	return scopedInstantiator{h: h, scope: scope}
}

type scopedInstantiator struct {
	h     *Hierarchy
	scope *Class
}

func (s scopedInstantiator) Instantiate(template ClassID, args []Argument) (ClassID, error) {
	tmpl, err := s.h.Class(template)
	if err != nil {
		return 0, err
	}
	if !tmpl.Enclosing.IsValid() {
		return s.h.Instantiate(template, args)
	}
	for cur := s.scope; cur != nil; {
		if cur.IsSpecialization() && cur.Template == tmpl.Enclosing {
			return s.h.InstantiateIn(cur.ID, template, args)
		}
		if !cur.Enclosing.IsValid() {
			break
		}
		if cur, err = s.h.Class(cur.Enclosing); err != nil {
			return 0, err
		}
	}
	return s.h.Instantiate(template, args)
}
