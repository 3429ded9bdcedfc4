package sema

import (
	"fmt"
	"iter"
	"slices"
)

// Subobject is one base class subobject of a complete object. Subobject 0
// is the complete object itself and has an empty path.
type Subobject struct {
	ID    int
	Class ClassID

	// Path is the sequence of base edges leading from the complete object
	// to this subobject along the first path it was discovered on.
	Path []BaseEdge
}

// Depth returns the length of the discovery path.
func (s Subobject) Depth() int { return len(s.Path) }

// IsVirtual reports whether the subobject is a virtual base subobject.
func (s Subobject) IsVirtual() bool {
	return len(s.Path) > 0 && s.Path[len(s.Path)-1].Virtual
}

// SubobjectSet is the result of enumerating the subobjects of a class.
// Subobjects are numbered in depth-first discovery order, which is
// deterministic for a given resolver.
type SubobjectSet struct {
	root       ClassID
	subobjects []Subobject
	bases      [][]int
	below      [][]uint64
	incomplete []ClassID
	dependent  []Type
}

// Root returns the class the set was enumerated for.
func (s *SubobjectSet) Root() ClassID { return s.root }

// Len returns the number of subobjects.
func (s *SubobjectSet) Len() int { return len(s.subobjects) }

// Get returns the subobject with the given id.
func (s *SubobjectSet) Get(id int) Subobject { return s.subobjects[id] }

// All returns an iterator over the subobjects in discovery order.
func (s *SubobjectSet) All() iter.Seq[Subobject] {
	return func(yield func(Subobject) bool) {
		for _, so := range s.subobjects {
			if !yield(so) {
				return
			}
		}
	}
}

// OfClass returns the ids of the subobjects of the given class.
func (s *SubobjectSet) OfClass(class ClassID) []int {
	var ids []int
	for _, so := range s.subobjects {
		if so.Class == class {
			ids = append(ids, so.ID)
		}
	}
	return ids
}

// Bases returns the ids of the direct base subobjects of id.
func (s *SubobjectSet) Bases(id int) []int { return s.bases[id] }

// Contains reports whether sub is outer itself or one of its direct or
// indirect base subobjects.
func (s *SubobjectSet) Contains(outer, sub int) bool {
	return s.below[outer][sub/64]&(1<<(sub%64)) != 0
}

// Incomplete returns the incomplete classes at which enumeration stopped.
// Their subobjects, and those of their bases, are missing from the set.
func (s *SubobjectSet) Incomplete() []ClassID { return s.incomplete }

// Dependent returns base types that could not be resolved to a class.
func (s *SubobjectSet) Dependent() []Type { return s.dependent }

// IsExact reports whether every base of the root was resolved, so that the
// set describes the whole object.
func (s *SubobjectSet) IsExact() bool {
	return len(s.incomplete) == 0 && len(s.dependent) == 0
}

// EnumerateSubobjects walks the bases of root depth-first and returns its
// subobjects. Non-virtual bases yield one subobject per path; a virtual
// base yields a single subobject shared by every path that reaches it.
//
// An incomplete class produces no subobject and ends its branch; it is
// reported by SubobjectSet.Incomplete. A class that is its own base fails
// with a *CyclicInheritanceError.
func EnumerateSubobjects(r Resolver, root ClassID, at InstantiationContext) (*SubobjectSet, error) {
	e := &enumerator{
		r:        r,
		at:       at,
		set:      &SubobjectSet{root: root},
		virtuals: make(map[ClassID]int),
		onPath:   make(map[ClassID]bool),
	}
	if _, err := e.visit(root, nil); err != nil {
		return nil, err
	}
	e.set.computeClosure()
	return e.set, nil
}

type enumerator struct {
	r        Resolver
	at       InstantiationContext
	set      *SubobjectSet
	virtuals map[ClassID]int
	onPath   map[ClassID]bool
	trail    []ClassID
}

// visit creates the subobject for class reached by path and recurses into
// its bases. It returns -1 if the class is incomplete.
func (e *enumerator) visit(class ClassID, path []BaseEdge) (int, error) {
	bases, err := e.r.DirectBases(class, e.at)
	if err != nil {
		return -1, fmt.Errorf("bases of %s: %w", e.name(class), err)
	}
	if bases.IsIncomplete() {
		if !slices.Contains(e.set.incomplete, class) {
			e.set.incomplete = append(e.set.incomplete, class)
		}
		return -1, nil
	}
	e.set.dependent = append(e.set.dependent, bases.Dependent...)

	id := len(e.set.subobjects)
	e.set.subobjects = append(e.set.subobjects, Subobject{ID: id, Class: class, Path: path})
	e.set.bases = append(e.set.bases, nil)
	if len(path) > 0 && path[len(path)-1].Virtual {
		e.virtuals[class] = id
	}

	e.onPath[class] = true
	e.trail = append(e.trail, class)
	defer func() {
		delete(e.onPath, class)
		e.trail = e.trail[:len(e.trail)-1]
	}()

	for _, edge := range bases.Edges {
		if e.onPath[edge.Base] {
			return -1, e.cycle(edge.Base)
		}
		if edge.Virtual {
			if vid, seen := e.virtuals[edge.Base]; seen {
				e.set.bases[id] = append(e.set.bases[id], vid)
				continue
			}
		}
		bid, err := e.visit(edge.Base, slices.Concat(path, []BaseEdge{edge}))
		if err != nil {
			return -1, err
		}
		if bid >= 0 {
			e.set.bases[id] = append(e.set.bases[id], bid)
		}
	}
	return id, nil
}

func (e *enumerator) cycle(closing ClassID) error {
	start := slices.Index(e.trail, closing)
	names := make([]string, 0, len(e.trail)-start+1)
	for _, id := range e.trail[start:] {
		names = append(names, e.name(id))
	}
	names = append(names, e.name(closing))
	return &CyclicInheritanceError{Cycle: names}
}

func (e *enumerator) name(id ClassID) string {
	if c, err := e.r.Class(id); err == nil {
		return c.Name
	}
	return id.String()
}

// computeClosure records, for every subobject, the set of subobjects it
// contains. The subobject graph is acyclic.
func (s *SubobjectSet) computeClosure() {
	n := len(s.subobjects)
	words := (n + 63) / 64
	s.below = make([][]uint64, n)
	var fill func(id int) []uint64
	fill = func(id int) []uint64 {
		if s.below[id] != nil {
			return s.below[id]
		}
		bits := make([]uint64, words)
		bits[id/64] |= 1 << (id % 64)
		for _, b := range s.bases[id] {
			for i, w := range fill(b) {
				bits[i] |= w
			}
		}
		s.below[id] = bits
		return bits
	}
	for id := range s.subobjects {
		fill(id)
	}
}
