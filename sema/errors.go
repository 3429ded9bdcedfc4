// Package sema provides the semantic resolution core of a C++ front end:
// template substitution environments, subobject enumeration, final
// overrider resolution and constructor classification.
package sema

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common conditions.
var (
	// ErrCyclicInheritance indicates a class is its own (transitive) base.
	ErrCyclicInheritance = errors.New("sema: cyclic inheritance")

	// ErrClassNotFound indicates a class id is not known to the resolver.
	ErrClassNotFound = errors.New("sema: class not found")

	// ErrNotTemplate indicates an instantiation of a non-template class.
	ErrNotTemplate = errors.New("sema: not a class template")

	// ErrArgumentCount indicates a template argument list that does not
	// match the template's parameter list.
	ErrArgumentCount = errors.New("sema: wrong number of template arguments")

	// ErrUnboundParameter indicates a pack expansion over a parameter that
	// has no pack binding.
	ErrUnboundParameter = errors.New("sema: template parameter has no pack binding")

	// ErrInvalidBase indicates a base specifier that does not name a class.
	ErrInvalidBase = errors.New("sema: base is not a class type")
)

// CyclicInheritanceError reports the base path that closed a cycle.
type CyclicInheritanceError struct {
	Cycle []string // Class names, first and last are the same class
}

func (e *CyclicInheritanceError) Error() string {
	return fmt.Sprintf("sema: cyclic inheritance: %s", strings.Join(e.Cycle, " -> "))
}

func (e *CyclicInheritanceError) Unwrap() error { return ErrCyclicInheritance }
