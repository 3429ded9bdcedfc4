// Package model loads class hierarchies described in YAML into a
// sema.Hierarchy.
//
// A model file lists classes with their template parameters, bases and
// member functions, typedefs, and specializations to instantiate eagerly.
// Types are written as C++ spellings and parsed with typeexpr:
//
//	classes:
//	  - name: Base
//	    template: [{name: T}]
//	    methods:
//	      - {name: get, virtual: true, pure: true, const: true}
//	  - name: Derived
//	    key: class
//	    bases: [{type: Base<int>, visibility: public}]
//	    methods:
//	      - name: Derived
//	        params: [{type: const Derived &}]
//
// The class key decides the access of bases and members that leave
// visibility out: private for "class", public for "struct" and "union".
// An omitted key means "struct".
package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/skdltmxn/cxxsema/sema"
)

// Errors
var (
	ErrInvalidModel   = errors.New("model: invalid model")
	ErrDuplicateClass = errors.New("model: duplicate class")
	ErrUnknownType    = errors.New("model: unknown type")
	ErrNotAType       = errors.New("model: not a type")
	ErrNotClass       = errors.New("model: not a class")
	ErrMissingArgs    = errors.New("model: template used without arguments")
	ErrDependent      = errors.New("model: type depends on template parameters")
)

// File is the YAML document.
type File struct {
	Classes        []ClassDecl   `yaml:"classes" validate:"dive"`
	Typedefs       []TypedefDecl `yaml:"typedefs" validate:"dive"`
	Instantiations []string      `yaml:"instantiations" validate:"dive,required"`
}

// ClassDecl declares a class or class template. Nested classes name their
// enclosing class, which must be declared earlier in the file.
type ClassDecl struct {
	Name       string              `yaml:"name" validate:"required"`
	Key        string              `yaml:"key" validate:"omitempty,oneof=class struct union"`
	Incomplete bool                `yaml:"incomplete"`
	Enclosing  string              `yaml:"enclosing"`
	Template   []TemplateParamDecl `yaml:"template" validate:"dive"`
	Bases      []BaseSpec          `yaml:"bases" validate:"dive"`
	Methods    []MethodDecl        `yaml:"methods" validate:"dive"`
}

// TemplateParamDecl is a template parameter. Type is set for non-type
// parameters.
type TemplateParamDecl struct {
	Name string `yaml:"name" validate:"required"`
	Type string `yaml:"type"`
	Pack bool   `yaml:"pack"`
}

// BaseSpec is a base specifier.
type BaseSpec struct {
	Type       string `yaml:"type" validate:"required"`
	Virtual    bool   `yaml:"virtual"`
	Visibility string `yaml:"visibility" validate:"omitempty,oneof=public protected private"`
}

// MethodDecl is a member function. Kind defaults to constructor when the
// name matches the class and to destructor when it starts with '~'.
type MethodDecl struct {
	Name       string      `yaml:"name" validate:"required"`
	Kind       string      `yaml:"kind" validate:"omitempty,oneof=regular constructor destructor"`
	Params     []ParamDecl `yaml:"params" validate:"dive"`
	Const      bool        `yaml:"const"`
	Volatile   bool        `yaml:"volatile"`
	Ref        string      `yaml:"ref" validate:"omitempty,oneof=& &&"`
	Visibility string      `yaml:"visibility" validate:"omitempty,oneof=public protected private"`
	Virtual    bool        `yaml:"virtual"`
	Pure       bool        `yaml:"pure"`
	Static     bool        `yaml:"static"`
	Template   bool        `yaml:"template"`
}

// ParamDecl is a function parameter.
type ParamDecl struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type" validate:"required"`
	Default bool   `yaml:"default"`
}

// TypedefDecl is a type alias at namespace scope.
type TypedefDecl struct {
	Name string `yaml:"name" validate:"required"`
	Type string `yaml:"type" validate:"required"`
}

// Model is a loaded hierarchy.
type Model struct {
	Hierarchy *sema.Hierarchy

	// Path is the file the model was loaded from, empty for Parse.
	Path string

	// Hash identifies the model contents.
	Hash string

	binder *binder
}

var validate = validator.New()

// Load reads and binds a model file.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Path = path
	return m, nil
}

// Parse decodes and binds a model document.
func Parse(data []byte) (*Model, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}

	b, err := build(&f)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	return &Model{
		Hierarchy: b.h,
		Hash:      hex.EncodeToString(sum[:8]),
		binder:    b,
	}, nil
}

// build binds a decoded document into a new hierarchy.
func build(f *File) (*binder, error) {
	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
			}
			return nil, fmt.Errorf("%w: %s", ErrInvalidModel, strings.Join(msgs, "; "))
		}
		return nil, err
	}

	b := newBinder(sema.NewHierarchy())
	if err := b.declareClasses(f.Classes); err != nil {
		return nil, err
	}
	if err := b.declareTypedefs(f.Typedefs); err != nil {
		return nil, err
	}
	if err := b.defineClasses(f.Classes); err != nil {
		return nil, err
	}
	for _, spelling := range f.Instantiations {
		if _, err := b.lookup(spelling); err != nil {
			return nil, fmt.Errorf("instantiating %s: %w", spelling, err)
		}
	}
	return b, nil
}

// Lookup finds a class by name. Specializations not yet instantiated, such
// as "B<long>", are instantiated on demand.
func (m *Model) Lookup(name string) (sema.ClassID, error) {
	if id, ok := m.Hierarchy.ByName(name); ok {
		return id, nil
	}
	return m.binder.lookup(name)
}

// Targets returns the classes that can be analyzed: every class that is
// not a primary template or a member of one, in id order.
func (m *Model) Targets() []sema.ClassID {
	var ids []sema.ClassID
	for c := range m.Hierarchy.All() {
		if m.binder.inTemplate(c) {
			continue
		}
		ids = append(ids, c.ID)
	}
	return ids
}
