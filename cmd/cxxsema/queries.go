package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skdltmxn/cxxsema/analysis"
	"github.com/skdltmxn/cxxsema/sema"
)

func newSubobjectsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "subobjects <model-file> <class>",
		Short: "List the base class subobjects of a class",
		Long: `List the base class subobjects of a class in discovery order.

Subobject #0 is the class itself. A virtual base appears once no matter
how many paths lead to it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, id, err := a.loadClass(args[0], args[1])
			if err != nil {
				return err
			}
			an := a.newAnalyzer(m)

			set, err := an.Subobjects(cmd.Context(), id, a.instantiationContext())
			if err != nil {
				return err
			}

			name := func(id sema.ClassID) string {
				if c, err := m.Hierarchy.Class(id); err == nil {
					return c.Name
				}
				return id.String()
			}

			subs := analysis.SubobjectReports(set, name)

			root := name(set.Root())
			return a.render(subs, func(w io.Writer) {
				printSubobjects(w, "", root, subs)
				if inc := set.Incomplete(); len(inc) > 0 {
					names := make([]string, len(inc))
					for i, id := range inc {
						names[i] = name(id)
					}
					fmt.Fprintf(w, "Incomplete: %s\n", strings.Join(names, ", "))
				}
			})
		},
	}
}

func newOverridersCmd(a *app) *cobra.Command {
	var ambiguousOnly bool

	cmd := &cobra.Command{
		Use:   "overriders <model-file> <class>",
		Short: "List the final overriders of the virtual functions of a class",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, id, err := a.loadClass(args[0], args[1])
			if err != nil {
				return err
			}
			r, err := a.newAnalyzer(m).Report(cmd.Context(), id, a.instantiationContext())
			if err != nil {
				return err
			}

			overriders := r.Overriders
			if ambiguousOnly {
				overriders = r.Ambiguities
			}
			if overriders == nil {
				overriders = []analysis.OverriderReport{}
			}
			return a.render(overriders, func(w io.Writer) {
				printOverriders(w, "", overriders)
			})
		},
	}

	cmd.Flags().BoolVarP(&ambiguousOnly, "ambiguous", "a", false, "only show ambiguous final overriders")
	return cmd
}

func newPureCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pure <model-file> <class>",
		Short: "List the pure virtual functions a class leaves unimplemented",
		Long: `List the pure virtual functions a class leaves unimplemented.

A class with at least one is abstract.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, id, err := a.loadClass(args[0], args[1])
			if err != nil {
				return err
			}
			an := a.newAnalyzer(m)

			methods, err := an.UnimplementedPureVirtuals(cmd.Context(), id, a.instantiationContext())
			if err != nil {
				return err
			}

			names := make([]string, 0, len(methods))
			for _, method := range methods {
				owner := method.Owner.String()
				if c, err := m.Hierarchy.Class(method.Owner); err == nil {
					owner = c.Name
				}
				names = append(names, owner+"::"+method.String())
			}
			return a.render(names, func(w io.Writer) {
				for _, n := range names {
					fmt.Fprintln(w, n)
				}
			})
		},
	}
}

func newCtorsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ctors <model-file> <class>",
		Short: "Classify the constructors of a class",
		Long: `Classify each constructor of a class as a copy constructor, a move
constructor, or neither.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, id, err := a.loadClass(args[0], args[1])
			if err != nil {
				return err
			}
			an := a.newAnalyzer(m)

			methods, err := an.Resolver().DeclaredMethods(id, a.instantiationContext())
			if err != nil {
				return err
			}

			ctors := []analysis.ConstructorReport{}
			for _, method := range methods {
				if method.Kind != sema.MethodKindConstructor {
					continue
				}
				kind, err := an.ClassifyConstructor(cmd.Context(), method, id)
				if err != nil {
					return err
				}
				ctors = append(ctors, analysis.ConstructorReport{Signature: method.String(), Kind: kind.String()})
			}

			return a.render(ctors, func(w io.Writer) {
				fmt.Fprintf(w, "%-40s %s\n", "SIGNATURE", "KIND")
				fmt.Fprintf(w, "%s\n", strings.Repeat("-", 50))
				for _, c := range ctors {
					fmt.Fprintf(w, "%-40s %s\n", c.Signature, c.Kind)
				}
			})
		},
	}
}
