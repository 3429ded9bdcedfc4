package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/skdltmxn/cxxsema/analysis"
)

// render writes v in the configured format. text writes the text form.
func (a *app) render(v any, text func(w io.Writer)) error {
	switch a.cfg.Output {
	case "json":
		enc := json.NewEncoder(a.output)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(a.output)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		text(a.output)
		return nil
	}
}

func (a *app) renderReports(reports []*analysis.Report) error {
	if reports == nil {
		reports = []*analysis.Report{}
	}
	return a.render(reports, func(w io.Writer) {
		for i, r := range reports {
			if i > 0 {
				fmt.Fprintln(w)
			}
			printReport(w, r)
		}
	})
}

func printReport(w io.Writer, r *analysis.Report) {
	fmt.Fprintf(w, "Class: %s\n", r.Class)
	if r.Context != "" {
		fmt.Fprintf(w, "Context: %s\n", r.Context)
	}
	fmt.Fprintf(w, "Abstract: %s\n", yesNo(r.Abstract))

	fmt.Fprintf(w, "Subobjects:\n")
	printSubobjects(w, "  ", r.Class, r.Subobjects)

	if len(r.Overriders) > 0 {
		fmt.Fprintf(w, "Final overriders:\n")
		printOverriders(w, "  ", r.Overriders)
	}
	if len(r.PureVirtuals) > 0 {
		fmt.Fprintf(w, "Unimplemented pure virtuals:\n")
		for _, m := range r.PureVirtuals {
			fmt.Fprintf(w, "  %s\n", m)
		}
	}
	if len(r.Ambiguities) > 0 {
		fmt.Fprintf(w, "Ambiguous:\n")
		printOverriders(w, "  ", r.Ambiguities)
	}
	if len(r.Constructors) > 0 {
		fmt.Fprintf(w, "Constructors:\n")
		for _, c := range r.Constructors {
			fmt.Fprintf(w, "  %-40s %s\n", c.Signature, c.Kind)
		}
	}
	if len(r.Incomplete) > 0 {
		fmt.Fprintf(w, "Incomplete: %s\n", strings.Join(r.Incomplete, ", "))
	}
	if len(r.Dependent) > 0 {
		fmt.Fprintf(w, "Dependent bases: %s\n", strings.Join(r.Dependent, ", "))
	}
}

func printSubobjects(w io.Writer, indent, root string, subs []analysis.SubobjectReport) {
	for _, s := range subs {
		path := append([]string{root}, s.Path...)
		virtual := ""
		if s.Virtual {
			virtual = " (virtual)"
		}
		fmt.Fprintf(w, "%s#%-3d %s%s\n", indent, s.ID, strings.Join(path, "::"), virtual)
	}
}

func printOverriders(w io.Writer, indent string, overriders []analysis.OverriderReport) {
	for _, o := range overriders {
		fmt.Fprintf(w, "%s%s in #%d -> %s\n", indent, o.Method, o.Subobject, strings.Join(o.Overriders, " | "))
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
