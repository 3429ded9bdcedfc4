package analysis

import (
	"context"
	"time"

	"github.com/skdltmxn/cxxsema/sema"
)

// Report is a serializable summary of the analysis of one class.
type Report struct {
	Class        string              `json:"class" yaml:"class"`
	Context      string              `json:"context,omitempty" yaml:"context,omitempty"`
	Abstract     bool                `json:"abstract" yaml:"abstract"`
	PureVirtuals []string            `json:"unimplemented_pure_virtuals,omitempty" yaml:"unimplemented_pure_virtuals,omitempty"`
	Subobjects   []SubobjectReport   `json:"subobjects" yaml:"subobjects"`
	Overriders   []OverriderReport   `json:"overriders,omitempty" yaml:"overriders,omitempty"`
	Ambiguities  []OverriderReport   `json:"ambiguities,omitempty" yaml:"ambiguities,omitempty"`
	Constructors []ConstructorReport `json:"constructors,omitempty" yaml:"constructors,omitempty"`
	Incomplete   []string            `json:"incomplete,omitempty" yaml:"incomplete,omitempty"`
	Dependent    []string            `json:"dependent_bases,omitempty" yaml:"dependent_bases,omitempty"`
}

// SubobjectReport describes one subobject.
type SubobjectReport struct {
	ID      int      `json:"id" yaml:"id"`
	Class   string   `json:"class" yaml:"class"`
	Path    []string `json:"path,omitempty" yaml:"path,omitempty"`
	Virtual bool     `json:"virtual,omitempty" yaml:"virtual,omitempty"`
}

// OverriderReport lists the final overriders of a method in a subobject.
type OverriderReport struct {
	Method     string   `json:"method" yaml:"method"`
	Subobject  int      `json:"subobject" yaml:"subobject"`
	Overriders []string `json:"overriders" yaml:"overriders"`
}

// ConstructorReport is the classification of one constructor.
type ConstructorReport struct {
	Signature string `json:"signature" yaml:"signature"`
	Kind      string `json:"kind" yaml:"kind"`
}

// Report analyzes class and summarizes the result.
func (a *Analyzer) Report(ctx context.Context, class sema.ClassID, at sema.InstantiationContext) (report *Report, err error) {
	ctx, span := a.startSpan(ctx, "analysis.Analyzer.Report", class, at)
	defer endSpan(span, &err)
	start := time.Now()
	defer func() { recordQuery("report", start, err) }()

	owner, err := a.resolver.Class(class)
	if err != nil {
		return nil, err
	}
	fom, err := a.finalOverriders(ctx, class, at)
	if err != nil {
		return nil, err
	}
	set := fom.SubobjectSet()

	report = &Report{
		Class:      owner.Name,
		Context:    at.Key(),
		Subobjects: SubobjectReports(set, a.className),
	}

	for _, m := range fom.Methods() {
		for _, sub := range fom.Subobjects(m) {
			or := OverriderReport{Method: a.qualifiedName(m), Subobject: sub}
			for _, ov := range fom.Overriders(m, sub) {
				or.Overriders = append(or.Overriders, a.qualifiedName(ov.Method))
			}
			report.Overriders = append(report.Overriders, or)
			if len(or.Overriders) > 1 {
				report.Ambiguities = append(report.Ambiguities, or)
			}
		}
	}

	for _, m := range fom.UnimplementedPureVirtuals() {
		report.PureVirtuals = append(report.PureVirtuals, a.qualifiedName(m))
	}
	report.Abstract = len(report.PureVirtuals) > 0

	methods, err := a.resolver.DeclaredMethods(class, at)
	if err != nil {
		return nil, errorf("constructors of %s: %w", owner.Name, err)
	}
	for _, m := range methods {
		if m.Kind != sema.MethodKindConstructor {
			continue
		}
		report.Constructors = append(report.Constructors, ConstructorReport{
			Signature: m.String(),
			Kind:      sema.ClassifyConstructor(m, owner).String(),
		})
	}

	for _, id := range set.Incomplete() {
		report.Incomplete = append(report.Incomplete, a.className(id))
	}
	for _, t := range set.Dependent() {
		report.Dependent = append(report.Dependent, t.String())
	}
	return report, nil
}

// SubobjectReports describes the subobjects of set in discovery order,
// naming classes with name.
func SubobjectReports(set *sema.SubobjectSet, name func(sema.ClassID) string) []SubobjectReport {
	subs := make([]SubobjectReport, 0, set.Len())
	for so := range set.All() {
		sr := SubobjectReport{ID: so.ID, Class: name(so.Class), Virtual: so.IsVirtual()}
		for _, edge := range so.Path {
			sr.Path = append(sr.Path, name(edge.Base))
		}
		subs = append(subs, sr)
	}
	return subs
}

func (a *Analyzer) qualifiedName(m *sema.Method) string {
	return a.className(m.Owner) + "::" + m.String()
}
