// Package analysis answers per-class questions about a C++ class hierarchy:
// final overriders, unimplemented pure virtual functions and constructor
// kinds. Results are cached by class and point of instantiation.
package analysis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/skdltmxn/cxxsema/sema"
)

// Analyzer runs the resolution algorithms against a Resolver and caches
// their results. The cache is not invalidated automatically; callers that
// change the hierarchy must call Invalidate or Reset.
//
// An Analyzer is safe for concurrent use if its Resolver is.
type Analyzer struct {
	resolver     sema.Resolver
	logger       *slog.Logger
	tracer       trace.Tracer
	cacheEnabled bool

	cache sync.Map // map[cacheKey]*sema.FinalOverriderMap
}

type cacheKey struct {
	class sema.ClassID
	at    string
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		if logger == nil {
			logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		}
		a.logger = logger
	}
}

// WithTracer sets the tracer used for query spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(a *Analyzer) {
		if tracer != nil {
			a.tracer = tracer
		}
	}
}

// WithCache enables or disables the result cache. It is enabled by default.
func WithCache(enabled bool) Option {
	return func(a *Analyzer) {
		a.cacheEnabled = enabled
	}
}

// New returns an Analyzer over resolver.
func New(resolver sema.Resolver, opts ...Option) *Analyzer {
	a := &Analyzer{
		resolver:     resolver,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:       otel.Tracer(tracerName),
		cacheEnabled: true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Resolver returns the resolver the analyzer runs against.
func (a *Analyzer) Resolver() sema.Resolver { return a.resolver }

// ComputeFinalOverriderMap returns the final overrider map of class as seen
// from at.
func (a *Analyzer) ComputeFinalOverriderMap(ctx context.Context, class sema.ClassID, at sema.InstantiationContext) (fom *sema.FinalOverriderMap, err error) {
	ctx, span := a.startSpan(ctx, "analysis.Analyzer.ComputeFinalOverriderMap", class, at)
	defer endSpan(span, &err)
	start := time.Now()
	defer func() { recordQuery("final_overriders", start, err) }()

	return a.finalOverriders(ctx, class, at)
}

func (a *Analyzer) finalOverriders(ctx context.Context, class sema.ClassID, at sema.InstantiationContext) (*sema.FinalOverriderMap, error) {
	key := cacheKey{class: class, at: at.Key()}
	if a.cacheEnabled {
		if cached, ok := a.cache.Load(key); ok {
			cacheLookups.WithLabelValues("hit").Inc()
			trace.SpanFromContext(ctx).SetAttributes(attribute.Bool("cache_hit", true))
			return cached.(*sema.FinalOverriderMap), nil
		}
		cacheLookups.WithLabelValues("miss").Inc()
	}

	fom, err := sema.ComputeFinalOverriderMap(a.resolver, class, at)
	if err != nil {
		a.logger.Warn("final overrider computation failed",
			slog.String("class", a.className(class)),
			slog.String("context", at.Key()),
			slog.String("error", err.Error()))
		return nil, err
	}

	set := fom.SubobjectSet()
	ambiguities := fom.Ambiguities()
	ambiguousOverriders.Add(float64(len(ambiguities)))
	a.logger.Debug("final overriders computed",
		slog.String("class", a.className(class)),
		slog.String("context", at.Key()),
		slog.Int("subobjects", set.Len()),
		slog.Int("virtual_methods", len(fom.Methods())),
		slog.Int("ambiguities", len(ambiguities)))
	if !set.IsExact() {
		a.logger.Info("class hierarchy only partially known",
			slog.String("class", a.className(class)),
			slog.Int("incomplete", len(set.Incomplete())),
			slog.Int("dependent", len(set.Dependent())))
	}

	if a.cacheEnabled {
		if prev, loaded := a.cache.LoadOrStore(key, fom); loaded {
			return prev.(*sema.FinalOverriderMap), nil
		}
	}
	return fom, nil
}

// Subobjects returns the subobjects of class.
func (a *Analyzer) Subobjects(ctx context.Context, class sema.ClassID, at sema.InstantiationContext) (set *sema.SubobjectSet, err error) {
	ctx, span := a.startSpan(ctx, "analysis.Analyzer.Subobjects", class, at)
	defer endSpan(span, &err)
	start := time.Now()
	defer func() { recordQuery("subobjects", start, err) }()

	fom, err := a.finalOverriders(ctx, class, at)
	if err != nil {
		return nil, err
	}
	return fom.SubobjectSet(), nil
}

// UnimplementedPureVirtuals returns the pure virtual functions class leaves
// without a final overrider.
func (a *Analyzer) UnimplementedPureVirtuals(ctx context.Context, class sema.ClassID, at sema.InstantiationContext) ([]*sema.Method, error) {
	fom, err := a.ComputeFinalOverriderMap(ctx, class, at)
	if err != nil {
		return nil, err
	}
	return fom.UnimplementedPureVirtuals(), nil
}

// IsAbstract reports whether class has an unimplemented pure virtual
// function.
func (a *Analyzer) IsAbstract(ctx context.Context, class sema.ClassID, at sema.InstantiationContext) (bool, error) {
	pure, err := a.UnimplementedPureVirtuals(ctx, class, at)
	if err != nil {
		return false, err
	}
	return len(pure) > 0, nil
}

// ClassifyConstructor classifies ctor as a copy or move constructor of
// owner.
func (a *Analyzer) ClassifyConstructor(ctx context.Context, ctor *sema.Method, owner sema.ClassID) (kind sema.CtorKind, err error) {
	_, span := a.startSpan(ctx, "analysis.Analyzer.ClassifyConstructor", owner, sema.InstantiationContext{})
	defer endSpan(span, &err)
	start := time.Now()
	defer func() { recordQuery("classify_constructor", start, err) }()

	c, err := a.resolver.Class(owner)
	if err != nil {
		return sema.CtorNeither, err
	}
	kind = sema.ClassifyConstructor(ctor, c)
	span.SetAttributes(attribute.String("kind", kind.String()))
	return kind, nil
}

// Invalidate drops cached results that involve class: as the analyzed
// class, as one of its subobjects, or as an incomplete class that cut the
// enumeration short.
func (a *Analyzer) Invalidate(class sema.ClassID) {
	dropped := 0
	a.cache.Range(func(k, v any) bool {
		key := k.(cacheKey)
		set := v.(*sema.FinalOverriderMap).SubobjectSet()
		if key.class == class || len(set.OfClass(class)) > 0 || slices.Contains(set.Incomplete(), class) {
			a.cache.Delete(k)
			dropped++
		}
		return true
	})
	a.logger.Debug("cache invalidated",
		slog.String("class", a.className(class)),
		slog.Int("dropped", dropped))
}

// Reset drops all cached results.
func (a *Analyzer) Reset() {
	a.cache.Clear()
}

func (a *Analyzer) className(id sema.ClassID) string {
	if c, err := a.resolver.Class(id); err == nil {
		return c.Name
	}
	return id.String()
}

func (a *Analyzer) startSpan(ctx context.Context, name string, class sema.ClassID, at sema.InstantiationContext) (context.Context, trace.Span) {
	return a.tracer.Start(ctx, name,
		trace.WithAttributes(
			attribute.String("class", a.className(class)),
			attribute.String("instantiation_context", at.Key()),
		),
	)
}

func endSpan(span trace.Span, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}

// errorf is fmt.Errorf with the analyzer package prefix.
func errorf(format string, args ...any) error {
	return fmt.Errorf("analysis: "+format, args...)
}
