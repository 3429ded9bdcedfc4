package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/skdltmxn/cxxsema/analysis"
	"github.com/skdltmxn/cxxsema/internal/model"
	"github.com/skdltmxn/cxxsema/internal/store"
	"github.com/skdltmxn/cxxsema/sema"
)

var errAmbiguous = errors.New("ambiguous final overriders")

type analyzeOptions struct {
	save            bool
	failOnAmbiguity bool
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze <model-file> [class...]",
		Short: "Analyze classes of a model",
		Long: `Analyze classes of a model and print one report per class.

Without class arguments every class that is not a template is analyzed,
including the specializations the analysis instantiates along the way.
Class arguments may name specializations that are not instantiated yet,
such as "Holder<long, 2>".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("fail-on-ambiguity") {
				a.cfg.Analysis.FailOnAmbiguity = &opts.failOnAmbiguity
			}
			return a.runAnalyze(cmd.Context(), args[0], args[1:], opts.save)
		},
	}

	cmd.Flags().BoolVarP(&opts.save, "save", "s", false, "store the reports in the cache directory")
	cmd.Flags().BoolVar(&opts.failOnAmbiguity, "fail-on-ambiguity", false, "exit with an error if a final overrider is ambiguous")
	return cmd
}

func (a *app) runAnalyze(ctx context.Context, path string, names []string, save bool) error {
	m, err := model.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}

	reports, analyzeErr := a.analyzeModel(ctx, m, names)

	if save {
		if err := a.saveReports(ctx, m, reports); err != nil {
			return err
		}
	}
	if err := a.renderReports(reports); err != nil {
		return err
	}
	if analyzeErr != nil {
		return analyzeErr
	}

	if a.cfg.FailOnAmbiguity() {
		for _, r := range reports {
			if len(r.Ambiguities) > 0 {
				return fmt.Errorf("%w in %s", errAmbiguous, r.Class)
			}
		}
	}
	return nil
}

// analyzeModel reports on the named classes, or on every analyzable class
// of the model if names is empty. Classes that fail are logged and left
// out; their errors are joined into the returned error.
func (a *app) analyzeModel(ctx context.Context, m *model.Model, names []string) ([]*analysis.Report, error) {
	an := a.newAnalyzer(m)
	at := a.instantiationContext()

	var ids []sema.ClassID
	for _, name := range names {
		id, err := m.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", name, err)
		}
		ids = append(ids, id)
	}

	var (
		reports []*analysis.Report
		errs    []error
		seen    = make(map[sema.ClassID]bool)
	)
	for {
		if len(names) == 0 {
			ids = ids[:0]
			for _, id := range m.Targets() {
				if !seen[id] {
					ids = append(ids, id)
				}
			}
		}
		if len(ids) == 0 {
			break
		}

		batch, batchErrs := a.analyzeBatch(ctx, an, ids, at)
		reports = append(reports, batch...)
		errs = append(errs, batchErrs...)
		for _, id := range ids {
			seen[id] = true
		}

		// Analyzing a class instantiates its bases; pick those up too.
		if len(names) > 0 || ctx.Err() != nil {
			break
		}
	}
	return reports, errors.Join(errs...)
}

func (a *app) analyzeBatch(ctx context.Context, an *analysis.Analyzer, ids []sema.ClassID, at sema.InstantiationContext) ([]*analysis.Report, []error) {
	results := make([]*analysis.Report, len(ids))
	errs := make([]error, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Analysis.Workers)
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := an.Report(gctx, id, at)
			if err != nil {
				name := id.String()
				if c, cerr := an.Resolver().Class(id); cerr == nil {
					name = c.Name
				}
				a.logger.Warn("analysis failed", slog.String("class", name), slog.Any("error", err))
				errs[i] = fmt.Errorf("%s: %w", name, err)
				return nil
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, []error{err}
	}

	a.logger.Debug("analyzed batch", slog.Int("classes", len(ids)))
	return slices.DeleteFunc(results, func(r *analysis.Report) bool { return r == nil }),
		slices.DeleteFunc(errs, func(err error) bool { return err == nil })
}

func (a *app) saveReports(ctx context.Context, m *model.Model, reports []*analysis.Report) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	for _, r := range reports {
		meta, err := s.Save(ctx, m.Hash, m.Path, r)
		if err != nil {
			return fmt.Errorf("failed to save report for %s: %w", r.Class, err)
		}
		a.logger.Info("report saved", slog.String("class", r.Class), slog.String("id", meta.ID))
	}
	return nil
}

func (a *app) openStore() (*store.Store, error) {
	if a.cfg.Cache.Dir == "" {
		return nil, fmt.Errorf("cache.dir is not set in the config")
	}
	return store.Open(a.cfg.Cache.Dir, a.logger)
}
