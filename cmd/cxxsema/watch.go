package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/skdltmxn/cxxsema/internal/model"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		save        bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "watch <model-file> [class...]",
		Short: "Re-analyze a model whenever it changes",
		Long: `Analyze a model, then watch the file and analyze it again each time it
is written. Stops on interrupt.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if metricsAddr != "" {
				stop := a.serveMetrics(metricsAddr)
				defer stop()
			}
			return a.watch(ctx, args[0], args[1:], save)
		},
	}

	cmd.Flags().BoolVarP(&save, "save", "s", false, "store the reports in the cache directory")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	return cmd
}

func (a *app) watch(ctx context.Context, path string, names []string, save bool) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch its directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	target := filepath.Clean(path)

	a.analyzeOnce(ctx, path, names, save)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			a.logger.Info("model changed", slog.String("path", path), slog.String("op", ev.Op.String()))
			a.analyzeOnce(ctx, path, names, save)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("watch error", slog.Any("error", err))
		}
	}
}

// analyzeOnce loads and analyzes the model, logging instead of returning
// errors so that watching goes on.
func (a *app) analyzeOnce(ctx context.Context, path string, names []string, save bool) {
	m, err := model.Load(path)
	if err != nil {
		a.logger.Error("failed to load model", slog.String("path", path), slog.Any("error", err))
		return
	}

	reports, err := a.analyzeModel(ctx, m, names)
	if err != nil {
		a.logger.Error("analysis failed", slog.Any("error", err))
	}
	if save {
		if err := a.saveReports(ctx, m, reports); err != nil {
			a.logger.Error("failed to save reports", slog.Any("error", err))
		}
	}
	if err := a.renderReports(reports); err != nil {
		a.logger.Error("failed to write reports", slog.Any("error", err))
	}
}

// serveMetrics starts a metrics endpoint and returns a function that
// stops it.
func (a *app) serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		a.logger.Info("serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
