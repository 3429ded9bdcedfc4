package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/skdltmxn/cxxsema/analysis"
	"github.com/skdltmxn/cxxsema/internal/config"
	"github.com/skdltmxn/cxxsema/internal/model"
	"github.com/skdltmxn/cxxsema/sema"
)

// app holds the state shared by all commands.
type app struct {
	configPath string
	outputFile string
	format     string
	logLevel   string
	context    string

	cfg    *config.Config
	logger *slog.Logger
	output io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "cxxsema",
		Short: "C++ class hierarchy analyzer",
		Long: `cxxsema analyzes C++ class hierarchies described in YAML model files.

It enumerates base class subobjects, resolves final overriders of virtual
functions, reports unimplemented pure virtual functions and classifies
copy and move constructors, including for class template specializations.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if f, ok := a.output.(*os.File); ok && f != os.Stdout {
				f.Close()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file (default ./"+config.DefaultFile+")")
	flags.StringVarP(&a.outputFile, "output", "o", "", "write output to file instead of stdout")
	flags.StringVarP(&a.format, "format", "f", "", "output format (text, json, yaml)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&a.context, "context", "", "point of instantiation the queries are made from")

	rootCmd.AddCommand(newAnalyzeCmd(a))
	rootCmd.AddCommand(newSubobjectsCmd(a))
	rootCmd.AddCommand(newOverridersCmd(a))
	rootCmd.AddCommand(newPureCmd(a))
	rootCmd.AddCommand(newCtorsCmd(a))
	rootCmd.AddCommand(newWatchCmd(a))
	rootCmd.AddCommand(newReportsCmd(a))
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.format != "" {
		cfg.Output = a.format
	}
	if a.context != "" {
		cfg.Analysis.InstantiationContext = a.context
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	if a.outputFile != "" {
		f, err := os.Create(a.outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		a.output = f
	} else {
		a.output = cmd.OutOrStdout()
	}
	return nil
}

func (a *app) instantiationContext() sema.InstantiationContext {
	return sema.NewInstantiationContext(a.cfg.Analysis.InstantiationContext)
}

func (a *app) newAnalyzer(m *model.Model) *analysis.Analyzer {
	return analysis.New(m.Hierarchy,
		analysis.WithLogger(a.logger),
		analysis.WithCache(a.cfg.CacheEnabled()),
	)
}

// loadClass loads a model and looks up one class in it.
func (a *app) loadClass(path, name string) (*model.Model, sema.ClassID, error) {
	m, err := model.Load(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load model: %w", err)
	}
	id, err := m.Lookup(name)
	if err != nil {
		return nil, 0, fmt.Errorf("class %s: %w", name, err)
	}
	return m, id, nil
}
