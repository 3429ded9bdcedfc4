package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/skdltmxn/cxxsema/internal/model"
	"github.com/skdltmxn/cxxsema/internal/store"
)

func newReportsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Manage stored analysis reports",
		Long: `Manage the analysis reports saved with "analyze --save". Reports are kept
in the cache directory set in the config file.`,
	}
	cmd.AddCommand(newReportsListCmd(a))
	cmd.AddCommand(newReportsShowCmd(a))
	cmd.AddCommand(newReportsDeleteCmd(a))
	return cmd
}

func newReportsListCmd(a *app) *cobra.Command {
	var (
		modelPath string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var hash string
			if modelPath != "" {
				m, err := model.Load(modelPath)
				if err != nil {
					return fmt.Errorf("failed to load model: %w", err)
				}
				hash = m.Hash
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			metas, err := s.List(cmd.Context(), hash, limit)
			if err != nil {
				return err
			}
			if metas == nil {
				metas = []*store.Metadata{}
			}

			return a.render(metas, func(w io.Writer) {
				fmt.Fprintf(w, "%-36s %-16s %-30s %-8s %s\n", "ID", "MODEL", "CLASS", "ABSTRACT", "CREATED")
				fmt.Fprintf(w, "%s\n", strings.Repeat("-", 120))
				for _, meta := range metas {
					created := time.UnixMilli(meta.CreatedAtMilli).UTC().Format(time.RFC3339)
					fmt.Fprintf(w, "%-36s %-16s %-30s %-8s %s\n", meta.ID, meta.ModelHash, meta.Class, yesNo(meta.Abstract), created)
				}
			})
		},
	}

	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "only list reports of this model file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "limit number of reports shown (0 = unlimited)")
	return cmd
}

func newReportsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			r, _, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.render(r, func(w io.Writer) {
				printReport(w, r)
			})
		},
	}
}

func newReportsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete stored reports",
		Long: `Delete stored reports. Deleting the latest report of a class makes the
newest remaining report of that class and context the latest.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			for _, id := range args {
				if err := s.Delete(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(a.output, "deleted %s\n", id)
			}
			return nil
		},
	}
}
