package main

import (
	"fmt"

	"github.com/rpattn/streamgate/internal/dedup"
	"github.com/rpattn/streamgate/internal/domain"

	"github.com/spf13/cobra"
)

type processedKeyView struct {
	Key   string `json:"key"`
	Table string `json:"table"`
	RowID string `json:"row_id"`
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or reset the processed-row history",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List processed row keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			store, err := openStorage(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.close()

			keys, err := store.keys.List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				views := make([]processedKeyView, 0, len(keys))
				for _, k := range keys {
					table, rowID, _ := domain.SplitCompositeKey(k)
					views = append(views, processedKeyView{Key: k, Table: table, RowID: rowID})
				}
				return opts.outputJSON(out, views)
			}
			for _, k := range keys {
				fmt.Fprintln(out, k)
			}
			fmt.Fprintf(out, "%d processed keys\n", len(keys))
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget every processed key so rows surface again",
		Long: `Clears the persisted processed-key set. A running server keeps its
in-memory copy; use DELETE /api/history there instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			store, err := openStorage(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.close()

			set, err := dedup.Load(cmd.Context(), store.keys)
			if err != nil {
				return err
			}
			count := set.Len()
			if err := set.Clear(cmd.Context()); err != nil {
				return err
			}
			if opts.jsonOutput {
				return opts.outputJSON(cmd.OutOrStdout(), map[string]int{"cleared": count})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %d processed keys\n", count)
			return nil
		},
	}

	cmd.AddCommand(listCmd, clearCmd)
	return cmd
}
