package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/arthur-debert/fsengine/pkg/fsengine"
	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
)

func newTrashCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trash",
		Short: "Inspect and empty the trash",
		Long:  "List the items held in the trash store or delete them permanently",
	}

	cmd.AddCommand(newTrashListCommand())
	cmd.AddCommand(newTrashEmptyCommand())

	return cmd
}

// openLocal opens a runtime that works on the trash directly, without
// dialing a helper.
func openLocal(cmd *cobra.Command) (*fsengine.Runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := fsengine.LoggerFor(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		logger = zerolog.Nop()
	}
	return fsengine.Open(cmd.Context(), cfg, fsengine.WithLogger(logger), fsengine.WithoutHelper())
}

func newTrashListCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List trash items, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openLocal(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			records, err := rt.Trash.Enumerate(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list trash: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if records == nil {
					records = []core.RecycleBinRecord{}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RECYCLED\tTYPE\tSIZE\tORIGINAL PATH")
			var total int64
			for _, r := range records {
				total += r.Size
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
					r.DateRecycled.Local().Format(time.DateTime), r.ItemType, r.Size, r.OriginalPath)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d items, %d bytes\n", len(records), total)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")

	return cmd
}

func newTrashEmptyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "empty",
		Short: "Permanently delete everything in the trash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openLocal(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			stats, err := rt.Trash.Query(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to query trash: %w", err)
			}
			if err := rt.Trash.Empty(cmd.Context()); err != nil {
				return fmt.Errorf("failed to empty trash: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d items (%d bytes)\n", stats.NumItems, stats.BinSize)
			return nil
		},
	}
}
