package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.AddCommand(batchListCmd, batchRedownloadCmd)
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Inspect recorded batch archives",
}

var batchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded batches",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		_, batches := exportStores(cfg)

		recorded, err := batches.List()
		if err != nil {
			return fmt.Errorf("list batches: %w", err)
		}
		if len(recorded) == 0 {
			fmt.Fprintln(os.Stdout, "No recorded batches.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FILENAME\tSTART\tCHATS\tIMAGES\tCREATED")
		for _, b := range recorded {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n",
				b.Filename, b.StartIndex, b.ChatCount, b.ImageCount, b.CreatedAt)
		}
		return w.Flush()
	},
}

var batchRedownloadCmd = &cobra.Command{
	Use:   "redownload <filename>",
	Short: "Re-scrape the conversation range of a recorded batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		_, batches := exportStores(cfg)
		b, err := batches.Get(args[0])
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		// One batch of exactly the recorded size reproduces the archive.
		exp, cleanup, err := dialExporter(ctx, cancel, cfg, b.ChatCount)
		if err != nil {
			return err
		}
		defer cleanup()

		summary, err := exp.Export(ctx, b.StartIndex, b.ChatCount, false)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Redownloaded %d chats starting at index %d.\n",
			summary.Chats, b.StartIndex)
		for _, name := range summary.Archives {
			fmt.Fprintf(os.Stdout, "  %s\n", name)
		}
		return nil
	},
}
