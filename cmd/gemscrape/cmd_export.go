package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/user/gemscrape/internal/agent"
	"github.com/user/gemscrape/internal/archive"
	"github.com/user/gemscrape/internal/bus"
	"github.com/user/gemscrape/internal/config"
	"github.com/user/gemscrape/internal/exporter"
	"github.com/user/gemscrape/internal/notify"
	"github.com/user/gemscrape/internal/scheduler"
	"github.com/user/gemscrape/internal/state"
)

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().IntVar(&exportStart, "start", 0, "index of the first conversation to export")
	exportCmd.Flags().IntVar(&exportCount, "count", 0, "number of conversations to export (0 = all)")
	exportCmd.Flags().IntVar(&exportBatchSize, "batch-size", 0, "conversations per batch (0 = config value)")
	exportCmd.Flags().BoolVar(&exportResume, "resume", false, "resume from the last recorded start index")
	exportCmd.Flags().BoolVar(&exportMerge, "merge", false, "merge recorded batches into combined files instead of scraping")
}

var (
	exportStart     int
	exportCount     int
	exportBatchSize int
	exportResume    bool
	exportMerge     bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Run a batched export against a running agent",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func exportStores(cfg *config.Config) (*state.RunStore, *state.BatchStore) {
	runs := state.NewRunStore(filepath.Join(cfg.DataDir, "run_state.json"))
	batches := state.NewBatchStore(filepath.Join(cfg.DataDir, "batches.json"))
	return runs, batches
}

func buildNotifier(cfg *config.Config) notify.Notifier {
	if cfg.Telegram.Token == "" {
		return notify.Nop{}
	}
	tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
	if err != nil {
		slog.Warn("telegram notifier disabled", "error", err)
		return notify.Nop{}
	}
	slog.Info("telegram notifier enabled")
	return tg
}

func exportOptions(cfg *config.Config, batchSize int) exporter.Options {
	if batchSize <= 0 {
		batchSize = cfg.Scrape.BatchSize
	}
	return exporter.Options{
		OutDir:              cfg.OutputDir,
		BatchSize:           batchSize,
		DelayBetweenChatsMS: cfg.Scrape.DelayBetweenChatsMS,
		DelayAfterClickMS:   cfg.Scrape.DelayAfterClickMS,
		PreviewWaitTimeMS:   cfg.Scrape.PreviewWaitTimeMS,
		Notifier:            buildNotifier(cfg),
	}
}

// dialExporter connects to the agent websocket and returns a ready exporter.
// The returned cleanup closes the connection.
func dialExporter(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, batchSize int) (*exporter.Exporter, func(), error) {
	conn, err := bus.Dial(ctx, "ws://"+cfg.Agent.Addr+"/ws")
	if err != nil {
		return nil, nil, fmt.Errorf("connect to agent at %s: %w", cfg.Agent.Addr, err)
	}

	ep := bus.NewEndpoint(conn)
	runs, batches := exportStores(cfg)
	exp := exporter.New(ep, runs, batches, exportOptions(cfg, batchSize))
	go func() {
		if err := ep.Run(ctx); err != nil {
			slog.Warn("agent connection ended", "error", err)
		}
		cancel()
	}()

	if _, err := exp.Ping(ctx); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("ping agent: %w", err)
	}
	return exp, func() { conn.Close() }, nil
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if exportMerge {
		return runMerge(cfg)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	exp, cleanup, err := dialExporter(ctx, cancel, cfg, exportBatchSize)
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := exp.Export(ctx, exportStart, exportCount, exportResume)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Exported %d chats in %d batches (sidebar total %d).\n",
		summary.Chats, summary.Batches, summary.TotalChats)
	for _, name := range summary.Archives {
		fmt.Fprintf(os.Stdout, "  %s\n", name)
	}
	if !summary.Complete {
		fmt.Fprintln(os.Stdout, "Run did not reach the end of the list; rerun with --resume to continue.")
	}
	return nil
}

// runMerge combines every recorded batch archive into one JSON document and
// one Markdown document next to the archives.
func runMerge(cfg *config.Config) error {
	_, batches := exportStores(cfg)
	recorded, err := batches.List()
	if err != nil {
		return fmt.Errorf("list batches: %w", err)
	}
	if len(recorded) == 0 {
		return fmt.Errorf("no recorded batches to merge")
	}

	var archives [][]byte
	for _, b := range recorded {
		data, err := os.ReadFile(filepath.Join(cfg.OutputDir, b.Filename))
		if err != nil {
			return fmt.Errorf("read batch archive: %w", err)
		}
		archives = append(archives, data)
	}

	combinedJSON, combinedMD, err := archive.Merge(archives)
	if err != nil {
		return fmt.Errorf("merge batches: %w", err)
	}

	jsonPath := filepath.Join(cfg.OutputDir, "combined.json")
	mdPath := filepath.Join(cfg.OutputDir, "combined.md")
	if err := os.WriteFile(jsonPath, combinedJSON, 0644); err != nil {
		return fmt.Errorf("write combined JSON: %w", err)
	}
	if err := os.WriteFile(mdPath, combinedMD, 0644); err != nil {
		return fmt.Errorf("write combined Markdown: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Merged %d batches into %s and %s.\n", len(recorded), jsonPath, mdPath)
	return nil
}

// startScheduledExports fires resumed in-process exports against the given
// agent on the configured cron schedule. The agent and exporter talk over an
// in-memory pipe, so no websocket round trip is involved.
func startScheduledExports(cfg *config.Config, a *agent.Agent) (*scheduler.Scheduler, error) {
	sched := scheduler.New(cfg.Schedule, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		agentConn, expConn := bus.Pipe()
		defer agentConn.Close()
		defer expConn.Close()

		agentEP := bus.NewEndpoint(agentConn)
		a.Attach(agentEP)
		go agentEP.Run(ctx)

		ep := bus.NewEndpoint(expConn)
		runs, batches := exportStores(cfg)
		exp := exporter.New(ep, runs, batches, exportOptions(cfg, 0))
		go ep.Run(ctx)

		summary, err := exp.Export(ctx, 0, 0, true)
		if err != nil {
			slog.Error("scheduled export failed", "error", err)
			return
		}
		slog.Info("scheduled export done",
			"batches", summary.Batches,
			"chats", summary.Chats,
			"complete", summary.Complete,
		)
	})
	if err := sched.Start(); err != nil {
		return nil, err
	}
	return sched, nil
}
