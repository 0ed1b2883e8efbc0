package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/user/gemscrape/internal/agent"
	"github.com/user/gemscrape/internal/archive"
	"github.com/user/gemscrape/internal/dom"
	"github.com/user/gemscrape/internal/scraper"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&servePage, "page", "", "path to a captured page snapshot (HTML)")
	serveCmd.Flags().StringVar(&serveLocation, "location", "https://business.gemini.google/u/0/",
		"location the snapshot was captured from")
	serveCmd.MarkFlagRequired("page")
}

var (
	servePage     string
	serveLocation string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agent over a captured page snapshot",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "gemscrape.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func loadPage(path, location string) (*dom.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open page snapshot: %w", err)
	}
	defer f.Close()

	doc, err := dom.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse page snapshot: %w", err)
	}
	doc.SetLocation(location)
	return doc, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	page, err := loadPage(servePage, serveLocation)
	if err != nil {
		return err
	}

	session := scraper.NewSession(page, scraper.NewHTTPLoader(), scraper.NopNotifier{})
	a := agent.New(session, archive.NewPackager(), cfg.ChunkSize())

	httpServer := &http.Server{
		Addr:    cfg.Agent.Addr,
		Handler: agent.NewServer(a),
	}
	go func() {
		slog.Info("agent listening", "addr", cfg.Agent.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("agent server error", "error", err)
		}
	}()
	defer httpServer.Close()

	// Unattended exports run in-process against the same session.
	if cfg.Schedule != "" {
		sched, err := startScheduledExports(cfg, a)
		if err != nil {
			return err
		}
		defer sched.Stop()
	}

	slog.Info("gemscrape started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"addr", cfg.Agent.Addr,
		"page", servePage,
		"schedule", cfg.Schedule,
		"pid_file", pidPath,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// Clean up PID file before re-exec
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
