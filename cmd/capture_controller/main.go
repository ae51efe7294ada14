package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goflags "github.com/jessevdk/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/pagecapture/internal/api"
	"github.com/dgnsrekt/pagecapture/internal/capture"
	"github.com/dgnsrekt/pagecapture/internal/config"
	"github.com/dgnsrekt/pagecapture/internal/controller"
	"github.com/dgnsrekt/pagecapture/internal/engine"
	"github.com/dgnsrekt/pagecapture/internal/history"
	"github.com/dgnsrekt/pagecapture/internal/jobs"
	"github.com/dgnsrekt/pagecapture/internal/netutil"
	"github.com/dgnsrekt/pagecapture/internal/notify"
	"github.com/dgnsrekt/pagecapture/internal/settings"
	"github.com/dgnsrekt/pagecapture/internal/snapshot"
	"github.com/dgnsrekt/pagecapture/internal/storage"
)

// options are command-line overrides for the environment configuration.
type options struct {
	EnvFile   []string `long:"env-file" description:"dotenv file to load (repeatable)"`
	Bind      string   `long:"bind" description:"listen address, overrides CAPTURE_BIND_ADDR"`
	OutputDir string   `long:"output-dir" description:"screenshot directory, overrides CAPTURE_OUTPUT_DIR"`
	LogLevel  string   `long:"log-level" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"overrides CAPTURE_LOG_LEVEL"`
}

func parseOptions(args []string) (options, error) {
	var opts options
	parser := goflags.NewParser(&opts, goflags.Default)
	parser.Name = "capture_controller"
	parser.LongDescription = "HTTP service that captures web pages with chrome, edge, firefox or safari."
	_, err := parser.ParseArgs(args)
	return opts, err
}

func (o options) apply(cfg *config.Config) {
	if o.Bind != "" {
		cfg.BindAddr = o.Bind
	}
	if o.OutputDir != "" {
		cfg.OutputDir = o.OutputDir
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		var flagsErr *goflags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == goflags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, err := config.Load(opts.EnvFile...)
	if err != nil {
		slog.Error("failed to load capture config", "error", err)
		os.Exit(1)
	}
	opts.apply(cfg)

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("capture_controller config loaded",
		"bind_addr", cfg.BindAddr,
		"port_auto_fallback", cfg.PortAutoFallback,
		"port_candidates", cfg.PortCandidates,
		"output_dir", cfg.OutputDir,
		"max_concurrent_jobs", cfg.MaxConcurrentJobs,
		"job_timeout", cfg.JobTimeout,
		"settings_file", cfg.SettingsFile,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
		"notify_url", cfg.NotifyURL,
		"journal_dir", cfg.JournalDir,
	)

	initial := settings.Defaults()
	if cfg.SettingsFile != "" {
		initial, err = settings.LoadFile(cfg.SettingsFile)
		if err != nil {
			slog.Error("failed to load settings file", "path", cfg.SettingsFile, "error", err)
			os.Exit(1)
		}
	}

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	artifacts, err := snapshot.NewStore(cfg.OutputDir)
	if err != nil {
		slog.Error("failed to create screenshot store", "dir", cfg.OutputDir, "error", err)
		os.Exit(1)
	}

	factory := engine.NewFactory(engine.NewPathLocator(cfg.DriverPaths, cfg.BrowserPaths))
	slog.Info("browser engines registered", "kinds", factory.Supported())

	st := settings.NewStore(initial)
	hist := history.NewStore(artifacts)
	tracker := jobs.NewTracker(factory, capture.NewExecutor(), artifacts, hist, st, jobs.Config{
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		JobTimeout:        cfg.JobTimeout,
	})
	var webhook *notify.Webhook
	if cfg.NotifyURL != "" {
		webhook = notify.NewWebhook(cfg.NotifyURL)
		tracker.Subscribe(webhook)
	}
	var journal *storage.JSONLWriter
	if cfg.JournalDir != "" {
		journal = storage.NewJSONLWriter(cfg.JournalDir, "jobs", "capture_jobs", 1024, 50)
		tracker.Subscribe(journal)
	}

	svc := controller.NewService(tracker, hist, st, artifacts, factory)
	h := api.NewServer(svc)

	srv := &http.Server{Addr: bindAddr, Handler: h, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		slog.Info("capture_controller listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs", "output_dir", artifacts.Dir())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("capture_controller server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("capture_controller shutdown failed", "error", err)
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.JobTimeout)
	defer drainCancel()
	if err := tracker.Wait(drainCtx); err != nil {
		slog.Warn("capture jobs still running at exit", "pending", tracker.PendingCount(), "error", err)
	}
	if webhook != nil {
		webhook.Wait()
	}
	if journal != nil {
		if err := journal.Close(); err != nil {
			slog.Debug("job journal close failed", "error", err)
		}
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: parseLevel(level)})
	slog.SetDefault(slog.New(h))
	return nil
}
