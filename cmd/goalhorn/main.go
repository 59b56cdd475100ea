// Command goalhorn watches a screen region for goal banners and plays a
// celebration when one appears.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/goalhorn/internal/app"
	"github.com/MrWong99/goalhorn/internal/config"
	"github.com/MrWong99/goalhorn/internal/observe"
	"github.com/MrWong99/goalhorn/internal/trigger"
	"github.com/MrWong99/goalhorn/pkg/capture"
	"github.com/MrWong99/goalhorn/pkg/recognize"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "goalhorn.yaml", "path to the YAML configuration file")
	autostart := flag.Bool("autostart", false, "start detection immediately")
	noConsole := flag.Bool("no-console", false, "do not read commands from stdin")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "goalhorn: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "goalhorn: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := &slog.LevelVar{}
	level.Set(app.ParseLevel(cfg.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("goalhorn starting",
		"config", *configPath,
		"version", version,
		"log_level", cfg.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		ServiceName:    "goalhorn",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Backend registry ──────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinBackends(reg)

	backends, err := buildBackends(cfg, reg)
	if err != nil {
		slog.Error("failed to build backends", "err", err)
		return 1
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	opts := []app.Option{
		app.WithLevelVar(level),
		app.WithConfigPath(*configPath),
		app.WithAutostart(*autostart),
	}
	if !*noConsole {
		opts = append(opts, app.WithConsole(os.Stdin, os.Stdout))
	}

	application, err := app.New(ctx, cfg, backends, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("ready, type help for commands or press Ctrl+C to quit")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		_ = application.Shutdown(context.Background())
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping…")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Backend wiring ────────────────────────────────────────────────────────────

// registerBuiltinBackends wires the frame sources and recognizers that ship
// with goalhorn into reg.
func registerBuiltinBackends(reg *config.Registry) {
	// ── Capture ───────────────────────────────────────────────────────────────

	reg.RegisterCapture("command", func(c config.CaptureConfig) (capture.Source, error) {
		return capture.NewCommand(c.Command, c.Args...)
	})

	reg.RegisterCapture("file", func(c config.CaptureConfig) (capture.Source, error) {
		return capture.NewFile(c.File)
	})

	// ── Recognition ───────────────────────────────────────────────────────────

	reg.RegisterRecognizer("tesseract", func(c config.RecognitionConfig) (recognize.Recognizer, error) {
		opts := []recognize.TesseractOption{
			recognize.WithCommand(c.Command),
			recognize.WithLanguage(c.Language),
		}
		if c.PageSegMode > 0 {
			opts = append(opts, recognize.WithPageSegMode(c.PageSegMode))
		}
		return recognize.NewTesseract(opts...), nil
	})

	reg.RegisterRecognizer("static", func(c config.RecognitionConfig) (recognize.Recognizer, error) {
		return recognize.Static(c.Text), nil
	})

	for _, name := range config.ValidBackendNames["capture"] {
		slog.Debug("registered backend", "kind", "capture", "name", name)
	}
	for _, name := range config.ValidBackendNames["recognition"] {
		slog.Debug("registered backend", "kind", "recognition", "name", name)
	}
}

// buildBackends instantiates the frame source and recognizer named in cfg.
func buildBackends(cfg *config.Config, reg *config.Registry) (*app.Backends, error) {
	src, err := reg.CreateCapture(cfg.Capture)
	if err != nil {
		return nil, fmt.Errorf("create capture source %q: %w", cfg.Capture.Source, err)
	}
	slog.Info("backend created", "kind", "capture", "name", cfg.Capture.Source)

	rec, err := reg.CreateRecognizer(cfg.Recognition)
	if err != nil {
		return nil, fmt.Errorf("create recognizer %q: %w", cfg.Recognition.Engine, err)
	}
	slog.Info("backend created", "kind", "recognition", "name", cfg.Recognition.Engine)

	return &app.Backends{Capture: src, Recognizer: rec}, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        goalhorn: startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Capture", cfg.Capture.Source)
	printRow("Region", cfg.Capture.Region.String())
	printRow("Recognizer", cfg.Recognition.Engine)
	phrase := cfg.Trigger.Phrase
	if phrase == "" {
		phrase = trigger.DefaultPhrase
	}
	printRow("Phrase", phrase)
	if t := cfg.Target; t != nil {
		name := t.DisplayName
		if name == "" {
			name = t.Key
		}
		printRow("Target", name)
	} else {
		printRow("Target", "(any team)")
	}
	printRow("Tracks", fmt.Sprintf("%d, %d on playlist", len(cfg.Audio.Library), len(cfg.Audio.Playlist)))
	printRow("Loop", fmt.Sprintf("%d fps", cfg.Loop.TargetFPS))
	if cfg.Diagnostics.ListenAddr != "" {
		printRow("Diagnostics", cfg.Diagnostics.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(kind, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}
