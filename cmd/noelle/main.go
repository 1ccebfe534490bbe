package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"noelle/internal/infra/config"
	"noelle/internal/infra/logger"
	"noelle/internal/infra/tracer"
	"noelle/internal/usecase/eventbus"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	if len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-") {
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		return
	}

	switch os.Args[1] {
	case "doctor":
		if err := runDoctor(); err != nil {
			fmt.Fprintf(os.Stderr, "doctor: %v\n", err)
			os.Exit(1)
		}
	case "encrypt":
		if err := runEncrypt(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "encrypt: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'noelle --help' for usage information.\n", os.Args[1])
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`noelle - desktop chat core

USAGE:
    noelle [COMMAND] [FLAGS]

COMMANDS:
    doctor          Run health checks on your setup
    encrypt VALUE   Print VALUE encrypted with NOELLE_CONFIG_KEY for config.yaml

    (no command) - Run the core with existing config

FLAGS:
    -h, --help         Show this help message
    --config PATH      Specify config file path (default: ./config.yaml)

CONFIGURATION:
    Config file: ./config.yaml
    Environment: NOELLE_* variables override config
    Preferences: <data_dir>/config.json (edited live by the settings window)`)
}

func configPath() string {
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	if p := os.Getenv("NOELLE_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

func runEncrypt(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: noelle encrypt VALUE")
	}
	passphrase := os.Getenv("NOELLE_CONFIG_KEY")
	if passphrase == "" {
		return errors.New("NOELLE_CONFIG_KEY is not set")
	}
	enc, err := config.EncryptValue(args[0], passphrase)
	if err != nil {
		return err
	}
	fmt.Println("enc:" + enc)
	return nil
}

func run() error {
	// 1. Config
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.Logger.Dir == "" {
		cfg.Logger.Dir = cfg.App.LogDir()
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	defer func() {
		if r := recover(); r != nil {
			log.Error("uncaught panic", "panic", r, "stack", string(debug.Stack()))
			panic(r)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(context.Background())

	// 3. Event bus
	bus := eventbus.New(log)
	defer bus.Close()

	// 4. Settings, persistence and dialogue sessions
	core, coreCleanup, err := initCore(ctx, cfg, bus, log)
	if err != nil {
		return fmt.Errorf("core: %w", err)
	}
	defer coreCleanup()

	// 5. Desktop: theme, windows, tray, shortcuts, menus, scenes
	desk, deskCleanup, err := initDesktop(cfg, core, bus, log, cancel)
	if err != nil {
		return fmt.Errorf("desktop: %w", err)
	}
	defer deskCleanup()

	// 6. Gateway
	gw, gwFlush := initGateway(cfg, core, desk, bus, log)
	defer gwFlush()

	log.Info("noelle starting",
		"version", version,
		"data_dir", cfg.App.DataDir,
		"gateway", cfg.Gateway.Addr,
		"platform", desk.Backend.Platform(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gw.Start(gctx); err != nil {
			return fmt.Errorf("gateway: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := core.Settings.Watch(gctx); err != nil {
			// Live reload of external edits is off; everything else still works.
			log.Warn("settings watcher unavailable", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		if _, err := desk.Scenes.Main.Open(); err != nil {
			return fmt.Errorf("open main window: %w", err)
		}
		<-gctx.Done()
		return nil
	})

	err = g.Wait()
	log.Info("noelle shutting down")
	return err
}
