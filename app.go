package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"GamePartner/pkg/assistant"
	"GamePartner/pkg/coordinator"
	"GamePartner/pkg/logging"
	"GamePartner/pkg/mailbox"
	"GamePartner/pkg/overlay"
	"GamePartner/pkg/server"
	"GamePartner/pkg/settings"
	"GamePartner/pkg/statemonitor"
	"GamePartner/pkg/types"
	"GamePartner/pkg/vision"
)

const joinTimeout = 2 * time.Second

func run(ctx context.Context, opts *runOptions) error {
	cfg, err := loadSettings(opts.configPath)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	logCloser, err := logging.SetupLogging(cfg.Logging.File, cfg.Logging.Level, opts.headless)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	slog.Info("Starting AI Game Partner", "version", version, "provider", cfg.API.Provider, "model", cfg.API.Model)

	capture, err := vision.New(vision.Config{
		Interval:       cfg.CaptureInterval(),
		MaxScreenshots: cfg.ScreenCapture.MaxScreenshots,
		Parent:         cfg.ScreenCapture.Directory,
	}, vision.DisplayGrabber{})
	if err != nil {
		return err
	}
	defer func() {
		if err := capture.Cleanup(); err != nil {
			slog.Warn("Cleanup failed", "error", err)
		}
	}()

	var (
		recorder coordinator.Recorder
		history  server.JournalSource
	)
	journal, err := logging.OpenJournal(filepath.Join(capture.Dir(), logging.JournalFileName))
	if err != nil {
		slog.Warn("Session journal disabled", "error", err)
	} else {
		defer journal.Close()
		recorder = journal
		history = journal
	}

	images, err := assistant.NewImageEncoder(assistant.DefaultImageCacheSize)
	if err != nil {
		return err
	}
	completer := newCompleter(ctx, cfg, images)

	inbox := mailbox.New[string]()
	uiQueue := mailbox.New[types.UIInstruction]()

	position, err := overlay.ParsePosition(cfg.Overlay.Position)
	if err != nil {
		return &settings.ConfigError{Field: "overlay.position", Reason: "invalid", Err: err}
	}
	uiOpts := overlay.Options{
		Position:        position,
		VisibleMessages: cfg.Overlay.VisibleMessages,
		Width:           cfg.Overlay.Width,
		PumpInterval:    cfg.PumpInterval(),
	}
	var ui overlay.Surface
	if opts.headless {
		ui = overlay.NewHeadless(uiQueue, uiOpts, os.Stdout, os.Stdin)
	} else {
		ui = overlay.New(uiQueue, uiOpts)
	}
	ui.SetMessageCallback(inbox.Put)

	coord := coordinator.New(coordinator.Config{
		Cooldown:          cfg.Cooldown(),
		Tick:              coordinator.DefaultTick,
		InitialDelay:      cfg.InitialDelay(),
		MemoryWindowSize:  cfg.AI.MemoryWindowSize,
		MaxResponseLength: cfg.AI.MaxResponseLength,
	}, coordinator.Deps{
		Screenshots: capture,
		Completer:   completer,
		Inbox:       inbox,
		UI:          uiQueue,
		Context:     statemonitor.New(cfg.AI.GameName, cfg.AI.DetectGame),
		Recorder:    recorder,
	})

	capture.Start()
	coord.Start(ctx)
	defer func() {
		if !coord.Stop(joinTimeout) {
			slog.Warn("Analysis loop abandoned after join timeout")
		}
		if !capture.Stop(joinTimeout) {
			slog.Warn("Capture loop abandoned after join timeout")
		}
	}()

	// Quitting the overlay ends the session.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return ui.Run(gctx)
	})
	if cfg.Server.Enabled {
		handler := server.NewHandler(server.Deps{
			Coordinator: coord,
			Screenshots: capture,
			Journal:     history,
			Inbox:       inbox,
			UI:          uiQueue,
			Settings:    cfg.Redacted(),
		})
		g.Go(func() error {
			return server.Serve(gctx, cfg.Server.Listen, handler)
		})
	}

	err = g.Wait()
	slog.Info("Shutting down")
	return err
}

func newCompleter(ctx context.Context, cfg *settings.Settings, images *assistant.ImageEncoder) assistant.Completer {
	switch cfg.API.Provider {
	case settings.ProviderOllama:
		client := assistant.NewOllamaClient(assistant.OllamaConfig{
			Endpoint:    cfg.API.Endpoint,
			Model:       cfg.API.Model,
			Temperature: cfg.AI.Temperature,
			MaxTokens:   cfg.AI.MaxTokens,
			Timeout:     cfg.RequestTimeout(),
		}, images)
		ok, err := client.HasModel(ctx)
		switch {
		case err != nil:
			slog.Warn("Could not list Ollama models", "endpoint", cfg.API.Endpoint, "error", err)
		case !ok:
			slog.Warn("Model is not available in Ollama", "model", cfg.API.Model, "hint", "ollama pull "+cfg.API.Model)
		}
		return client
	default:
		return assistant.NewAnthropicClient(assistant.AnthropicConfig{
			APIKey:      cfg.API.ClaudeAPIKey,
			Model:       cfg.API.Model,
			Temperature: cfg.AI.Temperature,
			MaxTokens:   cfg.AI.MaxTokens,
			Timeout:     cfg.RequestTimeout(),
		}, images)
	}
}
