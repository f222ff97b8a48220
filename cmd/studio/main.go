package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/GeekyJ160/ADA/internal/assets"
	"github.com/GeekyJ160/ADA/internal/config"
	"github.com/GeekyJ160/ADA/internal/device"
	"github.com/GeekyJ160/ADA/internal/live"
	"github.com/GeekyJ160/ADA/internal/metrics"
	"github.com/GeekyJ160/ADA/internal/oracle"
	"github.com/GeekyJ160/ADA/internal/sched"
	"github.com/GeekyJ160/ADA/internal/server"
	"github.com/GeekyJ160/ADA/internal/session"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "ada-studio"
	serviceVersion    = "1.0.0"

	// Asset files live next to the process working directory; imports merge
	// into the built-in packs, selection persists across runs.
	assetsPath    = "assets.json"
	selectionPath = "voice_selection.json"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	scriptPath := flag.String("script", "", "Path to the script file (script mode)")
	mode := flag.String("mode", "script", "Session mode: script or live")
	lang := flag.String("lang", "original", "Target language for script mode, or 'auto' to detect in live mode")
	voice := flag.String("voice", "", "Voice pack id or name to select for this run")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Studio starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
		slog.String("mode", *mode),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("input_sample_rate", cfg.Audio.InputSampleRate),
		slog.Int("output_sample_rate", cfg.Audio.OutputSampleRate),
		slog.Int("relay_frame_size", cfg.Audio.RelayFrameSize),
		slog.String("oracle_endpoint", cfg.Oracle.Endpoint),
		slog.Bool("recording_enabled", cfg.Recording.Enabled),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Initialize audio devices
	if err := device.Init(); err != nil {
		logger.Error("Failed to initialize audio devices", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer device.Terminate()

	playback, err := device.NewPlayback(cfg.Audio.OutputSampleRate, cfg.Audio.RelayFrameSize, logger)
	if err != nil {
		logger.Error("Failed to open playback device", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer playback.Close()

	// Initialize oracle client
	client, err := oracle.NewClient(oracle.Config{
		Endpoint:      cfg.Oracle.Endpoint,
		APIKey:        cfg.Oracle.APIKey,
		Timeout:       cfg.Oracle.GetTimeoutDuration(),
		MaxRetries:    cfg.Oracle.MaxRetries,
		MaxConcurrent: cfg.Oracle.MaxConcurrent,
	})
	if err != nil {
		logger.Error("Failed to create oracle client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	client.SetRecorder(appMetrics)

	// Initialize asset store
	store, err := loadAssets(logger)
	if err != nil {
		logger.Error("Failed to load assets", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *voice != "" {
		if err := selectVoice(store, *voice); err != nil {
			logger.Error("Failed to select voice", slog.String("voice", *voice), slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
	logger.Info("Assets loaded",
		slog.Int("voice_packs", len(store.VoicePacks())),
		slog.Int("characters", len(store.Characters())),
		slog.Int("sound_effects", len(store.SoundEffects())),
		slog.String("selected_voice", store.SelectedPack().Name),
	)

	effects, err := device.NewEffectPlayer(store, playback, logger)
	if err != nil {
		logger.Error("Failed to create effect player", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// The capture device only opens for live sessions.
	var capture *device.Capture
	if *mode == string(session.ModeLive) {
		capture, err = device.NewCapture(cfg.Audio.InputSampleRate, cfg.Audio.RelayFrameSize)
		if err != nil {
			logger.Error("Failed to open capture device", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer capture.Close()
	}

	recordingPath := ""
	if cfg.Recording.Enabled {
		recordingPath = cfg.Recording.Path
	}

	opts := session.Options{
		Synth:         client,
		Translator:    client,
		Dialer:        client,
		Resolver:      store,
		SelectedVoice: func() string { return store.SelectedPack().BaseVoiceID },
		Output:        playback,
		SchedulerConfig: sched.Config{
			ModerateDepth:   cfg.Scheduler.ModerateDepth,
			AggressiveDepth: cfg.Scheduler.AggressiveDepth,
			ModerateRate:    cfg.Scheduler.ModerateRate,
			AggressiveRate:  cfg.Scheduler.AggressiveRate,
		},
		Effects:           effects,
		Video:             videoLog{logger: logger},
		SystemInstruction: cfg.Oracle.SystemInstruction,
		RecordingPath:     recordingPath,
		Metrics:           appMetrics,
		Logger:            logger,
	}
	if capture != nil {
		opts.Capture = capture
	}

	controller, err := session.NewController(opts)
	if err != nil {
		logger.Error("Failed to create session controller", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpConfig := server.HTTPServerConfig{
			Port:    cfg.HTTP.Port,
			Address: cfg.HTTP.Address,
			Enabled: cfg.HTTP.Enabled,
		}
		httpServer = server.NewHTTPServer(httpConfig, logger, cfg, controller, store, client, appMetrics)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("HTTP API server started",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	// Start the requested session
	switch *mode {
	case string(session.ModeScript):
		lines, err := readScript(*scriptPath)
		if err != nil {
			logger.Error("Failed to read script", slog.String("path", *scriptPath), slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := controller.StartScript(lines, *lang); err != nil {
			logger.Error("Failed to start script session", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case string(session.ModeLive):
		if *lang == "auto" {
			detectCtx, detectCancel := context.WithCancel(context.Background())
			detected, err := live.DetectLanguage(detectCtx, capture, client, cfg.Oracle.GetDetectionWindowDuration())
			detectCancel()
			if err != nil {
				logger.Warn("Language detection failed", slog.String("error", err.Error()))
			} else {
				logger.Info("Language detected",
					slog.String("language", detected.Name),
					slog.String("iso_code", detected.ISOCode),
				)
			}
		}
		if err := controller.StartLive(); err != nil {
			logger.Error("Failed to start live session", slog.String("error", err.Error()))
			os.Exit(1)
		}
	default:
		logger.Error("Unknown mode", slog.String("mode", *mode))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Session started, waiting for completion or signal")

	// Wait for session end or shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-controller.Done():
		logger.Info("Session completed")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop the session first so teardown runs before devices close
	if err := controller.Stop(); err != nil {
		logger.Error("Error stopping session", slog.String("error", err.Error()))
	}

	// Stop HTTP server (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Persist the voice selection for the next run
	if err := store.SaveSelection(selectionPath); err != nil {
		logger.Warn("Voice selection not persisted", slog.String("error", err.Error()))
	}

	// Close the oracle client, waiting for in-flight requests
	if err := client.Close(); err != nil {
		logger.Error("Error closing oracle client", slog.String("error", err.Error()))
	}

	// Get final statistics
	stats := client.GetStats()
	logger.Info("Final oracle statistics",
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("success_requests", stats.SuccessRequests),
		slog.Uint64("failed_requests", stats.FailedRequests),
		slog.Uint64("total_retries", stats.TotalRetries),
	)

	logger.Info("Studio stopped")
}

// videoLog stands in for a companion video player. The studio core drives
// it through the session lifecycle; a headless run just logs the cues.
type videoLog struct {
	logger *slog.Logger
}

func (v videoLog) Resume() { v.logger.Debug("Video cue", slog.String("action", "resume")) }
func (v videoLog) Mute()   { v.logger.Debug("Video cue", slog.String("action", "mute")) }
func (v videoLog) Unmute() { v.logger.Debug("Video cue", slog.String("action", "unmute")) }
func (v videoLog) Stop()   { v.logger.Debug("Video cue", slog.String("action", "stop")) }

// defaultVoicePacks seeds the store when no assets file is present. The ids
// mirror the oracle's native voice identifiers.
func defaultVoicePacks() []assets.VoicePack {
	return []assets.VoicePack{
		{ID: "narrator", Name: "Narrator", BaseVoiceID: "Charon", Description: "Even, documentary narration"},
		{ID: "bright", Name: "Bright", BaseVoiceID: "Puck", Description: "Upbeat, fast delivery"},
		{ID: "warm", Name: "Warm", BaseVoiceID: "Kore", Description: "Soft conversational tone"},
	}
}

// loadAssets builds the asset store from the built-in packs, merges the
// optional assets file and restores the persisted voice selection.
func loadAssets(logger *slog.Logger) (*assets.Store, error) {
	store, err := assets.NewStore(defaultVoicePacks(), logger)
	if err != nil {
		return nil, err
	}

	if data, err := os.ReadFile(assetsPath); err == nil {
		result, err := store.Import(data)
		if err != nil {
			return nil, fmt.Errorf("failed to import %s: %w", assetsPath, err)
		}
		logger.Info("Assets imported",
			slog.String("path", assetsPath),
			slog.Int("added", result.Total()),
		)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", assetsPath, err)
	}

	// The store logs its own notice when the saved voice is gone.
	if _, err := store.RestoreSelection(selectionPath); err != nil {
		return nil, err
	}
	return store, nil
}

// selectVoice applies the -voice flag, matching pack id first, then name.
func selectVoice(store *assets.Store, voice string) error {
	for _, pack := range store.VoicePacks() {
		if strings.EqualFold(pack.ID, voice) || strings.EqualFold(pack.Name, voice) {
			return store.SelectVoicePack(pack.ID)
		}
	}
	return fmt.Errorf("no voice pack matches %q", voice)
}

// readScript loads the script file as a list of lines.
func readScript(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("script mode requires -script")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n"), nil
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
