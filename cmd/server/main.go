// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/moodbox/internal/api/connect"
	"github.com/osa030/moodbox/internal/api/upload"
	"github.com/osa030/moodbox/internal/app/command"
	"github.com/osa030/moodbox/internal/app/emotion"
	"github.com/osa030/moodbox/internal/app/filter"
	"github.com/osa030/moodbox/internal/app/media"
	"github.com/osa030/moodbox/internal/app/session"
	"github.com/osa030/moodbox/internal/infra/config"
	"github.com/osa030/moodbox/internal/infra/logger"
	"github.com/osa030/moodbox/internal/infra/speaker"
	"github.com/osa030/moodbox/internal/infra/spotify"
)

var (
	app        = kingpin.New("moodbox-server", "moodbox music player server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
	backend    = app.Flag("backend", "Override media backend (simulator, speaker)").Enum("simulator", "speaker")

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	parsed := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Handle list-filters command
	if parsed == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	// Initialize logger
	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	// Override with command-line flags if specified
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	logCloser, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logCloser.Close()

	// Load config
	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}
	if *backend != "" {
		cfg.Media.Backend = *backend
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		logCloser.Close()
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	// Validate filter config
	if err := validateFilterConfig(cfg); err != nil {
		return fmt.Errorf("invalid filter config: %w", err)
	}

	ctx := context.Background()

	// Create media resource
	resource, err := newResource(cfg)
	if err != nil {
		return fmt.Errorf("failed to create media resource: %w", err)
	}
	defer resource.Close()

	// Create emotion providers
	classifier, err := newClassifier(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create emotion providers: %w", err)
	}

	// Create session manager
	sessionMgr, err := session.NewManager(cfg, resource, classifier, newCapability(cfg))
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}

	// Create HTTP mux
	mux := http.NewServeMux()

	// Register services
	viewerPath, viewerHandler := apiconnect.NewViewerService(sessionMgr).Handler()
	playerPath, playerHandler := apiconnect.NewPlayerService(sessionMgr, cfg).Handler(
		connect.WithInterceptors(apiconnect.NewControlAuthInterceptor(cfg)),
	)
	mux.Handle(viewerPath, viewerHandler)
	mux.Handle(playerPath, playerHandler)
	mux.Handle(upload.Path, upload.NewHandler(sessionMgr, cfg))

	// Determine server address
	serverAddr := cfg.Server.Addr
	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:    serverAddr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	// Channel to capture server startup errors
	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	// Start session
	if err := sessionMgr.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	// Start server
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", serverAddr)
		// Signal that we're about to start listening
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	// Wait for server to start listening
	<-serverStartedCh
	// Give the server a moment to fully initialize
	time.Sleep(100 * time.Millisecond)

	// Execute startup hook if configured (after server is running)
	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	// Wait for shutdown signal, session end, or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case <-sessionMgr.Done():
		zlog.Info().Msg("Session ended, shutting down...")
	case err := <-serverErrCh:
		sessionMgr.Close()
		return fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close session manager first to terminate active streams
	sessionMgr.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	// Execute shutdown hook if configured
	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}

// newResource creates the configured media backend.
func newResource(cfg *config.Config) (media.Resource, error) {
	switch cfg.Media.Backend {
	case "speaker":
		zlog.Info().Msgf("Using speaker backend: sample_rate=%d", cfg.Media.SampleRate)
		return speaker.New(speaker.Config{
			SampleRate:      cfg.Media.SampleRate,
			BufferSize:      time.Duration(cfg.Media.BufferMs) * time.Millisecond,
			ResampleQuality: cfg.Media.ResampleQuality,
			MaxSourceBytes:  int64(cfg.Media.MaxSourceMB) << 20,
			TickInterval:    cfg.Media.Tick(),
		}), nil
	case "simulator", "":
		zlog.Info().Msg("Using simulator backend")
		simCfg := media.DefaultSimulatorConfig()
		simCfg.TickInterval = cfg.Media.Tick()
		simCfg.BytesPerSecond = int64(cfg.Media.SimulatedByteRate)
		simCfg.DefaultDuration = time.Duration(cfg.Media.SimulatedDefaultSec) * time.Second
		return media.NewSimulator(simCfg), nil
	default:
		return nil, fmt.Errorf("unknown media backend: %s", cfg.Media.Backend)
	}
}

// newClassifier builds the emotion provider chain. The Spotify client is
// created only when a spotify provider is configured.
func newClassifier(ctx context.Context, cfg *config.Config) (session.Classifier, error) {
	var spotifyClient emotion.SpotifyClient
	if cfg.HasProvider("spotify") {
		client, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Spotify client: %w", err)
		}
		spotifyClient = client
	}

	chain, err := emotion.NewProviderChainFromConfig(cfg, spotifyClient)
	if err != nil {
		return nil, err
	}
	zlog.Info().Msgf("Emotion providers: %s", chain.Name())
	return chain, nil
}

// newCapability returns the configured input capability.
// Voice input is line-based and only enabled when stdin is a terminal.
func newCapability(cfg *config.Config) command.Capability {
	var stdin io.Reader = os.Stdin
	switch cfg.Input.Mode {
	case "voice":
		if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
			zlog.Warn().Msg("Voice input requires a terminal on stdin, disabled")
			return command.Noop{}
		}
		return command.NewLineVoice(stdin, command.NewRecognizer(nil))
	case "gesture":
		return command.NewGestureInput(stdin)
	default:
		return command.Noop{}
	}
}

// printFilters prints available filters.
func printFilters() {
	registry := filter.GetRegistered()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("Available Filters:")
	for _, name := range names {
		f := registry[name]()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// validateFilterConfig validates filter configurations.
func validateFilterConfig(cfg *config.Config) error {
	registry := filter.GetRegistered()

	for filterName, filterCfg := range cfg.Filters {
		if !filterCfg.Enabled {
			continue
		}

		factory, exists := registry[filterName]
		if !exists {
			return fmt.Errorf("filter %s: not registered", filterName)
		}

		f := factory()
		if err := f.ValidateConfig(filterCfg.Settings); err != nil {
			return fmt.Errorf("filter %s: %w", filterName, err)
		}
	}

	return nil
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
