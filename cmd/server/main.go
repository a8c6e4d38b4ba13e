// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/wavehop/wavehop/internal/api/rest"
	"github.com/wavehop/wavehop/internal/app/player"
	"github.com/wavehop/wavehop/internal/app/tuning"
	"github.com/wavehop/wavehop/internal/infra/audio"
	"github.com/wavehop/wavehop/internal/infra/config"
	"github.com/wavehop/wavehop/internal/infra/favorites"
	"github.com/wavehop/wavehop/internal/infra/logger"
	"github.com/wavehop/wavehop/internal/infra/radiobrowser"
)

var (
	app        = kingpin.New("wavehop-server", "wavehop radio shuffle server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// probe command
	probeCmd   = app.Command("probe", "Fetch a station pool from the directory, print it and exit")
	probeCount = probeCmd.Flag("count", "Number of stations to fetch").Default("10").Int()
)

func init() {
	// start command (default)
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if command == probeCmd.FullCommand() {
		if err := probe(cfg, *probeCount); err != nil {
			zlog.Error().Msgf("Probe error: %v", err)
			os.Exit(1)
		}
		return
	}

	// Run server (defer ensures teardown is called)
	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	store, err := favorites.Open(cfg.Favorites.Path)
	if err != nil {
		return fmt.Errorf("failed to open favorites store: %w", err)
	}
	defer store.Close()

	directory := radiobrowser.New(radiobrowser.Config{
		Mirrors:    cfg.Directory.Mirrors,
		Countries:  cfg.Directory.Countries,
		Timeout:    time.Duration(cfg.Directory.TimeoutSec) * time.Second,
		MaxRetries: cfg.Directory.MaxRetries,
	})

	engine, err := audio.NewEngine(cfg.Audio.Settings)
	if err != nil {
		return fmt.Errorf("failed to initialize audio engine: %w", err)
	}

	tuner := tuning.New(engine.SampleRate())

	controller := player.NewController(player.Config{
		LoadTimeout:      time.Duration(cfg.Player.LoadTimeoutSec) * time.Second,
		MaxRetries:       cfg.Player.MaxRetries,
		DebounceWindow:   time.Duration(cfg.Player.DebounceMs) * time.Millisecond,
		RetryBackoffStep: time.Duration(cfg.Player.RetryBackoffSec) * time.Second,
		PoolSize:         cfg.Directory.PoolSize,
		InitialVolume:    cfg.Player.Volume,
	}, directory, store, tuner, engine)
	defer controller.Close()

	hub := rest.NewHub()
	go hub.Run(controller.States())

	apiServer := rest.NewServer(controller, hub)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: h2c.NewHandler(apiServer.Handler(), &http2.Server{}),
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")
	return nil
}

// probe fetches a diverse station pool and prints it, for checking
// directory connectivity without touching the audio device.
func probe(cfg *config.Config, count int) error {
	directory := radiobrowser.New(radiobrowser.Config{
		Mirrors:    cfg.Directory.Mirrors,
		Countries:  cfg.Directory.Countries,
		Timeout:    time.Duration(cfg.Directory.TimeoutSec) * time.Second,
		MaxRetries: cfg.Directory.MaxRetries,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Directory.TimeoutSec)*time.Second*3)
	defer cancel()

	stations, err := directory.GetDiverseStations(ctx, count)
	if err != nil {
		return err
	}

	fmt.Printf("Fetched %d stations:\n", len(stations))
	for _, st := range stations {
		fmt.Printf("  %-40s %-20s %s\n", st.Name, st.Country, st.StreamURL())
	}
	return nil
}
