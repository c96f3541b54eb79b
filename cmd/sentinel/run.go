package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/pyrewatch-systems/sentinel-node/internal/acquisition"
	"github.com/pyrewatch-systems/sentinel-node/internal/classifier"
	"github.com/pyrewatch-systems/sentinel-node/internal/config"
	"github.com/pyrewatch-systems/sentinel-node/internal/detector"
	"github.com/pyrewatch-systems/sentinel-node/internal/engine"
	"github.com/pyrewatch-systems/sentinel-node/internal/fusion"
	"github.com/pyrewatch-systems/sentinel-node/internal/logging"
	"github.com/pyrewatch-systems/sentinel-node/internal/server"
	"github.com/pyrewatch-systems/sentinel-node/internal/state"
	"github.com/pyrewatch-systems/sentinel-node/internal/temporal"
	"github.com/pyrewatch-systems/sentinel-node/internal/transport"
)

var simulatedSensors bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the detection engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNode()
	},
}

func init() {
	runCmd.Flags().BoolVar(&simulatedSensors, "sim-sensors", false,
		"use the synthetic sensor driver instead of platform hardware")
}

func runNode() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(log)
	log = log.With("node", cfg.Node.ID)

	watcher := config.NewWatcher(cfgFile, cfg, func(err error) {
		log.Error("config reload rejected, keeping last valid parameters", "error", err)
	})

	store, err := buildStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	publisher, err := buildPublisher(cfg, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	driver := buildDriver(log)

	eng := engine.New(engine.Deps{
		Config:  cfg,
		Watcher: watcher,
		Sampler: acquisition.NewSampler(driver, log),
		Detectors: []detector.Detector{
			detector.NewChemical(detector.DefaultCompoundRules()),
			detector.NewElectrical(),
			detector.NewEnvironmental(),
		},
		Fuser:      fusion.New(log),
		Temporal:   temporal.New(log),
		Classifier: classifier.New(store, cfg.Node.Location, log, time.Now),
		Store:      store,
		Publisher:  publisher,
		Log:        log,
	})

	srv := server.New(cfg.Server, eng, store, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("engine: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		log.Error("fatal component error", "error", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}

	log.Info("sentinel stopped", "cycles", eng.CycleCount())
	return nil
}

func buildStore(cfg *config.Config, log *logging.Logger) (state.Store, error) {
	if !cfg.Redis.Enabled {
		return state.NewMemoryStore(), nil
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	opts.MaxRetries = cfg.Redis.MaxRetries
	opts.PoolSize = cfg.Redis.PoolSize

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		// A dead Redis loses persistence, not detection.
		log.Warn("redis unreachable, falling back to in-memory state", "error", err)
		_ = client.Close()
		return state.NewMemoryStore(), nil
	}

	log.Info("state store", "backend", "redis")
	return state.NewRedisStore(client), nil
}

func buildPublisher(cfg *config.Config, log *logging.Logger) (transport.Publisher, error) {
	if !cfg.NATS.Enabled {
		return transport.NewNoop(), nil
	}
	pub, err := transport.NewNATSPublisher(cfg.NATS, cfg.Node.ID, log)
	if err != nil {
		return nil, fmt.Errorf("nats: %w", err)
	}
	log.Info("transport", "backend", "nats", "url", cfg.NATS.URL)
	return pub, nil
}

// buildDriver selects the sensor driver. Hardware bus drivers are
// platform packages registered at link time; the synthetic driver stands
// in on builds without one and under --sim-sensors.
func buildDriver(log *logging.Logger) acquisition.Driver {
	if !simulatedSensors {
		log.Warn("no platform sensor driver linked, using synthetic driver")
	}
	return acquisition.NewSimDriver(acquisition.DefaultProfiles(), time.Now().UnixNano())
}
