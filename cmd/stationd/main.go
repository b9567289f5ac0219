package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"game-station/config"
	"game-station/internal/api"
	"game-station/internal/db"
	"game-station/internal/gpio"
	"game-station/internal/hub"
	"game-station/internal/log"
	"game-station/internal/notification"
	"game-station/internal/rules"
	"game-station/internal/rules/tally"
	"game-station/internal/station"
	"game-station/internal/store"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
		if _, err := os.Stat(configPath); err != nil {
			configPath = ""
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %q: %v\n", configPath, err)
		os.Exit(1)
	}

	log.Configure(log.Config{Level: cfg.Log.Level})
	logger := log.WithComponent("main")
	logger.Info().Str("path", configPath).Str(log.FieldStationID, cfg.Station.ID).Msg("configuration loaded")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("station stopped with error")
	}
	logger.Info().Msg("station gracefully stopped")
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	appStore := store.NewGormStore(gormDB)

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}
	workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.Station.ID, appStore, &webpushOptions)

	var driver gpio.Driver = gpio.NewCdevDriver(cfg.GPIO.Chip, "stationd")
	if cfg.GPIO.Simulate {
		driver = gpio.NewSimDriver()
	}
	board, err := gpio.Open(driver)
	if err != nil {
		return fmt.Errorf("failed to open gpio: %w", err)
	}
	defer func() {
		if err := board.Close(); err != nil {
			logger.Warn().Err(err).Msg("gpio close failed")
		}
	}()

	rules.Register(tally.Name, tally.Factory(tally.Config{
		AuthenticationTimeoutSec: cfg.Rules.Tally.AuthenticationTimeoutSec,
		HeartbeatIntervalMs:      cfg.Rules.Tally.HeartbeatIntervalMs,
		TargetScore:              cfg.Rules.Tally.TargetScore,
		DemoTargetScore:          cfg.Rules.Tally.DemoTargetScore,
		PulseDuration:            config.Millis(cfg.Rules.Tally.PulseMs),
	}, board))
	factory, err := rules.Lookup(cfg.Rules.Name)
	if err != nil {
		return err
	}

	hubClient, err := hub.NewClient(hub.Options{
		BaseURL:    cfg.Hub.URL,
		StationID:  cfg.Station.ID,
		StationKey: cfg.Station.Key,
		HTTPProxy:  cfg.Hub.HTTPProxy,
		Timeout:    config.Seconds(cfg.Hub.TimeoutSeconds),
		RatePerSec: cfg.Hub.RatePerSec,
		Burst:      cfg.Hub.Burst,
	})
	if err != nil {
		return err
	}

	responses := cache.New(5*time.Minute, 10*time.Minute)
	opts := []station.Option{station.WithResultRecorder(api.InvalidatingRecorder(appStore, responses))}
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		opts = append(opts, station.WithAlerter(workerPool))
	} else {
		logger.Warn().Msg("VAPID keys are not configured, operator alerts are disabled")
	}

	ctl, err := station.New(station.Config{
		StationID:       cfg.Station.ID,
		StationKey:      cfg.Station.Key,
		Ruleset:         cfg.Rules.Name,
		ResetInterval:   config.Seconds(cfg.Station.ResetIntervalSeconds),
		PreGameTimeout:  config.Seconds(cfg.Station.PreGameTimeoutSeconds),
		PostGameTimeout: config.Seconds(cfg.Station.PostGameTimeoutSeconds),
		SettleDelay:     config.Millis(cfg.Station.SettleDelayMs),
		HubCallTimeout:  config.Seconds(cfg.Station.HubCallTimeoutSeconds),
		ActivationRetry: station.RetryPolicy{
			BaseDelay:  config.Seconds(cfg.Station.ActivationRetry.BaseDelaySeconds),
			MaxDelay:   config.Seconds(cfg.Station.ActivationRetry.MaxDelaySeconds),
			MaxRetries: cfg.Station.ActivationRetry.Retries(),
		},
	}, hubClient, factory, opts...)
	if err != nil {
		return fmt.Errorf("failed to create station controller: %w", err)
	}
	defer ctl.Cleanup()

	router := api.NewRouter(api.NewHandler(ctl, appStore, &webpushOptions), api.RouterConfig{
		RateLimitPerSec: cfg.Server.RateLimitPerSec,
		RateLimitBurst:  cfg.Server.RateLimitBurst,
		CacheTTL:        config.Seconds(cfg.Server.CacheTTLSeconds),
		ResponseCache:   responses,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if cfg.Station.Console {
		go readConsole(ctl, stop, logger)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		workerPool.Start(gctx)
		workerPool.Wait()
		return nil
	})
	g.Go(func() error { return ctl.Run(gctx) })
	g.Go(func() error { return hub.NewHeartbeater(ctl).Run(gctx) })
	g.Go(func() error {
		logger.Info().Int("port", cfg.Server.Port).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server ListenAndServe: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown signal received, stopping services")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// readConsole forwards maintenance key presses typed on stdin. 'q' quits when the ruleset
// does not claim it.
func readConsole(ctl *station.Controller, quit context.CancelFunc, logger zerolog.Logger) {
	reader := bufio.NewReader(os.Stdin)
	for {
		key, _, err := reader.ReadRune()
		if err != nil {
			logger.Debug().Err(err).Msg("console closed")
			return
		}
		if key == '\n' || key == '\r' {
			continue
		}
		if ctl.ProcessConsoleInput(key) {
			continue
		}
		if key == 'q' {
			quit()
			return
		}
	}
}
