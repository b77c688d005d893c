package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/joho/godotenv"

	"BTCTicker/internal/api"
	"BTCTicker/internal/calculator"
	"BTCTicker/internal/collector"
	"BTCTicker/internal/config"
	"BTCTicker/internal/connectivity"
	"BTCTicker/internal/display"
	"BTCTicker/internal/firmware"
	"BTCTicker/internal/lifecycle"
	"BTCTicker/internal/model"
	"BTCTicker/internal/recorder"
	"BTCTicker/internal/scheduler"
	"BTCTicker/internal/state"
	"BTCTicker/internal/worker"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] BTCTicker starting...")

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[WARN] load .env: %v", err)
	}

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	clk := clock.New()

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, cfg.Database.DiagnosticsMax)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using memory: %v", err)
			rec = recorder.NewMemoryRecorder(cfg.Database.DiagnosticsMax)
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewMemoryRecorder(cfg.Database.DiagnosticsMax)
	}
	defer rec.Close()

	// Init collector
	transport := collector.NewHTTPTransport(cfg.Feed.BaseURL, cfg.Feed.APIKey, cfg.Feed.APIKeyHeader, cfg.Proxy, cfg.Feed.Timeout)
	col := collector.NewCollector(transport, collector.NewCoinGecko(cfg.Feed.Coin, cfg.Feed.VsCurrency))
	log.Printf("[INFO] data source: %s %s/%s", transport.Name(), cfg.Feed.Coin, cfg.Feed.VsCurrency)

	store := state.NewStore(cfg.Scheduler.LockWait)

	// Init connectivity
	var driver connectivity.Driver
	switch cfg.Network.Driver {
	case "host":
		driver = connectivity.HostDriver{}
	default:
		driver = connectivity.NewSimDriver(false, connectivity.AccessPoint{SSID: cfg.Network.SSID, BSSID: "sim", Signal: -50})
	}
	monitor := connectivity.NewMonitor(connectivity.Config{
		SSID:         cfg.Network.SSID,
		Password:     cfg.Network.Password,
		BaseBackoff:  cfg.Network.BaseBackoff,
		JoinAttempts: cfg.Network.JoinAttempts,
		JoinUnit:     cfg.Network.JoinUnit,
	}, driver, clk, rec)

	// Init workers
	opts := func(period time.Duration) worker.Options {
		return worker.Options{Period: period, RequestTimeout: cfg.Feed.Timeout, Clock: clk, Gate: monitor, Recorder: rec}
	}
	pool := worker.NewPool(
		worker.New(&worker.PriceJob{Collector: col, Store: store, Clock: clk}, opts(cfg.Workers.PricePeriod)),
		worker.New(&worker.DeltaJob{
			SeriesID: model.SeriesHourly, Timeframe: model.OneHour, Days: 1, Index: -2, Field: calculator.FieldOpen,
			Collector: col, Store: store, Clock: clk,
		}, opts(cfg.Workers.HourlyPeriod)),
		worker.New(&worker.DeltaJob{
			SeriesID: model.SeriesDaily, Timeframe: model.OneDay, Days: 1, Index: 0, Field: calculator.FieldOpen,
			Collector: col, Store: store, Clock: clk,
		}, opts(cfg.Workers.DailyPeriod)),
	)
	monitor.OnChange(func(ready bool) {
		if ready {
			pool.Wake()
		}
	})

	coord := lifecycle.NewCoordinator(pool, clk, rec, cfg.Scheduler.ExclusiveWait)
	renderer := display.NewLogRenderer(cfg.Display.Symbol, cfg.Display.FreshTTL)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init scheduler
	sched := scheduler.NewScheduler(monitor, coord, store, renderer, pool, rec, clk, scheduler.Options{
		Tick:      cfg.Scheduler.Tick,
		LinkCheck: cfg.Scheduler.LinkCheck,
		FreshTTL:  cfg.Display.FreshTTL,
	})
	if err := sched.RegisterHeartbeat(cfg.Scheduler.HeartbeatCron); err != nil {
		log.Fatalf("[FATAL] register heartbeat: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Start HTTP control surface
	handler := api.NewHandler(api.Deps{
		Store:    store,
		Link:     monitor,
		Workers:  pool,
		Windows:  coord,
		Updater:  firmware.NewFileUpdater(cfg.Firmware.StagingDir),
		Recorder: rec,
		Clock:    clk,
		FreshTTL: cfg.Display.FreshTTL,
	})
	srv := handler.NewServer(cfg.HTTP.Listen)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[ERROR] http server: %v", err)
		}
	}()
	log.Printf("[INFO] control surface listening on %s", cfg.HTTP.Listen)

	poolErr := make(chan error, 1)
	go func() { poolErr <- pool.Run(ctx) }()
	go sched.Run(ctx)

	log.Println("[INFO] BTCTicker is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal or a fatal worker error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		log.Println("[INFO] shutdown signal received, stopping...")
	case err := <-poolErr:
		if err != nil {
			rec.Close()
			log.Fatalf("[FATAL] refresh workers: %v", err)
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[WARN] http shutdown: %v", err)
	}
	cancel()
	monitor.Wait()
	log.Println("[INFO] BTCTicker stopped")
}
