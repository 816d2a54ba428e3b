package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-shelf/internal/database"
	"media-shelf/internal/filesystem"
	"media-shelf/internal/handlers"
	"media-shelf/internal/indexer"
	"media-shelf/internal/logging"
	"media-shelf/internal/media"
	"media-shelf/internal/memory"
	"media-shelf/internal/metrics"
	"media-shelf/internal/middleware"
	"media-shelf/internal/startup"
	"media-shelf/internal/workers"
)

const (
	statsInterval  = time.Minute
	maxWarmWorkers = 4
)

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	memory.ConfigureFromEnv()

	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"media":    config.MediaDir,
		"database": config.DatabaseDir,
	}))

	if config.MetricsEnabled {
		metrics.InitializeMetrics()
	}

	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath, config.DatabaseOptions())
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart), config.PersistentConnection)

	var collector *metrics.Collector
	if config.MetricsEnabled {
		collector = metrics.NewCollector(metrics.StatsFunc(func() (metrics.Stats, error) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			c, err := db.Counts(ctx)
			if err != nil {
				return metrics.Stats{}, err
			}
			return metrics.Stats{
				Users:          c.Users,
				Titles:         c.Titles,
				Items:          c.Items,
				Thumbnails:     c.Thumbnails,
				PendingEntries: c.Pending,
			}, nil
		}), statsInterval)
		collector.Start()
	}

	startup.LogSchedulerInit(config.IndexInterval, config.OptimizeInterval)
	schedCtx, stopScheduler := context.WithCancel(context.Background())
	idx := indexer.New(db, config.MediaDir, config.IndexInterval)
	thumbGen := media.NewGenerator(config.ThumbnailSize)

	var (
		monitor *memory.Monitor
		pool    *workers.Pool
		warmer  *media.Warmer
	)
	if config.WarmThumbnails {
		monitor = memory.NewMonitor(memory.DefaultConfig())
		monitor.Start()

		pool, err = workers.NewPool(workers.ForCPU(maxWarmWorkers))
		if err != nil {
			startup.LogFatal("Failed to start thumbnail workers: %v", err)
		}
		logging.Info("Thumbnail warmer using %d workers", pool.Size())

		warmer = media.NewWarmer(db, thumbGen, pool, monitor)
		idx.SetOnIndexComplete(func(indexer.Result) {
			warmer.Trigger(schedCtx)
		})
	}
	idx.Start()

	optimizeDone := make(chan struct{})
	go func() {
		defer close(optimizeDone)
		runOptimizeLoop(schedCtx, db, config.OptimizeInterval)
	}()
	startup.LogSchedulerStarted()

	h := handlers.New(db, idx, thumbGen, config)
	router := h.Router()
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           middleware.Logger(loggingConfig)(router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go handleShutdown(shutdownDeps{
		srv:           srv,
		metricsSrv:    metricsSrv,
		idx:           idx,
		collector:     collector,
		warmer:        warmer,
		monitor:       monitor,
		pool:          pool,
		stopScheduler: stopScheduler,
		schedulerDone: optimizeDone,
		db:            db,
	})

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}

	// ListenAndServe returns as soon as Shutdown starts; wait for cleanup.
	<-shutdownComplete
}

var shutdownComplete = make(chan struct{})

// runOptimizeLoop runs Optimize every interval and vacuums when rows were
// removed.
func runOptimizeLoop(ctx context.Context, db *database.Database, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := db.Optimize(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					logging.Error("Scheduled optimize failed: %v", err)
				}
				continue
			}
			if report.DanglingIDs == 0 && report.OrphanedThumbnails == 0 {
				continue
			}
			if err := db.Vacuum(ctx); err != nil {
				logging.Warn("Scheduled vacuum failed: %v", err)
			}
		}
	}
}

type shutdownDeps struct {
	srv           *http.Server
	metricsSrv    *http.Server
	idx           *indexer.Indexer
	collector     *metrics.Collector
	warmer        *media.Warmer
	monitor       *memory.Monitor
	pool          *workers.Pool
	stopScheduler context.CancelFunc
	schedulerDone <-chan struct{}
	db            *database.Database
}

func handleShutdown(d shutdownDeps) {
	defer close(shutdownComplete)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := d.srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping scheduler")
	d.idx.Stop()
	d.stopScheduler()
	<-d.schedulerDone
	if d.warmer != nil {
		d.monitor.Stop()
		d.warmer.Wait()
		d.pool.Release()
	}
	startup.LogShutdownStepComplete("Background workers stopped")

	if d.collector != nil {
		d.collector.Stop()
	}
	if d.metricsSrv != nil {
		if err := d.metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	startup.LogShutdownStep("Closing database")
	if err := d.db.Close(); err != nil {
		logging.Warn("Database close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Database closed")
	}

	startup.LogShutdownComplete()
}
