package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"celestetracker.ai/internal/config"
	"celestetracker.ai/internal/metrics"
	"celestetracker.ai/internal/persistence/dpcache"
	"celestetracker.ai/internal/persistence/kvstore"
	"celestetracker.ai/internal/tracker/catalog"
	"celestetracker.ai/internal/tracker/runtime"
)

const defaultConfigPath = "./configs/tracker.yaml"

func main() {
	var (
		configPath  = flag.String("config", defaultConfigPath, "path to tracker.yaml")
		dataDir     = flag.String("data", "", "runtime data directory (overrides config)")
		url         = flag.String("url", "", "server websocket url (overrides stored setting)")
		slot        = flag.String("slot", "", "slot name (overrides stored setting)")
		password    = flag.String("password", "", "room password (overrides stored setting)")
		rulesPath   = flag.String("rules", "", "rules document to translate into requirement trees")
		catalogPath = flag.String("catalog", "", "objective catalog yaml (default: built-in)")
		metricsAddr = flag.String("metrics_addr", "", "serve /metrics on this address (overrides config)")
		noConnect   = flag.Bool("no_connect", false, "start without connecting")
		statusEvery = flag.Duration("status_every", time.Minute, "log a status line this often (0 to disable)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[tracker] ", log.LstdFlags|log.Lmicroseconds)

	path := strings.TrimSpace(*configPath)
	if path == defaultConfigPath {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	overrideString(&cfg.DataDir, *dataDir)
	overrideString(&cfg.URL, *url)
	overrideString(&cfg.SlotName, *slot)
	overrideString(&cfg.Password, *password)
	overrideString(&cfg.RulesPath, *rulesPath)
	overrideString(&cfg.CatalogPath, *catalogPath)
	overrideString(&cfg.MetricsAddr, *metricsAddr)
	if *noConnect {
		cfg.AutoConnect = false
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("config: %v", err)
	}

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.Fatalf("load catalog: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := kvstore.Open(filepath.Join(cfg.DataDir, "tracker.sqlite"))
	if err != nil {
		logger.Fatalf("open state store: %v", err)
	}
	defer store.Close()

	settings, err := store.LoadSettings(ctx)
	if err != nil {
		logger.Fatalf("load settings: %v", err)
	}
	changed := overrideString(&settings.URL, cfg.URL)
	changed = overrideString(&settings.SlotName, cfg.SlotName) || changed
	changed = overrideString(&settings.Password, cfg.Password) || changed
	if changed {
		if err := store.SaveSettings(ctx, settings); err != nil {
			logger.Printf("save settings: %v", err)
		}
	}

	m := metrics.New()
	rt, err := runtime.New(ctx, runtime.Config{
		Catalog:             cat,
		Settings:            settings,
		AllowSequenceBreaks: cfg.AllowSequenceBreaks,
		RetryInterval:       cfg.RetryInterval,
		MaxRetries:          cfg.MaxRetries,
		RulesPath:           cfg.RulesPath,
		WatchRules:          cfg.WatchRules,
	}, runtime.Deps{
		Store:   store,
		Cache:   dpcache.New(filepath.Join(cfg.DataDir, "datapackage")),
		Metrics: m,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatalf("start runtime: %v", err)
	}
	logger.Printf("tracker url=%s slot=%s objectives=%d data=%s", settings.URL, settings.SlotName, cat.Len(), cfg.DataDir)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rt.Run(ctx, cfg.AutoConnect) })

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Printf("metrics listening on %s", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if *statusEvery > 0 {
		g.Go(func() error {
			t := time.NewTicker(*statusEvery)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-t.C:
					logger.Print(rt.StatusLine())
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		logger.Printf("exit: %v", err)
	}
	logger.Print(rt.StatusLine())
}

// overrideString sets *dst to v when v is non-empty and reports whether the
// value changed.
func overrideString(dst *string, v string) bool {
	v = strings.TrimSpace(v)
	if v == "" || *dst == v {
		return false
	}
	*dst = v
	return true
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}
