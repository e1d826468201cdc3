package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pevans/shelfwatch/config"
	"github.com/pevans/shelfwatch/docsource"
	"github.com/pevans/shelfwatch/extract"
	"github.com/pevans/shelfwatch/notify"
	"github.com/pevans/shelfwatch/scraper"
	"github.com/pevans/shelfwatch/tracking"
	"github.com/pevans/shelfwatch/watch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

// app holds the components shared by every command.
type app struct {
	cfg       *config.Config
	log       *logrus.Logger
	extractor *extract.Extractor
	provider  docsource.Provider

	// Opened on demand by openService
	store    *tracking.Store
	service  *watch.Service
	registry *prometheus.Registry
}

// loadApp loads configuration and builds the logger, extractor and document
// provider. It exits on configuration errors.
func loadApp() *app {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg)

	catalog := scraper.DefaultCatalog()
	if cfg.Locators.File != "" {
		catalog, err = scraper.LoadCatalog(cfg.Locators.File)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to load locator catalog: %v\n", err)
			os.Exit(1)
		}
	}

	extractor := extract.New(catalog,
		extract.WithLogger(log),
		extract.WithDiagnostics(func(d extract.Diagnostic) {
			log.WithFields(logrus.Fields{"url": d.SourceURL}).WithError(d.Err).Debug("extraction diagnostic")
		}),
	)

	return &app{
		cfg:       cfg,
		log:       log,
		extractor: extractor,
		provider:  newProvider(cfg, log),
	}
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: unknown log level %q, using info\n", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(cfg.Log.Format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

func newProvider(cfg *config.Config, log logrus.FieldLogger) docsource.Provider {
	if cfg.Fetch.PagesDir != "" {
		p := docsource.NewDirProvider(cfg.Fetch.PagesDir)
		p.URLTemplate = cfg.Fetch.ProductURLTemplate
		return p
	}
	return docsource.NewHTTPProvider(docsource.HTTPOptions{
		UserAgent:     cfg.Fetch.UserAgent,
		Timeout:       cfg.Watch.FetchTimeout,
		URLTemplate:   cfg.Fetch.ProductURLTemplate,
		RatePerSecond: cfg.Fetch.RatePerSecond,
		Logger:        log,
	})
}

// openService opens the store and builds the scheduler and service. The
// scheduler is not started.
func (a *app) openService() *watch.Service {
	store, err := tracking.Open(a.cfg.Storage.Type, a.cfg.Storage.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open tracking store: %v\n", err)
		os.Exit(1)
	}
	a.store = store

	notifier, err := a.newNotifier()
	if err != nil {
		store.Close()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector())

	scheduler := watch.NewScheduler(store, a.provider, a.extractor,
		&watch.Config{
			Period:       a.cfg.Watch.Period,
			FetchTimeout: a.cfg.Watch.FetchTimeout,
		},
		watch.WithNotifier(notifier),
		watch.WithMetrics(watch.NewMetrics(a.registry)),
		watch.WithLogger(a.log),
	)
	a.service = watch.NewService(store, scheduler)
	return a.service
}

func (a *app) newNotifier() (watch.Notifier, error) {
	var sinks notify.Multi
	if a.cfg.Notify.Log {
		sinks = append(sinks, notify.NewLogNotifier(a.log))
	}
	if a.cfg.Notify.File != "" {
		file, err := notify.NewFileNotifier(a.cfg.Notify.File)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, file)
	}
	return sinks, nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
}
