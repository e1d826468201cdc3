package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pevans/shelfwatch/api"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 60 * time.Second

func handleWatch(a *app, args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	period := fs.String("period", "", "Sampling period, e.g. 6h, 1d (overrides config)")
	fs.Parse(args)

	applyPeriodFlag(a, *period)

	service := a.openService()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := service.Scheduler().Start(ctx); err != nil {
		fail("%v", err)
	}

	sig := waitForSignal(a.log)
	a.log.WithField("signal", sig.String()).Info("shutting down gracefully")
	cancel()
	stopWithTimeout(a.log, service.Scheduler().Stop)
}

func handleServe(a *app, args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "Listen address (overrides config)")
	period := fs.String("period", "", "Sampling period, e.g. 6h, 1d (overrides config)")
	fs.Parse(args)

	applyPeriodFlag(a, *period)
	if *addr != "" {
		a.cfg.API.Addr = *addr
	}

	service := a.openService()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := service.Scheduler().Start(ctx); err != nil {
		fail("%v", err)
	}

	if a.log.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	server := api.NewServer(service, api.WithGatherer(a.registry), api.WithConfig(a.cfg))
	httpServer := &http.Server{
		Addr:              a.cfg.API.Addr,
		Handler:           server.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		a.log.WithField("addr", a.cfg.API.Addr).Info("API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		a.log.WithField("signal", sig.String()).Info("shutting down gracefully")
	case err := <-errChan:
		a.log.WithError(err).Error("server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("server shutdown incomplete")
	}

	cancel()
	stopWithTimeout(a.log, service.Scheduler().Stop)
}

func applyPeriodFlag(a *app, value string) {
	if value == "" {
		return
	}
	d, err := parseDuration(value)
	if err != nil {
		fail("invalid --period: %v", err)
	}
	a.cfg.Watch.Period = d
}

// waitForSignal blocks until SIGTERM or SIGINT. SIGHUP is logged and ignored.
func waitForSignal(log logrus.FieldLogger) os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			log.Info("SIGHUP received (reload not supported)")
			continue
		}
		return sig
	}
	return nil
}

// stopWithTimeout runs stop and gives up waiting after shutdownTimeout.
func stopWithTimeout(log logrus.FieldLogger, stop func()) {
	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()

	timer := time.NewTimer(shutdownTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		log.Warn("shutdown timeout exceeded, forcing exit")
	}
}
