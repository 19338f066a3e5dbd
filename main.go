package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"bidio/internal/config"
	"bidio/internal/manager"
	"bidio/internal/metrics"
	"bidio/internal/server"
	"bidio/internal/store"
	"bidio/utils"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		utils.Fatal("bidio stopped", map[string]any{"error": err.Error()})
	}
}

func run(args []string) error {
	var configPath string
	flagSet := pflag.NewFlagSet("bidio", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", os.Getenv("BIDIO_CONFIG"), "path to the bidio YAML config file")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := utils.SetLevel(cfg.Log.Level); err != nil {
		return err
	}
	gin.SetMode(gin.ReleaseMode)

	factory, err := store.Open(cfg.StoreFactory())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer factory.Close()

	m := metrics.New()
	if err := watchStore(m, factory); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	channels := manager.New(cfg, factory, manager.WithRecorder(m))
	if err := channels.Run(ctx); err != nil {
		return err
	}

	router := server.SetupRouter(channels, server.Options{Admin: cfg.Admin.Enabled, Metrics: m})
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		utils.Info("Starting bid server", map[string]any{
			"addr":     cfg.Server.Addr,
			"store":    factory.Backend(),
			"stream":   cfg.Stream,
			"channels": channels.Channels(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		utils.Info("Shutting down bid server", nil)

		// event streams only end once their channel feeds close
		channels.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// watchStore exports the metrics of the shared database handle, if any
func watchStore(m *metrics.Metrics, f *store.Factory) error {
	switch {
	case f.PebbleDB() != nil:
		return m.WatchPebble(f.PebbleDB())
	case f.SQLDB() != nil:
		return m.WatchSQL(f.SQLDB(), "bidio")
	}
	return nil
}
