package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/coredump-labs/rspd/internal/demotarget"
	"github.com/coredump-labs/rspd/internal/rspconfig"
	"github.com/coredump-labs/rspd/internal/rspmetrics"
	"github.com/coredump-labs/rspd/internal/rspmetrics/promcollector"
	"github.com/coredump-labs/rspd/internal/rsplog"
	"github.com/coredump-labs/rspd/internal/rspserver"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the listener loop for every configured target",
	}
	bindFlags := bindServeFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServe(bindFlags)
	}
	return cmd
}

func runServe(bindFlags func(*viper.Viper)) error {
	cfg, err := rspconfig.Load(configFile, bindFlags)
	if err != nil {
		return err
	}

	base := logrus.New()
	if err := rsplog.Configure(base, cfg.Logging.Level); err != nil {
		return fmt.Errorf("rspd: configuring logger: %w", err)
	}
	logger := rsplog.New(base)

	var metrics rspmetrics.Collector = rspmetrics.Noop
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		metrics = promcollector.New(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				logger.Warnf("rspd: metrics server: %v", err)
			}
		}()
	}

	targets := make([]rspserver.NamedTarget, 0, len(cfg.Targets))
	for _, name := range cfg.Targets {
		targets = append(targets, rspserver.NamedTarget{Name: name, Target: demotarget.New()})
	}

	srv := rspserver.New(targets, rspserver.Options{
		BasePort:       cfg.Port,
		ReadBufferSize: cfg.ReadBufferSize,
		Logger:         logger,
		Metrics:        metrics,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	logger.Infof("rspd: serving %d target(s), base port %d", len(cfg.Targets), cfg.Port)

	select {
	case <-sig:
		logger.Infof("rspd: shutdown signal received")
		cancel()
		return <-done
	case err := <-done:
		return err
	}
}
