package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/flowsched/flowsched/internal/config"
	"github.com/flowsched/flowsched/pkg/eventbus"
	"github.com/flowsched/flowsched/pkg/firmamentservice"
	"github.com/flowsched/flowsched/pkg/metrics"
	"github.com/flowsched/flowsched/pkg/transport/httpapi"
)

var configPath string
var configName string

// RootCmd is the root Cobra command; all subcommands are registered here.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flowsched",
		Short: "flowsched is a flow-network minimum-cost-flow cluster scheduler.",
		Long: `flowsched schedules tasks onto machines by solving a minimum-cost flow
problem over a graph representing tasks, resources and their compatibility.

Persistent config can be kept in a config file so it doesn't need to be
passed on every invocation; see --config-path and --config-name.`,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config-path", ".", "directory to look for the config file in")
	cmd.PersistentFlags().StringVar(&configName, "config-name", "flowsched", "base name (no extension) of the config file")

	cmd.AddCommand(serveCmd())
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler as a long-lived HTTP (and optionally Pulsar-fed) service.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(configPath, configName)
	if err != nil {
		return err
	}

	schedCfg, err := cfg.SchedulerConfig()
	if err != nil {
		return err
	}

	m := metrics.NewSchedulerMetrics()
	server, err := firmamentservice.NewInstrumentedSchedulerServer(schedCfg, m)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.PulsarURL != "" {
		consumer, err := eventbus.NewConsumer(eventbus.Config{
			URL:   cfg.PulsarURL,
			Topic: cfg.PulsarTopic,
		}, server)
		if err != nil {
			return err
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil {
				glog.Errorf("eventbus consumer stopped: %v", err)
			}
		}()
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	go func() {
		if err := http.ListenAndServe(":9090", metricsMux); err != nil && err != http.ErrServerClosed {
			glog.Errorf("metrics server stopped: %v", err)
		}
	}()

	httpServer := httpapi.NewServer(cfg.HTTPAddr, server)
	glog.Infof("flowsched listening on %s (metrics on :9090)", cfg.HTTPAddr)

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
