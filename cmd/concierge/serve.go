package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/aretw0/concierge/pkg/adapters/console"
	httpAdapter "github.com/aretw0/concierge/pkg/adapters/http"
	"github.com/aretw0/concierge/pkg/observability"
	"github.com/aretw0/concierge/pkg/ports"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Starts the assistant behind an HTTP webhook. The messaging bridge posts inbound
messages to /v1/messages and receives replies at http.bridge_url.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setup(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		cfg := app.cfg

		var gateway ports.Gateway
		if cfg.HTTP.BridgeURL != "" {
			gateway = httpAdapter.NewWebhookGateway(cfg.HTTP.BridgeURL, cfg.HTTP.Token, nil)
		} else {
			app.logger.Warn("http.bridge_url is not set, replies are printed to stdout")
			gateway = console.NewGateway(os.Stdout)
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		assistant, err := app.assistant(cmd.Context(), gateway, reg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		if err := assistant.Start(ctx); err != nil {
			return err
		}
		defer assistant.Stop()

		handler := httpAdapter.NewServer(assistant,
			httpAdapter.WithRateLimit(rate.Limit(cfg.HTTP.RateLimit), cfg.HTTP.Burst),
			httpAdapter.WithMetrics(observability.Handler(reg)),
			httpAdapter.WithToken(cfg.HTTP.Token),
			httpAdapter.WithLogger(app.logger),
		)
		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			app.logger.Info("Starting concierge server", "addr", srv.Addr, "business", assistant.Catalog().Business)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case sig := <-shutdown:
			app.logger.Info("Shutting down", "signal", sig.String())

			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			if err := srv.Shutdown(sctx); err != nil {
				app.logger.Error("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				_ = srv.Close()
			}
		}

		// Accepted messages finish before the store closes.
		handler.Wait()
		app.logger.Info("Concierge server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (default :8080)")
	_ = v.BindPFlag("http.addr", serveCmd.Flags().Lookup("addr"))
}
