package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"bomberhans/internal/config"
	"bomberhans/internal/net/ws"
	"bomberhans/internal/server"
	"bomberhans/internal/storage"
)

func newServeCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the authoritative game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}

			logger := log.NewWithOptions(os.Stderr, log.Options{
				ReportTimestamp: true,
				Prefix:          "bomberhans",
			})

			var recorder server.Recorder
			if cfg.Database != "" {
				store, err := storage.Open(cfg.Database)
				if err != nil {
					return err
				}
				defer store.Close()
				recorder = store
				logger.Info("recording matches", "database", cfg.Database)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			hub := server.NewHub(cfg, logger.With("component", "hub"), recorder)
			go hub.Run(ctx)

			mux := http.NewServeMux()
			mux.Handle("/ws", ws.NewHandler(hub, logger.With("component", "ws")))

			srv := &http.Server{Addr: cfg.Listen, Handler: mux}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()

			logger.Info("listening", "addr", cfg.Listen)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (overrides the config file)")
	return cmd
}
