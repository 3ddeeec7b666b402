package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	offlinecache "github.com/always-cache/offline-cache"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownGrace = 5 * time.Second

func newServeCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Install the unit and proxy requests to the origin through it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts.config)
		},
	}
	cmd.Flags().Int("port", 8080, "Port to listen on")
	return cmd
}

func serve(ctx context.Context, config Config) error {
	u, err := newUnit(config)
	if err != nil {
		return err
	}
	defer u.Close()

	// a unit that failed to install does not intercept, requests still get proxied
	if err := u.host.Install(ctx); err != nil {
		log.Warn().Err(err).Msg("Serving without offline support")
	}

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", config.Port),
		Handler: offlinecache.NewProxy(offlinecache.ProxyConfig{
			OriginURL:  u.origin,
			OriginHost: config.Host,
			Transport:  u.host,
			Logger:     &log.Logger,
		}),
	}

	errs := make(chan error, 1)
	go func() {
		log.Info().Msgf("Proxying port %v to %s (with hostname '%s')", config.Port, u.origin.String(), config.Host)
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
