package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cleared-dev/books/internal/httpapi"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(g *globalFlags) *cobra.Command {
	var addr string
	var requestTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(g)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			server := &http.Server{
				Addr:              addr,
				Handler:           httpapi.NewRouter(a.services(), a.log, requestTimeout),
				ReadHeaderTimeout: 15 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, server, a)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	cmd.Flags().DurationVar(&requestTimeout, "request-timeout", httpapi.DefaultTimeout, "per-request time limit")
	return cmd
}

// serve runs server until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, server *http.Server, a *app) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		a.log.Info().Str("addr", server.Addr).Msg("starting books API")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		a.log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := eg.Wait(); err != nil {
		return err
	}
	a.log.Info().Msg("server stopped")
	return nil
}
