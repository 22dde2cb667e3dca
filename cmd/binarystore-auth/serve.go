package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/E8A281E6ACA2/BinaryStore/httpapi"
	"github.com/E8A281E6ACA2/BinaryStore/internal/log"
	"github.com/E8A281E6ACA2/BinaryStore/internal/pgstore"
	"github.com/E8A281E6ACA2/BinaryStore/metrics/export/prometheus"
)

const resetPurgeInterval = time.Hour

func newServeCmd(s *settings) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the authentication endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), s, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply database migrations before serving")
	return cmd
}

func serve(ctx context.Context, s *settings, migrate bool) (err error) {
	a, err := openApp(ctx, s)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			err = multierror.Append(err, cerr).ErrorOrNil()
		}
	}()

	if migrate {
		if err := pgstore.Migrate(ctx, a.db); err != nil {
			return err
		}
	}

	engine, err := a.buildEngine()
	if err != nil {
		return err
	}

	checks := map[string]httpapi.HealthCheck{
		"postgres": func(ctx context.Context) error {
			_, err := pgstore.Ping(ctx, a.db)
			return err
		},
	}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		}
	}

	api := httpapi.New(engine, httpapi.Options{
		Production:   s.Production(),
		Settings:     a.config,
		HealthChecks: checks,
		Metrics:      prometheus.NewPrometheusExporter(engine).Handler(),
	})

	srv := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          stdlog.New(&log.StdLogWrapper{Logger: log.Logger()}, "", 0),
	}

	go purgeResets(ctx, a.resets)

	errc := make(chan error, 1)
	go func() {
		log.Info(ctx).Str("addr", s.ListenAddr).Bool("production", s.Production()).Msg("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info(context.Background()).Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	return nil
}

// purgeResets deletes expired reset tokens until ctx ends.
func purgeResets(ctx context.Context, resets *pgstore.Resets) {
	ticker := time.NewTicker(resetPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := resets.PurgeExpired(ctx, now.UTC())
			if err != nil {
				log.Warn(ctx).Err(err).Msg("purge expired reset tokens failed")
				continue
			}
			if n > 0 {
				log.Debug(ctx).Int64("rows", n).Msg("purged expired reset tokens")
			}
		}
	}
}
