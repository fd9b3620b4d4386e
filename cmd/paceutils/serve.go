package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/whatscottcodes/paceutils/api"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func serveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the reporting API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

// serve runs until ctx is canceled, then drains active requests.
func (a *app) serve(ctx context.Context) error {
	log := a.log.Base

	exec, err := a.executor()
	if err != nil {
		return err
	}
	if err := exec.Ping(ctx); err != nil {
		log.Warn("reporting database unreachable at startup", zap.Error(err))
	}

	handler := api.NewHandler(exec, a.calendar, log).WithMaxSubPeriods(a.cfg.MaxSeriesPeriods)
	aggregates, err := a.aggregates()
	if err != nil {
		return err
	}
	if aggregates != nil {
		handler.WithAgg(aggregates)
	}

	server := &http.Server{
		Addr:         a.cfg.HTTPAddr,
		Handler:      api.NewRouter(handler, api.Options{CORSOrigins: a.cfg.CORSOrigins}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.String("addr", a.cfg.HTTPAddr),
			zap.String("driver", a.cfg.DBDriver),
			zap.Int("indicators", handler.Registry.Len()),
			zap.Bool("aggregates", aggregates != nil))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
