package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"ht-go/internal/database"
	"ht-go/internal/ht"
	"ht-go/internal/server"
	"ht-go/internal/timer"
)

const shutdownTimeout = 5 * time.Second

// Serve runs the local backend on the configured listen address until ctx is done.
func (a *HTApp) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Server.ListenAddr, err)
	}
	return a.ServeListener(ctx, ln)
}

// ServeListener runs the local backend on ln until ctx is done, then shuts the
// HTTP server down gracefully and closes the database.
func (a *HTApp) ServeListener(ctx context.Context, ln net.Listener) error {
	db, err := database.NewDatabaseFromConfig(a.cfg.Database, ht.RealClock{}, ht.UUIDGenerator{})
	if err != nil {
		ln.Close()
		return fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()

	if err := db.CheckMigrations(); err != nil {
		ln.Close()
		return fmt.Errorf("database schema out of date: %w", err)
	}

	var opts []server.Option
	if a.cfg.Server.Token != "" {
		opts = append(opts, server.WithToken(a.cfg.Server.Token))
	}
	srv := &http.Server{
		Handler:           server.New(db, a.logger, opts...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("serving", "addr", ln.Addr().String(), "database", a.cfg.Database.Type)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		a.logger.Info("server stopped")
		return nil
	})
	return g.Wait()
}

// Watch keeps a timer context in step with the backend, calling render with
// every new snapshot until ctx is done. The backend is polled at the
// configured interval; the countdown ticks locally in between.
func (a *HTApp) Watch(ctx context.Context, render func(timer.Snapshot)) error {
	tc := a.NewTimer()
	defer tc.Close()

	events := tc.Subscribe(ctx)
	if err := tc.Refresh(ctx); err != nil {
		return err
	}
	render(tc.Snapshot())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Focus.PollInterval())
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				// A failed poll is already published as an error snapshot.
				if err := tc.Refresh(gctx); err != nil && gctx.Err() == nil {
					a.logger.Debug("poll failed", "error", err)
				}
			}
		}
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				render(ev.Payload)
			}
		}
	})
	return g.Wait()
}
