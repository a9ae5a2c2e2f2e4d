// Command depotd runs a single tenant's S3-compatible object storage
// engine over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"depot/internal/engine"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var (
		listenAddr = flag.String("listen", ":8080", "HTTP listen address")
		dataPath   = flag.String("data", "depot.db", "SQLite database path for this tenant")
		region     = flag.String("region", "auto", "region name stored in the engine config (not included in responses)")
		secretsRaw = flag.String("auth-secrets", "", "comma-separated list of accepted HS256 secrets")
		devBypass  = flag.Bool("dev-auth-bypass", false, "accept the literal token \"foo\" without verification (never use in production)")
	)
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})
	slog.SetDefault(slog.New(logger))

	var secrets [][]byte
	for _, s := range strings.Split(*secretsRaw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			secrets = append(secrets, []byte(s))
		}
	}

	cfg := engine.NewConfig(
		engine.WithDataPath(*dataPath),
		engine.WithRegion(*region),
		engine.WithAuthSecrets(secrets...),
		engine.WithDevBypass(*devBypass),
	)

	srv, err := engine.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("opening tenant store: %w", err)
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              *listenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 20 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      20 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		slog.Info("listening", slog.String("addr", *listenAddr), slog.String("data", *dataPath))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	return g.Wait()
}
