package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"teambond/internal/app"
	"teambond/internal/relayserver"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		addr        string
		storage     string
		redisAddr   string
		postgresDSN string
		logLevel    string
		logFormat   string
	)
	cmd := &cobra.Command{
		Use:           "relay",
		Short:         "Development server for the teambond REST API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := app.NewLogger(os.Stderr, logLevel, logFormat)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := openStorage(ctx, storage, redisAddr, postgresDSN)
			if err != nil {
				return err
			}
			defer store.Close()
			log.Info().Str("storage", storage).Msg("Storage ready")

			return relayserver.New(store, log).ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", envOr("RELAY_ADDR", ":8080"), "listen address")
	cmd.Flags().StringVar(&storage, "storage", "memory", "storage backend: memory, redis or postgres")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", envOr("REDIS_URL", "localhost:6379"), "redis address")
	cmd.Flags().StringVar(&postgresDSN, "postgres-dsn", envOr("DATABASE_URL", "postgres://localhost/teambond?sslmode=disable"), "postgres connection string")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level")
	cmd.Flags().StringVar(&logFormat, "log-format", "auto", "log format: auto, console or json")
	return cmd
}

func openStorage(ctx context.Context, kind, redisAddr, dsn string) (relayserver.Storage, error) {
	switch kind {
	case "memory":
		return relayserver.NewMemoryStorage(), nil
	case "redis":
		return relayserver.OpenRedis(ctx, redisAddr)
	case "postgres":
		return relayserver.OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown storage %q", kind)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
