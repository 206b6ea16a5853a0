// Command relayd runs the store-and-forward relay that cloakchat clients
// connect to. Configuration comes from a config file, environment
// variables (CLOAKCHAT_*), or defaults, in that order of preference.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"cloakchat/internal/logging"
	"cloakchat/internal/relay/server"
)

type config struct {
	Listen      string
	JWTSecret   string
	RegistryTTL time.Duration
	Verbose     bool
}

func loadConfig() (config, error) {
	v := viper.New()
	v.SetConfigName("relayd")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/cloakchat")
	v.AddConfigPath(".")
	v.SetEnvPrefix("cloakchat")
	v.AutomaticEnv()

	v.SetDefault("listen", ":8080")
	v.SetDefault("registry_ttl", server.DefaultRegistryTTL)
	v.SetDefault("verbose", false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config{}, err
		}
		// No file is fine; env and defaults cover everything.
	}

	cfg := config{
		Listen:      v.GetString("listen"),
		JWTSecret:   v.GetString("jwt_secret"),
		RegistryTTL: v.GetDuration("registry_ttl"),
		Verbose:     v.GetBool("verbose"),
	}
	if cfg.JWTSecret == "" {
		return config{}, errors.New("jwt_secret is required (config file or CLOAKCHAT_JWT_SECRET)")
	}
	return cfg, nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "relayd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	log := logging.NewText(os.Stderr, level)

	srv := server.New(server.Config{
		JWTSecret:   []byte(cfg.JWTSecret),
		RegistryTTL: cfg.RegistryTTL,
	}, log)

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "relay listening", "addr", cfg.Listen)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info(shutdownCtx, "shutting down")
	return httpSrv.Shutdown(shutdownCtx)
}
