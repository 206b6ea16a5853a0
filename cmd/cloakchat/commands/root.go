package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"cloakchat/internal/app"
	"cloakchat/internal/logging"
)

var (
	home       string
	userID     string
	passphrase string
	relayURL   string
	jwtSecret  string
	verbose    bool

	appCtx *app.Wire
)

func Execute() error {
	root := &cobra.Command{
		Use:           "cloakchat",
		Short:         "End-to-end encrypted chat CLI",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("user required (--user)")
			}
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".cloakchat")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			log := logging.NewText(os.Stderr, level)

			var err error
			appCtx, err = app.NewWire(app.Config{
				Home:       home,
				RelayURL:   relayURL,
				UserID:     userID,
				Passphrase: passphrase,
				JWTSecret:  []byte(jwtSecret),
				Logger:     log,
			})
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if appCtx != nil {
				_ = appCtx.Close()
			}
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.cloakchat)")
	root.PersistentFlags().StringVar(&userID, "user", "", "your user id")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting your identity")
	root.PersistentFlags().StringVar(&relayURL, "relay", "http://127.0.0.1:8080", "relay base URL")
	root.PersistentFlags().StringVar(&jwtSecret, "secret", "", "shared secret for relay connection tokens")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		initCmd(), fingerprintCmd(), peersCmd(), unreadCmd(),
		sendCmd(), openCmd(), forwardCmd(), clearCmd(),
		shareCmd(), provenanceCmd(), watchCmd(),
	)
	return root.Execute()
}

// withEngine runs fn with the event pump live in the background, then
// gives in-flight acks a moment to land before shutting the pump down.
func withEngine(parent context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- appCtx.Chat.Run(ctx) }()

	if err := fn(ctx); err != nil {
		return err
	}
	time.Sleep(500 * time.Millisecond) // let the sent ack arrive
	cancel()
	<-done
	return nil
}
