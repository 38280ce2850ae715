package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"teambond/internal/app"
	"teambond/internal/domain"
)

var (
	home       string
	configPath string
	apiBase    string
	logLevel   string
	appCtx     *app.Wire
	loadedCfg  app.Config

	username string
	userID   string
)

func Execute() error {
	root := &cobra.Command{
		Use:           "teambond",
		Short:         "End-to-end encrypted one-to-one chat",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := app.DefaultHome()
				if err != nil {
					return err
				}
				home = dir
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}
			if configPath == "" {
				configPath = filepath.Join(home, app.ConfigFile)
			}

			cfg, err := app.LoadConfig(configPath, app.DefaultConfig(home))
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("api") {
				cfg.APIBase = apiBase
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			loadedCfg = cfg
			if cmd.Name() == "init" && cmd.Parent() != nil && cmd.Parent().Name() == "config" {
				return nil
			}

			log, err := app.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			w, err := app.NewWire(cfg, log)
			if err != nil {
				return err
			}
			appCtx = w
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if appCtx == nil {
				return nil
			}
			return appCtx.Close()
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.teambond)")
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default <home>/config.toml)")
	root.PersistentFlags().StringVar(&apiBase, "api", "", "API base URL (e.g. http://localhost:8080)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		keysCmd(),
		registerCmd(),
		loginCmd(),
		backupCmd(),
		recoveryCmd(),
		peerKeyCmd(),
		historyCmd(),
		sendCmd(),
		chatCmd(),
		configCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errMark, err)
		if hint := hintFor(err); hint != "" {
			fmt.Fprintf(os.Stderr, "%s %s\n", arrow, hint)
		}
	}
	return err
}

// addIdentityFlags registers --username and --user-id on cmd.
func addIdentityFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&username, "username", "", "your username (default: from last login)")
	cmd.Flags().StringVar(&userID, "user-id", "", "your user id (default: from last login)")
}

// me returns the local participant from flags, falling back to the profile
// saved by login.
func me() (domain.Participant, error) {
	p := domain.Participant{ID: domain.UserID(userID), Username: domain.Username(username)}
	if p.Known() {
		return p, nil
	}
	prof, ok, err := appCtx.Profiles.LoadProfile(appCtx.Config.APIBase)
	if err != nil {
		return p, err
	}
	if ok {
		if p.Username == "" {
			p.Username = prof.Username
		}
		if p.ID == "" {
			p.ID = prof.UserID
		}
	}
	if p.Username == "" {
		return p, errors.New("--username required (or run login first)")
	}
	return p, nil
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrKeyGeneration):
		return "secure chat is unavailable until a keypair can be created"
	case errors.Is(err, domain.ErrRestore):
		return "run `teambond keys reset --yes` then `teambond login` to start with new keys"
	case errors.Is(err, domain.ErrPeerKeyUnresolved):
		return "your partner has not published a public key yet"
	case errors.Is(err, domain.ErrNetwork):
		return "check --api and that the server is reachable"
	}
	return ""
}
