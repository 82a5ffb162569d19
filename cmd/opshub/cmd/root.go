// Package cmd implements the opshub CLI.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/opshub-io/opshub/internal/apiclient"
	"github.com/opshub-io/opshub/internal/config"
	"github.com/opshub-io/opshub/internal/store"
)

var (
	flagConfig  string
	flagBaseURL string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "opshub",
	Short: "Client for the opshub admin backend",
	Long: `opshub talks to the opshub admin backend over its cookie-based session,
handling CSRF tokens, token refresh, and TOTP step-up transparently.

Examples:
  opshub login
  opshub whoami
  opshub call GET /users
  opshub status --watch
`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "backend base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func loadConfig() (config.Config, error) {
	path := flagConfig
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if flagBaseURL != "" {
		cfg.BaseURL = flagBaseURL
	}
	if cfg.BaseURL == "" {
		return config.Config{}, fmt.Errorf("no base URL configured; set base_url in %s or pass --base-url", path)
	}
	return cfg, nil
}

func setupLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// buildClient wires the config, persisted state, and session callbacks into
// an API client. The CLI registers printers where a hosting application
// would register navigation.
func buildClient(cfg config.Config, st *store.Store, logger *slog.Logger) (*apiclient.Client, error) {
	retry := apiclient.RetryPolicy{MaxAttempts: cfg.Retry.MaxAttempts}
	for _, d := range cfg.Retry.Delays {
		retry.Delays = append(retry.Delays, d.Duration())
	}

	clientCfg := apiclient.Config{
		BaseURL:        cfg.BaseURL,
		Retry:          retry,
		SettleDelay:    cfg.SettleDelay.Duration(),
		RefreshWait:    cfg.RefreshWait.Duration(),
		CSRFHeader:     cfg.CSRFHeader,
		CSRFCookie:     cfg.CSRFCookie,
		LogoutCooldown: cfg.LogoutCooldown.Duration(),
		Logger:         logger,
		OnSessionInvalid: func(reason string) {
			fmt.Fprintln(os.Stderr, styleErr.Render("session ended: "+reason))
			fmt.Fprintln(os.Stderr, "run `opshub login` to sign in again")
			if st != nil {
				_ = st.RecordAuthEvent("forced_logout", reason)
			}
		},
		OnStepUpRequired: func(kind apiclient.StepUp) {
			switch kind {
			case apiclient.StepUpEnroll:
				fmt.Fprintln(os.Stderr, styleWarn.Render("this operation requires TOTP, and none is enrolled"))
				fmt.Fprintln(os.Stderr, "enroll an authenticator in your profile settings, then retry")
			default:
				fmt.Fprintln(os.Stderr, styleWarn.Render("this operation requires TOTP verification"))
				fmt.Fprintln(os.Stderr, "run `opshub login` to re-verify")
			}
		},
	}
	// Assign only a live store; a nil *store.Store inside the interface
	// would still look non-nil to the logout guard.
	if st != nil {
		clientCfg.UserState = st
	}

	client, err := apiclient.New(clientCfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func openStore() (*store.Store, error) {
	st, err := store.Open()
	if err != nil {
		return nil, fmt.Errorf("open local state: %w", err)
	}
	return st, nil
}

// commandContext returns a bounded context for one-shot commands.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 2*time.Minute)
}
