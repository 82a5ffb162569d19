package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear local state",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	client, err := buildClient(cfg, st, logger)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	// Server-side teardown is best effort; local state is cleared by
	// Logout regardless, and again here in case the client never had a
	// session to tear down.
	if err := client.Logout(ctx); err != nil {
		logger.Warn("server-side logout failed", "error", err)
	}
	if err := st.Clear(); err != nil {
		return fmt.Errorf("clear local state: %w", err)
	}
	_ = st.RecordAuthEvent("logout", "")

	fmt.Println(styleOK.Render("signed out"))
	return nil
}
