package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Long: `Show the locally persisted user. With --remote, ask the backend instead,
exercising the full dispatch path (including transparent token refresh).
`,
	Args: cobra.NoArgs,
	RunE: runWhoami,
}

func init() {
	whoamiCmd.Flags().Bool("remote", false, "query the backend instead of local state")
	rootCmd.AddCommand(whoamiCmd)
}

func runWhoami(cmd *cobra.Command, args []string) error {
	remote, _ := cmd.Flags().GetBool("remote")

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if !remote {
		user, err := st.CurrentUser()
		if err != nil {
			return err
		}
		if user == nil {
			fmt.Println(styleDim.Render("not signed in"))
			return nil
		}
		fmt.Printf("%s (%s)\n", user.Email, user.Role)
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)

	client, err := buildClient(cfg, st, logger)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	user, err := client.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s)\n", user.Email, user.Role)
	return nil
}
