package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/opshub-io/opshub/internal/apiclient"
	"github.com/opshub-io/opshub/internal/store"
)

var loginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Sign in to the backend",
	Long: `Sign in with email and password. If the account requires TOTP step-up,
you are prompted for a code from your authenticator.

Examples:
  opshub login
  opshub login admin@example.com
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
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

	email := ""
	if len(args) == 1 {
		email = args[0]
	}
	if email == "" {
		email, err = promptLine("Email: ")
		if err != nil {
			return err
		}
	}

	password, err := promptSecret("Password: ")
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	outcome, err := client.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	if outcome.State == apiclient.LoginTotpCodeRequired {
		code, promptErr := promptLine("TOTP code: ")
		if promptErr != nil {
			return promptErr
		}
		outcome, err = client.VerifyTOTP(ctx, code)
		if err != nil {
			return fmt.Errorf("verify TOTP: %w", err)
		}
	}

	switch outcome.State {
	case apiclient.LoginOK:
		if outcome.User != nil {
			if saveErr := st.SaveUser(store.User{
				ID:    outcome.User.ID,
				Email: outcome.User.Email,
				Name:  outcome.User.Name,
				Role:  outcome.User.Role,
			}); saveErr != nil {
				logger.Warn("failed to persist user", "error", saveErr)
			}
			_ = st.RecordAuthEvent("login", outcome.User.Email)
			fmt.Println(styleOK.Render("signed in"), "as", outcome.User.Email)
		} else {
			_ = st.RecordAuthEvent("login", email)
			fmt.Println(styleOK.Render("signed in"))
		}
		return nil

	case apiclient.LoginTotpEnrollRequired:
		fmt.Println(styleWarn.Render("this account requires TOTP and none is enrolled"))
		fmt.Println("enroll an authenticator in your profile settings, then retry")
		return fmt.Errorf("TOTP enrollment required")

	default:
		msg := outcome.Error
		if msg == "" {
			msg = "credentials rejected"
		}
		return fmt.Errorf("login failed: %s", msg)
	}
}

func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func promptSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		// Piped input (tests, scripts): fall back to a plain line read.
		return promptLine("")
	}
	secret, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}
