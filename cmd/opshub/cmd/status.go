package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/opshub-io/opshub/internal/tui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check backend and session health",
	Long: `Probe the backend health endpoint and the current session in parallel.
With --watch, open a live view that re-probes periodically.

Examples:
  opshub status
  opshub status --watch --interval 10s
`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().Bool("watch", false, "live status view")
	statusCmd.Flags().Duration("interval", 5*time.Second, "probe interval for --watch")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	watch, _ := cmd.Flags().GetBool("watch")
	interval, _ := cmd.Flags().GetDuration("interval")

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

	if watch {
		model := tui.NewModel(client.Session(), tui.Options{
			BaseURL:  cfg.BaseURL,
			Interval: interval,
		})
		_, err := tea.NewProgram(model).Run()
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	var (
		healthOK      bool
		healthLatency time.Duration
		sessionValid  bool
	)

	// Independent probes; neither should wait on the other.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		result := client.Get(gctx, "/health")
		healthOK = result.Success
		healthLatency = time.Since(start)
		return nil
	})
	g.Go(func() error {
		sessionValid = client.Session().VerifyOnce(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Println(styleDim.Render("backend: ") + cfg.BaseURL)
	if healthOK {
		fmt.Printf("health:  %s (%s)\n", styleOK.Render("UP"), formatLatency(healthLatency))
	} else {
		fmt.Printf("health:  %s\n", styleErr.Render("DOWN"))
	}
	if sessionValid {
		fmt.Printf("session: %s\n", styleOK.Render("VALID"))
	} else {
		fmt.Printf("session: %s %s\n", styleErr.Render("INVALID"), styleDim.Render("(run `opshub login`)"))
	}

	if !healthOK || !sessionValid {
		return fmt.Errorf("status check failed")
	}
	return nil
}
