package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the local auth event log",
	Args:  cobra.NoArgs,
	RunE:  runEvents,
}

func init() {
	eventsCmd.Flags().IntP("limit", "n", 20, "number of events to show")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	events, err := st.RecentAuthEvents(limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println(styleDim.Render("no auth events recorded"))
		return nil
	}

	for _, e := range events {
		line := fmt.Sprintf("%s  %-14s %s",
			e.Timestamp.Format("2006-01-02 15:04:05"), e.Event, e.Detail)
		fmt.Println(line)
	}
	return nil
}
