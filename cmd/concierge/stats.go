package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print booking statistics per master",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setup(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		stats, err := app.store.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read statistics: %w", err)
		}
		active, err := app.store.CountActiveSessions(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to count sessions: %w", err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "MASTER\tBOOKINGS\tCONFIRMED\tREVENUE")
		for _, s := range stats {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", s.Master, s.TotalBookings, s.ConfirmedBookings, s.Revenue)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nActive dialogs: %d\n", active)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
