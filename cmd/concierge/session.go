package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage stored dialogue sessions",
	Long:  `List, inspect and reset the sessions kept in the configured store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setup(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		sessions, err := app.store.ListSessions(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(sessions) == 0 {
			fmt.Fprintln(out, "No sessions found.")
			return nil
		}

		fmt.Fprintln(out, "Sessions:")
		for _, s := range sessions {
			line := fmt.Sprintf("- %s [%s] updated %s", s.UserID, s.Stage, s.UpdatedAt.Format(time.RFC3339))
			if s.ClientName != "" {
				line += fmt.Sprintf(" (%s, %s)", s.ClientName, s.ClientPhone)
			}
			if s.AdminMode {
				line += " with operator " + s.AdminCounterpart
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <user-id>",
	Short: "Print a session as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setup(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		sess, err := app.store.LoadSession(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to load session '%s': %w", args[0], err)
		}
		data, err := json.MarshalIndent(sess, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var sessionResetCmd = &cobra.Command{
	Use:   "reset <user-id>...",
	Short: "Send one or more sessions back to the greeting",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setup(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		opts := []session.Option{session.WithLogger(app.logger)}
		if app.locker != nil {
			opts = append(opts, session.WithLocker(app.locker))
		}
		locks := session.NewManager(app.store, opts...)

		var errs []error
		for _, id := range args {
			err := locks.UpdateExisting(cmd.Context(), id, func(ctx context.Context, sess *domain.Session) error {
				sess.Reset(time.Now())
				return nil
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("failed to reset '%s': %w", id, err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset session '%s'\n", id)
		}
		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionResetCmd)
}
