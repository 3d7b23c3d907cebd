package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/concierge"
	"github.com/aretw0/concierge/pkg/adapters/console"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant in the terminal",
	Long: `Runs the assistant against the real conversation engine with replies printed to the
terminal. Type "/as <id>" to switch sender, for example to an operator id, and "exit" to quit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("as")
		headless, _ := cmd.Flags().GetBool("headless")
		operators, _ := cmd.Flags().GetStringSlice("operator")

		app, err := setup(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		app.cfg.Operators = append(app.cfg.Operators, operators...)

		assistant, err := app.assistant(cmd.Context(), console.NewGateway(os.Stdout), nil)
		if err != nil {
			return err
		}
		defer assistant.Stop()

		if !headless {
			console.PrintBanner(os.Stdout, assistant.Catalog().Business)
		}
		runner := &concierge.Runner{
			Input:    os.Stdin,
			Output:   os.Stdout,
			From:     from,
			Headless: headless,
		}
		return runner.Run(cmd.Context(), assistant)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("as", "local-client", "Sender id of the typed messages")
	chatCmd.Flags().StringSlice("operator", nil, "Extra operator ids for this chat")
	chatCmd.Flags().Bool("headless", false, "Run in headless mode (no prompts or banner)")
}
