package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/concierge/internal/config"
)

// v is shared by every command so flags and the config file resolve the same way.
var v = config.New()

var rootCmd = &cobra.Command{
	Use:   "concierge",
	Short: "Concierge is a conversational booking assistant",
	Long: `Concierge talks to clients over a messaging bridge, collects their details,
books appointments with masters and lets administrators approve them from the same chat.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to concierge.yaml (default: ./concierge.yaml or ./config/concierge.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("store", "", "SQLite DSN; empty keeps data in memory")

	_ = v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("store.dsn", rootCmd.PersistentFlags().Lookup("store"))
}
