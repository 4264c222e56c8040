package server

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "roster",
	Short: "User records service",
	Long:  `HTTP service for managing user records, backed by Postgres, with an async audit trail`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(startCmd)
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return startServer()
	},
}
