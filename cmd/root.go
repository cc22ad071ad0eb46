package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the caltodo application
var rootCmd = &cobra.Command{
	Use:   "caltodo",
	Short: "A personal to-do list stored in Google Calendar",
	Long: `caltodo keeps a personal to-do list as events in your Google Calendar.

It can run as:
  - The HTTP gateway that holds the Google session and serves the web app (serve)
  - A command-line client for a running gateway (todos)`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "caltodo version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newTodosCmd())
	rootCmd.AddCommand(newVersionCmd())
}
