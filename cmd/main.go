package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "faq-bot",
	Short: "FAQ bot for WhatsApp and web chat",
	Long: `Answers customer questions from canned templates, keyword rules and an
LLM grounded on the FAQ table, and hands conversations to a human when needed.

Run without arguments to start the HTTP server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook/chat HTTP server and the scheduled jobs",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the schema and seed the default FAQ entries",
	RunE:  runMigrate,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Send the daily report now",
	RunE:  runReport,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete conversations and analytics older than the retention period",
	RunE:  runCleanup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	cleanupCmd.Flags().Int("days", 0, "retention in days (default RETENTION_DAYS)")

	rootCmd.AddCommand(serveCmd, migrateCmd, reportCmd, cleanupCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
