package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"meetsync/internal/config"
	"meetsync/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "meetsync",
	Short: "MeetSync - session-backed transcript and recording sync",
	Long: `MeetSync keeps per-user browser sessions for a meeting platform and
extracts transcripts, meeting recordings and clips on behalf of those users.

Commands:
  serve                 Run the HTTP service (default)
  vtt <file>            Parse a WebVTT caption file and print the transcript
  token <subject>       Issue a platform bearer token
  preflight             Run the startup checks and exit`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(loadConfig())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(vttCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(preflightCmd)
}

// loadConfig reads .env before the environment so local overrides apply
func loadConfig() *config.Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}
	logging.Init()
	return config.Load()
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
