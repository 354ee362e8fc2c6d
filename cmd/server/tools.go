package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"meetsync/internal/preflight"
	"meetsync/internal/vtt"
	"meetsync/pkg/auth"
)

var vttJSON bool

var vttCmd = &cobra.Command{
	Use:   "vtt <file>",
	Short: "Parse a WebVTT caption file and print the transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		result := vtt.ToResult(vtt.Parse(string(raw)))
		if vttJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		fmt.Fprintln(cmd.OutOrStdout(), result.Transcript)
		fmt.Fprintf(cmd.ErrOrStderr(), "\n%d segments, speakers: %v\n", result.SegmentCount, result.Speakers)
		return nil
	},
}

var (
	tokenRole   string
	tokenExpiry time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Issue a platform bearer token signed with PLATFORM_JWT_SECRET",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		jwtAuth, err := auth.NewPlatformJWTAuth(cfg.PlatformJWTSecret, tokenExpiry)
		if err != nil {
			return err
		}
		token, err := jwtAuth.IssueToken(args[0], tokenRole)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var preflightCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Run the startup checks and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.close()

		if preflight.HasFailures(preflight.NewChecker(store.backend, cfg).RunAll()) {
			return fmt.Errorf("pre-flight checks failed")
		}
		return nil
	},
}

func init() {
	vttCmd.Flags().BoolVar(&vttJSON, "json", false, "Print the full result as JSON")
	tokenCmd.Flags().StringVar(&tokenRole, "role", auth.RolePlatform, "Token role (platform may act for any user)")
	tokenCmd.Flags().DurationVar(&tokenExpiry, "expiry", time.Hour, "Token lifetime")
}
