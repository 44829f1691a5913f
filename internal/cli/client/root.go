package client

import (
	"github.com/cloo-solutions/newsrag/internal/cli"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the newsrag client command tree.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "newsrag",
		Short: "newsrag CLI - ask questions about indexed news articles",
		Long: `newsrag CLI queries a running newsragd API.

Environment variables:
  NEWSRAG_API_KEY   API token, when the server sets NEWSRAG_API_TOKEN
  NEWSRAG_API_URL   API base URL (default: http://localhost:8080)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API token (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.BindFlagEnv(rootCmd.PersistentFlags(), "api-key", envAPIKey)
	cli.BindFlagEnv(rootCmd.PersistentFlags(), "api-url", envAPIURL)
	cli.AddHelpJSONFlag(rootCmd)
	cli.SetCommandEnv(rootCmd, envAPIKey, envAPIURL)

	rootCmd.AddCommand(AskCmd())
	rootCmd.AddCommand(OutlookCmd())
	rootCmd.AddCommand(CompeteCmd())
	rootCmd.AddCommand(StatusCmd())
	rootCmd.AddCommand(AuthCmd())

	return rootCmd
}
