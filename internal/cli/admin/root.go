package admin

import (
	"github.com/cloo-solutions/newsrag/internal/cli"
	"github.com/cloo-solutions/newsrag/internal/config"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the newsragd command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "newsragd",
		Short:         "newsrag daemon and admin CLI",
		Long:          "newsragd fetches news articles, builds the semantic index and serves questions over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cli.AddHelpJSONFlag(rootCmd)
	cli.SetCommandEnv(rootCmd, config.EnvVars()...)
	rootCmd.AddCommand(ServeCmd())
	rootCmd.AddCommand(FetchCmd())
	rootCmd.AddCommand(IndexCmd())
	rootCmd.AddCommand(AskCmd())

	return rootCmd
}
