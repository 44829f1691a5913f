package admin

import (
	"fmt"
	"strings"

	"github.com/cloo-solutions/newsrag/internal/service"
	"github.com/spf13/cobra"
)

// AskCmd returns the ask command
func AskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from the local index",
		Long:  "Open the index (building it if missing) and answer a question. Without a question the sample question is asked.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				question = service.SampleQuestion
			}

			noMigrate, _ := cmd.Flags().GetBool("no-migrate")
			p, err := openPipeline(ctx, cfg, !noMigrate)
			if err != nil {
				return err
			}
			defer p.Close()

			store, _, err := p.builder.Open(ctx, cfg.SourceDir, p.location)
			if err != nil {
				return err
			}

			answer, err := p.queryEngine().Answer(ctx, store, question)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Q: %s\n\n", question)
			fmt.Fprintln(out, strings.TrimSpace(answer.Text))
			if len(answer.Sources) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Sources:")
				for i, chunk := range answer.Sources {
					fmt.Fprintf(out, "  %d. %s (chunk %d)\n", i+1, chunk.Source, chunk.Index)
				}
			}
			return nil
		},
	}

	cmd.Flags().Bool("no-migrate", false, "Skip database migrations")

	return cmd
}
