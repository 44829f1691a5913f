package admin

import (
	"fmt"

	"github.com/spf13/cobra"
)

// IndexCmd returns the index command group
func IndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build and inspect the persisted index",
	}

	cmd.AddCommand(indexBuildCmd())
	cmd.AddCommand(indexStatusCmd())

	return cmd
}

func indexBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the index from the source directory",
		Long:  "Chunk and embed every article in the source directory and persist the index. An existing index is kept unless --force is given.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			noMigrate, _ := cmd.Flags().GetBool("no-migrate")
			p, err := openPipeline(ctx, cfg, !noMigrate)
			if err != nil {
				return err
			}
			defer p.Close()

			force, _ := cmd.Flags().GetBool("force")
			out := cmd.OutOrStdout()

			if force {
				store, err := p.builder.Rebuild(ctx, cfg.SourceDir, p.location)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "rebuilt index at %s: %d entries\n", p.location, store.Len())
				return nil
			}

			store, err := p.builder.BuildIfMissing(ctx, cfg.SourceDir, p.location)
			if err != nil {
				return err
			}
			if store == nil {
				fmt.Fprintf(out, "index already exists at %s (use --force to rebuild)\n", p.location)
				return nil
			}
			fmt.Fprintf(out, "built index at %s: %d entries\n", p.location, store.Len())
			return nil
		},
	}

	cmd.Flags().Bool("force", false, "Rebuild even if an index already exists")
	cmd.Flags().Bool("no-migrate", false, "Skip database migrations")

	return cmd
}

func indexStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the persisted index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			p, err := openPipeline(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer p.Close()

			out := cmd.OutOrStdout()

			exists, err := p.persister.Exists(ctx, p.location)
			if err != nil {
				return err
			}
			if !exists {
				fmt.Fprintf(out, "no index at %s\n", p.location)
				return nil
			}

			store, err := p.persister.Load(ctx, p.location)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Location: %s\n", p.location)
			fmt.Fprintf(out, "Entries: %d\n", store.Len())
			fmt.Fprintf(out, "Dimensions: %d\n", store.Dimensions())
			fmt.Fprintf(out, "Provider: %s\n", store.Provider())
			return nil
		},
	}
}
