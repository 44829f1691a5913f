package admin

import (
	"fmt"
	"strings"

	"github.com/cloo-solutions/newsrag/internal/cli"
	"github.com/cloo-solutions/newsrag/internal/config"
	"github.com/cloo-solutions/newsrag/internal/fetch"
	"github.com/cloo-solutions/newsrag/internal/storage"
	"github.com/spf13/cobra"
)

// FetchCmd returns the fetch command
func FetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the article archive",
		Long:  "Download the article zip over HTTP(S) or from s3://bucket/key and extract it into the source directory",
		Args:  cobra.NoArgs,
		RunE:  runFetch,
	}

	cmd.Flags().String("url", "", "Archive URL (default NEWSRAG_ARCHIVE_URL)")
	cmd.Flags().String("dest", "", "Destination directory (default NEWSRAG_SOURCE_DIR)")
	cli.BindFlagEnv(cmd.Flags(), "url", "NEWSRAG_ARCHIVE_URL")
	cli.BindFlagEnv(cmd.Flags(), "dest", "NEWSRAG_SOURCE_DIR")
	cmd.Flags().Bool("force", false, "Download even if the destination already holds files")

	return cmd
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	opts := fetch.Options{URL: cfg.ArchiveURL, Dest: cfg.SourceDir}
	if url, _ := cmd.Flags().GetString("url"); url != "" {
		opts.URL = url
	}
	if dest, _ := cmd.Flags().GetString("dest"); dest != "" {
		opts.Dest = dest
	}
	opts.Force, _ = cmd.Flags().GetBool("force")

	var objects fetch.ObjectGetter
	if strings.HasPrefix(opts.URL, "s3://") {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			UsePathStyle:    cfg.S3Endpoint != "",
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		objects = s3Client
	}

	result, err := fetch.NewFetcher(nil, objects).Fetch(ctx, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if result.Skipped {
		fmt.Fprintf(out, "%s already holds articles (use --force to download again)\n", opts.Dest)
		return nil
	}
	fmt.Fprintf(out, "extracted %d files into %s\n", result.Files, opts.Dest)
	return nil
}
