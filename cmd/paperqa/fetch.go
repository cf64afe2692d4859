package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperqa/internal/acquire"
	"github.com/pdiddy/paperqa/internal/library"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [identifiers...]",
	Short: "Download papers from URLs, DOIs, or arXiv IDs",
	Long: `Fetch resolves paper identifiers (arXiv IDs, DOIs, direct PDF URLs) to PDF
files, downloads them into the papers directory and writes a metadata file
beside each one. Existing papers are skipped. With --add the papers
directory is synced into the collection afterwards, using the fetched
metadata for citations.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default from config)")
	fetchCmd.Flags().Duration("delay", 0, "delay between consecutive downloads (default from config)")
	fetchCmd.Flags().String("papers-dir", "", "directory for downloaded papers (default from config)")
	fetchCmd.Flags().Bool("add", false, "add the downloaded papers to the collection")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more paper identifiers (arXiv IDs, DOIs, or URLs)")
	}

	cfg := loadConfig()
	if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
		cfg.Acquire.Timeout = timeout
	}
	if delay, _ := cmd.Flags().GetDuration("delay"); delay > 0 {
		cfg.Acquire.DownloadDelay = delay
	}
	if dir, _ := cmd.Flags().GetString("papers-dir"); dir != "" {
		cfg.Acquire.PapersDir = dir
	}
	add, _ := cmd.Flags().GetBool("add")

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	result := acquire.AcquireBatch(ctx, httpClient(cfg.Acquire.HTTPConfig), args, cfg.Acquire, out)

	if add && len(result.Papers) > 0 {
		s, err := openSession(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()
		if _, err := library.Sync(ctx, cfg.Acquire.PapersDir, s.docs, library.Options{
			Out:      out,
			Logger:   logger,
			AfterAdd: s.save,
		}); err != nil {
			return err
		}
	}

	if result.HasFailures() {
		return fmt.Errorf("%d paper(s) failed acquisition", result.Failed)
	}
	return nil
}
