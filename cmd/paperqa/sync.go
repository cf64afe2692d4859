package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperqa/internal/library"
)

var syncCmd = &cobra.Command{
	Use:   "sync [dir]",
	Short: "Add every paper in a directory to the collection",
	Long: `Sync walks a directory (default: the papers directory) and adds each PDF,
text or markdown file the collection does not hold yet. Metadata written by
fetch supplies citations and keys. With --watch, sync keeps running and adds
files as they appear until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().Bool("watch", false, "keep watching the directory for new papers")
	syncCmd.Flags().Bool("no-text-check", false, "skip the check that the extracted text is readable")
	syncCmd.Flags().Duration("settle", library.DefaultSettle, "how long a new file must be unchanged before it is added")

	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	dir := cfg.Acquire.PapersDir
	if len(args) == 1 {
		dir = args[0]
	}
	watch, _ := cmd.Flags().GetBool("watch")
	noCheck, _ := cmd.Flags().GetBool("no-text-check")
	settle, _ := cmd.Flags().GetDuration("settle")

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	opts := library.Options{
		Out:              out,
		Logger:           logger,
		DisableTextCheck: noCheck,
		AfterAdd:         s.save,
		Settle:           settle,
	}
	if watch {
		fmt.Fprintf(out, "watching %s (Ctrl+C to stop)\n", dir)
		return library.Watch(ctx, dir, s.docs, opts)
	}

	res, err := library.Sync(ctx, dir, s.docs, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nSync summary: %d added, %d already present, %d failed\n", len(res.Added), res.Present, res.Failed)
	if res.Failed > 0 {
		return fmt.Errorf("%d file(s) could not be added", res.Failed)
	}
	return nil
}
