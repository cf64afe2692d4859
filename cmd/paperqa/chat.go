package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperqa/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions interactively",
	Long: `Chat opens a terminal session for asking the collection one question after
another. Each answer is shown with the sources it cited.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	addQueryFlags(chatCmd)
	chatCmd.Flags().String("length", "", `answer length hint (default "about 100 words")`)

	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	template := requestFromFlags(cmd, "")

	ctx := cmd.Context()
	return withSession(ctx, func(s *session) error {
		if s.docs.Len() == 0 {
			return fmt.Errorf("the collection in %s is empty: add papers first", s.cfg.Collection.Dir)
		}
		title := fmt.Sprintf("paperqa: %d documents in %s", s.docs.Len(), s.cfg.Collection.Dir)
		if err := tui.Run(ctx, s.docs, template, title); err != nil {
			return err
		}
		return s.save(ctx)
	})
}
