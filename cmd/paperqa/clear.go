package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every document and the vector index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withSession(ctx, func(s *session) error {
			n := s.docs.Len()
			if err := s.docs.Clear(ctx); err != nil {
				return err
			}
			if err := s.save(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d documents\n", n)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
}
