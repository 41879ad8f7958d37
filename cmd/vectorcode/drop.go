package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/vectorcode/internal/config"
)

func dropCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drop",
		Short: "Delete the collection of the current project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.open(cmd, config.Overrides{})
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			if err := s.app.Drop(cmd.Context(), s.cfg); err != nil {
				return err
			}
			if !s.printer.Pipe() {
				fmt.Fprintf(cmd.OutOrStdout(), "Collection for %s has been deleted.\n", s.cfg.ProjectRoot)
			}
			return nil
		},
	}
}
