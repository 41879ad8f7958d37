package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/vectorcode/internal/config"
)

func lsCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List the collections of the current user on this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.open(cmd, config.Overrides{})
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			infos, err := s.app.List(cmd.Context())
			if err != nil {
				return err
			}
			home, _ := os.UserHomeDir()
			return s.printer.Collections(infos, home)
		},
	}
}
