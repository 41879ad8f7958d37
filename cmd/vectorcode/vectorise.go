package main

import (
	"github.com/spf13/cobra"

	"github.com/dshills/vectorcode/internal/app"
	"github.com/dshills/vectorcode/internal/config"
)

func vectoriseCmd(g *globalOptions) *cobra.Command {
	var (
		recursive bool
		force     bool
		chunks    chunkFlags
	)

	cmd := &cobra.Command{
		Use:     "vectorise [path]...",
		Aliases: []string{"vectorize"},
		Short:   "Add files to the project's collection",
		Long: "Chunk and store files, directories or glob patterns. Files ignored by .gitignore " +
			"are skipped unless --force is set. Unchanged files are skipped and records of " +
			"deleted files are removed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var o config.Overrides
			chunks.apply(cmd, &o)

			s, err := g.open(cmd, o)
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			stats, err := s.app.Vectorise(cmd.Context(), s.cfg, app.VectoriseOptions{
				Paths:     args,
				Recursive: recursive,
				Force:     force,
			})
			if err != nil {
				return err
			}
			return s.printer.Stats(*stats)
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "descend into subdirectories")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "include files ignored by .gitignore and vendored paths")
	chunks.register(cmd)
	return cmd
}
