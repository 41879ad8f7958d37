package main

import (
	"github.com/spf13/cobra"

	"github.com/dshills/vectorcode/internal/config"
	"github.com/dshills/vectorcode/internal/mcp"
)

func serveCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: "Serve the query, vectorise and ls tools over the Model Context Protocol. " +
			"Each request names its project; project configs and collections are cached.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.open(cmd, config.Overrides{})
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			s.logger.Info("starting vectorcode MCP server", "version", version, "backend", s.cfg.DBBackend)
			return mcp.NewServer(s.app, version, s.logger).Serve(cmd.Context())
		},
	}
}
