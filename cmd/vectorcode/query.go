package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/vectorcode/internal/config"
)

// chunkFlags are the chunking flags shared by query and vectorise
type chunkFlags struct {
	chunkSize int
	overlap   float64
}

func (f *chunkFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.chunkSize, "chunk_size", "c", -1, "chunk size in characters; -1 disables chunking")
	cmd.Flags().Float64VarP(&f.overlap, "overlap", "o", 0.2, "overlap ratio between consecutive chunks, in [0, 1)")
}

func (f *chunkFlags) apply(cmd *cobra.Command, o *config.Overrides) {
	if cmd.Flags().Changed("chunk_size") {
		o.ChunkSize = &f.chunkSize
	}
	if cmd.Flags().Changed("overlap") {
		o.OverlapRatio = &f.overlap
	}
}

func queryCmd(g *globalOptions) *cobra.Command {
	var (
		number     int
		absolute   bool
		exclude    []string
		multiplier int
		reranker   string
		chunks     chunkFlags
	)

	cmd := &cobra.Command{
		Use:   "query <text>...",
		Short: "Retrieve the files most relevant to the query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var o config.Overrides
			if cmd.Flags().Changed("number") {
				o.NResult = &number
			}
			if cmd.Flags().Changed("multiplier") {
				o.QueryMultiplier = &multiplier
			}
			if cmd.Flags().Changed("reranker") {
				o.Reranker = &reranker
			}
			o.Exclude = exclude
			chunks.apply(cmd, &o)

			s, err := g.open(cmd, o)
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			resp, err := s.app.Query(cmd.Context(), s.cfg, args, absolute)
			if err != nil {
				return err
			}
			if resp.NoData {
				fmt.Fprintln(cmd.ErrOrStderr(), "Empty collection!")
				return nil
			}
			s.logger.Debug("query complete", "results", len(resp.Results), "stale", len(resp.Stale), "duration", resp.Duration)
			return s.printer.Results(resp.Results)
		},
	}

	cmd.Flags().IntVarP(&number, "number", "n", 1, "number of files to retrieve")
	cmd.Flags().BoolVar(&absolute, "absolute", false, "print absolute paths")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "files or globs to leave out of the results")
	cmd.Flags().IntVar(&multiplier, "multiplier", -1, "candidates fetched per chunk, as a multiple of --number; -1 fetches every record")
	cmd.Flags().StringVar(&reranker, "reranker", "", "reranker: mean-distance, cross-encoder or a cross-encoder model name")
	chunks.register(cmd)
	return cmd
}
