package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heap-snapshot/internal/parser/hprof"
	"github.com/heap-snapshot/internal/service"
	"github.com/heap-snapshot/pkg/compression"
	pkgmodel "github.com/heap-snapshot/pkg/model"
	"github.com/heap-snapshot/pkg/writer"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		output string
		level  int
	)

	cmd := &cobra.Command{
		Use:   "export <dump>",
		Short: "Write the summary and full class histogram to a JSON file",
		Long: `Write the summary with its complete class histogram as JSON. An output
name ending in .gz or .zst is compressed with gzip or zstd.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			key := args[0]
			return opts.withDump(ctx, key, nil, func(svc *service.Service, dump *hprof.Dump) error {
				summary, err := svc.Summarize(ctx, key, dump, opts.baseline)
				if err != nil {
					return err
				}

				w := writer.NewJSONWriter[*pkgmodel.SnapshotSummary]()
				w.Level = compression.Level(level)
				res, err := w.WriteToFile(summary, output)
				if err != nil {
					return err
				}

				if res.Compression == compression.TypeNone {
					fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s)\n", output, bytesString(res.FileSize))
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s, %s of %s JSON, %.1f%%)\n", output,
						bytesString(res.FileSize), res.Compression, bytesString(res.JSONSize), res.CompressionPct)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "summary.json", "Output file (.json, .json.gz or .json.zst)")
	cmd.Flags().IntVar(&level, "level", int(compression.LevelDefault), "Compression level (1 fastest to 9 best)")
	return cmd
}
