package cmd

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/heap-snapshot/internal/parser/hprof"
	"github.com/heap-snapshot/internal/service"
	pkgmodel "github.com/heap-snapshot/pkg/model"
)

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "summary <dump>",
		Short: "Print the totals of a heap dump",
		Long: `Print the header, object and byte totals and the GC roots by type of a
heap dump. With --save the summary and its class histogram are stored in the
summary database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			key := args[0]
			return opts.withDump(ctx, key, nil, func(svc *service.Service, dump *hprof.Dump) error {
				summary, err := svc.Summarize(ctx, key, dump, opts.baseline)
				if err != nil {
					return err
				}
				if save {
					if _, err := svc.Persist(ctx, summary); err != nil {
						return err
					}
				}
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), summary)
				}
				printSummary(cmd.OutOrStdout(), summary, dump.Stats)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Store the summary in the database")
	return cmd
}

func printSummary(w io.Writer, s *pkgmodel.SnapshotSummary, stats hprof.Stats) {
	heading(w, "Heap Dump")
	fmt.Fprintf(w, "Dump:       %s\n", s.Key)
	fmt.Fprintf(w, "Format:     %s (id size %d)\n", s.Format, s.IDSize)
	if !s.DumpedAt.IsZero() {
		fmt.Fprintf(w, "Dumped:     %s (%s)\n", s.DumpedAt.Format("2006-01-02 15:04:05"), humanize.Time(s.DumpedAt))
	}
	fmt.Fprintf(w, "Classes:    %s\n", countString(s.Classes))
	fmt.Fprintf(w, "Objects:    %s (%s)\n", countString(s.Objects), bytesString(s.TotalBytes))
	fmt.Fprintf(w, "Roots:      %s\n", countString(s.Roots))
	if s.HasBaseline() {
		fmt.Fprintf(w, "New:        %s objects not in %s\n", countString(s.NewObjects), s.Baseline)
	}
	if stats.UnknownTags > 0 {
		fmt.Fprintf(w, "Skipped:    %s unknown records (%s)\n", humanize.Comma(stats.UnknownTags), bytesString(stats.SkippedBytes))
	}
	fmt.Fprintln(w)

	heading(w, "Roots by Type")
	tw := newTable(w)
	for _, name := range s.RootTypes() {
		fmt.Fprintf(tw, "%s%s\t%s\n", indent(1), name, countString(s.RootsByType[name]))
	}
	tw.Flush()
}
