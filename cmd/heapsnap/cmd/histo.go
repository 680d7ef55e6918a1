package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/heap-snapshot/internal/parser/hprof"
	"github.com/heap-snapshot/internal/service"
	"github.com/heap-snapshot/pkg/filter"
	pkgmodel "github.com/heap-snapshot/pkg/model"
)

func newHistoCmd(opts *rootOptions) *cobra.Command {
	var (
		top              int
		appOnly          bool
		businessPrefixes []string
	)

	cmd := &cobra.Command{
		Use:   "histo <dump>",
		Short: "Print the class histogram",
		Long: `Print instances and shallow bytes per class, largest first. Each class is
categorized as primitive, jdk, framework, application or business; use
--business-prefix to name your own packages.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			key := args[0]
			return opts.withDump(ctx, key, nil, func(svc *service.Service, dump *hprof.Dump) error {
				svc.ClassFilter().AddBusinessPrefixes(businessPrefixes)
				summary, err := svc.Summarize(ctx, key, dump, opts.baseline)
				if err != nil {
					return err
				}

				var keep func(pkgmodel.ClassHistogramEntry) bool
				if appOnly {
					keep = func(e pkgmodel.ClassHistogramEntry) bool {
						return e.Category == filter.CategoryApplication.String() ||
							e.Category == filter.CategoryBusiness.String()
					}
				}
				rows := summary.TopClasses(top, keep)

				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), rows)
				}
				printHistogram(cmd.OutOrStdout(), rows, summary.HasBaseline())
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&top, "top", "n", 25, "Number of classes to print (0 for all)")
	cmd.Flags().BoolVar(&appOnly, "app-only", false, "Only application and business classes")
	cmd.Flags().StringSliceVar(&businessPrefixes, "business-prefix", nil, "Package prefixes of business classes")
	return cmd
}

func printHistogram(w io.Writer, rows []pkgmodel.ClassHistogramEntry, withNew bool) {
	tw := newTable(w)
	if withNew {
		fmt.Fprintln(tw, "#\tINSTANCES\tNEW\tBYTES\tCATEGORY\tCLASS")
	} else {
		fmt.Fprintln(tw, "#\tINSTANCES\tBYTES\tCATEGORY\tCLASS")
	}
	for i, e := range rows {
		if withNew {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", i+1, countString(e.Instances), countString(e.NewInstances),
				bytesString(e.Bytes), e.Category, truncate(e.ClassName, 100))
		} else {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, countString(e.Instances),
				bytesString(e.Bytes), e.Category, truncate(e.ClassName, 100))
		}
	}
	tw.Flush()
}
