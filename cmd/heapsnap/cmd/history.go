package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limitN int

	cmd := &cobra.Command{
		Use:   "history [dump]",
		Short: "List saved summaries, newest first",
		Long: `List the summaries stored with "summary --save". Without a dump every
saved summary is listed. Requires database.enabled.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var key string
			if len(args) == 1 {
				key = args[0]
			}

			svc, err := opts.newService(ctx, nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			summaries, err := svc.Summaries(ctx, key, limitN)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), summaries)
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "SAVED\tDUMP\tOBJECTS\tBYTES\tROOTS\tBASELINE")
			for _, s := range summaries {
				baseline := "-"
				if s.HasBaseline() {
					baseline = fmt.Sprintf("%s (+%s)", s.Baseline, countString(s.NewObjects))
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", humanize.Time(s.CreatedAt), s.Key,
					countString(s.Objects), bytesString(s.TotalBytes), countString(s.Roots), baseline)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limitN, "limit", "n", 20, "Summaries to list (0 for all)")
	return cmd
}

func newPruneCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prune <dump>",
		Short: "Delete the saved summaries of a dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := opts.newService(ctx, nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			n, err := svc.DeleteSummaries(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d summaries of %s\n", n, args[0])
			return nil
		},
	}
}
