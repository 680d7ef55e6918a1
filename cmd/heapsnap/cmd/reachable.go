package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heap-snapshot/internal/parser/hprof"
	"github.com/heap-snapshot/internal/service"
	"github.com/heap-snapshot/pkg/config"
)

type reachableView struct {
	Root           string   `json:"root"`
	Count          int      `json:"count"`
	TotalSize      int64    `json:"total_size"`
	ExcludedFields []string `json:"excluded_fields,omitempty"`
	UsedFields     []string `json:"used_fields,omitempty"`
	Objects        []string `json:"objects,omitempty"`
}

func newReachableCmd(opts *rootOptions) *cobra.Command {
	var (
		excludesFile string
		list         bool
	)

	cmd := &cobra.Command{
		Use:   "reachable <dump> <id>",
		Short: "Compute everything reachable from an object",
		Long: `Walk the graph from an object and report how many objects it keeps
reachable and their total size. Fields named in the excludes file
(one "package.Class.field" per line) are not followed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mutate := func(cfg *config.Config) {
				if excludesFile != "" {
					cfg.Snapshot.ExcludesFile = excludesFile
				}
			}
			return opts.withDump(ctx, args[0], mutate, func(svc *service.Service, dump *hprof.Dump) error {
				r, err := svc.Reachable(ctx, dump, args[1])
				if err != nil {
					return err
				}

				view := reachableView{
					Root:           r.Root().String(),
					Count:          len(r.Reachables()),
					TotalSize:      r.TotalSize(),
					ExcludedFields: r.ExcludedFields(),
					UsedFields:     r.UsedFields(),
				}
				if list {
					for _, o := range r.Reachables() {
						view.Objects = append(view.Objects, o.String())
					}
				}

				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), view)
				}

				w := cmd.OutOrStdout()
				heading(w, "Reachable from "+view.Root)
				fmt.Fprintf(w, "Objects:    %s\n", countString(view.Count))
				fmt.Fprintf(w, "Total size: %s\n", bytesString(view.TotalSize))
				for _, f := range view.ExcludedFields {
					fmt.Fprintf(w, "Excluded:   %s\n", f)
				}
				for _, f := range view.UsedFields {
					fmt.Fprintf(w, "Used:       %s\n", f)
				}
				if len(view.Objects) > 0 {
					fmt.Fprintln(w)
					for _, o := range view.Objects {
						fmt.Fprintf(w, "%s%s\n", indent(1), o)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&excludesFile, "excludes", "", "File of fields not to follow (overrides snapshot.excludes_file)")
	cmd.Flags().BoolVar(&list, "list", false, "List the reachable objects")
	return cmd
}
