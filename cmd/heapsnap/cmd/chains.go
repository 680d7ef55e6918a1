package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heap-snapshot/internal/parser/hprof"
	"github.com/heap-snapshot/internal/service"
)

// chainLink is one step of a reference chain. Via describes how the link
// refers to the next one.
type chainLink struct {
	Object string `json:"object"`
	Via    string `json:"via,omitempty"`
}

type chainView struct {
	Root  string      `json:"root"`
	Links []chainLink `json:"links"`
}

func newChainsCmd(opts *rootOptions) *cobra.Command {
	var (
		includeWeak bool
		maxChains   int
	)

	cmd := &cobra.Command{
		Use:   "chains <dump> <id>",
		Short: "Show the reference chains from GC roots to an object",
		Long: `Find the shortest chains of references from rooted objects to an object,
explaining what keeps it alive. References held only by weak references are
skipped unless --include-weak is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withDump(ctx, args[0], nil, func(svc *service.Service, dump *hprof.Dump) error {
				chains, err := svc.Chains(ctx, dump, args[1], includeWeak)
				if err != nil {
					return err
				}

				views := make([]chainView, 0, len(chains))
				for _, c := range chains[:limit(len(chains), maxChains)] {
					objs := c.Objects()
					view := chainView{}
					if r := objs[0].Root(); r != nil {
						view.Root = r.Description()
					}
					for i, o := range objs {
						link := chainLink{Object: o.String()}
						if i+1 < len(objs) {
							link.Via = o.DescribeReferenceTo(objs[i+1])
						}
						view.Links = append(view.Links, link)
					}
					views = append(views, view)
				}

				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), views)
				}

				w := cmd.OutOrStdout()
				if len(views) == 0 {
					fmt.Fprintln(w, "No chains from the rootset.")
					return nil
				}
				for i, v := range views {
					fmt.Fprintf(w, "Chain %d (%s):\n", i+1, v.Root)
					for depth, l := range v.Links {
						fmt.Fprintf(w, "%s%s\n", indent(depth+1), l.Object)
						if l.Via != "" {
							fmt.Fprintf(w, "%s-> %s\n", indent(depth+1), l.Via)
						}
					}
				}
				if len(chains) > len(views) {
					fmt.Fprintf(w, "... and %d more chains\n", len(chains)-len(views))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&includeWeak, "include-weak", false, "Follow referrers that only hold the object weakly")
	cmd.Flags().IntVar(&maxChains, "max", 20, "Chains to print (0 for all)")
	return cmd
}
