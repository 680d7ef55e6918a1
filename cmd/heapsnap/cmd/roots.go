package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/heap-snapshot/internal/model"
	"github.com/heap-snapshot/internal/parser/hprof"
	"github.com/heap-snapshot/internal/service"
)

// rootView is the JSON shape of one GC root.
type rootView struct {
	Index       int      `json:"index"`
	Type        string   `json:"type"`
	Target      string   `json:"target"`
	Object      string   `json:"object,omitempty"`
	Referrer    string   `json:"referrer,omitempty"`
	Description string   `json:"description"`
	Trace       []string `json:"trace,omitempty"`
}

func newRootsCmd(opts *rootOptions) *cobra.Command {
	var (
		rootType string
		traces   bool
	)

	cmd := &cobra.Command{
		Use:   "roots <dump>",
		Short: "List the GC roots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withDump(ctx, args[0], nil, func(_ *service.Service, dump *hprof.Dump) error {
				var views []rootView
				for _, r := range dump.Snapshot.Roots() {
					if rootType != "" && !strings.EqualFold(r.TypeName(), rootType) {
						continue
					}
					views = append(views, newRootView(dump.Snapshot, r, traces))
				}

				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), views)
				}

				w := cmd.OutOrStdout()
				tw := newTable(w)
				fmt.Fprintln(tw, "#\tTYPE\tOBJECT\tDESCRIPTION")
				for _, v := range views {
					obj := v.Object
					if obj == "" {
						obj = v.Target + " (not in dump)"
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", v.Index, v.Type, truncate(obj, 80), v.Description)
				}
				tw.Flush()

				if traces {
					for _, v := range views {
						if len(v.Trace) == 0 {
							continue
						}
						fmt.Fprintf(w, "\nRoot %d:\n", v.Index)
						for _, f := range v.Trace {
							fmt.Fprintf(w, "%sat %s\n", indent(1), f)
						}
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&rootType, "type", "", `Only roots of this type, e.g. "Java Local"`)
	cmd.Flags().BoolVar(&traces, "traces", false, "Print the stack trace recorded with each root")
	return cmd
}

func newRootView(snap *model.Snapshot, r *model.Root, withTrace bool) rootView {
	v := rootView{
		Index:       r.Index(),
		Type:        r.TypeName(),
		Target:      r.ID().Hex(),
		Description: r.Description(),
	}
	if obj := snap.FindThing(r.ID()); obj != nil {
		v.Object = obj.String()
	}
	if ref := r.Referrer(); ref != nil {
		v.Referrer = ref.String()
	}
	if withTrace {
		v.Trace = frameStrings(r.StackTrace())
	}
	return v
}

func frameStrings(trace *model.StackTrace) []string {
	if trace == nil {
		return nil
	}
	frames := trace.Frames()
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, fmt.Sprintf("%s.%s%s (%s:%s)", f.ClassName, f.MethodName, f.MethodSignature, f.SourceFileName, f.LineNumber()))
	}
	return out
}
