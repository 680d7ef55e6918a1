package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/heap-snapshot/internal/model"
	"github.com/heap-snapshot/internal/parser/hprof"
	"github.com/heap-snapshot/internal/service"
)

// objectView is the JSON shape of one heap object.
type objectView struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Class     string            `json:"class,omitempty"`
	Size      int64             `json:"size"`
	New       bool              `json:"new,omitempty"`
	Root      string            `json:"root,omitempty"`
	Value     string            `json:"value,omitempty"`
	Fields    []fieldView       `json:"fields,omitempty"`
	Elements  []string          `json:"elements,omitempty"`
	Statics   []fieldView       `json:"statics,omitempty"`
	Details   *classDetailsView `json:"class_details,omitempty"`
	Referrers []string          `json:"referrers,omitempty"`
	SiteTrace []string          `json:"site_trace,omitempty"`
}

type fieldView struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

type classDetailsView struct {
	Superclass string   `json:"superclass,omitempty"`
	Loader     string   `json:"loader,omitempty"`
	Instances  int      `json:"instances"`
	Subclasses []string `json:"subclasses,omitempty"`
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	var maxElements int

	cmd := &cobra.Command{
		Use:   "show <dump> <id>",
		Short: "Print one object with its fields and referrers",
		Long: `Print a class, instance or array. The id is hex with a 0x prefix or
decimal. Referrers are listed when the dump was loaded with reference
calculation.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withDump(ctx, args[0], nil, func(svc *service.Service, dump *hprof.Dump) error {
				obj, err := svc.FindObject(dump, args[1])
				if err != nil {
					return err
				}
				view := newObjectView(dump.Snapshot, obj, maxElements)
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), view)
				}
				printObject(cmd.OutOrStdout(), view)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&maxElements, "max-elements", 50, "Array elements and referrers to print (0 for all)")
	return cmd
}

func limit(n, most int) int {
	if most > 0 && n > most {
		return most
	}
	return n
}

func newObjectView(snap *model.Snapshot, obj model.JavaHeapObject, maxElements int) objectView {
	v := objectView{
		ID:   obj.ID().Hex(),
		Kind: obj.Kind().String(),
		Size: obj.Size(),
		New:  obj.IsNew(),
	}
	if c := obj.Clazz(); c != nil {
		v.Class = c.Name()
	}
	if r := obj.Root(); r != nil {
		v.Root = r.Description()
	}

	switch o := obj.(type) {
	case *model.JavaClass:
		v.Class = o.Name()
		details := &classDetailsView{Instances: o.InstancesCount(false)}
		if sc := o.Superclass(); sc != nil {
			details.Superclass = sc.Name()
		}
		if l := o.Loader(); l != nil && l != snap.NullThing() {
			details.Loader = l.String()
		}
		for _, sub := range o.Subclasses() {
			details.Subclasses = append(details.Subclasses, sub.Name())
		}
		v.Details = details
		for _, st := range o.Statics() {
			v.Statics = append(v.Statics, fieldView{Name: st.Field().Name(), Type: st.Field().Signature(), Value: st.Value().String()})
		}
	case *model.JavaObject:
		values := o.Fields()
		for i, f := range o.Clazz().FieldsForInstance() {
			if i >= len(values) {
				break
			}
			v.Fields = append(v.Fields, fieldView{Name: f.Name(), Type: f.Signature(), Value: values[i].String()})
		}
	case *model.JavaObjectArray:
		elems := o.Elements()
		for _, e := range elems[:limit(len(elems), maxElements)] {
			v.Elements = append(v.Elements, e.String())
		}
	case *model.JavaValueArray:
		v.Value = o.ValueString(maxElements == 0)
	}

	if snap.State() == model.StateReferencesChased {
		refs := obj.Referrers()
		for _, r := range refs[:limit(len(refs), maxElements)] {
			v.Referrers = append(v.Referrers, r.String()+" ("+r.DescribeReferenceTo(obj)+")")
		}
	}
	v.SiteTrace = frameStrings(obj.SiteTrace())
	return v
}

func printObject(w io.Writer, v objectView) {
	heading(w, v.Kind+" "+v.ID)
	fmt.Fprintf(w, "Class:  %s\n", v.Class)
	fmt.Fprintf(w, "Size:   %s\n", bytesString(v.Size))
	if v.Root != "" {
		fmt.Fprintf(w, "Root:   %s\n", v.Root)
	}
	if v.New {
		fmt.Fprintln(w, "New:    yes")
	}
	if d := v.Details; d != nil {
		if d.Superclass != "" {
			fmt.Fprintf(w, "Super:  %s\n", d.Superclass)
		}
		if d.Loader != "" {
			fmt.Fprintf(w, "Loader: %s\n", d.Loader)
		}
		fmt.Fprintf(w, "Instances: %s\n", countString(d.Instances))
		for _, s := range d.Subclasses {
			fmt.Fprintf(w, "%ssubclass %s\n", indent(1), s)
		}
	}
	if v.Value != "" {
		fmt.Fprintf(w, "Value:  %s\n", v.Value)
	}

	printFields := func(title string, fields []fieldView) {
		if len(fields) == 0 {
			return
		}
		fmt.Fprintf(w, "\n%s:\n", title)
		tw := newTable(w)
		for _, f := range fields {
			fmt.Fprintf(tw, "%s%s\t%s\t%s\n", indent(1), f.Name, f.Type, truncate(f.Value, 100))
		}
		tw.Flush()
	}
	printFields("Fields", v.Fields)
	printFields("Statics", v.Statics)

	printList := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(w, "\n%s:\n", title)
		for _, it := range items {
			fmt.Fprintf(w, "%s%s\n", indent(1), it)
		}
	}
	printList("Elements", v.Elements)
	printList("Referrers", v.Referrers)
	printList("Allocated at", v.SiteTrace)
}
