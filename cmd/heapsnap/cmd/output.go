package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/heap-snapshot/pkg/writer"
)

// printJSON writes v as indented JSON.
func printJSON[T any](w io.Writer, v T) error {
	return writer.NewPrettyJSONWriter[T]().Write(v, w)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func bytesString(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}

func countString(n int) string {
	return humanize.Comma(int64(n))
}

func truncate(s string, maxLen int) string {
	if maxLen <= 3 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func heading(w io.Writer, title string) {
	fmt.Fprintf(w, "=== %s ===\n", title)
}

func indent(level int) string {
	return strings.Repeat("  ", level)
}
