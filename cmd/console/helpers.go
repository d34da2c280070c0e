package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

var (
	bold = color.New(color.Bold)
	dim  = color.New(color.Faint)
	cyan = color.New(color.FgCyan)
	mag  = color.New(color.FgMagenta, color.Bold)
)

// table writes aligned rows. Cells stay uncolored since escape codes would
// skew the column widths.
type table struct {
	w *tabwriter.Writer
}

func newTable(out io.Writer, headers ...string) *table {
	t := &table{w: tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)}
	fmt.Fprintln(t.w, strings.Join(headers, "\t"))
	return t
}

func (t *table) row(cells ...string) {
	fmt.Fprintln(t.w, strings.Join(cells, "\t"))
}

func (t *table) flush() error {
	return t.w.Flush()
}

func ago(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return humanize.Time(ts)
}
