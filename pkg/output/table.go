package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/grafana/cqlexec/pkg/cqltypes"
	"github.com/grafana/cqlexec/pkg/result"
)

// TableOutput prints rows as aligned columns under a header line, followed
// by a summary of the row count, tracing id and server warnings.
type TableOutput struct {
	w       io.Writer
	options *Options
}

func (o *TableOutput) Format(rs *result.ResultSet) error {
	tw := tabwriter.NewWriter(o.w, 0, 4, 2, ' ', 0)
	cols := rs.Columns()

	if !o.options.NoHeader && len(cols) > 0 {
		names := make([]string, len(cols))
		for i, c := range cols {
			names[i] = o.paint(color.New(color.FgBlue, color.Bold), c.Name)
		}
		fmt.Fprintln(tw, strings.Join(names, "\t"))
	}

	it := rs.Iterator()
	for it.Next() {
		values, err := it.Row().Values()
		if err != nil {
			return err
		}
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = o.paint(colorList[i%len(colorList)], Cell(v))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := it.Err(); err != nil {
		return err
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if o.options.NoHeader {
		return nil
	}
	fmt.Fprintf(o.w, "\n(%s rows)\n", humanize.Comma(int64(rs.Len())))
	if id := rs.TracingID(); id != "" {
		fmt.Fprintf(o.w, "Tracing session: %s\n", id)
	}
	for _, w := range rs.Warnings() {
		fmt.Fprintf(o.w, "%s %s\n", o.paint(color.New(color.FgYellow), "Warning:"), w)
	}
	return nil
}

func (o *TableOutput) paint(c *color.Color, s string) string {
	if !o.options.ColoredOutput {
		return s
	}
	return c.Sprint(s)
}

// Cell renders v for display. Top-level text is printed unquoted.
func Cell(v cqltypes.Value) string {
	if v.Kind() == cqltypes.KindText {
		return v.Text()
	}
	return v.String()
}
