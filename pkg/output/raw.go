package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/grafana/cqlexec/pkg/result"
)

// RawOutput prints the cells of each row separated by tabs, without header
// or summary.
type RawOutput struct {
	w       io.Writer
	options *Options
}

func (o *RawOutput) Format(rs *result.ResultSet) error {
	it := rs.Iterator()
	for it.Next() {
		values, err := it.Row().Values()
		if err != nil {
			return err
		}
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = Cell(v)
		}
		if _, err := fmt.Fprintln(o.w, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}
	return it.Err()
}
