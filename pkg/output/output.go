// Package output renders result sets for the command line.
package output

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/grafana/cqlexec/pkg/result"
)

// Blue color is excluded since we are already printing column names
// using blue color.
var colorList = []*color.Color{
	color.New(color.FgHiCyan),
	color.New(color.FgCyan),
	color.New(color.FgHiGreen),
	color.New(color.FgGreen),
	color.New(color.FgHiMagenta),
	color.New(color.FgMagenta),
	color.New(color.FgHiYellow),
	color.New(color.FgYellow),
	color.New(color.FgHiRed),
	color.New(color.FgRed),
}

// RowOutput is the interface any output mode must implement.
type RowOutput interface {
	Format(rs *result.ResultSet) error
}

// Options is the set of options that can be used to configure a
// RowOutput.
type Options struct {
	NoHeader      bool
	ColoredOutput bool
}

// NewRowOutput creates an output for the given mode: table, jsonl or raw.
func NewRowOutput(w io.Writer, mode string, options *Options) (RowOutput, error) {
	if options == nil {
		options = &Options{}
	}

	switch mode {
	case "table":
		return &TableOutput{w: w, options: options}, nil
	case "jsonl":
		return &JSONLOutput{w: w, options: options}, nil
	case "raw":
		return &RawOutput{w: w, options: options}, nil
	default:
		return nil, fmt.Errorf("unknown output mode %q", mode)
	}
}
