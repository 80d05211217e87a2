package output

import (
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/grafana/cqlexec/pkg/result"
)

// JSONLOutput prints one JSON object per row, keyed by column name.
type JSONLOutput struct {
	w       io.Writer
	options *Options
}

func (o *JSONLOutput) Format(rs *result.ResultSet) error {
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(o.w)
	it := rs.Iterator()
	for it.Next() {
		m, err := it.Row().Map()
		if err != nil {
			return err
		}
		out := make(map[string]interface{}, len(m))
		for k, v := range m {
			out[k] = v.Native()
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	return it.Err()
}
