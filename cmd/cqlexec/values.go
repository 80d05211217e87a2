package main

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/grafana/cqlexec/pkg/binding"
)

// number is the type jsoniter decodes numbers into with UseNumber.
type number interface {
	String() string
	Int64() (int64, error)
	Float64() (float64, error)
}

// parseValues decodes -values. An empty string means no values.
func parseValues(s string) (binding.Source, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var raw interface{}
	dec := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "parsing -values")
	}
	return toSource(normalize(raw))
}

// toSource turns a decoded sequence or mapping into a binding source.
func toSource(raw interface{}) (binding.Source, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []interface{}:
		return binding.PositionalFrom(v...)
	case map[string]interface{}:
		return binding.NamedFrom(v)
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(v))
		for k, x := range v {
			m[fmt.Sprint(k)] = x
		}
		return binding.NamedFrom(m)
	}
	return nil, errors.Errorf("values must be a list or a mapping, got %T", raw)
}

// normalize turns JSON numbers into int64 where they are integral and
// float64 otherwise.
func normalize(x interface{}) interface{} {
	switch v := x.(type) {
	case number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	case []interface{}:
		for i := range v {
			v[i] = normalize(v[i])
		}
		return v
	case map[string]interface{}:
		for k := range v {
			v[k] = normalize(v[k])
		}
		return v
	}
	return x
}
