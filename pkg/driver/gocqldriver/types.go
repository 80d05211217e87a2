package gocqldriver

import (
	"github.com/gocql/gocql"

	"github.com/grafana/cqlexec/pkg/cqlerrors"
	"github.com/grafana/cqlexec/pkg/cqltypes"
)

// wireType translates gocql type metadata. gocql's type ids are the
// protocol option ids, so native types map by tag.
func wireType(info gocql.TypeInfo) (cqltypes.WireType, error) {
	switch info.Type() {
	case gocql.TypeVarchar:
		return cqltypes.TypeText, nil
	case gocql.TypeCustom:
		return cqltypes.WireType{}, cqlerrors.UnsupportedOperationf("custom type %s is not supported", info.Custom())

	case gocql.TypeList, gocql.TypeSet:
		ct := info.(gocql.CollectionType)
		elem, err := wireType(ct.Elem)
		if err != nil {
			return cqltypes.WireType{}, err
		}
		if info.Type() == gocql.TypeList {
			return cqltypes.ListOf(elem), nil
		}
		return cqltypes.SetOf(elem), nil

	case gocql.TypeMap:
		ct := info.(gocql.CollectionType)
		key, err := wireType(ct.Key)
		if err != nil {
			return cqltypes.WireType{}, err
		}
		val, err := wireType(ct.Elem)
		if err != nil {
			return cqltypes.WireType{}, err
		}
		return cqltypes.MapOf(key, val), nil

	case gocql.TypeTuple:
		tt := info.(gocql.TupleTypeInfo)
		elems := make([]cqltypes.WireType, len(tt.Elems))
		for i, e := range tt.Elems {
			t, err := wireType(e)
			if err != nil {
				return cqltypes.WireType{}, err
			}
			elems[i] = t
		}
		return cqltypes.TupleOf(elems...), nil

	case gocql.TypeUDT:
		ut := info.(gocql.UDTTypeInfo)
		fields := make([]cqltypes.Field, len(ut.Elements))
		for i, f := range ut.Elements {
			t, err := wireType(f.Type)
			if err != nil {
				return cqltypes.WireType{}, err
			}
			fields[i] = cqltypes.Field{Name: f.Name, Type: t}
		}
		return cqltypes.UDTOf(ut.KeySpace, ut.Name, fields...), nil
	}

	t, err := cqltypes.Native(cqltypes.Tag(info.Type()))
	if err != nil {
		return cqltypes.WireType{}, cqlerrors.UnsupportedOperationf("%v", err)
	}
	return t, nil
}

func columnSpecs(infos []gocql.ColumnInfo) ([]cqltypes.ColumnSpec, error) {
	if len(infos) == 0 {
		return nil, nil
	}
	cols := make([]cqltypes.ColumnSpec, len(infos))
	for i, info := range infos {
		t, err := wireType(info.TypeInfo)
		if err != nil {
			return nil, cqlerrors.Attribute(err, info.Name, i)
		}
		cols[i] = cqltypes.ColumnSpec{
			Keyspace: info.Keyspace,
			Table:    info.Table,
			Name:     info.Name,
			Position: i,
			Type:     t,
		}
	}
	return cols, nil
}

// rejectTupleMarkers fails for statements with tuple bind markers. gocql
// expects one argument per tuple member for those, which rules out passing
// the already encoded tuple.
func rejectTupleMarkers(cols []cqltypes.ColumnSpec) error {
	for i, c := range cols {
		if c.Type.Tag() == cqltypes.TagTuple {
			return cqlerrors.Attribute(cqlerrors.UnsupportedOperationf("tuple bind markers are not supported by this driver"), c.Name, i)
		}
	}
	return nil
}
