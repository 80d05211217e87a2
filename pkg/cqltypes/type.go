package cqltypes

import (
	"fmt"
	"strings"
)

// Tag identifies a wire type. Values match the option ids of the native
// protocol so drivers can translate without a lookup table.
type Tag uint16

const (
	TagAscii     Tag = 0x0001
	TagBigInt    Tag = 0x0002
	TagBlob      Tag = 0x0003
	TagBoolean   Tag = 0x0004
	TagCounter   Tag = 0x0005
	TagDecimal   Tag = 0x0006
	TagDouble    Tag = 0x0007
	TagFloat     Tag = 0x0008
	TagInt       Tag = 0x0009
	TagText      Tag = 0x000A
	TagTimestamp Tag = 0x000B
	TagUUID      Tag = 0x000C
	TagVarint    Tag = 0x000E
	TagTimeUUID  Tag = 0x000F
	TagInet      Tag = 0x0010
	TagDate      Tag = 0x0011
	TagTime      Tag = 0x0012
	TagSmallInt  Tag = 0x0013
	TagTinyInt   Tag = 0x0014
	TagDuration  Tag = 0x0015
	TagList      Tag = 0x0020
	TagMap       Tag = 0x0021
	TagSet       Tag = 0x0022
	TagUDT       Tag = 0x0030
	TagTuple     Tag = 0x0031
)

var tagNames = map[Tag]string{
	TagAscii:     "ascii",
	TagBigInt:    "bigint",
	TagBlob:      "blob",
	TagBoolean:   "boolean",
	TagCounter:   "counter",
	TagDecimal:   "decimal",
	TagDouble:    "double",
	TagFloat:     "float",
	TagInt:       "int",
	TagText:      "text",
	TagTimestamp: "timestamp",
	TagUUID:      "uuid",
	TagVarint:    "varint",
	TagTimeUUID:  "timeuuid",
	TagInet:      "inet",
	TagDate:      "date",
	TagTime:      "time",
	TagSmallInt:  "smallint",
	TagTinyInt:   "tinyint",
	TagDuration:  "duration",
	TagList:      "list",
	TagMap:       "map",
	TagSet:       "set",
	TagUDT:       "udt",
	TagTuple:     "tuple",
}

func (t Tag) String() string {
	if n, ok := tagNames[t]; ok {
		return n
	}
	return fmt.Sprintf("unknown(0x%04x)", uint16(t))
}

// Field is one named, typed member of a user-defined type.
type Field struct {
	Name string
	Type WireType
}

// WireType is the protocol type of a column or value. It is an immutable
// value; parameterised types carry their element types.
type WireType struct {
	tag Tag
	// list/set: [elem]; map: [key, value]; tuple: members.
	elems []WireType
	udt   *udtDef
}

type udtDef struct {
	keyspace string
	name     string
	fields   []Field
}

// Native wire types.
var (
	TypeAscii     = WireType{tag: TagAscii}
	TypeBigInt    = WireType{tag: TagBigInt}
	TypeBlob      = WireType{tag: TagBlob}
	TypeBoolean   = WireType{tag: TagBoolean}
	TypeCounter   = WireType{tag: TagCounter}
	TypeDecimal   = WireType{tag: TagDecimal}
	TypeDouble    = WireType{tag: TagDouble}
	TypeFloat     = WireType{tag: TagFloat}
	TypeInt       = WireType{tag: TagInt}
	TypeText      = WireType{tag: TagText}
	TypeTimestamp = WireType{tag: TagTimestamp}
	TypeUUID      = WireType{tag: TagUUID}
	TypeVarint    = WireType{tag: TagVarint}
	TypeTimeUUID  = WireType{tag: TagTimeUUID}
	TypeInet      = WireType{tag: TagInet}
	TypeDate      = WireType{tag: TagDate}
	TypeTime      = WireType{tag: TagTime}
	TypeSmallInt  = WireType{tag: TagSmallInt}
	TypeTinyInt   = WireType{tag: TagTinyInt}
	TypeDuration  = WireType{tag: TagDuration}
)

// Native returns the wire type for a non-parameterised tag.
func Native(tag Tag) (WireType, error) {
	switch tag {
	case TagList, TagMap, TagSet, TagUDT, TagTuple:
		return WireType{}, fmt.Errorf("%s is not a native type", tag)
	}
	if _, ok := tagNames[tag]; !ok {
		return WireType{}, fmt.Errorf("unknown type tag 0x%04x", uint16(tag))
	}
	return WireType{tag: tag}, nil
}

func ListOf(elem WireType) WireType {
	return WireType{tag: TagList, elems: []WireType{elem}}
}

func SetOf(elem WireType) WireType {
	return WireType{tag: TagSet, elems: []WireType{elem}}
}

func MapOf(key, value WireType) WireType {
	return WireType{tag: TagMap, elems: []WireType{key, value}}
}

func TupleOf(elems ...WireType) WireType {
	return WireType{tag: TagTuple, elems: append([]WireType(nil), elems...)}
}

func UDTOf(keyspace, name string, fields ...Field) WireType {
	return WireType{tag: TagUDT, udt: &udtDef{
		keyspace: keyspace,
		name:     name,
		fields:   append([]Field(nil), fields...),
	}}
}

func (t WireType) Tag() Tag { return t.tag }

// IsValid reports whether t was built by one of the constructors.
func (t WireType) IsValid() bool { return t.tag != 0 }

// IsCollection reports list, set and map types.
func (t WireType) IsCollection() bool {
	return t.tag == TagList || t.tag == TagSet || t.tag == TagMap
}

// Elem is the element type of a list or set, and the value type of a map.
func (t WireType) Elem() WireType {
	switch t.tag {
	case TagList, TagSet:
		return t.elems[0]
	case TagMap:
		return t.elems[1]
	}
	return WireType{}
}

// Key is the key type of a map.
func (t WireType) Key() WireType {
	if t.tag == TagMap {
		return t.elems[0]
	}
	return WireType{}
}

// Elems are the member types of a tuple. The slice must not be modified.
func (t WireType) Elems() []WireType {
	if t.tag == TagTuple {
		return t.elems
	}
	return nil
}

// Fields are the members of a user-defined type. The slice must not be modified.
func (t WireType) Fields() []Field {
	if t.udt == nil {
		return nil
	}
	return t.udt.fields
}

func (t WireType) UDTName() string {
	if t.udt == nil {
		return ""
	}
	return t.udt.name
}

func (t WireType) Keyspace() string {
	if t.udt == nil {
		return ""
	}
	return t.udt.keyspace
}

// Equal reports structural equality.
func (t WireType) Equal(o WireType) bool {
	if t.tag != o.tag || len(t.elems) != len(o.elems) {
		return false
	}
	for i := range t.elems {
		if !t.elems[i].Equal(o.elems[i]) {
			return false
		}
	}
	if t.tag != TagUDT {
		return true
	}
	if t.udt.keyspace != o.udt.keyspace || t.udt.name != o.udt.name || len(t.udt.fields) != len(o.udt.fields) {
		return false
	}
	for i, f := range t.udt.fields {
		of := o.udt.fields[i]
		if f.Name != of.Name || !f.Type.Equal(of.Type) {
			return false
		}
	}
	return true
}

// String renders t in CQL type syntax.
func (t WireType) String() string {
	switch t.tag {
	case 0:
		return "<invalid>"
	case TagList, TagSet:
		return fmt.Sprintf("%s<%s>", t.tag, t.elems[0])
	case TagMap:
		return fmt.Sprintf("map<%s, %s>", t.elems[0], t.elems[1])
	case TagTuple:
		parts := make([]string, len(t.elems))
		for i, e := range t.elems {
			parts[i] = e.String()
		}
		return "tuple<" + strings.Join(parts, ", ") + ">"
	case TagUDT:
		if t.udt.keyspace != "" {
			return t.udt.keyspace + "." + t.udt.name
		}
		return t.udt.name
	}
	return t.tag.String()
}

// ColumnSpec describes one bind marker or result column. Specs obtained
// from the server are shared read-only by every execution of a statement.
type ColumnSpec struct {
	Keyspace string
	Table    string
	Name     string
	Position int
	Type     WireType
}

func (c ColumnSpec) String() string {
	return fmt.Sprintf("%s %s", c.Name, c.Type)
}

// SameColumns reports whether two column lists have the same names and types
// in the same order.
func SameColumns(a, b []ColumnSpec) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || !a[i].Type.Equal(b[i].Type) {
			return false
		}
	}
	return true
}
