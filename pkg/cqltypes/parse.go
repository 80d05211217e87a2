package cqltypes

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var typeLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Punct", Pattern: `[<>,.]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

type typeExpr struct {
	Name      string      `@Ident`
	Qualified string      `( "." @Ident )?`
	Params    []*typeExpr `( "<" @@ ( "," @@ )* ">" )?`
}

var typeParser = participle.MustBuild[typeExpr](
	participle.Lexer(typeLexer),
	participle.Elide("Whitespace"),
)

var typesByName = map[string]WireType{
	"ascii":     TypeAscii,
	"bigint":    TypeBigInt,
	"blob":      TypeBlob,
	"boolean":   TypeBoolean,
	"counter":   TypeCounter,
	"decimal":   TypeDecimal,
	"double":    TypeDouble,
	"float":     TypeFloat,
	"int":       TypeInt,
	"text":      TypeText,
	"varchar":   TypeText,
	"timestamp": TypeTimestamp,
	"uuid":      TypeUUID,
	"varint":    TypeVarint,
	"timeuuid":  TypeTimeUUID,
	"inet":      TypeInet,
	"date":      TypeDate,
	"time":      TypeTime,
	"smallint":  TypeSmallInt,
	"tinyint":   TypeTinyInt,
	"duration":  TypeDuration,
}

// ParseType parses a CQL type expression such as "map<text, frozen<list<int>>>".
// frozen<> is accepted and dropped. An unknown or keyspace-qualified name is
// taken as a reference to a user-defined type whose fields are not known.
func ParseType(s string) (WireType, error) {
	expr, err := typeParser.ParseString("", s)
	if err != nil {
		return WireType{}, fmt.Errorf("invalid type %q: %w", s, err)
	}
	t, err := expr.resolve()
	if err != nil {
		return WireType{}, fmt.Errorf("invalid type %q: %w", s, err)
	}
	return t, nil
}

// MustParseType is like ParseType but panics on error.
func MustParseType(s string) WireType {
	t, err := ParseType(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (e *typeExpr) resolve() (WireType, error) {
	if e.Qualified != "" {
		if len(e.Params) > 0 {
			return WireType{}, fmt.Errorf("user type %s.%s takes no parameters", e.Name, e.Qualified)
		}
		return UDTOf(e.Name, e.Qualified), nil
	}

	params := make([]WireType, len(e.Params))
	for i, p := range e.Params {
		t, err := p.resolve()
		if err != nil {
			return WireType{}, err
		}
		params[i] = t
	}

	name := strings.ToLower(e.Name)
	arity := func(n int) error {
		if len(params) != n {
			return fmt.Errorf("%s expects %d type parameters, got %d", name, n, len(params))
		}
		return nil
	}
	switch name {
	case "frozen":
		if err := arity(1); err != nil {
			return WireType{}, err
		}
		return params[0], nil
	case "list":
		if err := arity(1); err != nil {
			return WireType{}, err
		}
		return ListOf(params[0]), nil
	case "set":
		if err := arity(1); err != nil {
			return WireType{}, err
		}
		return SetOf(params[0]), nil
	case "map":
		if err := arity(2); err != nil {
			return WireType{}, err
		}
		return MapOf(params[0], params[1]), nil
	case "tuple":
		if len(params) == 0 {
			return WireType{}, fmt.Errorf("tuple needs at least one type parameter")
		}
		return TupleOf(params...), nil
	}

	if t, ok := typesByName[name]; ok {
		if err := arity(0); err != nil {
			return WireType{}, err
		}
		return t, nil
	}
	if len(params) > 0 {
		return WireType{}, fmt.Errorf("unknown parameterised type %s", e.Name)
	}
	return UDTOf("", e.Name), nil
}
