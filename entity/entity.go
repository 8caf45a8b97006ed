// Package entity defines the closed set of database object types managed by
// the reconciler, together with the attribute registry: the fixed, ordered set
// of comparable and alterable attributes per type.
package entity

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Type int

const (
	Server Type = iota
	Database
	Schema
	Table
	Column
	PrimaryKey
	Index
	ForeignKey
	Partition
	Login
	User
)

var typeNames = map[Type]string{
	Server:     "servers",
	Database:   "databases",
	Schema:     "schemas",
	Table:      "tables",
	Column:     "columns",
	PrimaryKey: "primary_keys",
	Index:      "indexes",
	ForeignKey: "foreign_keys",
	Partition:  "partitions",
	Login:      "logins",
	User:       "users",
}

func (t Type) String() string {
	name, ok := typeNames[t]
	if !ok {
		panic(fmt.Sprintf("unknown entity type: %d", int(t)))
	}
	return name
}

// Types lists every entity type, parents before children.
func Types() []Type {
	return []Type{Server, Database, Schema, Table, Column, PrimaryKey, Index, ForeignKey, Partition, Login, User}
}

// Kind selects the canonical equality rule for an attribute value.
type Kind int

const (
	// KindString compares exactly; nil means NULL.
	KindString Kind = iota
	// KindFoldedString compares case-insensitively.
	KindFoldedString
	// KindInt compares numerically across int/int64; nil means NULL.
	KindInt
	// KindBool compares as bool.
	KindBool
	// KindColumns compares ordered column-name lists, case-insensitively.
	KindColumns
	// KindNameSet compares name collections ignoring order and duplicates.
	KindNameSet
)

type Attribute struct {
	Name string
	Kind Kind
}

var attributes = map[Type][]Attribute{
	Login: {
		{"type_desc", KindFoldedString},
		{"server_roles", KindNameSet},
		{"password", KindString},
	},
	Database: {
		{"recovery_model_desc", KindFoldedString},
		{"data_size", KindInt},
		{"log_size", KindInt},
		{"owner", KindString},
		{"data_file_path", KindString},
		{"log_file_path", KindString},
	},
	Column: {
		{"data_type", KindFoldedString},
		{"char_max_len", KindInt},
		{"datetime_precision", KindInt},
		{"numeric_precision", KindInt},
		{"numeric_scale", KindInt},
		{"nullable", KindBool},
		{"identity", KindBool},
	},
	ForeignKey: {
		{"foreign_schema", KindFoldedString},
		{"foreign_table", KindFoldedString},
		{"foreign_column", KindFoldedString},
		{"column", KindFoldedString},
	},
	PrimaryKey: {
		{"columns", KindColumns},
		{"clustered", KindBool},
		{"compression", KindFoldedString},
	},
	Index: {
		{"columns", KindColumns},
		{"clustered", KindBool},
		{"compression", KindFoldedString},
		{"included_columns", KindNameSet},
		{"unique", KindBool},
	},
	User: {
		{"login_name", KindFoldedString},
		{"db_roles", KindNameSet},
	},
	Partition: {
		{"column", KindFoldedString},
	},
	Table:  {},
	Schema: {},
	Server: {},
}

// Attributes returns the registry attribute set for a type. The set is fixed
// for the life of the process; callers must not mutate it. A type missing
// from the registry is a programming error.
func Attributes(t Type) []Attribute {
	attrs, ok := attributes[t]
	if !ok {
		panic(fmt.Sprintf("entity type %q has no attribute registry entry", t))
	}
	return attrs
}

// AttrKind reports the value kind for an attribute of a type.
func AttrKind(t Type, name string) (Kind, bool) {
	for _, attr := range Attributes(t) {
		if attr.Name == name {
			return attr.Kind, true
		}
	}
	return 0, false
}

var childTypes = map[Type][]Type{
	Server:     {Login, Database},
	Database:   {Schema, User},
	Schema:     {Table},
	Table:      {Column, PrimaryKey, Index, Partition, ForeignKey},
	Column:     {},
	PrimaryKey: {},
	Index:      {},
	ForeignKey: {},
	Partition:  {},
	Login:      {},
	User:       {},
}

// ChildTypes returns the child entity types a type may own, in alignment order.
func ChildTypes(t Type) []Type {
	children, ok := childTypes[t]
	if !ok {
		panic(fmt.Sprintf("entity type %q has no child type entry", t))
	}
	return children
}

var (
	// ErrNotExist reports that no live counterpart exists for a name or declaration.
	ErrNotExist = errors.New("database object does not exist")
	// ErrInvalidChild reports a child type not allowed under a parent type.
	ErrInvalidChild = errors.New("invalid child entity type")
	// ErrNotAltered reports a mutation whose post-change read did not return the
	// requested value.
	ErrNotAltered = errors.New("attribute was not altered")
	// ErrUnknownAttribute reports an attribute name outside the registry set.
	ErrUnknownAttribute = errors.New("unknown attribute")
)

// Equal compares two attribute values under the canonical rule for kind.
// Values coming from the declared tree and from live-catalog reads are both
// normalized here, so representation differences (int vs int64, order of set
// members, name casing) never produce spurious diffs.
func Equal(kind Kind, a, b any) bool {
	switch kind {
	case KindString:
		return stringOrNil(a) == stringOrNil(b)
	case KindFoldedString:
		return strings.EqualFold(stringOrNil(a), stringOrNil(b))
	case KindInt:
		ai, aNull := intOrNil(a)
		bi, bNull := intOrNil(b)
		if aNull || bNull {
			return aNull == bNull
		}
		return ai == bi
	case KindBool:
		return boolValue(a) == boolValue(b)
	case KindColumns:
		as, bs := nameList(a), nameList(b)
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !strings.EqualFold(as[i], bs[i]) {
				return false
			}
		}
		return true
	case KindNameSet:
		return equalNameSets(nameList(a), nameList(b))
	default:
		panic(fmt.Sprintf("unknown attribute kind: %d", int(kind)))
	}
}

func stringOrNil(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func intOrNil(v any) (int64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, true
	case int:
		return int64(n), false
	case int32:
		return int64(n), false
	case int64:
		return n, false
	case float64:
		return int64(n), false
	default:
		return 0, true
	}
}

func boolValue(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int:
		return b != 0
	case int64:
		return b != 0
	default:
		return false
	}
}

func nameList(v any) []string {
	switch names := v.(type) {
	case nil:
		return nil
	case []string:
		return names
	case []any:
		out := make([]string, 0, len(names))
		for _, name := range names {
			out = append(out, fmt.Sprint(name))
		}
		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}

func equalNameSets(a, b []string) bool {
	fold := func(names []string) []string {
		seen := map[string]bool{}
		out := make([]string, 0, len(names))
		for _, name := range names {
			lower := strings.ToLower(name)
			if !seen[lower] {
				seen[lower] = true
				out = append(out, lower)
			}
		}
		sort.Strings(out)
		return out
	}
	as, bs := fold(a), fold(b)
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
