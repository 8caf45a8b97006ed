package declared

import (
	"fmt"
	"strings"

	"github.com/sqlalign/sqlalign/entity"
)

// ColumnOpts carries the optional attributes of a column declaration.
// Precision fields are pointers so that "not applicable" (nil) is distinct
// from an explicit zero.
type ColumnOpts struct {
	Identity          bool
	Nullable          bool
	CharMaxLen        *int
	DatetimePrecision *int
	NumericPrecision  *int
	NumericScale      *int
	OldName           string
}

func NewColumn(name, dataType string, opts ColumnOpts) (*Node, error) {
	column, err := newNode(entity.Column, name, map[string]any{
		"data_type":          dataType,
		"char_max_len":       intOrNil(opts.CharMaxLen),
		"datetime_precision": intOrNil(opts.DatetimePrecision),
		"numeric_precision":  intOrNil(opts.NumericPrecision),
		"numeric_scale":      intOrNil(opts.NumericScale),
		"nullable":           opts.Nullable,
		"identity":           opts.Identity,
	})
	if err != nil {
		return nil, err
	}
	column.oldName = opts.OldName
	return column, nil
}

func IntColumn(name string, opts ColumnOpts) (*Node, error) {
	return NewColumn(name, "int", opts)
}

// FloatColumn declares a float column. A small float takes 4 bytes
// (precision 24), a large one 8 (precision 53).
func FloatColumn(name string, small bool, opts ColumnOpts) (*Node, error) {
	precision := 53
	if small {
		precision = 24
	}
	opts.NumericPrecision = &precision
	return NewColumn(name, "float", opts)
}

func VarcharColumn(name string, charMaxLen int, opts ColumnOpts) (*Node, error) {
	opts.CharMaxLen = &charMaxLen
	return NewColumn(name, "varchar", opts)
}

func DateColumn(name string, opts ColumnOpts) (*Node, error) {
	return NewColumn(name, "date", opts)
}

func DateTimeColumn(name string, opts ColumnOpts) (*Node, error) {
	if opts.DatetimePrecision == nil {
		precision := 7
		opts.DatetimePrecision = &precision
	}
	return NewColumn(name, "datetime2", opts)
}

// IdentityColumn declares a non-nullable int identity column.
func IdentityColumn(name string) (*Node, error) {
	return NewColumn(name, "int", ColumnOpts{Identity: true})
}

func NumericColumn(name string, precision, scale int, opts ColumnOpts) (*Node, error) {
	if scale >= precision {
		return nil, fmt.Errorf("column %q: numeric scale must be less than numeric precision", name)
	}
	opts.NumericPrecision = &precision
	opts.NumericScale = &scale
	return NewColumn(name, "numeric", opts)
}

type PrimaryKeyOpts struct {
	Name         string // auto-generated from columns when empty
	NonClustered bool
	Compression  string // NONE (default), ROW or PAGE
}

func NewPrimaryKey(columns []string, opts PrimaryKeyOpts) (*Node, error) {
	columns = lowerAll(columns)
	name := opts.Name
	if name == "" {
		name = autoIndexName("PK", columns, nil)
	}
	return newNode(entity.PrimaryKey, name, map[string]any{
		"columns":     columns,
		"clustered":   !opts.NonClustered,
		"compression": defaultCompression(opts.Compression),
	})
}

type IndexOpts struct {
	Name            string // auto-generated from columns when empty
	Clustered       bool
	Unique          bool
	IncludedColumns []string
	Compression     string // NONE (default), ROW or PAGE
	OldName         string
}

func NewIndex(columns []string, opts IndexOpts) (*Node, error) {
	columns = lowerAll(columns)
	included := lowerAll(opts.IncludedColumns)
	name := opts.Name
	if name == "" {
		name = autoIndexName("IX", columns, included)
	}
	index, err := newNode(entity.Index, name, map[string]any{
		"columns":          columns,
		"clustered":        opts.Clustered,
		"compression":      defaultCompression(opts.Compression),
		"included_columns": included,
		"unique":           opts.Unique,
	})
	if err != nil {
		return nil, err
	}
	index.oldName = opts.OldName
	return index, nil
}

type ForeignKeyOpts struct {
	ForeignSchema string // default dbo
}

// NewForeignKey declares a foreign key from column to the referenced
// schema/table/column. The constraint name is generated at creation time, so
// the declared node carries no name.
func NewForeignKey(column, foreignTable, foreignColumn string, opts ForeignKeyOpts) (*Node, error) {
	foreignSchema := opts.ForeignSchema
	if foreignSchema == "" {
		foreignSchema = "dbo"
	}
	return newNode(entity.ForeignKey, "", map[string]any{
		"column":         column,
		"foreign_schema": foreignSchema,
		"foreign_table":  foreignTable,
		"foreign_column": foreignColumn,
	})
}

// NewPartition declares a daily time-range partition on a datetime column.
// The partition scheme name is generated at creation time.
func NewPartition(column string) (*Node, error) {
	return newNode(entity.Partition, "", map[string]any{
		"column": strings.ToLower(column),
	})
}

func autoIndexName(prefix string, columns, included []string) string {
	name := prefix + "_" + strings.Join(columns, "_")
	if len(included) > 0 {
		name += "__" + strings.Join(included, "_")
	}
	return name
}

func defaultCompression(compression string) string {
	if compression == "" {
		return "NONE"
	}
	return compression
}

func lowerAll(names []string) []string {
	if names == nil {
		return nil
	}
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = strings.ToLower(name)
	}
	return out
}

func intOrNil(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
