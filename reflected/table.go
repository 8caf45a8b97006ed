package reflected

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/sqlalign/sqlalign/database"
	"github.com/sqlalign/sqlalign/declared"
	"github.com/sqlalign/sqlalign/entity"
	"github.com/sqlalign/sqlalign/sqlbuild"
)

func tableOps() *ops {
	return &ops{
		canCreate: true,

		listNames: func(parent *Node) ([]string, error) {
			return queryNames(parent.exec, sqlbuild.ListTables(parent.name), "name")
		},
		nameExists: func(parent *Node, name string) (bool, error) {
			return queryExists(parent, sqlbuild.TableExists(
				parent.AncestorName(entity.Database), parent.name, name))
		},
		create: func(parent *Node, d *declared.Node) error {
			columns := d.Children(entity.Column)
			if len(columns) == 0 {
				return fmt.Errorf("table %q: cannot create without declared columns", d.Name())
			}
			defs := make([]string, 0, len(columns))
			for _, column := range columns {
				def, err := sqlbuild.ColumnDef(declaredColumnSpec(column))
				if err != nil {
					return err
				}
				defs = append(defs, def)
			}
			return parent.exec.Exec(sqlbuild.CreateTable(parent.name, d.Name(), defs))
		},
		detail: func(n *Node) (database.Row, error) {
			return database.QueryRow(n.exec, sqlbuild.TableDetail(n.schemaName(), n.name))
		},
		rename: func(n *Node, newName string) error {
			return n.exec.Exec(sqlbuild.RenameTable(n.schemaName(), n.name, newName))
		},
		drop: func(n *Node) (bool, error) {
			return true, n.exec.Exec(sqlbuild.DropTable(n.schemaName(), n.name))
		},
	}
}

func (n *Node) schemaName() string {
	return n.AncestorName(entity.Schema)
}

// declaredColumnSpec maps a declared column's attributes onto the definition
// renderer.
func declaredColumnSpec(d *declared.Node) sqlbuild.ColumnSpec {
	return sqlbuild.ColumnSpec{
		Name:              d.Name(),
		DataType:          attrString(d, "data_type"),
		Identity:          attrBool(d, "identity"),
		Nullable:          attrBool(d, "nullable"),
		CharMaxLen:        d.Attr("char_max_len"),
		DatetimePrecision: d.Attr("datetime_precision"),
		NumericPrecision:  d.Attr("numeric_precision"),
		NumericScale:      d.Attr("numeric_scale"),
	}
}

// ---------------------------------------------------------------------------
// Index plumbing shared by columns, partitions and the index types. n is a
// table node throughout.

// IndexesForColumn returns the table's live indexes and primary key whose key
// columns include the named column.
func (n *Node) IndexesForColumn(column string) ([]*Node, error) {
	var matching []*Node
	indexes, err := n.Children(entity.Index)
	if err != nil {
		return nil, err
	}
	pks, err := n.Children(entity.PrimaryKey)
	if err != nil {
		return nil, err
	}
	for _, index := range append(indexes, pks...) {
		columns, err := index.Attr("columns")
		if err != nil {
			return nil, err
		}
		if foldedContains(attrValueNames(columns), column) {
			matching = append(matching, index)
		}
	}
	return matching, nil
}

// dropIndexesForColumn deletes every index keyed on the column, for changes
// that cannot run under a dependent index. It reports false when any deletion
// was refused.
func (n *Node) dropIndexesForColumn(column string) (bool, error) {
	indexes, err := n.IndexesForColumn(column)
	if err != nil {
		return false, err
	}
	for _, index := range indexes {
		deleted, err := index.Delete()
		if err != nil {
			return false, err
		}
		if !deleted {
			slog.Warn("dependent index kept, change cannot proceed",
				"table", n.FullName(), "column", column, "index", index.Name())
			return false, nil
		}
	}
	return true, nil
}

// ClusteredIndex returns the table's clustered non-PK index, if any.
func (n *Node) ClusteredIndex() (*Node, error) {
	indexes, err := n.Children(entity.Index)
	if err != nil {
		return nil, err
	}
	for _, index := range indexes {
		clustered, err := index.Attr("clustered")
		if err != nil {
			return nil, err
		}
		if attrValueBool(clustered) {
			return index, nil
		}
	}
	return nil, nil
}

// RecreateIndexesOnFilegroup rebuilds every index of the table, primary key
// included, onto the given filegroup or partition scheme clause. The
// clustered index carries the rows, so it moves first.
func (n *Node) RecreateIndexesOnFilegroup(createOn string) error {
	indexes, err := n.Children(entity.Index)
	if err != nil {
		return err
	}
	pks, err := n.Children(entity.PrimaryKey)
	if err != nil {
		return err
	}
	all := append(indexes, pks...)
	var nonclustered []*Node
	for _, index := range all {
		isClustered, err := index.Attr("clustered")
		if err != nil {
			return err
		}
		if attrValueBool(isClustered) {
			if err := index.recreateOnFilegroup(createOn); err != nil {
				return err
			}
			continue
		}
		nonclustered = append(nonclustered, index)
	}
	for _, index := range nonclustered {
		if err := index.recreateOnFilegroup(createOn); err != nil {
			return err
		}
	}
	return nil
}

// PrimaryKeyColumns returns the live primary key's ordered column list, or
// nil when the table has no primary key.
func (n *Node) PrimaryKeyColumns() ([]string, error) {
	rows, err := n.exec.Query(sqlbuild.TablePrimaryKeyColumns(n.schemaName(), n.name))
	if err != nil {
		return nil, err
	}
	var columns []string
	for _, row := range rows {
		columns = append(columns, strings.ToLower(row.String("column_name")))
	}
	return columns, nil
}

// Compression returns the table's heap or clustered-index compression.
func (n *Node) Compression() (string, error) {
	row, err := database.QueryRow(n.exec, sqlbuild.TableCompression(
		n.AncestorName(entity.Database), n.schemaName(), n.name))
	if err != nil {
		return "", err
	}
	if row == nil {
		return "", fmt.Errorf("table %q: no compression record found", n.FullName())
	}
	return row.String("compression"), nil
}

// SetCompression rebuilds the table with the given compression.
func (n *Node) SetCompression(compression string, online bool) error {
	if err := n.exec.Exec(sqlbuild.SetTableCompression(n.schemaName(), n.name, compression, online)); err != nil {
		return err
	}
	return n.exec.Commit()
}

// SetIdentityInsert toggles explicit identity value inserts on this table.
func (n *Node) SetIdentityInsert(on bool) error {
	return n.exec.Exec(sqlbuild.SetIdentityInsert(
		n.AncestorName(entity.Database), n.schemaName(), n.name, on))
}

// HasData reports whether the table holds any rows.
func (n *Node) HasData() (bool, error) {
	return database.QueryExists(n.exec, sqlbuild.TableHasData(n.schemaName(), n.name))
}

// ClearData deletes all rows, gated by confirmation.
func (n *Node) ClearData() (bool, error) {
	if !n.confirm(fmt.Sprintf("Delete all data in %s?", n.FullName())) {
		slog.Warn("data deletion declined", "table", n.FullName())
		return false, nil
	}
	if err := n.exec.Exec(sqlbuild.DeleteTableData(n.schemaName(), n.name)); err != nil {
		return false, err
	}
	return true, n.exec.Commit()
}
