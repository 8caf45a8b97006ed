package reflected

import (
	"fmt"
	"strings"

	"github.com/sqlalign/sqlalign/database"
	"github.com/sqlalign/sqlalign/declared"
	"github.com/sqlalign/sqlalign/entity"
	"github.com/sqlalign/sqlalign/sqlbuild"
)

// Indexes and primary keys match structurally: the identity of an index is
// its ordered key column list (plus included columns), never its name. A live
// index with the right structure under the wrong name is the declared index.

func primaryKeyOps() *ops {
	return &ops{
		canCreate: true,

		listNames: func(parent *Node) ([]string, error) {
			return queryNames(parent.exec,
				sqlbuild.TablePrimaryKeyName(parent.schemaName(), parent.name), "name")
		},
		nameExists: func(parent *Node, name string) (bool, error) {
			return queryExists(parent, sqlbuild.PrimaryKeyExists(parent.schemaName(), parent.name, name))
		},
		fromDeclared: func(parent *Node, d *declared.Node) (*Node, error) {
			rows, err := parent.exec.Query(sqlbuild.TablePrimaryKeyColumns(parent.schemaName(), parent.name))
			if err != nil {
				return nil, err
			}
			if len(rows) == 0 {
				return nil, fmt.Errorf("primary key on %q: %w", parent.FullName(), entity.ErrNotExist)
			}
			var columns []string
			for _, row := range rows {
				columns = append(columns, row.String("column_name"))
			}
			if !entity.Equal(entity.KindColumns, columns, d.Attr("columns")) {
				return nil, fmt.Errorf("primary key on %q with columns %v: %w",
					parent.FullName(), d.Attr("columns"), entity.ErrNotExist)
			}
			return newNode(entity.PrimaryKey, rows[0].String("pk_name"), parent, parent.exec, parent.confirm)
		},
		equate: func(n *Node, d *declared.Node) (bool, error) {
			columns, err := n.Attr("columns")
			if err != nil {
				return false, err
			}
			return entity.Equal(entity.KindColumns, columns, d.Attr("columns")), nil
		},
		create: func(parent *Node, d *declared.Node) error {
			return parent.exec.Exec(sqlbuild.CreatePrimaryKey(
				parent.schemaName(), parent.name, d.Name(),
				attrNames(d, "columns"), attrBool(d, "clustered"), attrString(d, "compression")))
		},
		detail:  indexDetail,
		getters: indexColumnGetters(),
		setters: map[string]setterFunc{
			// The underlying index is rebuilt in place; the constraint stays.
			"clustered": func(n *Node, d *declared.Node) (bool, error) {
				return true, n.exec.Exec(sqlbuild.CreateIndex(
					n.parent.schemaName(), n.parent.name, sqlbuild.IndexSpec{
						Name:         n.name,
						Columns:      attrNames(d, "columns"),
						Clustered:    attrBool(d, "clustered"),
						Unique:       true,
						Compression:  attrString(d, "compression"),
						DropExisting: true,
					}))
			},
			"compression": rebuildCompressionSetter,
		},
		rename: renameIndex,
		drop: func(n *Node) (bool, error) {
			return true, n.exec.Exec(sqlbuild.DropConstraint(n.parent.schemaName(), n.parent.name, n.name))
		},
	}
}

func indexOps() *ops {
	return &ops{
		canCreate: true,

		listNames: func(parent *Node) ([]string, error) {
			return queryNames(parent.exec,
				sqlbuild.TableIndexNames(parent.schemaName(), parent.name), "name")
		},
		nameExists: func(parent *Node, name string) (bool, error) {
			return queryExists(parent, sqlbuild.IndexExists(parent.schemaName(), parent.name, name))
		},
		fromDeclared: func(parent *Node, d *declared.Node) (*Node, error) {
			names, err := queryNames(parent.exec,
				sqlbuild.TableIndexNames(parent.schemaName(), parent.name), "name")
			if err != nil {
				return nil, err
			}
			for _, name := range names {
				candidate, err := newNode(entity.Index, name, parent, parent.exec, parent.confirm)
				if err != nil {
					return nil, err
				}
				same, err := indexStructureEquals(candidate, d)
				if err != nil {
					return nil, err
				}
				if same {
					return candidate, nil
				}
			}
			return nil, fmt.Errorf("index on %q with columns %v: %w",
				parent.FullName(), d.Attr("columns"), entity.ErrNotExist)
		},
		equate: indexStructureEquals,
		create: func(parent *Node, d *declared.Node) error {
			createOn, err := parent.partitionCreateOn(attrNames(d, "columns"))
			if err != nil {
				return err
			}
			return parent.exec.Exec(sqlbuild.CreateIndex(
				parent.schemaName(), parent.name, declaredIndexSpec(d, false, createOn)))
		},
		detail:  indexDetail,
		getters: indexGetters(),
		setters: map[string]setterFunc{
			"clustered":        recreateIndexSetter,
			"included_columns": recreateIndexSetter,
			"unique":           recreateIndexSetter,
			"compression":      rebuildCompressionSetter,
		},
		rename: renameIndex,
		drop: func(n *Node) (bool, error) {
			// A unique-constraint index can only go through its constraint.
			row, err := indexDetail(n)
			if err != nil {
				return false, err
			}
			if row != nil && row.Bool("is_unique_constraint") {
				return true, n.exec.Exec(sqlbuild.DropConstraint(n.parent.schemaName(), n.parent.name, n.name))
			}
			return true, n.exec.Exec(sqlbuild.DropIndex(n.parent.schemaName(), n.parent.name, n.name))
		},
	}
}

func indexDetail(n *Node) (database.Row, error) {
	return database.QueryRow(n.exec,
		sqlbuild.NamedIndexDetail(n.parent.schemaName(), n.parent.name, n.name))
}

func renameIndex(n *Node, newName string) error {
	return n.exec.Exec(sqlbuild.RenameIndex(n.parent.schemaName(), n.parent.name, n.name, newName))
}

// indexColumnGetters covers the attributes primary keys and indexes share.
func indexColumnGetters() map[string]getterFunc {
	return map[string]getterFunc{
		"columns": func(n *Node, _ database.Row) (any, error) {
			return n.indexKeyColumns()
		},
		"clustered": func(_ *Node, detail database.Row) (any, error) {
			return strings.EqualFold(detail.String("type_desc"), "CLUSTERED"), nil
		},
	}
}

func indexGetters() map[string]getterFunc {
	getters := indexColumnGetters()
	getters["included_columns"] = func(n *Node, _ database.Row) (any, error) {
		columns, err := queryNames(n.exec, sqlbuild.IndexIncludedColumns(
			n.parent.schemaName(), n.parent.name, n.name), "column_name")
		if err != nil {
			return nil, err
		}
		if len(columns) == 0 {
			return nil, nil
		}
		return lowerAllNames(columns), nil
	}
	return getters
}

// indexKeyColumns returns the ordered key columns, excluding a partition
// column the scheme appended; a partitioned index whose every key column is
// the partition column falls back to the full list.
func (n *Node) indexKeyColumns() ([]string, error) {
	columns, err := queryNames(n.exec, sqlbuild.IndexNonPartitionColumns(
		n.parent.schemaName(), n.parent.name, n.name), "column_name")
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		columns, err = queryNames(n.exec, sqlbuild.IndexAllColumns(
			n.parent.schemaName(), n.parent.name, n.name), "column_name")
		if err != nil {
			return nil, err
		}
	}
	return lowerAllNames(columns), nil
}

func indexStructureEquals(n *Node, d *declared.Node) (bool, error) {
	columns, err := n.Attr("columns")
	if err != nil {
		return false, err
	}
	if !entity.Equal(entity.KindColumns, columns, d.Attr("columns")) {
		return false, nil
	}
	included, err := n.Attr("included_columns")
	if err != nil {
		return false, err
	}
	return entity.Equal(entity.KindNameSet, included, d.Attr("included_columns")), nil
}

func declaredIndexSpec(d *declared.Node, dropExisting bool, createOn string) sqlbuild.IndexSpec {
	return sqlbuild.IndexSpec{
		Name:            d.Name(),
		Columns:         attrNames(d, "columns"),
		Clustered:       attrBool(d, "clustered"),
		Unique:          attrBool(d, "unique"),
		IncludedColumns: attrNames(d, "included_columns"),
		Compression:     attrString(d, "compression"),
		DropExisting:    dropExisting,
		CreateOn:        createOn,
	}
}

// recreateIndexSetter rebuilds the index to the declared shape in one
// statement; DROP_EXISTING carries the rows over for a clustered index.
func recreateIndexSetter(n *Node, d *declared.Node) (bool, error) {
	createOn, err := n.parent.partitionCreateOn(attrNames(d, "columns"))
	if err != nil {
		return false, err
	}
	spec := declaredIndexSpec(d, true, createOn)
	spec.Name = n.name
	if err := n.exec.Exec(sqlbuild.CreateIndex(n.parent.schemaName(), n.parent.name, spec)); err != nil {
		return false, err
	}
	n.ResetAll()
	return true, nil
}

func rebuildCompressionSetter(n *Node, d *declared.Node) (bool, error) {
	return true, n.exec.Exec(sqlbuild.AlterIndexRebuild(
		n.parent.schemaName(), n.parent.name, n.name, attrString(d, "compression"), false))
}

// recreateOnFilegroup rebuilds this index or primary key, keeping its live
// shape, onto another filegroup or partition scheme clause.
func (n *Node) recreateOnFilegroup(createOn string) error {
	columns, err := n.Attr("columns")
	if err != nil {
		return err
	}
	clustered, err := n.Attr("clustered")
	if err != nil {
		return err
	}
	compression, err := n.Attr("compression")
	if err != nil {
		return err
	}
	spec := sqlbuild.IndexSpec{
		Name:         n.name,
		Columns:      attrValueNames(columns),
		Clustered:    attrValueBool(clustered),
		Unique:       n.typ == entity.PrimaryKey,
		Compression:  fmt.Sprint(compression),
		DropExisting: true,
		CreateOn:     createOn,
	}
	if n.typ == entity.Index {
		unique, err := n.Attr("unique")
		if err != nil {
			return err
		}
		spec.Unique = attrValueBool(unique)
		included, err := n.Attr("included_columns")
		if err != nil {
			return err
		}
		spec.IncludedColumns = attrValueNames(included)
	}
	if err := n.exec.Exec(sqlbuild.CreateIndex(n.parent.schemaName(), n.parent.name, spec)); err != nil {
		return err
	}
	if err := n.exec.Commit(); err != nil {
		return err
	}
	n.ResetAll()
	return nil
}

// partitionCreateOn returns the "scheme(column)" clause when the table is
// partitioned and the index key covers the partition column, otherwise ""
// for the default filegroup. n is a table node.
func (n *Node) partitionCreateOn(indexColumns []string) (string, error) {
	partitions, err := n.Children(entity.Partition)
	if err != nil {
		return "", err
	}
	if len(partitions) == 0 {
		return "", nil
	}
	partition := partitions[0]
	column, err := partition.Attr("column")
	if err != nil {
		return "", err
	}
	columnName := fmt.Sprint(column)
	if !foldedContains(indexColumns, columnName) {
		return "", nil
	}
	return fmt.Sprintf("%s(%s)", partition.Name(), columnName), nil
}

func lowerAllNames(names []string) []string {
	for i, name := range names {
		names[i] = strings.ToLower(name)
	}
	return names
}
