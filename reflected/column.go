package reflected

import (
	"fmt"
	"strings"

	"github.com/sqlalign/sqlalign/database"
	"github.com/sqlalign/sqlalign/declared"
	"github.com/sqlalign/sqlalign/sqlbuild"
)

func columnOps() *ops {
	return &ops{
		canCreate: true,

		listNames: func(parent *Node) ([]string, error) {
			names, err := queryNames(parent.exec,
				sqlbuild.TableColumnDetails(parent.schemaName(), parent.name), "name")
			if err != nil {
				return nil, err
			}
			for i, name := range names {
				names[i] = strings.ToLower(name)
			}
			return names, nil
		},
		nameExists: func(parent *Node, name string) (bool, error) {
			return queryExists(parent, sqlbuild.ColumnExists(parent.schemaName(), parent.name, name))
		},
		create: func(parent *Node, d *declared.Node) error {
			def, err := sqlbuild.ColumnDef(declaredColumnSpec(d))
			if err != nil {
				return err
			}
			return parent.exec.Exec(sqlbuild.AddColumn(parent.schemaName(), parent.name, def))
		},
		detail: func(n *Node) (database.Row, error) {
			return database.QueryRow(n.exec,
				sqlbuild.ColumnDetail(n.parent.schemaName(), n.parent.name, n.name))
		},
		getters: map[string]getterFunc{
			"data_type": func(_ *Node, detail database.Row) (any, error) {
				return strings.ToLower(detail.String("data_type")), nil
			},
			"nullable": func(_ *Node, detail database.Row) (any, error) {
				return detail.Bool("nullable"), nil
			},
			"identity": func(_ *Node, detail database.Row) (any, error) {
				return detail.Bool("identity"), nil
			},
			// Parameters are significant only for the type categories that
			// carry them; everything else reads as null so the catalog's
			// incidental values (e.g. numeric precision of an int) never
			// produce a diff.
			"char_max_len": func(_ *Node, detail database.Row) (any, error) {
				return parameterValue(detail, "char_max_len", sqlbuild.HasCharLength), nil
			},
			"datetime_precision": func(_ *Node, detail database.Row) (any, error) {
				return parameterValue(detail, "datetime_precision", sqlbuild.HasDatetimePrecision), nil
			},
			"numeric_precision": func(_ *Node, detail database.Row) (any, error) {
				return parameterValue(detail, "numeric_precision", sqlbuild.HasNumericPrecision), nil
			},
			"numeric_scale": func(_ *Node, detail database.Row) (any, error) {
				return parameterValue(detail, "numeric_scale", sqlbuild.IsNumericType), nil
			},
		},
		setters: map[string]setterFunc{
			"nullable":           alterColumnSetter,
			"char_max_len":       alterColumnSetter,
			"datetime_precision": alterColumnSetter,
			"numeric_precision":  alterColumnSetter,
			"numeric_scale":      alterColumnSetter,
			"data_type":          setColumnDataType,
			"identity":           setColumnIdentity,
		},
		rename: func(n *Node, newName string) error {
			return n.exec.Exec(sqlbuild.RenameColumn(
				n.parent.schemaName(), n.parent.name, n.name, newName))
		},
		drop: func(n *Node) (bool, error) {
			// Indexes keyed on the column block the drop.
			ok, err := n.parent.dropIndexesForColumn(n.name)
			if err != nil || !ok {
				return false, err
			}
			return true, n.exec.Exec(sqlbuild.DropColumn(n.parent.schemaName(), n.parent.name, n.name))
		},
	}
}

func parameterValue(detail database.Row, field string, applies func(string) bool) any {
	if !applies(detail.String("data_type")) || detail.IsNull(field) {
		return nil
	}
	return detail.Int(field)
}

// alterColumnSetter re-renders the whole column definition from the declared
// node; ALTER COLUMN takes the full definition, so one setter serves every
// parameter attribute. The cache is fully reset because one ALTER can move
// several attributes at once.
func alterColumnSetter(n *Node, d *declared.Node) (bool, error) {
	def, err := sqlbuild.ColumnDef(declaredColumnSpec(d))
	if err != nil {
		return false, err
	}
	if err := n.exec.Exec(sqlbuild.AlterColumn(n.parent.schemaName(), n.parent.name, def)); err != nil {
		return false, err
	}
	n.ResetAll()
	return true, nil
}

// setColumnDataType drops the indexes keyed on the column first; ALTER COLUMN
// cannot change a type under a dependent index. A refused index drop leaves
// the column as is.
func setColumnDataType(n *Node, d *declared.Node) (bool, error) {
	ok, err := n.parent.dropIndexesForColumn(n.name)
	if err != nil || !ok {
		return false, err
	}
	return alterColumnSetter(n, d)
}

// setColumnIdentity recreates the column: the identity property cannot be
// altered in place. A primary key on the table makes the recreate unsafe and
// is a hard error; a refused delete leaves the column as is.
func setColumnIdentity(n *Node, d *declared.Node) (bool, error) {
	pkColumns, err := n.parent.PrimaryKeyColumns()
	if err != nil {
		return false, err
	}
	if len(pkColumns) > 0 {
		return false, fmt.Errorf("column %s: cannot change identity while table has a primary key", n.FullName())
	}
	deleted, err := n.Delete()
	if err != nil || !deleted {
		return false, err
	}
	def, err := sqlbuild.ColumnDef(declaredColumnSpec(d))
	if err != nil {
		return false, err
	}
	if err := n.exec.Exec(sqlbuild.AddColumn(n.parent.schemaName(), n.parent.name, def)); err != nil {
		return false, err
	}
	n.ResetAll()
	return true, nil
}
