package reflected

import (
	"fmt"
	"strings"

	"github.com/sqlalign/sqlalign/database"
	"github.com/sqlalign/sqlalign/declared"
	"github.com/sqlalign/sqlalign/entity"
	"github.com/sqlalign/sqlalign/sqlbuild"
)

// Foreign keys match by reference: the local column and the referenced
// schema, table and column. Constraint names are generated on create and
// never part of the identity.

var foreignKeyAttrNames = []string{"foreign_schema", "foreign_table", "foreign_column", "column"}

func foreignKeyOps() *ops {
	return &ops{
		canCreate: true,

		listNames: func(parent *Node) ([]string, error) {
			return queryNames(parent.exec,
				sqlbuild.TableForeignKeys(parent.schemaName(), parent.name), "name")
		},
		nameExists: func(parent *Node, name string) (bool, error) {
			names, err := queryNames(parent.exec,
				sqlbuild.TableForeignKeys(parent.schemaName(), parent.name), "name")
			if err != nil {
				return false, err
			}
			return foldedContains(names, name), nil
		},
		fromDeclared: func(parent *Node, d *declared.Node) (*Node, error) {
			names, err := queryNames(parent.exec,
				sqlbuild.TableForeignKeys(parent.schemaName(), parent.name), "name")
			if err != nil {
				return nil, err
			}
			for _, name := range names {
				candidate, err := newNode(entity.ForeignKey, name, parent, parent.exec, parent.confirm)
				if err != nil {
					return nil, err
				}
				same, err := foreignKeyEquals(candidate, d)
				if err != nil {
					return nil, err
				}
				if same {
					return candidate, nil
				}
			}
			return nil, fmt.Errorf("foreign key on %q.%s referencing %s.%s(%s): %w",
				parent.FullName(), attrString(d, "column"),
				attrString(d, "foreign_schema"), attrString(d, "foreign_table"),
				attrString(d, "foreign_column"), entity.ErrNotExist)
		},
		equate: foreignKeyEquals,
		create: func(parent *Node, d *declared.Node) error {
			return parent.exec.Exec(sqlbuild.CreateForeignKey(
				parent.schemaName(), parent.name,
				ForeignKeyName(parent.schemaName(), parent.name, attrString(d, "foreign_schema"), attrString(d, "foreign_table")),
				attrString(d, "column"),
				attrString(d, "foreign_schema"),
				attrString(d, "foreign_table"),
				attrString(d, "foreign_column")))
		},
		detail: func(n *Node) (database.Row, error) {
			return database.QueryRow(n.exec, sqlbuild.ForeignKeyDetail(
				n.parent.schemaName(), n.parent.name, n.name))
		},
		drop: func(n *Node) (bool, error) {
			return true, n.exec.Exec(sqlbuild.DropConstraint(n.parent.schemaName(), n.parent.name, n.name))
		},
	}
}

func foreignKeyEquals(n *Node, d *declared.Node) (bool, error) {
	for _, attr := range foreignKeyAttrNames {
		value, err := n.Attr(attr)
		if err != nil {
			return false, err
		}
		if !strings.EqualFold(fmt.Sprint(value), attrString(d, attr)) {
			return false, nil
		}
	}
	return true, nil
}

// ForeignKeyName derives the generated constraint name for a reference
// between two tables.
func ForeignKeyName(schema, table, foreignSchema, foreignTable string) string {
	return fmt.Sprintf("FK_%s_%s_%s_%s", schema, table, foreignSchema, foreignTable)
}
