package reflected

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sqlalign/sqlalign/database"
	"github.com/sqlalign/sqlalign/declared"
	"github.com/sqlalign/sqlalign/entity"
	"github.com/sqlalign/sqlalign/sqlbuild"
)

func databaseOps() *ops {
	return &ops{
		systemNames: []string{
			"master", "tempdb", "model", "msdb",
			"ReportServer", "ReportServerTempDB",
		},
		canCreate: true,
		// A connected database cannot drop itself and dropping any other one
		// is never worth automating.
		canDelete: func(*Node) bool { return false },

		// Attach the session so the sys catalog views of this database answer
		// all child queries.
		onInit: func(n *Node) error {
			return n.exec.Exec(sqlbuild.UseDatabase(n.name))
		},

		listNames: func(parent *Node) ([]string, error) {
			return queryNames(parent.exec, sqlbuild.ListDatabases(), "name")
		},
		nameExists: func(parent *Node, name string) (bool, error) {
			return queryExists(parent, sqlbuild.DatabaseExists(name))
		},
		create: func(parent *Node, d *declared.Node) error {
			stmt := sqlbuild.CreateDatabase(
				d.Name(),
				attrString(d, "data_file_path"),
				attrString(d, "log_file_path"),
				attrInt(d, "data_size"),
				attrInt(d, "log_size"),
			)
			return parent.exec.Autocommit(func() error {
				return parent.exec.Exec(stmt)
			})
		},
		detail: func(n *Node) (database.Row, error) {
			return database.QueryRow(n.exec, sqlbuild.DatabaseDetail(n.name))
		},
		getters: map[string]getterFunc{
			"data_size": func(n *Node, _ database.Row) (any, error) {
				return n.fileSizeMB("row_size_mb")
			},
			"log_size": func(n *Node, _ database.Row) (any, error) {
				return n.fileSizeMB("log_size_mb")
			},
			"data_file_path": func(n *Node, _ database.Row) (any, error) {
				return n.filePhysicalName("ROWS")
			},
			"log_file_path": func(n *Node, _ database.Row) (any, error) {
				return n.filePhysicalName("LOG")
			},
		},
		setters: map[string]setterFunc{
			"recovery_model_desc": func(n *Node, d *declared.Node) (bool, error) {
				stmt := sqlbuild.SetDatabaseOption(n.name, "RECOVERY", attrString(d, "recovery_model_desc"))
				return true, n.exec.Autocommit(func() error {
					return n.exec.Exec(stmt)
				})
			},
			"owner": func(n *Node, d *declared.Node) (bool, error) {
				stmt := sqlbuild.SetDatabaseOwner(attrString(d, "owner"))
				return true, n.exec.Autocommit(func() error {
					return n.exec.Exec(stmt)
				})
			},
			"data_file_path": fileRelocationSetter("ROWS", "data_file_path"),
			"log_file_path":  fileRelocationSetter("LOG", "log_file_path"),
		},
		rename: func(n *Node, newName string) error {
			return n.exec.Autocommit(func() error {
				return n.exec.Exec(sqlbuild.RenameDatabase(n.name, newName))
			})
		},
	}
}

func (n *Node) fileSizeMB(field string) (any, error) {
	row, err := database.QueryRow(n.exec, sqlbuild.DatabaseSizes(n.name))
	if err != nil {
		return nil, err
	}
	if row == nil || row.IsNull(field) {
		return nil, nil
	}
	size, err := strconv.ParseFloat(row.String(field), 64)
	if err != nil {
		return nil, fmt.Errorf("database %q: bad %s value %q", n.name, field, row.String(field))
	}
	return int(size), nil
}

func (n *Node) filePhysicalName(fileType string) (any, error) {
	row, err := database.QueryRow(n.exec, sqlbuild.DatabaseFileInfo(n.name, fileType))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return row.String("physical_name"), nil
}

// fileRelocationSetter points one database file at a new path. The catalog
// accepts the change while the file stays put; it takes effect when the
// database next comes online. fileType is ROWS or LOG.
func fileRelocationSetter(fileType, attr string) setterFunc {
	return func(n *Node, d *declared.Node) (bool, error) {
		row, err := database.QueryRow(n.exec, sqlbuild.DatabaseFileInfo(n.name, fileType))
		if err != nil {
			return false, err
		}
		if row == nil {
			return false, fmt.Errorf("database %q has no %s file", n.name, fileType)
		}
		stmt := sqlbuild.SetDatabaseFilePath(n.name, row.String("name"), attrString(d, attr))
		return true, n.exec.Autocommit(func() error {
			return n.exec.Exec(stmt)
		})
	}
}

// SetFileSize shrinks or grows one database file to sizeMB. Moving or
// resizing files is an operator action, not part of alignment, so this runs
// outside the setter path. fileType is ROWS or LOG.
func (n *Node) SetFileSize(fileType string, sizeMB int) error {
	if n.typ != entity.Database {
		return fmt.Errorf("%s: file sizing applies to databases only", n)
	}
	row, err := database.QueryRow(n.exec, sqlbuild.DatabaseFileInfo(n.name, fileType))
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("database %q has no %s file", n.name, fileType)
	}
	fileName := row.String("name")
	current := row.Int("current_size_mb")
	used := row.Int("used_space_mb")
	switch {
	case sizeMB == current:
		return nil
	case sizeMB < current:
		if sizeMB < used {
			return fmt.Errorf("database %q: cannot shrink %s below used space (%dMB)", n.name, fileName, used)
		}
		return n.exec.Autocommit(func() error {
			return n.exec.Exec(sqlbuild.ShrinkDatabaseFile(fileName, sizeMB))
		})
	default:
		return n.exec.Autocommit(func() error {
			return n.exec.Exec(sqlbuild.GrowDatabaseFile(n.name, fileName, sizeMB))
		})
	}
}

// Table finds a table through its schema. n must be a database node.
func (n *Node) Table(tableName, schemaName string) (*Node, error) {
	if schemaName == "" {
		schemaName = "dbo"
	}
	schema, err := n.Child(entity.Schema, schemaName)
	if err != nil {
		return nil, err
	}
	return schema.Child(entity.Table, tableName)
}

// ---------------------------------------------------------------------------
// Declared attribute coercion helpers, shared across the type files.

func attrString(d *declared.Node, name string) string {
	switch v := d.Attr(name).(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func attrInt(d *declared.Node, name string) int {
	switch v := d.Attr(name).(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func attrBool(d *declared.Node, name string) bool {
	b, _ := d.Attr(name).(bool)
	return b
}

func attrNames(d *declared.Node, name string) []string {
	return attrValueNames(d.Attr(name))
}

// attrValueBool coerces a cached attribute value to bool.
func attrValueBool(v any) bool {
	switch v := v.(type) {
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	default:
		return false
	}
}

// attrValueNames coerces a cached attribute value to a name list.
func attrValueNames(v any) []string {
	switch v := v.(type) {
	case nil:
		return nil
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}

func foldedContains(names []string, name string) bool {
	for _, candidate := range names {
		if strings.EqualFold(candidate, name) {
			return true
		}
	}
	return false
}
