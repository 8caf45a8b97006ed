package declared

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/sqlalign/sqlalign/entity"
)

// Topology file structure. Unknown fields are rejected so declaration typos
// surface before any live statement runs.

type serverFile struct {
	Logins    []loginFile    `yaml:"logins"`
	Databases []databaseFile `yaml:"databases"`
}

type loginFile struct {
	Name        string   `yaml:"name"`
	Password    string   `yaml:"password"`
	TypeDesc    string   `yaml:"type_desc"`
	ServerRoles []string `yaml:"server_roles"`
}

type databaseFile struct {
	Name          string       `yaml:"name"`
	Owner         string       `yaml:"owner"`
	RecoveryModel string       `yaml:"recovery_model"`
	DataFileDir   string       `yaml:"data_file_dir"`
	LogFileDir    string       `yaml:"log_file_dir"`
	DataSize      int          `yaml:"data_size"`
	LogSize       int          `yaml:"log_size"`
	Schemas       []schemaFile `yaml:"schemas"`
	Tables        []tableFile  `yaml:"tables"`
	Users         []userFile   `yaml:"users"`
}

type schemaFile struct {
	Name   string      `yaml:"name"`
	Tables []tableFile `yaml:"tables"`
}

type tableFile struct {
	Name        string           `yaml:"name"`
	OldName     string           `yaml:"old_name"`
	IgnoreExtra []string         `yaml:"ignore_extra"` // child type names, or "all"
	Columns     []columnFile     `yaml:"columns"`
	PrimaryKey  *indexFile       `yaml:"primary_key"`
	Indexes     []indexFile      `yaml:"indexes"`
	Partition   *partitionFile   `yaml:"partition"`
	ForeignKeys []foreignKeyFile `yaml:"foreign_keys"`
}

type columnFile struct {
	Name              string `yaml:"name"`
	Type              string `yaml:"type"`
	OldName           string `yaml:"old_name"`
	Identity          bool   `yaml:"identity"`
	Nullable          bool   `yaml:"nullable"`
	Length            *int   `yaml:"length"`
	DatetimePrecision *int   `yaml:"datetime_precision"`
	Precision         *int   `yaml:"precision"`
	Scale             *int   `yaml:"scale"`
}

type indexFile struct {
	Name        string   `yaml:"name"`
	OldName     string   `yaml:"old_name"`
	Columns     []string `yaml:"columns"`
	Clustered   *bool    `yaml:"clustered"`
	Unique      bool     `yaml:"unique"`
	Included    []string `yaml:"included"`
	Compression string   `yaml:"compression"`
}

type partitionFile struct {
	Column string `yaml:"column"`
}

type foreignKeyFile struct {
	Column        string `yaml:"column"`
	ForeignSchema string `yaml:"foreign_schema"`
	ForeignTable  string `yaml:"foreign_table"`
	ForeignColumn string `yaml:"foreign_column"`
}

type userFile struct {
	Name  string   `yaml:"name"`
	Login string   `yaml:"login"`
	Roles []string `yaml:"roles"`
}

// Load reads a YAML topology file and builds the declared server tree.
func Load(path string) (*Node, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(buf)
}

// Parse builds the declared server tree from YAML topology text.
func Parse(buf []byte) (*Node, error) {
	var file serverFile
	if err := yaml.UnmarshalStrict(buf, &file); err != nil {
		return nil, fmt.Errorf("parsing topology: %w", err)
	}

	var opts ServerOpts
	for _, login := range file.Logins {
		node, err := NewLogin(login.Name, LoginOpts{
			Password:    login.Password,
			TypeDesc:    login.TypeDesc,
			ServerRoles: login.ServerRoles,
		})
		if err != nil {
			return nil, err
		}
		opts.Logins = append(opts.Logins, node)
	}
	for _, db := range file.Databases {
		node, err := buildDatabase(db)
		if err != nil {
			return nil, err
		}
		opts.Databases = append(opts.Databases, node)
	}
	return NewServer(opts)
}

func buildDatabase(db databaseFile) (*Node, error) {
	opts := DatabaseOpts{
		Owner:         db.Owner,
		RecoveryModel: db.RecoveryModel,
		DataFileDir:   db.DataFileDir,
		LogFileDir:    db.LogFileDir,
		DataSize:      db.DataSize,
		LogSize:       db.LogSize,
	}
	for _, schema := range db.Schemas {
		tables, err := buildTables(schema.Tables)
		if err != nil {
			return nil, err
		}
		node, err := NewSchema(schema.Name, tables)
		if err != nil {
			return nil, err
		}
		opts.Schemas = append(opts.Schemas, node)
	}
	var err error
	opts.Tables, err = buildTables(db.Tables)
	if err != nil {
		return nil, err
	}
	for _, user := range db.Users {
		node, err := NewUser(user.Name, user.Login, UserOpts{DBRoles: user.Roles})
		if err != nil {
			return nil, err
		}
		opts.Users = append(opts.Users, node)
	}
	return NewDatabase(db.Name, opts)
}

func buildTables(tables []tableFile) ([]*Node, error) {
	var out []*Node
	for _, table := range tables {
		node, err := buildTable(table)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, nil
}

func buildTable(table tableFile) (*Node, error) {
	opts := TableOpts{OldName: table.OldName}
	for _, column := range table.Columns {
		node, err := NewColumn(column.Name, column.Type, ColumnOpts{
			Identity:          column.Identity,
			Nullable:          column.Nullable,
			CharMaxLen:        column.Length,
			DatetimePrecision: column.DatetimePrecision,
			NumericPrecision:  column.Precision,
			NumericScale:      column.Scale,
			OldName:           column.OldName,
		})
		if err != nil {
			return nil, err
		}
		opts.Columns = append(opts.Columns, node)
	}
	if table.PrimaryKey != nil {
		nonClustered := table.PrimaryKey.Clustered != nil && !*table.PrimaryKey.Clustered
		node, err := NewPrimaryKey(table.PrimaryKey.Columns, PrimaryKeyOpts{
			Name:         table.PrimaryKey.Name,
			NonClustered: nonClustered,
			Compression:  table.PrimaryKey.Compression,
		})
		if err != nil {
			return nil, err
		}
		opts.PrimaryKey = node
	}
	for _, index := range table.Indexes {
		node, err := NewIndex(index.Columns, IndexOpts{
			Name:            index.Name,
			OldName:         index.OldName,
			Clustered:       index.Clustered != nil && *index.Clustered,
			Unique:          index.Unique,
			IncludedColumns: index.Included,
			Compression:     index.Compression,
		})
		if err != nil {
			return nil, err
		}
		opts.Indexes = append(opts.Indexes, node)
	}
	if table.Partition != nil {
		node, err := NewPartition(table.Partition.Column)
		if err != nil {
			return nil, err
		}
		opts.Partition = node
	}
	for _, fk := range table.ForeignKeys {
		node, err := NewForeignKey(fk.Column, fk.ForeignTable, fk.ForeignColumn, ForeignKeyOpts{
			ForeignSchema: fk.ForeignSchema,
		})
		if err != nil {
			return nil, err
		}
		opts.ForeignKeys = append(opts.ForeignKeys, node)
	}
	node, err := NewTable(table.Name, opts)
	if err != nil {
		return nil, err
	}
	return applyIgnoreExtra(node, table.IgnoreExtra)
}

func applyIgnoreExtra(node *Node, names []string) (*Node, error) {
	for _, name := range names {
		if name == "all" {
			return node.IgnoreAllExtraChildren(), nil
		}
		matched := false
		for _, t := range entity.Types() {
			if t.String() == name {
				node.IgnoreExtraChildren(t)
				matched = true
				break
			}
		}
		if !matched {
			return nil, fmt.Errorf("table %q: unknown ignore_extra child type %q", node.Name(), name)
		}
	}
	return node, nil
}
