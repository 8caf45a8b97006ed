// Package declared builds the in-memory description of desired database
// state: a tree of typed nodes whose attribute sets are validated against the
// entity registry at construction time. The tree is read-only once built; the
// alignment engine only ever reads it.
package declared

import (
	"fmt"
	"strings"

	"github.com/sqlalign/sqlalign/entity"
)

const maxNameLength = 128

type Node struct {
	typ     entity.Type
	name    string
	oldName string

	ignoreAll   bool
	ignoreTypes map[entity.Type]bool

	children map[entity.Type][]*Node
	attrs    map[string]any
}

// newNode validates that attrs is exactly the registry set for typ.
func newNode(typ entity.Type, name string, attrs map[string]any) (*Node, error) {
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}
	registry := entity.Attributes(typ)
	if attrs == nil {
		attrs = map[string]any{}
	}
	for _, attr := range registry {
		if _, ok := attrs[attr.Name]; !ok {
			return nil, fmt.Errorf("%s %q: missing attribute %q", typ, name, attr.Name)
		}
	}
	if len(attrs) != len(registry) {
		for given := range attrs {
			if _, ok := entity.AttrKind(typ, given); !ok {
				return nil, fmt.Errorf("%s %q: %w: %q", typ, name, entity.ErrUnknownAttribute, given)
			}
		}
	}
	return &Node{
		typ:      typ,
		name:     name,
		children: map[entity.Type][]*Node{},
		attrs:    attrs,
	}, nil
}

func (n *Node) Type() entity.Type { return n.typ }
func (n *Node) Name() string      { return n.name }
func (n *Node) OldName() string   { return n.oldName }

// Attr returns the declared value of a registry attribute. Asking for a name
// outside the type's registry set is a programming error.
func (n *Node) Attr(name string) any {
	value, ok := n.attrs[name]
	if !ok {
		panic(fmt.Sprintf("%s %q has no attribute %q", n.typ, n.name, name))
	}
	return value
}

// WithOldName marks the node as renamed from a prior name, so alignment will
// rename a live object found under that name before converging attributes.
func (n *Node) WithOldName(oldName string) *Node {
	n.oldName = oldName
	return n
}

// IgnoreExtraChildren excludes the given child types from undeclared-child
// deletion during alignment.
func (n *Node) IgnoreExtraChildren(types ...entity.Type) *Node {
	if n.ignoreTypes == nil {
		n.ignoreTypes = map[entity.Type]bool{}
	}
	for _, t := range types {
		n.ignoreTypes[t] = true
	}
	return n
}

// IgnoreAllExtraChildren excludes every child type from undeclared-child
// deletion during alignment.
func (n *Node) IgnoreAllExtraChildren() *Node {
	n.ignoreAll = true
	return n
}

// IgnoresExtra reports whether undeclared live children of childType must be
// left in place.
func (n *Node) IgnoresExtra(childType entity.Type) bool {
	return n.ignoreAll || n.ignoreTypes[childType]
}

// AddChild appends a child node, validating the child type against the
// parent's allowed child types and rejecting duplicate sibling names eagerly.
// Auto-named children (empty name, e.g. foreign keys) skip the duplicate check.
func (n *Node) AddChild(child *Node) error {
	allowed := false
	for _, t := range entity.ChildTypes(n.typ) {
		if t == child.typ {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%s %q cannot own %s: %w", n.typ, n.name, child.typ, entity.ErrInvalidChild)
	}
	if child.name != "" {
		for _, sibling := range n.children[child.typ] {
			if strings.EqualFold(sibling.name, child.name) {
				return fmt.Errorf("%s %q already declares %s %q", n.typ, n.name, child.typ, child.name)
			}
		}
	}
	n.children[child.typ] = append(n.children[child.typ], child)
	return nil
}

func (n *Node) addChildren(children []*Node) error {
	for _, child := range children {
		if child == nil {
			continue
		}
		if err := n.AddChild(child); err != nil {
			return err
		}
	}
	return nil
}

// Children returns the declared children of a type in declaration order, or
// nil when none were declared. Callers must not mutate the returned slice.
func (n *Node) Children(childType entity.Type) []*Node {
	return n.children[childType]
}

// Child finds a declared child by type and name.
func (n *Node) Child(childType entity.Type, name string) (*Node, error) {
	for _, child := range n.children[childType] {
		if strings.EqualFold(child.name, name) {
			return child, nil
		}
	}
	return nil, fmt.Errorf("%s %q has no %s named %q: %w", n.typ, n.name, childType, name, entity.ErrNotExist)
}

// Resolve walks a chain of names down the tree, trying every child type at
// each step until one matches.
func (n *Node) Resolve(names ...string) (*Node, error) {
	if len(names) == 0 {
		return n, nil
	}
	child, err := n.childByName(names[0])
	if err != nil {
		return nil, err
	}
	return child.Resolve(names[1:]...)
}

func (n *Node) childByName(name string) (*Node, error) {
	for _, childType := range entity.ChildTypes(n.typ) {
		if child, err := n.Child(childType, name); err == nil {
			return child, nil
		}
	}
	return nil, fmt.Errorf("%s %q has no child named %q: %w", n.typ, n.name, name, entity.ErrNotExist)
}

func (n *Node) String() string {
	return fmt.Sprintf("%s %q", n.typ, n.name)
}

// ServerOpts declares the children of the server root.
type ServerOpts struct {
	Logins    []*Node
	Databases []*Node
}

// NewServer builds the declared root. The server itself has no name and no
// attributes.
func NewServer(opts ServerOpts) (*Node, error) {
	server, err := newNode(entity.Server, "", nil)
	if err != nil {
		return nil, err
	}
	if err := server.addChildren(opts.Logins); err != nil {
		return nil, err
	}
	if err := server.addChildren(opts.Databases); err != nil {
		return nil, err
	}
	return server, nil
}

type LoginOpts struct {
	Password    string
	TypeDesc    string // default SQL_LOGIN
	ServerRoles []string
}

func NewLogin(name string, opts LoginOpts) (*Node, error) {
	typeDesc := opts.TypeDesc
	if typeDesc == "" {
		typeDesc = "SQL_LOGIN"
	}
	return newNode(entity.Login, name, map[string]any{
		"type_desc":    typeDesc,
		"server_roles": opts.ServerRoles,
		"password":     opts.Password,
	})
}

type DatabaseOpts struct {
	Owner         string
	RecoveryModel string // FULL (default), SIMPLE or BULK_LOGGED

	// File placement. When DataFileDir is set, DataSize is required and the
	// data/log file paths are derived; otherwise server defaults are used.
	DataFileDir  string
	LogFileDir   string
	DataFileName string
	LogFileName  string
	DataSize     int // MB
	LogSize      int // MB, defaults to DataSize/10

	Schemas []*Node
	Users   []*Node

	// Tables is a shorthand that wraps the given tables in a default "dbo"
	// schema. Mutually exclusive with Schemas.
	Tables []*Node
}

func NewDatabase(name string, opts DatabaseOpts) (*Node, error) {
	recovery := opts.RecoveryModel
	if recovery == "" {
		recovery = "FULL"
	}
	switch strings.ToLower(recovery) {
	case "full", "simple", "bulk_logged":
	default:
		return nil, fmt.Errorf("database %q: invalid recovery model %q", name, recovery)
	}

	var dataFilePath, logFilePath any
	var dataSize, logSize any
	if opts.DataFileDir != "" {
		if opts.DataSize == 0 {
			return nil, fmt.Errorf("database %q: data size must be specified with a data file dir", name)
		}
		size := opts.DataSize
		lsize := opts.LogSize
		if lsize == 0 {
			lsize = size / 10
		}
		dataFileName := opts.DataFileName
		if dataFileName == "" {
			dataFileName = name + ".mdf"
		}
		logFileName := opts.LogFileName
		if logFileName == "" {
			logFileName = name + "_log.ldf"
		}
		dataFilePath = windowsJoin(opts.DataFileDir, dataFileName)
		logFilePath = windowsJoin(opts.LogFileDir, logFileName)
		dataSize = size
		logSize = lsize
	}

	db, err := newNode(entity.Database, name, map[string]any{
		"recovery_model_desc": recovery,
		"data_size":           dataSize,
		"log_size":            logSize,
		"owner":               opts.Owner,
		"data_file_path":      dataFilePath,
		"log_file_path":       logFilePath,
	})
	if err != nil {
		return nil, err
	}

	schemas := opts.Schemas
	if len(opts.Tables) > 0 {
		if len(schemas) > 0 {
			return nil, fmt.Errorf("database %q: cannot declare both tables and schemas", name)
		}
		dbo, err := NewSchema("dbo", opts.Tables)
		if err != nil {
			return nil, err
		}
		schemas = []*Node{dbo}
	}
	if err := db.addChildren(schemas); err != nil {
		return nil, err
	}
	if err := db.addChildren(opts.Users); err != nil {
		return nil, err
	}
	return db, nil
}

// GetTable finds a table through its intermediate schema. n must be a
// database node.
func (n *Node) GetTable(tableName, schemaName string) (*Node, error) {
	if schemaName == "" {
		schemaName = "dbo"
	}
	schema, err := n.Child(entity.Schema, schemaName)
	if err != nil {
		return nil, err
	}
	return schema.Child(entity.Table, tableName)
}

// AddTable adds a table to the named schema of a database node, declaring the
// schema on first use.
func (n *Node) AddTable(table *Node, schemaName string) error {
	if schemaName == "" {
		schemaName = "dbo"
	}
	schema, err := n.Child(entity.Schema, schemaName)
	if err != nil {
		schema, err = NewSchema(schemaName, nil)
		if err != nil {
			return err
		}
		if err := n.AddChild(schema); err != nil {
			return err
		}
	}
	return schema.AddChild(table)
}

func NewSchema(name string, tables []*Node) (*Node, error) {
	schema, err := newNode(entity.Schema, name, nil)
	if err != nil {
		return nil, err
	}
	if err := schema.addChildren(tables); err != nil {
		return nil, err
	}
	return schema, nil
}

type TableOpts struct {
	Columns     []*Node
	PrimaryKey  *Node
	Indexes     []*Node
	Partition   *Node
	ForeignKeys []*Node
	OldName     string
}

func NewTable(name string, opts TableOpts) (*Node, error) {
	table, err := newNode(entity.Table, name, nil)
	if err != nil {
		return nil, err
	}
	table.oldName = opts.OldName
	if err := table.addChildren(opts.Columns); err != nil {
		return nil, err
	}
	if opts.PrimaryKey != nil {
		if err := table.AddChild(opts.PrimaryKey); err != nil {
			return nil, err
		}
	}
	if err := table.addChildren(opts.Indexes); err != nil {
		return nil, err
	}
	if opts.Partition != nil {
		if err := table.AddChild(opts.Partition); err != nil {
			return nil, err
		}
	}
	if err := table.addChildren(opts.ForeignKeys); err != nil {
		return nil, err
	}
	return table, nil
}

// ClusteredIndexColumns returns the column list of the table's declared
// clustered index, or nil when none is declared.
func (n *Node) ClusteredIndexColumns() []string {
	for _, index := range n.Children(entity.Index) {
		if index.Attr("clustered").(bool) {
			return index.Attr("columns").([]string)
		}
	}
	return nil
}

type UserOpts struct {
	DBRoles []string
}

func NewUser(name, loginName string, opts UserOpts) (*Node, error) {
	return newNode(entity.User, name, map[string]any{
		"login_name": loginName,
		"db_roles":   opts.DBRoles,
	})
}

// UserForLogin declares a database user named after its login.
func UserForLogin(login *Node, opts UserOpts) (*Node, error) {
	return NewUser(login.Name(), login.Name(), opts)
}

// windowsJoin joins path elements with backslashes for the server-side file
// system, regardless of the local OS.
func windowsJoin(dir, file string) string {
	dir = strings.ReplaceAll(dir, "/", `\`)
	return strings.TrimSuffix(dir, `\`) + `\` + file
}
