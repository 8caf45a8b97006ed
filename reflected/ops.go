package reflected

import (
	"fmt"
	"strings"

	"github.com/sqlalign/sqlalign/database"
	"github.com/sqlalign/sqlalign/declared"
	"github.com/sqlalign/sqlalign/entity"
	"github.com/sqlalign/sqlalign/util"
)

// ops is the per-type behavior table. One instance per entity type describes
// how to enumerate, match, fetch, mutate and remove live objects of that
// type; Node methods dispatch through it.
type ops struct {
	// systemNames are live objects that must never be touched or even listed.
	systemNames []string

	// canCreate is false for types the tool may reference but never create
	// (logins require credentials only an operator can supply).
	canCreate bool
	// canDelete vetoes automatic deletion per node; nil means deletable.
	canDelete func(n *Node) bool

	listNames  func(parent *Node) ([]string, error)
	nameExists func(parent *Node, name string) (bool, error)
	create     func(parent *Node, d *declared.Node) error

	// fromDeclared overrides name-based matching for structural types.
	fromDeclared func(parent *Node, d *declared.Node) (*Node, error)
	// equate overrides name-based identity for structural types.
	equate func(n *Node, d *declared.Node) (bool, error)

	detail  func(n *Node) (database.Row, error)
	getters map[string]getterFunc
	setters map[string]setterFunc

	rename func(n *Node, newName string) error
	// drop removes the live object. It reports false without error when the
	// removal was refused for a recoverable reason (dependent objects the
	// operator declined to drop).
	drop func(n *Node) (bool, error)

	// onInit runs when a node is instantiated (databases switch the session).
	onInit func(n *Node) error
}

type (
	getterFunc func(n *Node, detail database.Row) (any, error)
	setterFunc func(n *Node, d *declared.Node) (bool, error)
)

var registry = map[entity.Type]*ops{}

func init() {
	registry[entity.Server] = serverOps()
	registry[entity.Login] = loginOps()
	registry[entity.Database] = databaseOps()
	registry[entity.Schema] = schemaOps()
	registry[entity.User] = userOps()
	registry[entity.Table] = tableOps()
	registry[entity.Column] = columnOps()
	registry[entity.PrimaryKey] = primaryKeyOps()
	registry[entity.Index] = indexOps()
	registry[entity.ForeignKey] = foreignKeyOps()
	registry[entity.Partition] = partitionOps()
}

func opsFor(t entity.Type) *ops {
	o, ok := registry[t]
	if !ok {
		panic(fmt.Sprintf("no reflected behavior for type %s", t))
	}
	return o
}

func (o *ops) isSystemName(name string) bool {
	for _, system := range o.systemNames {
		if strings.EqualFold(name, system) {
			return true
		}
	}
	return false
}

// Validate checks the behavior tables against the entity registry: every type
// is covered, child types can be enumerated and matched, attribute-bearing
// types have a detail query, and every getter and setter key is a registered
// attribute. Run once at startup; a failure is a programming error.
func Validate() error {
	for _, t := range entity.Types() {
		o, ok := registry[t]
		if !ok {
			return fmt.Errorf("reflected: no behavior for type %s", t)
		}
		if t != entity.Server {
			if o.listNames == nil {
				return fmt.Errorf("reflected: %s has no listNames", t)
			}
			if o.nameExists == nil {
				return fmt.Errorf("reflected: %s has no nameExists", t)
			}
		}
		if o.canCreate && o.create == nil {
			return fmt.Errorf("reflected: %s is creatable but has no create", t)
		}
		if o.canDelete == nil && o.drop == nil && t != entity.Server {
			return fmt.Errorf("reflected: %s has neither drop nor a delete veto", t)
		}
		if len(entity.Attributes(t)) > 0 && o.detail == nil {
			return fmt.Errorf("reflected: %s has attributes but no detail query", t)
		}
		for _, name := range util.SortedKeys(o.getters) {
			if _, ok := entity.AttrKind(t, name); !ok {
				return fmt.Errorf("reflected: %s getter for unknown attribute %q", t, name)
			}
		}
		for _, name := range util.SortedKeys(o.setters) {
			if _, ok := entity.AttrKind(t, name); !ok {
				return fmt.Errorf("reflected: %s setter for unknown attribute %q", t, name)
			}
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Shared query helpers

func queryNames(e database.Executor, stmt, field string) ([]string, error) {
	rows, err := e.Query(stmt)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.String(field))
	}
	return names, nil
}

func queryExists(parent *Node, stmt string) (bool, error) {
	return database.QueryExists(parent.exec, stmt)
}
