package reflected

import (
	"github.com/sqlalign/sqlalign/declared"
	"github.com/sqlalign/sqlalign/entity"
	"github.com/sqlalign/sqlalign/sqlbuild"
)

func schemaOps() *ops {
	return &ops{
		systemNames: []string{"sys", "guest", "INFORMATION_SCHEMA"},
		canCreate:   true,
		// Schemas anchor permissions and object resolution; dropping one is
		// an operator decision.
		canDelete: func(*Node) bool { return false },

		listNames: func(parent *Node) ([]string, error) {
			return queryNames(parent.exec, sqlbuild.ListSchemas(parent.AncestorName(entity.Database)), "name")
		},
		nameExists: func(parent *Node, name string) (bool, error) {
			return queryExists(parent, sqlbuild.SchemaExists(name))
		},
		create: func(parent *Node, d *declared.Node) error {
			return parent.exec.Exec(sqlbuild.CreateSchema(d.Name()))
		},
	}
}
