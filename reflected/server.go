package reflected

import (
	"fmt"

	"github.com/sqlalign/sqlalign/database"
	"github.com/sqlalign/sqlalign/entity"
	"github.com/sqlalign/sqlalign/sqlbuild"
)

// ServerFromExecutor builds the live root node for the server behind the
// executor. Every mutation during alignment is gated by confirm.
func ServerFromExecutor(exec database.Executor, confirm database.ConfirmFunc) (*Node, error) {
	if confirm == nil {
		confirm = database.AutoApprove
	}
	row, err := database.QueryRow(exec, sqlbuild.ServerName())
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("server name query returned nothing")
	}
	return newNode(entity.Server, row.String("name"), nil, exec, confirm)
}

// CurrentDatabase returns the database the session is currently attached to.
// n must be the server root.
func (n *Node) CurrentDatabase() (*Node, error) {
	row, err := database.QueryRow(n.exec, sqlbuild.CurrentDatabaseName())
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("current database query returned nothing")
	}
	return n.Child(entity.Database, row.String("name"))
}

// The server root is enumerated from above by nobody; it only owns children.
func serverOps() *ops {
	return &ops{}
}
