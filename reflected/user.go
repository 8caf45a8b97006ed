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

func userOps() *ops {
	return &ops{
		systemNames: []string{"dbo", "guest", "sys", "INFORMATION_SCHEMA"},
		canCreate:   true,

		listNames: func(parent *Node) ([]string, error) {
			return queryNames(parent.exec, sqlbuild.ListUsers(), "name")
		},
		nameExists: func(parent *Node, name string) (bool, error) {
			return queryExists(parent, sqlbuild.UserExists(name))
		},

		// A user is "the same" user when it maps to the declared login, even
		// under another name.
		fromDeclared: func(parent *Node, d *declared.Node) (*Node, error) {
			row, err := database.QueryRow(parent.exec, sqlbuild.UserForLogin(attrString(d, "login_name")))
			if err != nil {
				return nil, err
			}
			if row == nil {
				return nil, fmt.Errorf("user for login %q: %w", attrString(d, "login_name"), entity.ErrNotExist)
			}
			return newNode(entity.User, row.String("name"), parent, parent.exec, parent.confirm)
		},
		equate: func(n *Node, d *declared.Node) (bool, error) {
			loginName, err := n.Attr("login_name")
			if err != nil {
				return false, err
			}
			return strings.EqualFold(attrString(d, "login_name"), fmt.Sprint(loginName)), nil
		},

		create: func(parent *Node, d *declared.Node) error {
			login := attrString(d, "login_name")
			if err := parent.exec.Exec(sqlbuild.CreateUser(d.Name(), login)); err != nil {
				return err
			}
			for _, role := range attrNames(d, "db_roles") {
				if err := parent.exec.Exec(sqlbuild.AlterDatabaseRole(role, "ADD", d.Name())); err != nil {
					return err
				}
			}
			return nil
		},
		detail: func(n *Node) (database.Row, error) {
			return database.QueryRow(n.exec, sqlbuild.UserDetail(n.name))
		},
		getters: map[string]getterFunc{
			"db_roles": func(n *Node, _ database.Row) (any, error) {
				rows, err := n.exec.Query(sqlbuild.UserRoles(n.name))
				if err != nil {
					return nil, err
				}
				var roles []string
				for _, row := range rows {
					roles = append(roles, row.String("role_name"))
				}
				return roles, nil
			},
		},
		setters: map[string]setterFunc{
			"db_roles": setUserDatabaseRoles,
		},
		drop: func(n *Node) (bool, error) {
			return true, n.exec.Exec(sqlbuild.DropUser(n.name))
		},
	}
}

// setUserDatabaseRoles reconciles role membership, except for the database
// owner: the owning principal already holds every permission and role grants
// against dbo-mapped logins fail, so the gap is left in place.
func setUserDatabaseRoles(n *Node, d *declared.Node) (bool, error) {
	owner, err := n.databaseOwner()
	if err != nil {
		return false, err
	}
	loginName, err := n.Attr("login_name")
	if err != nil {
		return false, err
	}
	if strings.EqualFold(owner, fmt.Sprint(loginName)) {
		slog.Warn("login owns the database, leaving roles unconverged",
			"user", n.FullName(), "login", loginName)
		return false, nil
	}
	current, err := n.Attr("db_roles")
	if err != nil {
		return false, err
	}
	have := attrValueNames(current)
	want := attrNames(d, "db_roles")
	for _, role := range want {
		if !foldedContains(have, role) {
			if err := n.exec.Exec(sqlbuild.AlterDatabaseRole(role, "ADD", n.name)); err != nil {
				return false, err
			}
		}
	}
	for _, role := range have {
		if !foldedContains(want, role) {
			if err := n.exec.Exec(sqlbuild.AlterDatabaseRole(role, "DROP", n.name)); err != nil {
				return false, err
			}
		}
	}
	return true, nil
}

func (n *Node) databaseOwner() (string, error) {
	dbName := n.AncestorName(entity.Database)
	row, err := database.QueryRow(n.exec, sqlbuild.DatabaseDetail(dbName))
	if err != nil {
		return "", err
	}
	if row == nil {
		return "", fmt.Errorf("database %q: no detail record found", dbName)
	}
	return row.String("owner"), nil
}
