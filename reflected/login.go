package reflected

import (
	"github.com/sqlalign/sqlalign/database"
	"github.com/sqlalign/sqlalign/declared"
	"github.com/sqlalign/sqlalign/sqlbuild"
)

// serverRoleNames are the fixed server roles reported per login, one bit
// column each in the login detail query.
var serverRoleNames = []string{
	"sysadmin", "securityadmin", "serveradmin", "setupadmin",
	"processadmin", "diskadmin", "dbcreator", "bulkadmin",
}

// loginPasswordPlaceholder stands in for the unreadable password hash. A
// declared password therefore never converges; it is only used at manual
// login creation time.
const loginPasswordPlaceholder = "dummypassword"

func loginOps() *ops {
	return &ops{
		systemNames: []string{
			"sa",
			"##MS_PolicyTsqlExecutionLogin##",
			"##MS_PolicyEventProcessingLogin##",
		},
		// Logins carry credentials; creating them is an operator action.
		canCreate: false,

		listNames: func(parent *Node) ([]string, error) {
			return queryNames(parent.exec, sqlbuild.ListLogins(), "name")
		},
		nameExists: func(parent *Node, name string) (bool, error) {
			return queryExists(parent, sqlbuild.LoginExists(name))
		},
		detail: func(n *Node) (database.Row, error) {
			return database.QueryRow(n.exec, sqlbuild.LoginDetail(n.name))
		},
		getters: map[string]getterFunc{
			"server_roles": func(_ *Node, detail database.Row) (any, error) {
				var roles []string
				for _, role := range serverRoleNames {
					if detail.Bool(role) {
						roles = append(roles, role)
					}
				}
				return roles, nil
			},
			"password": func(*Node, database.Row) (any, error) {
				return loginPasswordPlaceholder, nil
			},
		},
		setters: map[string]setterFunc{
			"server_roles": setLoginServerRoles,
		},
		drop: func(n *Node) (bool, error) {
			return true, n.exec.Exec(sqlbuild.DropLogin(n.name))
		},
	}
}

func setLoginServerRoles(n *Node, d *declared.Node) (bool, error) {
	current, err := n.Attr("server_roles")
	if err != nil {
		return false, err
	}
	have := attrValueNames(current)
	want := attrNames(d, "server_roles")
	for _, role := range want {
		if !foldedContains(have, role) {
			if err := n.exec.Exec(sqlbuild.AlterServerRole(role, "ADD", n.name)); err != nil {
				return false, err
			}
		}
	}
	for _, role := range have {
		if !foldedContains(want, role) {
			if err := n.exec.Exec(sqlbuild.AlterServerRole(role, "DROP", n.name)); err != nil {
				return false, err
			}
		}
	}
	return true, nil
}
