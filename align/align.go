// Package align walks the declared and reflected trees together and converges
// live state onto the declaration: attributes first, then children, depth
// first. Every mutation commits on its own, so a run stopped by an error
// leaves a consistent prefix and the next run picks up where it stopped.
package align

import (
	"fmt"
	"log/slog"

	"github.com/sqlalign/sqlalign/database"
	"github.com/sqlalign/sqlalign/declared"
	"github.com/sqlalign/sqlalign/entity"
	"github.com/sqlalign/sqlalign/reflected"
)

// Server aligns a whole server against the declared root. Mutations are
// gated by confirm; database.AutoApprove runs unattended.
func Server(exec database.Executor, confirm database.ConfirmFunc, d *declared.Node) error {
	if err := reflected.Validate(); err != nil {
		return err
	}
	root, err := reflected.ServerFromExecutor(exec, confirm)
	if err != nil {
		return err
	}
	slog.Info("aligning server", "server", root.Name())
	return Entity(d, root, true)
}

// Entity converges one reflected node onto its declaration: type check,
// attribute convergence, then child convergence when withChildren is set.
//
// Recoverable gaps (declined confirmations, attributes with no setter, types
// that cannot be created) are logged and skipped; the walk continues. An
// error return is fatal and stops the run.
func Entity(d *declared.Node, r *reflected.Node, withChildren bool) error {
	if r == nil {
		return nil
	}
	if d.Type() != r.Type() {
		return fmt.Errorf("align: declared %s against reflected %s %q", d, r.Type(), r.Name())
	}
	slog.Debug("aligning", "entity", r.FullName(), "type", r.Type().String())

	for _, attr := range entity.Attributes(d.Type()) {
		want := d.Attr(attr.Name)
		got, err := r.Attr(attr.Name)
		if err != nil {
			return err
		}
		if entity.Equal(attr.Kind, want, got) {
			continue
		}
		slog.Info("attribute differs", "entity", r.FullName(), "attribute", attr.Name,
			"declared", want, "reflected", got)
		applied, err := r.SetAttribute(d, attr.Name)
		if err != nil {
			return err
		}
		if !applied {
			slog.Warn("attribute left unconverged", "entity", r.FullName(), "attribute", attr.Name)
		}
	}

	if !withChildren {
		return nil
	}
	for _, childType := range entity.ChildTypes(d.Type()) {
		if err := alignChildType(d, r, childType); err != nil {
			return err
		}
	}
	return nil
}

// alignChildType converges one child type under one parent pair. A type with
// nothing declared is out of scope: its live objects are left untouched, not
// treated as undeclared extras. Otherwise undeclared live children go first,
// so their names and structures cannot collide with renames and creations;
// declared children then follow declaration order.
func alignChildType(d *declared.Node, r *reflected.Node, childType entity.Type) error {
	declaredChildren := d.Children(childType)
	if len(declaredChildren) == 0 {
		return nil
	}
	if err := deleteUndeclared(d, r, childType); err != nil {
		return err
	}
	for _, declaredChild := range declaredChildren {
		if err := r.RenameChildWithOldName(declaredChild); err != nil {
			return err
		}
		liveChild, err := r.GetOrCreateChild(declaredChild)
		if err != nil {
			return err
		}
		if liveChild == nil {
			slog.Warn("declared entity has no live counterpart, skipping subtree",
				"entity", declaredChild.String(), "parent", r.FullName())
			continue
		}
		if err := Entity(declaredChild, liveChild, true); err != nil {
			return err
		}
	}
	return nil
}

func deleteUndeclared(d *declared.Node, r *reflected.Node, childType entity.Type) error {
	if d.IgnoresExtra(childType) {
		return nil
	}
	liveChildren, err := r.Children(childType)
	if err != nil {
		return err
	}
	for _, liveChild := range liveChildren {
		isDeclared, err := matchesAnyDeclared(liveChild, d.Children(childType))
		if err != nil {
			return err
		}
		if isDeclared {
			continue
		}
		slog.Info("undeclared live entity", "entity", liveChild.FullName(), "type", childType.String())
		deleted, err := liveChild.Delete()
		if err != nil {
			return err
		}
		if !deleted {
			slog.Warn("undeclared entity left in place", "entity", liveChild.FullName())
		}
	}
	return nil
}

func matchesAnyDeclared(liveChild *reflected.Node, declaredChildren []*declared.Node) (bool, error) {
	for _, declaredChild := range declaredChildren {
		same, err := liveChild.EquateDeclared(declaredChild)
		if err != nil {
			return false, err
		}
		if same {
			return true, nil
		}
	}
	return false, nil
}
