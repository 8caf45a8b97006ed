// Package reflected mirrors live database state: each node is bound to one
// live connection and exposes lazily fetched, cached attributes plus the
// type-specific create, alter, rename and delete operations the alignment
// engine drives.
package reflected

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sqlalign/sqlalign/database"
	"github.com/sqlalign/sqlalign/declared"
	"github.com/sqlalign/sqlalign/entity"
)

type Node struct {
	typ     entity.Type
	name    string
	parent  *Node
	exec    database.Executor
	confirm database.ConfirmFunc

	// Lazy attribute state: one detail fetch per node, individual attribute
	// values derived from it and cached separately.
	detail       database.Row
	detailLoaded bool
	attrs        map[string]any
}

func newNode(typ entity.Type, name string, parent *Node, exec database.Executor, confirm database.ConfirmFunc) (*Node, error) {
	if exec == nil {
		return nil, fmt.Errorf("reflected %s %q: no executor", typ, name)
	}
	n := &Node{
		typ:     typ,
		name:    name,
		parent:  parent,
		exec:    exec,
		confirm: confirm,
		attrs:   map[string]any{},
	}
	if init := opsFor(typ).onInit; init != nil {
		if err := init(n); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (n *Node) Type() entity.Type { return n.typ }
func (n *Node) Name() string      { return n.name }
func (n *Node) Parent() *Node     { return n.parent }

// FullName qualifies the node up to its database ancestor, for diagnostics.
func (n *Node) FullName() string {
	var names []string
	for current := n; current != nil; current = current.parent {
		names = append([]string{current.name}, names...)
		if current.typ == entity.Database {
			break
		}
	}
	return strings.Join(names, ".")
}

// AncestorName returns the name of the nearest ancestor (or self) of the
// given type, or "" when there is none.
func (n *Node) AncestorName(t entity.Type) string {
	for current := n; current != nil; current = current.parent {
		if current.typ == t {
			return current.name
		}
	}
	return ""
}

func (n *Node) String() string {
	return fmt.Sprintf("%s %q", n.typ, n.FullName())
}

// ---------------------------------------------------------------------------
// Attribute access

// Attr reads one registry attribute, fetching and caching the node's detail
// record on first use. A detail fetch that returns nothing is fatal: a node
// was constructed for an object that must exist.
func (n *Node) Attr(name string) (any, error) {
	if _, ok := entity.AttrKind(n.typ, name); !ok {
		return nil, fmt.Errorf("%s: %w: %q", n, entity.ErrUnknownAttribute, name)
	}
	if value, ok := n.attrs[name]; ok {
		return value, nil
	}
	if !n.detailLoaded {
		o := opsFor(n.typ)
		if o.detail == nil {
			return nil, fmt.Errorf("%s: no detail query configured", n)
		}
		row, err := o.detail(n)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, fmt.Errorf("%s: no detail record found", n)
		}
		n.detail = row
		n.detailLoaded = true
	}
	value, err := n.readAttribute(name)
	if err != nil {
		return nil, err
	}
	n.attrs[name] = value
	return value, nil
}

func (n *Node) readAttribute(name string) (any, error) {
	if getter, ok := opsFor(n.typ).getters[name]; ok {
		return getter(n, n.detail)
	}
	if n.detail.Has(name) {
		return n.detail.Value(name), nil
	}
	return nil, fmt.Errorf("%s: no getter for attribute %q and detail record has no such field", n, name)
}

// ResetAttribute invalidates one cached attribute so the next read re-fetches.
func (n *Node) ResetAttribute(name string) {
	n.detail = nil
	n.detailLoaded = false
	delete(n.attrs, name)
}

// ResetAll invalidates the whole attribute cache.
func (n *Node) ResetAll() {
	n.detail = nil
	n.detailLoaded = false
	n.attrs = map[string]any{}
}

// SetAttribute converges one live attribute to its declared value. An
// unregistered setter is a recoverable gap: log and report not-applied. A
// registered setter is gated by the confirmation callback; after the change
// the attribute is re-read and a mismatch against the declared value is
// fatal, because the live system silently rejected or transformed the change.
func (n *Node) SetAttribute(d *declared.Node, name string) (bool, error) {
	setter, ok := opsFor(n.typ).setters[name]
	if !ok {
		slog.Warn("no setter for attribute, leaving unconverged", "entity", n.FullName(), "attribute", name)
		return false, nil
	}
	want := d.Attr(name)
	if !n.confirm(fmt.Sprintf("Set %s %q to %v?", n.FullName(), name, want)) {
		slog.Warn("attribute change declined", "entity", n.FullName(), "attribute", name)
		return false, nil
	}
	slog.Info("setting attribute", "entity", n.FullName(), "attribute", name, "value", want)
	applied, err := setter(n, d)
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}
	if err := n.exec.Commit(); err != nil {
		return false, err
	}
	n.ResetAttribute(name)
	got, err := n.Attr(name)
	if err != nil {
		return false, err
	}
	kind, _ := entity.AttrKind(n.typ, name)
	if !entity.Equal(kind, want, got) {
		return false, fmt.Errorf("%s attribute %q is %v, wanted %v: %w", n, name, got, want, entity.ErrNotAltered)
	}
	return true, nil
}

// ---------------------------------------------------------------------------
// Structural mutation

// Rename renames the live object, verifies the new name resolves, then
// updates the in-memory name. Confirmation refusal leaves the object as is.
func (n *Node) Rename(newName string) error {
	o := opsFor(n.typ)
	if o.rename == nil {
		return fmt.Errorf("%s: rename not supported", n)
	}
	if !n.confirm(fmt.Sprintf("Rename %s to %q?", n.FullName(), newName)) {
		slog.Warn("rename declined", "entity", n.FullName(), "newName", newName)
		return nil
	}
	slog.Info("renaming", "entity", n.FullName(), "newName", newName)
	if err := o.rename(n, newName); err != nil {
		return err
	}
	if err := n.exec.Commit(); err != nil {
		return err
	}
	exists, err := o.nameExists(n.parent, newName)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s: rename to %q did not take effect", n, newName)
	}
	n.name = newName
	return nil
}

// Delete removes the live object if its type policy allows automatic
// deletion and the caller confirms. Policy or confirmation refusal reports
// false without an error: the extra object stays and alignment continues.
func (n *Node) Delete() (bool, error) {
	o := opsFor(n.typ)
	if o.canDelete != nil && !o.canDelete(n) {
		slog.Info("delete not allowed", "entity", n.FullName())
		return false, nil
	}
	if !n.confirm(fmt.Sprintf("Delete %s %q?", n.typ, n.FullName())) {
		slog.Warn("delete declined", "entity", n.FullName())
		return false, nil
	}
	slog.Info("deleting", "entity", n.FullName())
	deleted, err := o.drop(n)
	if err != nil || !deleted {
		return false, err
	}
	if err := n.exec.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// ---------------------------------------------------------------------------
// Child access

// Children lists all live children of a type, excluding system-reserved names.
func (n *Node) Children(childType entity.Type) ([]*Node, error) {
	o, err := n.childOps(childType)
	if err != nil {
		return nil, err
	}
	names, err := o.listNames(n)
	if err != nil {
		return nil, err
	}
	var children []*Node
	for _, name := range names {
		if o.isSystemName(name) {
			continue
		}
		child, err := newNode(childType, name, n, n.exec, n.confirm)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

// Child finds a live child by name.
func (n *Node) Child(childType entity.Type, name string) (*Node, error) {
	o, err := n.childOps(childType)
	if err != nil {
		return nil, err
	}
	if name != "" {
		exists, err := o.nameExists(n, name)
		if err != nil {
			return nil, err
		}
		if exists {
			return newNode(childType, name, n, n.exec, n.confirm)
		}
	}
	return nil, fmt.Errorf("%s %q: %w", childType, name, entity.ErrNotExist)
}

// ChildFromDeclared matches a live child against a declared node. The default
// match is existence under the declared name; structural types override it.
func (n *Node) ChildFromDeclared(d *declared.Node) (*Node, error) {
	o, err := n.childOps(d.Type())
	if err != nil {
		return nil, err
	}
	if o.fromDeclared != nil {
		return o.fromDeclared(n, d)
	}
	return n.Child(d.Type(), d.Name())
}

// GetOrCreateChild obtains the live counterpart of a declared child: match
// first, create and re-match on miss. A type that cannot be created (logins)
// logs and returns no counterpart; a created object that still fails to
// match is a fatal consistency error.
func (n *Node) GetOrCreateChild(d *declared.Node) (*Node, error) {
	child, err := n.ChildFromDeclared(d)
	if err == nil {
		return child, nil
	}
	if !errors.Is(err, entity.ErrNotExist) {
		return nil, err
	}
	o, err := n.childOps(d.Type())
	if err != nil {
		return nil, err
	}
	if !o.canCreate {
		slog.Info("cannot create entity type, leaving undeclared", "entity", d.String(), "parent", n.FullName())
		return nil, nil
	}
	slog.Info("creating", "entity", d.String(), "parent", n.FullName())
	if err := o.create(n, d); err != nil {
		return nil, err
	}
	if err := n.exec.Commit(); err != nil {
		return nil, err
	}
	child, err = n.ChildFromDeclared(d)
	if err != nil {
		return nil, fmt.Errorf("created %s under %s but it does not match its declaration: %w", d, n.FullName(), err)
	}
	return child, nil
}

// RenameChildWithOldName renames a live child found under the declared
// old_name to the declared name. No live child under the old name is
// expected and ignored.
func (n *Node) RenameChildWithOldName(d *declared.Node) error {
	if d.OldName() == "" {
		return nil
	}
	child, err := n.Child(d.Type(), d.OldName())
	if err != nil {
		if errors.Is(err, entity.ErrNotExist) {
			return nil
		}
		return err
	}
	return child.Rename(d.Name())
}

// EquateDeclared reports whether this live object is "the same" object as the
// declaration. Named types compare the name against the declared name or
// old_name case-insensitively; structural types (indexes, primary keys,
// partitions, users) compare by column sets or references instead.
func (n *Node) EquateDeclared(d *declared.Node) (bool, error) {
	if n.typ != d.Type() {
		return false, nil
	}
	if equate := opsFor(n.typ).equate; equate != nil {
		return equate(n, d)
	}
	if strings.EqualFold(n.name, d.Name()) {
		return true, nil
	}
	return d.OldName() != "" && strings.EqualFold(n.name, d.OldName()), nil
}

func (n *Node) childOps(childType entity.Type) (*ops, error) {
	for _, t := range entity.ChildTypes(n.typ) {
		if t == childType {
			return opsFor(childType), nil
		}
	}
	return nil, fmt.Errorf("%s has no child type %s: %w", n, childType, entity.ErrInvalidChild)
}
