// Package database is the collaborator boundary between the reconciler core
// and a live server: statement execution, row access, mutation confirmation.
// It never constructs DDL.
package database

import (
	"fmt"
	"strconv"
	"time"
)

type Config struct {
	DbName   string
	User     string
	Password string
	Host     string
	Port     int
}

// Row exposes one result row by the field names used in the query text.
type Row map[string]any

// Value returns the raw field value, nil for SQL NULL. Reading a field the
// query did not select is a programming error.
func (r Row) Value(name string) any {
	value, ok := r[name]
	if !ok {
		panic(fmt.Sprintf("row has no field %q", name))
	}
	return value
}

func (r Row) Has(name string) bool {
	_, ok := r[name]
	return ok
}

func (r Row) IsNull(name string) bool {
	return r.Value(name) == nil
}

func (r Row) String(name string) string {
	switch v := r.Value(name).(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func (r Row) Int(name string) int {
	switch v := r.Value(name).(type) {
	case nil:
		return 0
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	case []byte:
		n, _ := strconv.Atoi(string(v))
		return n
	default:
		return 0
	}
}

func (r Row) Bool(name string) bool {
	switch v := r.Value(name).(type) {
	case nil:
		return false
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

func (r Row) Time(name string) time.Time {
	if v, ok := r.Value(name).(time.Time); ok {
		return v
	}
	return time.Time{}
}

// Executor runs statements against one live connection. Implementations own
// transaction state: Exec statements accumulate in an open transaction until
// Commit, except inside an Autocommit scope.
type Executor interface {
	// Query runs a row-returning statement.
	Query(stmt string) ([]Row, error)
	// Exec runs a statement for its side effects.
	Exec(stmt string) error
	// Commit commits the open transaction, if any.
	Commit() error
	// Autocommit runs fn with every statement committing immediately, for
	// statements that cannot run inside an open transaction (CREATE DATABASE,
	// ALTER DATABASE).
	Autocommit(fn func() error) error
}

// QueryRow runs a query and returns its first row, or nil when the result is
// empty.
func QueryRow(e Executor, stmt string) (Row, error) {
	rows, err := e.Query(stmt)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// QueryExists reports whether a query returns at least one row.
func QueryExists(e Executor, stmt string) (bool, error) {
	row, err := QueryRow(e, stmt)
	if err != nil {
		return false, err
	}
	return row != nil, nil
}
