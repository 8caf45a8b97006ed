// Package dbtest provides a scripted database.Executor for tests: queries are
// answered from canned result sets and executed statements are recorded, so a
// test can stand in for a live server without a connection.
package dbtest

import (
	"fmt"

	"github.com/sqlalign/sqlalign/database"
)

type Exec struct {
	// Executed records every statement passed to Exec, in order.
	Executed []string
	// Queries records every statement passed to Query, in order.
	Queries []string
	// Commits counts Commit calls.
	Commits int

	queries  map[string][][]database.Row
	execErrs map[string]error
}

func New() *Exec {
	return &Exec{
		queries:  map[string][][]database.Row{},
		execErrs: map[string]error{},
	}
}

// OnQuery scripts a result set for an exact statement. Scripting the same
// statement again queues a further result; the last scripted result is
// returned for any additional calls.
func (e *Exec) OnQuery(stmt string, rows ...database.Row) *Exec {
	e.queries[stmt] = append(e.queries[stmt], rows)
	return e
}

// FailExec makes Exec return err for an exact statement.
func (e *Exec) FailExec(stmt string, err error) *Exec {
	e.execErrs[stmt] = err
	return e
}

func (e *Exec) Query(stmt string) ([]database.Row, error) {
	e.Queries = append(e.Queries, stmt)
	queue, ok := e.queries[stmt]
	if !ok {
		return nil, fmt.Errorf("unscripted query: %s", stmt)
	}
	rows := queue[0]
	if len(queue) > 1 {
		e.queries[stmt] = queue[1:]
	}
	return rows, nil
}

func (e *Exec) Exec(stmt string) error {
	e.Executed = append(e.Executed, stmt)
	if err, ok := e.execErrs[stmt]; ok {
		return err
	}
	return nil
}

func (e *Exec) Commit() error {
	e.Commits++
	return nil
}

func (e *Exec) Autocommit(fn func() error) error {
	return fn()
}
