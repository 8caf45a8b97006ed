// Package mssql implements the database.Executor boundary for SQL Server.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/denisenkom/go-mssqldb"

	"github.com/sqlalign/sqlalign/database"
)

// Executor runs every statement on one pooled connection so session state
// (USE [db], open transactions) survives between calls.
type Executor struct {
	db     *sql.DB
	conn   *sql.Conn
	ctx    context.Context
	logger database.Logger

	inTx       bool
	autocommit bool
}

func NewExecutor(config database.Config, logger database.Logger) (*Executor, error) {
	if logger == nil {
		logger = database.StdoutLogger{}
	}
	db, err := sql.Open("sqlserver", buildDSN(config))
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Executor{db: db, conn: conn, ctx: ctx, logger: logger}, nil
}

func (e *Executor) Query(stmt string) ([]database.Row, error) {
	rows, err := e.conn.QueryContext(e.ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("query failed: %s: %w", stmt, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []database.Row
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		row := database.Row{}
		for i, name := range columns {
			if b, ok := values[i].([]byte); ok {
				values[i] = string(b)
			}
			row[name] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (e *Executor) Exec(stmt string) error {
	if !e.autocommit && !e.inTx {
		if _, err := e.conn.ExecContext(e.ctx, "BEGIN TRANSACTION"); err != nil {
			return err
		}
		e.inTx = true
	}
	e.logger.Printf("%s;\n", stmt)
	if _, err := e.conn.ExecContext(e.ctx, stmt); err != nil {
		return fmt.Errorf("statement failed: %s: %w", stmt, err)
	}
	return nil
}

func (e *Executor) Commit() error {
	if !e.inTx {
		return nil
	}
	e.inTx = false
	_, err := e.conn.ExecContext(e.ctx, "COMMIT TRANSACTION")
	return err
}

func (e *Executor) Autocommit(fn func() error) error {
	if err := e.Commit(); err != nil {
		return err
	}
	e.autocommit = true
	defer func() { e.autocommit = false }()
	return fn()
}

func (e *Executor) Close() error {
	if err := e.conn.Close(); err != nil {
		e.db.Close()
		return err
	}
	return e.db.Close()
}

func buildDSN(config database.Config) string {
	query := url.Values{}
	query.Add("database", config.DbName)

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(config.User, config.Password),
		Host:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		RawQuery: query.Encode(),
	}
	return u.String()
}
