// Package testutil provides a table-aware stub database for the postgres atlas
// store tests. It understands the statements the store emits: CREATE TABLE,
// TRUNCATE TABLE, INSERT INTO ... VALUES, and SELECT cols FROM table.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"maps"
	"strings"
	"sync/atomic"
)

var stubSeq atomic.Int64

// StubConn records statements and keeps inserted rows per table. The Fail
// fields inject errors into the matching step.
type StubConn struct {
	Execs      []string
	Queries    []string
	Tables     map[string][]map[string]any
	FailExec   bool
	FailBegin  bool
	FailCommit bool
	FailTables map[string]bool
}

// NewStubDB registers a fresh driver and returns a sql.DB bound to its
// single connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Tables: make(map[string][]map[string]any)}
	name := fmt.Sprintf("stubpg-atlas-%d", stubSeq.Add(1))
	sql.Register(name, stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct{ conn *StubConn }

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn. Statements run through ExecContext and
// QueryContext only.
func (c *StubConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("stub: prepared statements are not supported")
}

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, errors.New("stub: begin failed")
	}
	return stubTx{conn: c}, nil
}

// Ping implements driver.Pinger. FailExec makes it fail too so NewStore
// reports an unreachable server.
func (c *StubConn) Ping(context.Context) error {
	if c.FailExec {
		return errors.New("stub: ping failed")
	}
	return nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, errors.New("stub: exec failed")
	}
	verb, rest := cutWords(query, 2)
	switch strings.ToUpper(verb) {
	case "TRUNCATE TABLE":
		return c.truncate(rest)
	case "INSERT INTO":
		return c.insert(rest, args)
	default:
		return driver.RowsAffected(0), nil
	}
}

func (c *StubConn) truncate(list string) (driver.Result, error) {
	for _, table := range splitNames(strings.TrimSuffix(strings.TrimSpace(list), ";")) {
		if c.FailTables[table] {
			return nil, fmt.Errorf("stub: truncate %s failed", table)
		}
		delete(c.Tables, table)
	}
	return driver.RowsAffected(0), nil
}

// insert handles `table(col,...) VALUES(...)`.
func (c *StubConn) insert(rest string, args []driver.NamedValue) (driver.Result, error) {
	table, cols, ok := strings.Cut(strings.TrimSpace(rest), "(")
	if !ok {
		return nil, fmt.Errorf("stub: cannot parse insert %q", rest)
	}
	colList, _, ok := strings.Cut(cols, ")")
	if !ok {
		return nil, fmt.Errorf("stub: cannot parse insert %q", rest)
	}
	table = strings.ToLower(strings.TrimSpace(table))
	names := splitNames(colList)
	if c.FailTables[table] {
		return nil, fmt.Errorf("stub: insert into %s failed", table)
	}
	if len(names) != len(args) {
		return nil, fmt.Errorf("stub: %s has %d columns but %d args", table, len(names), len(args))
	}
	row := make(map[string]any, len(names))
	for i, name := range names {
		row[name] = args[i].Value
	}
	c.Tables[table] = append(c.Tables[table], row)
	return driver.RowsAffected(1), nil
}

// QueryContext implements driver.QueryerContext for `SELECT cols FROM table`.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.Queries = append(c.Queries, query)
	verb, rest := cutWords(query, 1)
	from := strings.Index(strings.ToUpper(rest), " FROM ")
	if !strings.EqualFold(verb, "SELECT") || from == -1 {
		return nil, fmt.Errorf("stub: cannot parse select %q", query)
	}
	fields := strings.Fields(rest[from+len(" FROM "):])
	if len(fields) == 0 {
		return nil, fmt.Errorf("stub: cannot parse select %q", query)
	}
	table := strings.ToLower(fields[0])
	if c.FailTables[table] {
		return nil, fmt.Errorf("stub: select from %s failed", table)
	}
	cols := splitNames(rest[:from])
	out := &stubRows{cols: cols}
	for _, row := range c.Tables[table] {
		vals := make([]driver.Value, len(cols))
		for i, col := range cols {
			vals[i] = row[col]
		}
		out.rows = append(out.rows, vals)
	}
	return out, nil
}

// Rows returns a copy of the rows stored for table.
func (c *StubConn) Rows(table string) []map[string]any {
	out := make([]map[string]any, 0, len(c.Tables[table]))
	for _, row := range c.Tables[table] {
		out = append(out, maps.Clone(row))
	}
	return out
}

type stubTx struct{ conn *StubConn }

func (t stubTx) Commit() error {
	if t.conn.FailCommit {
		return errors.New("stub: commit failed")
	}
	return nil
}

func (stubTx) Rollback() error { return nil }

type stubRows struct {
	cols []string
	rows [][]driver.Value
	next int
}

func (r *stubRows) Columns() []string { return r.cols }

func (r *stubRows) Close() error { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.next >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.next])
	r.next++
	return nil
}

// cutWords splits the first n whitespace-separated words off s and returns
// them joined by single spaces, plus the remainder.
func cutWords(s string, n int) (string, string) {
	words := make([]string, 0, n)
	rest := s
	for range n {
		rest = strings.TrimLeft(rest, " \t\n")
		end := strings.IndexAny(rest, " \t\n")
		if end == -1 {
			words = append(words, rest)
			rest = ""
			continue
		}
		words = append(words, rest[:end])
		rest = rest[end:]
	}
	return strings.Join(words, " "), rest
}

func splitNames(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
