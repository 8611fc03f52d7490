package driver

import (
	"context"
	"database/sql/driver"
	"fmt"
	"io"
	"time"

	"github.com/tomyedwab/sqlbridge/bridge"
	"github.com/tomyedwab/sqlbridge/engine"
)

// Conn wraps one bridge session.
type Conn struct {
	sess *bridge.Session
	tx   *Tx
}

var (
	_ driver.ExecerContext      = (*Conn)(nil)
	_ driver.QueryerContext     = (*Conn)(nil)
	_ driver.ConnPrepareContext = (*Conn)(nil)
	_ driver.ConnBeginTx        = (*Conn)(nil)
	_ driver.Pinger             = (*Conn)(nil)
	_ driver.Validator          = (*Conn)(nil)
)

// Session returns the bridge session behind the connection, for use with
// sql.Conn.Raw.
func (c *Conn) Session() *bridge.Session { return c.sess }

func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *Conn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, err := c.sess.Prepare(query)
	if err != nil {
		return nil, err
	}
	return &Stmt{st: st}, nil
}

// ExecContext runs query directly. Statements the engine cannot prepare,
// such as DDL, work here but not through Prepare.
func (c *Conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := c.sess.Execute(query, convertArgs(args)...)
	if err != nil {
		return nil, err
	}
	return result{rowsAffected: res.RowCount}, nil
}

func (c *Conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cur, err := c.sess.ExecuteQuery(query, convertArgs(args)...)
	if err != nil {
		return nil, err
	}
	return newRows(cur), nil
}

// Close closes the session and everything still open on it.
func (c *Conn) Close() error {
	return c.sess.Close()
}

func (c *Conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *Conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.tx != nil {
		return nil, fmt.Errorf("sqlbridge: transaction already active on this connection")
	}
	if opts.Isolation != driver.IsolationLevel(0) {
		return nil, fmt.Errorf("sqlbridge: isolation level %d is not supported", opts.Isolation)
	}
	mode := engine.TransactionReadWrite
	if opts.ReadOnly {
		mode = engine.TransactionReadOnly
	}
	if err := c.sess.BeginTransaction(mode); err != nil {
		return nil, err
	}
	c.tx = &Tx{conn: c}
	return c.tx, nil
}

func (c *Conn) Ping(ctx context.Context) error {
	if !c.sess.IsConnected() {
		return driver.ErrBadConn
	}
	return ctx.Err()
}

func (c *Conn) IsValid() bool { return c.sess.IsConnected() }

// convertArgs flattens named values into positional bridge parameters.
func convertArgs(args []driver.NamedValue) []interface{} {
	params := make([]interface{}, len(args))
	for i, a := range args {
		switch v := a.Value.(type) {
		case time.Time:
			params[i] = v.Format(time.RFC3339Nano)
		default:
			params[i] = v
		}
	}
	return params
}

// Stmt wraps a prepared bridge statement.
type Stmt struct {
	st *bridge.Statement
}

var (
	_ driver.StmtExecContext  = (*Stmt)(nil)
	_ driver.StmtQueryContext = (*Stmt)(nil)
)

func (s *Stmt) Close() error { return s.st.Close() }

// NumInput reports the parameter count the engine gave at prepare time.
func (s *Stmt) NumInput() int { return s.st.ParameterCount() }

func (s *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), namedValues(args))
}

func (s *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), namedValues(args))
}

func (s *Stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := s.st.Execute(convertArgs(args)...)
	if err != nil {
		return nil, err
	}
	return result{rowsAffected: res.RowCount}, nil
}

// QueryContext opens a cursor on the statement. Running the statement again
// closes rows returned by an earlier call.
func (s *Stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cur, err := s.st.Query(convertArgs(args)...)
	if err != nil {
		return nil, err
	}
	return newRows(cur), nil
}

func namedValues(args []driver.Value) []driver.NamedValue {
	named := make([]driver.NamedValue, len(args))
	for i, v := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return named
}

// Tx maps database/sql transactions onto the session's transaction calls.
type Tx struct {
	conn *Conn
	done bool
}

func (t *Tx) Commit() error {
	if t.done {
		return fmt.Errorf("sqlbridge: transaction already committed or rolled back")
	}
	t.done = true
	t.conn.tx = nil
	return t.conn.sess.Commit()
}

func (t *Tx) Rollback() error {
	if t.done {
		return fmt.Errorf("sqlbridge: transaction already committed or rolled back")
	}
	t.done = true
	t.conn.tx = nil
	return t.conn.sess.Rollback()
}

type result struct {
	rowsAffected int64
}

func (r result) LastInsertId() (int64, error) {
	return 0, fmt.Errorf("sqlbridge: LastInsertId is not supported")
}

func (r result) RowsAffected() (int64, error) { return r.rowsAffected, nil }

// rows streams a bridge cursor.
type rows struct {
	cur    *bridge.Cursor
	fields []bridge.ColumnMetadata
	names  []string
}

var (
	_ driver.RowsColumnTypeDatabaseTypeName = (*rows)(nil)
	_ driver.RowsColumnTypeNullable         = (*rows)(nil)
)

func newRows(cur *bridge.Cursor) *rows {
	fields := cur.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return &rows{cur: cur, fields: fields, names: names}
}

func (r *rows) Columns() []string { return r.names }

func (r *rows) Close() error { return r.cur.Close() }

// Next returns io.EOF at the end of the rows, or the failure that ended the
// cursor early.
func (r *rows) Next(dest []driver.Value) error {
	row, ok := r.cur.FetchNext()
	if !ok {
		if err := r.cur.Err(); err != nil {
			return err
		}
		return io.EOF
	}
	if row.Len() != len(dest) {
		return fmt.Errorf("sqlbridge: column count mismatch. Expected %d, got %d", len(dest), row.Len())
	}
	for i, v := range row.Values() {
		dest[i] = v.Interface()
	}
	return nil
}

func (r *rows) ColumnTypeDatabaseTypeName(index int) string {
	return r.fields[index].TypeName
}

func (r *rows) ColumnTypeNullable(index int) (nullable, ok bool) {
	return r.fields[index].Nullable, true
}
