package host

import (
	"bytes"
	"database/sql"
	"strings"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"

	"github.com/tomyedwab/sqlbridge/engine"
)

type column struct {
	name string
	code int
}

// Statement implements engine.Statement on a prepared database/sql statement.
type Statement struct {
	sess  *Session
	id    string
	sql   string
	stmt  *sqlx.Stmt
	query bool

	cols   []column
	params []int
	args   []interface{}
	lobs   map[int]*Lob

	rows    *sql.Rows
	current []interface{}
	ended   bool
}

// describe works out result columns and parameter types. Declared NOT NULL
// constraints from PRAGMA table_info take precedence over what the driver
// reports, since go-sqlite3 reports every column as nullable.
func (st *Statement) describe() error {
	s := st.sess
	table := singleTable(st.sql)
	info := s.tableInfo(table)

	pcols := parameterColumns(st.sql)
	st.params = make([]int, len(pcols))
	for i, name := range pcols {
		if c, ok := info[name]; ok && name != "" {
			st.params[i] = typeCode(c.Type, !c.notNull())
		} else {
			st.params[i] = -engine.UTF8
		}
	}
	st.args = make([]interface{}, len(st.params))

	if !st.query {
		return nil
	}
	types, err := st.columnTypes()
	if err != nil {
		return s.fail(engine.CodeExecutionFailure, "BeginStatement", "%v", err)
	}
	st.cols = make([]column, len(types))
	for i, ct := range types {
		nullable := true
		if c, known := info[ct.Name()]; known {
			nullable = !c.notNull()
		} else if n, ok := ct.Nullable(); ok {
			nullable = n
		}
		st.cols[i] = column{name: ct.Name(), code: typeCode(ct.DatabaseTypeName(), nullable)}
	}
	return nil
}

// columnTypes reads the result columns from a LIMIT 0 wrapper so the query
// itself is not evaluated. Statements that cannot be nested in a subquery
// (PRAGMA, EXPLAIN, SHOW) are run once with NULL parameters instead.
func (st *Statement) columnTypes() ([]*sql.ColumnType, error) {
	s := st.sess
	args := make([]interface{}, len(st.params))
	inner := strings.TrimRight(strings.TrimSpace(st.sql), "; \t\n")
	rows, err := s.conn.QueryContext(s.ctx, "SELECT * FROM ("+inner+") AS q LIMIT 0", args...)
	if err != nil {
		s.log.Debugf("Zero-row describe of %s failed, running it: %v", st.id, err)
		rows, err = st.stmt.QueryContext(s.ctx, args...)
		if err != nil {
			return nil, err
		}
	}
	defer rows.Close()
	return rows.ColumnTypes()
}

func (st *Statement) check(op string) error {
	if st.ended {
		return st.sess.fail(engine.CodeInvalidHandle, op, "statement has ended")
	}
	return nil
}

func (st *Statement) ColumnCount() (int, error) {
	if err := st.check("ColumnCount"); err != nil {
		return 0, err
	}
	return len(st.cols), nil
}

func (st *Statement) column(op string, col int) (column, error) {
	if err := st.check(op); err != nil {
		return column{}, err
	}
	if col < 1 || col > len(st.cols) {
		return column{}, st.sess.fail(engine.CodeIndexOutOfRange, op, "column %d out of range", col)
	}
	return st.cols[col-1], nil
}

func (st *Statement) ColumnName(col int) (string, error) {
	c, err := st.column("ColumnName", col)
	return c.name, err
}

func (st *Statement) ColumnType(col int) (int, error) {
	c, err := st.column("ColumnType", col)
	return c.code, err
}

func (st *Statement) ParameterCount() (int, error) {
	if err := st.check("ParameterCount"); err != nil {
		return 0, err
	}
	return len(st.params), nil
}

func (st *Statement) ParameterType(param int) (int, error) {
	if err := st.check("ParameterType"); err != nil {
		return 0, err
	}
	if param < 1 || param > len(st.params) {
		return 0, st.sess.fail(engine.CodeIndexOutOfRange, "ParameterType", "parameter %d out of range", param)
	}
	return st.params[param-1], nil
}

// boundArgs returns the arguments for the next run with large objects
// resolved to their written contents.
func (st *Statement) boundArgs(op string) ([]interface{}, error) {
	args := make([]interface{}, len(st.args))
	copy(args, st.args)
	for param, lob := range st.lobs {
		if err := lob.complete(); err != nil {
			return nil, st.sess.fail(engine.CodeLobSizeMismatch, op, "parameter %d: %v", param, err)
		}
		if lob.text {
			args[param-1] = lob.buf.String()
		} else {
			args[param-1] = bytes.Clone(lob.buf.Bytes())
		}
	}
	return args, nil
}

func (st *Statement) Execute() (int64, error) {
	if err := st.check("Execute"); err != nil {
		return 0, err
	}
	if st.query {
		return 0, st.sess.fail(engine.CodeSequenceError, "Execute", "statement returns rows, open a cursor")
	}
	if st.sess.inTx && st.sess.txRO {
		return 0, st.sess.fail(engine.CodeTransactionFailure, "Execute", "transaction is read-only")
	}
	args, err := st.boundArgs("Execute")
	if err != nil {
		return 0, err
	}
	res, err := st.stmt.ExecContext(st.sess.ctx, args...)
	if err != nil {
		return 0, st.sess.fail(engine.CodeExecutionFailure, "Execute", "%v", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		st.sess.log.Debugf("Rows affected not available for %s: %v", st.id, err)
		return 0, nil
	}
	return n, nil
}

func (st *Statement) OpenCursor() error {
	if err := st.check("OpenCursor"); err != nil {
		return err
	}
	if !st.query {
		return st.sess.fail(engine.CodeSequenceError, "OpenCursor", "statement has no result columns")
	}
	if st.rows != nil {
		return st.sess.fail(engine.CodeSequenceError, "OpenCursor", "cursor already open")
	}
	args, err := st.boundArgs("OpenCursor")
	if err != nil {
		return err
	}
	rows, err := st.stmt.QueryContext(st.sess.ctx, args...)
	if err != nil {
		return st.sess.fail(engine.CodeExecutionFailure, "OpenCursor", "%v", err)
	}
	st.rows = rows
	st.current = nil
	return nil
}

func (st *Statement) Fetch() (bool, error) {
	if err := st.check("Fetch"); err != nil {
		return false, err
	}
	if st.rows == nil {
		return false, st.sess.fail(engine.CodeSequenceError, "Fetch", "cursor not open")
	}
	st.current = nil
	if !st.rows.Next() {
		if err := st.rows.Err(); err != nil {
			return false, st.sess.fail(engine.CodeExecutionFailure, "Fetch", "%v", err)
		}
		return false, nil
	}
	row := make([]interface{}, len(st.cols))
	ptrs := make([]interface{}, len(row))
	for i := range row {
		ptrs[i] = &row[i]
	}
	if err := st.rows.Scan(ptrs...); err != nil {
		return false, st.sess.fail(engine.CodeExecutionFailure, "Fetch", "%v", err)
	}
	st.current = row
	return true, nil
}

func (st *Statement) CloseCursor() error {
	if err := st.check("CloseCursor"); err != nil {
		return err
	}
	if st.rows == nil {
		return st.sess.fail(engine.CodeSequenceError, "CloseCursor", "cursor not open")
	}
	err := st.rows.Close()
	st.rows = nil
	st.current = nil
	if err != nil {
		return st.sess.fail(engine.CodeInternalError, "CloseCursor", "%v", err)
	}
	return nil
}

func (st *Statement) End() error {
	if err := st.check("EndStatement"); err != nil {
		return err
	}
	st.ended = true
	if st.rows != nil {
		_ = st.rows.Close()
		st.rows = nil
	}
	st.sess.removeStatement(st.id)
	if err := st.stmt.Close(); err != nil {
		return st.sess.fail(engine.CodeInternalError, "EndStatement", "%v", err)
	}
	return nil
}

func (st *Statement) set(op string, param int, v interface{}) error {
	if err := st.check(op); err != nil {
		return err
	}
	if param < 1 || param > len(st.args) {
		return st.sess.fail(engine.CodeIndexOutOfRange, op, "parameter %d out of range", param)
	}
	st.args[param-1] = v
	delete(st.lobs, param)
	return nil
}

func (st *Statement) SetNull(param int) error              { return st.set("SetNull", param, nil) }
func (st *Statement) SetBoolean(param int, v bool) error   { return st.set("SetBoolean", param, v) }
func (st *Statement) SetInt32(param int, v int32) error    { return st.set("SetInt32", param, v) }
func (st *Statement) SetInt64(param int, v int64) error    { return st.set("SetInt64", param, v) }
func (st *Statement) SetDouble(param int, v float64) error { return st.set("SetDouble", param, v) }
func (st *Statement) SetString(param int, v string) error  { return st.set("SetString", param, v) }
func (st *Statement) SetBinary(param int, v []byte) error  { return st.set("SetBinary", param, bytes.Clone(v)) }

func (st *Statement) SetLob(param int, size int64) (engine.Lob, error) {
	if err := st.set("SetLob", param, nil); err != nil {
		return nil, err
	}
	ptype := st.params[param-1]
	if !engine.IsBlob(ptype) && !engine.IsNclob(ptype) {
		return nil, st.sess.fail(engine.CodeTypeMismatch, "SetLob", "parameter %d is not a large object", param)
	}
	if size < 0 {
		return nil, st.sess.fail(engine.CodeLobSizeMismatch, "SetLob", "negative size %d", size)
	}
	lob := &Lob{sess: st.sess, text: engine.IsNclob(ptype), size: size}
	if st.lobs == nil {
		st.lobs = make(map[int]*Lob)
	}
	st.lobs[param] = lob
	return lob, nil
}

func (st *Statement) value(op string, col int) (column, interface{}, error) {
	c, err := st.column(op, col)
	if err != nil {
		return column{}, nil, err
	}
	if st.current == nil {
		return column{}, nil, st.sess.fail(engine.CodeSequenceError, op, "no current row")
	}
	return c, st.current[col-1], nil
}

func (st *Statement) mismatch(op string, col int, v interface{}) error {
	return st.sess.fail(engine.CodeTypeMismatch, op, "column %d holds %T", col, v)
}

func (st *Statement) IsNull(col int) (bool, error) {
	_, v, err := st.value("IsNull", col)
	return v == nil, err
}

func (st *Statement) GetInt32(col int) (int32, error) {
	_, v, err := st.value("GetInt32", col)
	if err != nil {
		return 0, err
	}
	i, ok := asInt64(v)
	if !ok || i < -1<<31 || i > 1<<31-1 {
		return 0, st.mismatch("GetInt32", col, v)
	}
	return int32(i), nil
}

func (st *Statement) GetInt64(col int) (int64, error) {
	_, v, err := st.value("GetInt64", col)
	if err != nil {
		return 0, err
	}
	i, ok := asInt64(v)
	if !ok {
		return 0, st.mismatch("GetInt64", col, v)
	}
	return i, nil
}

func (st *Statement) GetDouble(col int) (float64, error) {
	_, v, err := st.value("GetDouble", col)
	if err != nil {
		return 0, err
	}
	f, ok := asFloat64(v)
	if !ok {
		return 0, st.mismatch("GetDouble", col, v)
	}
	return f, nil
}

func (st *Statement) GetFloat(col int) (float32, error) {
	_, v, err := st.value("GetFloat", col)
	if err != nil {
		return 0, err
	}
	f, ok := asFloat64(v)
	if !ok {
		return 0, st.mismatch("GetFloat", col, v)
	}
	return float32(f), nil
}

func (st *Statement) GetBoolean(col int) (bool, error) {
	_, v, err := st.value("GetBoolean", col)
	if err != nil {
		return false, err
	}
	b, ok := asBool(v)
	if !ok {
		return false, st.mismatch("GetBoolean", col, v)
	}
	return b, nil
}

func (st *Statement) GetBinary(col int, buf []byte) (int, error) {
	_, v, err := st.value("GetBinary", col)
	if err != nil {
		return 0, err
	}
	var p []byte
	switch x := v.(type) {
	case []byte:
		p = x
	case string:
		p = []byte(x)
	default:
		return 0, st.mismatch("GetBinary", col, v)
	}
	copy(buf, p)
	return len(p), nil
}

// GetString writes the value's text and a NUL terminator into buf, truncating
// when it does not fit, and returns the full length in bytes.
func (st *Statement) GetString(col int, buf []byte) (int, error) {
	c, v, err := st.value("GetString", col)
	if err != nil {
		return 0, err
	}
	s := asText(v, c.code)
	if len(buf) > 0 {
		n := copy(buf[:len(buf)-1], s)
		buf[n] = 0
	}
	return len(s), nil
}

// GetLob returns a reader over a large object column and its size: bytes for
// binary, characters for text.
func (st *Statement) GetLob(col int) (engine.Lob, int64, error) {
	c, v, err := st.value("GetLob", col)
	if err != nil {
		return nil, 0, err
	}
	lob := &Lob{sess: st.sess, text: engine.IsNclob(c.code)}
	switch x := v.(type) {
	case []byte:
		lob.buf.Write(x)
	case string:
		lob.buf.WriteString(x)
	default:
		return nil, 0, st.mismatch("GetLob", col, v)
	}
	if lob.text {
		lob.size = int64(utf8.RuneCount(lob.buf.Bytes()))
	} else {
		lob.size = int64(lob.buf.Len())
	}
	return lob, lob.size, nil
}
