// Package enginetest provides a scripted in-memory engine.Engine for tests.
//
// Every SQL text a test uses is registered with Script. The mock answers
// metadata from the script, serves its rows through a forward-only cursor and
// records each engine call so tests can assert ordering and handle release.
package enginetest

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tomyedwab/sqlbridge/engine"
)

// Column is one scripted result column.
type Column struct {
	Name string
	Type int
}

// Script describes how the mock answers one SQL text.
type Script struct {
	Columns []Column
	// Params holds the declared type code of each parameter.
	Params []int
	// Rows holds the cursor's values: nil, bool, int32, int64, float32,
	// float64, string or []byte.
	Rows     [][]interface{}
	Affected int64

	CannotBePrepared bool
	PrepareErr       error
	DirectErr        error
	// FetchErrAt makes the fetch of row FetchErrAt fail. Zero disables it;
	// use 1 to fail the first fetch.
	FetchErrAt int
	// Fail makes the named Statement method fail, e.g. "SetInt32" or
	// "GetString".
	Fail map[string]error
}

// MockEngine implements engine.Engine.
type MockEngine struct {
	mu      sync.Mutex
	scripts map[string]*Script
	calls   []string
	bound   map[string][]interface{}

	openSessions   int
	openStatements int

	// Users restricts logins when non-nil.
	Users map[string]string
	// EndSessionErr is returned by Session.End after the session is released.
	EndSessionErr error
	// TxErr is returned by BeginTransaction and EndTransaction.
	TxErr error
}

// NewMockEngine creates an engine with no scripts.
func NewMockEngine() *MockEngine {
	return &MockEngine{
		scripts: make(map[string]*Script),
		bound:   make(map[string][]interface{}),
	}
}

// Script registers the answer for sql.
func (m *MockEngine) Script(sql string, s *Script) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[sql] = s
}

// Calls returns a copy of the recorded call history.
func (m *MockEngine) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]string, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// ResetCalls clears the call history.
func (m *MockEngine) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Bound returns the parameter values of the last execution of sql. Large
// objects appear as the []byte or string written through their Lob.
func (m *MockEngine) Bound(sql string) []interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bound[sql]
}

// OpenSessions returns the number of sessions begun and not ended.
func (m *MockEngine) OpenSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openSessions
}

// OpenStatements returns the number of statements begun and not ended.
func (m *MockEngine) OpenStatements() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openStatements
}

func (m *MockEngine) record(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf(format, args...))
}

// BeginSession implements engine.Engine.
func (m *MockEngine) BeginSession(target, user, credential string) (engine.Session, error) {
	m.record("BeginSession(%s, %s)", target, user)
	if m.Users != nil {
		if pw, ok := m.Users[user]; !ok || pw != credential {
			return nil, engine.Errorf(engine.CodeLoginFailure, "BeginSession", "login failure for %s", user)
		}
	}
	m.mu.Lock()
	m.openSessions++
	m.mu.Unlock()
	return &MockSession{eng: m}, nil
}

// MockSession implements engine.Session.
type MockSession struct {
	eng     *MockEngine
	ended   bool
	lastErr *engine.Error
}

func (s *MockSession) fail(code int, op, format string, args ...interface{}) error {
	s.lastErr = engine.Errorf(code, op, format, args...)
	return s.lastErr
}

func (s *MockSession) failWith(op string, err error) error {
	if e, ok := err.(*engine.Error); ok {
		s.lastErr = e
		return e
	}
	return s.fail(engine.Code(err), op, "%v", err)
}

func (s *MockSession) BeginStatement(sql string, mode engine.CursorMode) (engine.Statement, error) {
	s.eng.record("BeginStatement(%s)", sql)
	if s.ended {
		return nil, s.fail(engine.CodeInvalidHandle, "BeginStatement", "session ended")
	}
	s.eng.mu.Lock()
	script, ok := s.eng.scripts[sql]
	s.eng.mu.Unlock()
	if !ok {
		return nil, s.fail(engine.CodeSyntaxError, "BeginStatement", "syntax error in %q", sql)
	}
	if script.CannotBePrepared {
		return nil, s.fail(engine.CodeStatementCannotBePrepared, "BeginStatement", "statement cannot be prepared")
	}
	if script.PrepareErr != nil {
		return nil, s.failWith("BeginStatement", script.PrepareErr)
	}
	s.eng.mu.Lock()
	s.eng.openStatements++
	s.eng.mu.Unlock()
	return &MockStatement{
		sess:   s,
		sql:    sql,
		script: script,
		params: make([]interface{}, len(script.Params)),
	}, nil
}

func (s *MockSession) ExecuteStatement(sql string) error {
	s.eng.record("ExecuteStatement(%s)", sql)
	if s.ended {
		return s.fail(engine.CodeInvalidHandle, "ExecuteStatement", "session ended")
	}
	s.eng.mu.Lock()
	script, ok := s.eng.scripts[sql]
	s.eng.mu.Unlock()
	if !ok {
		return s.fail(engine.CodeSyntaxError, "ExecuteStatement", "syntax error in %q", sql)
	}
	if script.DirectErr != nil {
		return s.failWith("ExecuteStatement", script.DirectErr)
	}
	return nil
}

func (s *MockSession) BeginTransaction(mode engine.TransactionMode) error {
	s.eng.record("BeginTransaction")
	if s.eng.TxErr != nil {
		return s.failWith("BeginTransaction", s.eng.TxErr)
	}
	return nil
}

func (s *MockSession) EndTransaction(mode engine.EndMode) error {
	s.eng.record("EndTransaction(%s)", mode)
	if s.eng.TxErr != nil {
		return s.failWith("EndTransaction", s.eng.TxErr)
	}
	return nil
}

func (s *MockSession) LastError() (int, string) {
	if s.lastErr == nil {
		return engine.CodeSuccess, ""
	}
	return s.lastErr.Code, s.lastErr.Message
}

func (s *MockSession) End() error {
	s.eng.record("EndSession")
	if s.ended {
		return s.fail(engine.CodeInvalidHandle, "EndSession", "session already ended")
	}
	s.ended = true
	s.eng.mu.Lock()
	s.eng.openSessions--
	s.eng.mu.Unlock()
	return s.eng.EndSessionErr
}

// MockStatement implements engine.Statement.
type MockStatement struct {
	sess   *MockSession
	sql    string
	script *Script
	params []interface{}
	lobs   map[int]*MockLob

	ended   bool
	open    bool
	fetched int
	current []interface{}
}

func (st *MockStatement) check(op string) error {
	if st.ended {
		return st.sess.fail(engine.CodeInvalidHandle, op, "statement ended")
	}
	if err, ok := st.script.Fail[op]; ok {
		return st.sess.failWith(op, err)
	}
	return nil
}

func (st *MockStatement) ColumnCount() (int, error) {
	if err := st.check("ColumnCount"); err != nil {
		return 0, err
	}
	return len(st.script.Columns), nil
}

func (st *MockStatement) column(op string, col int) (Column, error) {
	if err := st.check(op); err != nil {
		return Column{}, err
	}
	if col < 1 || col > len(st.script.Columns) {
		return Column{}, st.sess.fail(engine.CodeIndexOutOfRange, op, "column %d out of range", col)
	}
	return st.script.Columns[col-1], nil
}

func (st *MockStatement) ColumnName(col int) (string, error) {
	c, err := st.column("ColumnName", col)
	return c.Name, err
}

func (st *MockStatement) ColumnType(col int) (int, error) {
	c, err := st.column("ColumnType", col)
	return c.Type, err
}

func (st *MockStatement) ParameterCount() (int, error) {
	if err := st.check("ParameterCount"); err != nil {
		return 0, err
	}
	return len(st.script.Params), nil
}

func (st *MockStatement) ParameterType(param int) (int, error) {
	if err := st.check("ParameterType"); err != nil {
		return 0, err
	}
	if param < 1 || param > len(st.script.Params) {
		return 0, st.sess.fail(engine.CodeIndexOutOfRange, "ParameterType", "parameter %d out of range", param)
	}
	return st.script.Params[param-1], nil
}

// commitParams publishes the bound values, resolving written large objects.
func (st *MockStatement) commitParams() {
	bound := make([]interface{}, len(st.params))
	copy(bound, st.params)
	for idx, lob := range st.lobs {
		if lob.text {
			bound[idx-1] = lob.buf.String()
		} else {
			bound[idx-1] = []byte(lob.buf.String())
		}
	}
	st.sess.eng.mu.Lock()
	st.sess.eng.bound[st.sql] = bound
	st.sess.eng.mu.Unlock()
}

func (st *MockStatement) Execute() (int64, error) {
	st.sess.eng.record("Execute")
	if err := st.check("Execute"); err != nil {
		return 0, err
	}
	if len(st.script.Columns) > 0 {
		return 0, st.sess.fail(engine.CodeSequenceError, "Execute", "statement returns rows")
	}
	st.commitParams()
	return st.script.Affected, nil
}

func (st *MockStatement) OpenCursor() error {
	st.sess.eng.record("OpenCursor")
	if err := st.check("OpenCursor"); err != nil {
		return err
	}
	if len(st.script.Columns) == 0 {
		return st.sess.fail(engine.CodeSequenceError, "OpenCursor", "statement has no result columns")
	}
	if st.open {
		return st.sess.fail(engine.CodeSequenceError, "OpenCursor", "cursor already open")
	}
	st.commitParams()
	st.open = true
	st.fetched = 0
	st.current = nil
	return nil
}

func (st *MockStatement) Fetch() (bool, error) {
	st.sess.eng.record("Fetch")
	if err := st.check("Fetch"); err != nil {
		return false, err
	}
	if !st.open {
		return false, st.sess.fail(engine.CodeSequenceError, "Fetch", "cursor not open")
	}
	if st.script.FetchErrAt > 0 && st.fetched+1 == st.script.FetchErrAt {
		return false, st.sess.fail(engine.CodeExecutionFailure, "Fetch", "fetch failed at row %d", st.fetched+1)
	}
	if st.fetched >= len(st.script.Rows) {
		st.current = nil
		return false, nil
	}
	st.current = st.script.Rows[st.fetched]
	st.fetched++
	return true, nil
}

func (st *MockStatement) CloseCursor() error {
	st.sess.eng.record("CloseCursor")
	if err := st.check("CloseCursor"); err != nil {
		return err
	}
	if !st.open {
		return st.sess.fail(engine.CodeSequenceError, "CloseCursor", "cursor not open")
	}
	st.open = false
	st.current = nil
	return nil
}

func (st *MockStatement) End() error {
	st.sess.eng.record("EndStatement")
	if st.ended {
		return st.sess.fail(engine.CodeInvalidHandle, "EndStatement", "statement already ended")
	}
	st.ended = true
	st.open = false
	st.sess.eng.mu.Lock()
	st.sess.eng.openStatements--
	st.sess.eng.mu.Unlock()
	return nil
}

func (st *MockStatement) set(op string, param int, v interface{}) error {
	st.sess.eng.record("%s(%d)", op, param)
	if err := st.check(op); err != nil {
		return err
	}
	if param < 1 || param > len(st.params) {
		return st.sess.fail(engine.CodeIndexOutOfRange, op, "parameter %d out of range", param)
	}
	st.params[param-1] = v
	if st.lobs != nil {
		delete(st.lobs, param)
	}
	return nil
}

func (st *MockStatement) SetNull(param int) error { return st.set("SetNull", param, nil) }
func (st *MockStatement) SetBoolean(param int, v bool) error {
	return st.set("SetBoolean", param, v)
}
func (st *MockStatement) SetInt32(param int, v int32) error { return st.set("SetInt32", param, v) }
func (st *MockStatement) SetInt64(param int, v int64) error { return st.set("SetInt64", param, v) }
func (st *MockStatement) SetDouble(param int, v float64) error {
	return st.set("SetDouble", param, v)
}
func (st *MockStatement) SetString(param int, v string) error {
	return st.set("SetString", param, v)
}
func (st *MockStatement) SetBinary(param int, v []byte) error {
	return st.set("SetBinary", param, append([]byte(nil), v...))
}

func (st *MockStatement) SetLob(param int, size int64) (engine.Lob, error) {
	if err := st.set("SetLob", param, nil); err != nil {
		return nil, err
	}
	ptype := st.script.Params[param-1]
	if !engine.IsBlob(ptype) && !engine.IsNclob(ptype) {
		return nil, st.sess.fail(engine.CodeTypeMismatch, "SetLob", "parameter %d is not a large object", param)
	}
	lob := &MockLob{stmt: st, text: engine.IsNclob(ptype), size: size}
	if st.lobs == nil {
		st.lobs = make(map[int]*MockLob)
	}
	st.lobs[param] = lob
	return lob, nil
}

func (st *MockStatement) value(op string, col int) (interface{}, error) {
	if err := st.check(op); err != nil {
		return nil, err
	}
	if st.current == nil {
		return nil, st.sess.fail(engine.CodeSequenceError, op, "no current row")
	}
	if col < 1 || col > len(st.current) {
		return nil, st.sess.fail(engine.CodeIndexOutOfRange, op, "column %d out of range", col)
	}
	return st.current[col-1], nil
}

func (st *MockStatement) mismatch(op string, col int, v interface{}) error {
	return st.sess.fail(engine.CodeTypeMismatch, op, "column %d holds %T", col, v)
}

func (st *MockStatement) IsNull(col int) (bool, error) {
	v, err := st.value("IsNull", col)
	if err != nil {
		return false, err
	}
	return v == nil, nil
}

func (st *MockStatement) GetInt32(col int) (int32, error) {
	st.sess.eng.record("GetInt32(%d)", col)
	v, err := st.value("GetInt32", col)
	if err != nil {
		return 0, err
	}
	if i, ok := v.(int32); ok {
		return i, nil
	}
	return 0, st.mismatch("GetInt32", col, v)
}

func (st *MockStatement) GetInt64(col int) (int64, error) {
	st.sess.eng.record("GetInt64(%d)", col)
	v, err := st.value("GetInt64", col)
	if err != nil {
		return 0, err
	}
	switch i := v.(type) {
	case int64:
		return i, nil
	case int32:
		return int64(i), nil
	}
	return 0, st.mismatch("GetInt64", col, v)
}

func (st *MockStatement) GetDouble(col int) (float64, error) {
	st.sess.eng.record("GetDouble(%d)", col)
	v, err := st.value("GetDouble", col)
	if err != nil {
		return 0, err
	}
	if f, ok := v.(float64); ok {
		return f, nil
	}
	return 0, st.mismatch("GetDouble", col, v)
}

func (st *MockStatement) GetFloat(col int) (float32, error) {
	st.sess.eng.record("GetFloat(%d)", col)
	v, err := st.value("GetFloat", col)
	if err != nil {
		return 0, err
	}
	if f, ok := v.(float32); ok {
		return f, nil
	}
	return 0, st.mismatch("GetFloat", col, v)
}

func (st *MockStatement) GetBoolean(col int) (bool, error) {
	st.sess.eng.record("GetBoolean(%d)", col)
	v, err := st.value("GetBoolean", col)
	if err != nil {
		return false, err
	}
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, st.mismatch("GetBoolean", col, v)
}

func (st *MockStatement) GetBinary(col int, buf []byte) (int, error) {
	st.sess.eng.record("GetBinary(%d, %d)", col, len(buf))
	v, err := st.value("GetBinary", col)
	if err != nil {
		return 0, err
	}
	b, ok := v.([]byte)
	if !ok {
		return 0, st.mismatch("GetBinary", col, v)
	}
	copy(buf, b)
	return len(b), nil
}

func (st *MockStatement) GetString(col int, buf []byte) (int, error) {
	st.sess.eng.record("GetString(%d, %d)", col, len(buf))
	v, err := st.value("GetString", col)
	if err != nil {
		return 0, err
	}
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []byte:
		return 0, st.mismatch("GetString", col, v)
	default:
		s = fmt.Sprint(x)
	}
	if len(buf) > 0 {
		n := copy(buf[:len(buf)-1], s)
		buf[n] = 0
	}
	return len(s), nil
}

func (st *MockStatement) GetLob(col int) (engine.Lob, int64, error) {
	st.sess.eng.record("GetLob(%d)", col)
	v, err := st.value("GetLob", col)
	if err != nil {
		return nil, 0, err
	}
	switch x := v.(type) {
	case []byte:
		lob := &MockLob{stmt: st, size: int64(len(x))}
		lob.buf.Write(x)
		return lob, lob.size, nil
	case string:
		lob := &MockLob{stmt: st, text: true, size: int64(utf8.RuneCountInString(x))}
		lob.buf.WriteString(x)
		return lob, lob.size, nil
	}
	return nil, 0, st.mismatch("GetLob", col, v)
}

// MockLob implements engine.Lob over an in-memory buffer.
type MockLob struct {
	stmt *MockStatement
	text bool
	size int64
	buf  strings.Builder
	pos  int
}

func (l *MockLob) write(op string, p []byte) error {
	l.stmt.sess.eng.record("%s(%d)", op, len(p))
	if len(p) > engine.MaxLobChunk {
		return l.stmt.sess.fail(engine.CodeLobChunkTooLarge, op, "chunk of %d bytes", len(p))
	}
	l.buf.Write(p)
	return nil
}

func (l *MockLob) WriteBlob(p []byte) error {
	if l.text {
		return l.stmt.sess.fail(engine.CodeTypeMismatch, "WriteBlob", "character large object")
	}
	return l.write("WriteBlob", p)
}

func (l *MockLob) WriteNclob(p []byte) error {
	if !l.text {
		return l.stmt.sess.fail(engine.CodeTypeMismatch, "WriteNclob", "binary large object")
	}
	if !utf8.Valid(p) {
		return l.stmt.sess.fail(engine.CodeTruncatedUTF8, "WriteNclob", "chunk splits a code point")
	}
	return l.write("WriteNclob", p)
}

func (l *MockLob) ReadBlob(p []byte) error {
	l.stmt.sess.eng.record("ReadBlob(%d)", len(p))
	data := l.buf.String()
	if l.pos+len(p) > len(data) {
		return l.stmt.sess.fail(engine.CodeLobSizeMismatch, "ReadBlob", "read past end")
	}
	copy(p, data[l.pos:])
	l.pos += len(p)
	return nil
}

func (l *MockLob) ReadNclob(p []byte) (int, bool, error) {
	l.stmt.sess.eng.record("ReadNclob(%d)", len(p))
	if len(p) == 0 {
		return 0, false, l.stmt.sess.fail(engine.CodeIndexOutOfRange, "ReadNclob", "empty buffer")
	}
	data := l.buf.String()[l.pos:]
	n := len(p) - 1
	if n >= len(data) {
		n = len(data)
	} else {
		for n > 0 && !utf8.RuneStart(data[n]) {
			n--
		}
	}
	copy(p, data[:n])
	p[n] = 0
	l.pos += n
	return n, l.pos < l.buf.Len(), nil
}
