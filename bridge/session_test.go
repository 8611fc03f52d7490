package bridge

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/tomyedwab/sqlbridge/engine"
	"github.com/tomyedwab/sqlbridge/engine/enginetest"
)

// newTestSession connects a session to eng with a captured logger.
func newTestSession(t *testing.T, eng *enginetest.MockEngine, cfg Config) (*Session, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(log.DebugLevel)
	cfg.Logger = logger
	sess, err := New(eng, cfg)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := sess.Connect("testdb", "sysadm", "secret"); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	t.Cleanup(func() { sess.Close() })
	return sess, hook
}

func usersEngine() *enginetest.MockEngine {
	eng := enginetest.NewMockEngine()
	eng.Script("SELECT id, name FROM users", &enginetest.Script{
		Columns: []enginetest.Column{
			{Name: "id", Type: engine.NativeInteger},
			{Name: "name", Type: -engine.UTF8},
		},
		Rows: [][]interface{}{
			{int32(1), "alice"},
			{int32(2), nil},
		},
	})
	eng.Script("UPDATE users SET name = ? WHERE id = ?", &enginetest.Script{
		Params:   []int{engine.UTF8, engine.TInteger},
		Affected: 1,
	})
	eng.Script("CREATE TABLE users (id INTEGER, name NVARCHAR(64))", &enginetest.Script{
		CannotBePrepared: true,
	})
	return eng
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"write chunk too small", Config{LobWriteChunk: 3}},
		{"write chunk too large", Config{LobWriteChunk: engine.MaxLobChunk + 1}},
		{"read chunk too small", Config{LobReadChunk: 4}},
		{"string buffer too small", Config{StringBuffer: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(enginetest.NewMockEngine(), tt.cfg); err == nil {
				t.Error("New accepted an invalid config")
			}
		})
	}
}

func TestNotConnected(t *testing.T) {
	sess, err := New(usersEngine(), Config{})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ops := map[string]func() error{
		"Execute": func() error {
			_, err := sess.Execute("SELECT id, name FROM users")
			return err
		},
		"Prepare": func() error {
			_, err := sess.Prepare("SELECT id, name FROM users")
			return err
		},
		"ExecuteQuery": func() error {
			_, err := sess.ExecuteQuery("SELECT id, name FROM users")
			return err
		},
		"BeginTransaction": func() error { return sess.BeginTransaction(engine.TransactionReadWrite) },
		"Commit":           sess.Commit,
		"Rollback":         sess.Rollback,
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			err := op()
			if !IsNotConnected(err) {
				t.Errorf("%s error = %v, want NotConnected", name, err)
			}
			if !errors.Is(err, ErrNotConnected) {
				t.Errorf("errors.Is(%v, ErrNotConnected) = false", err)
			}
		})
	}

	if sess.IsConnected() {
		t.Error("new session reports connected")
	}
	if err := sess.Close(); err != nil {
		t.Errorf("Close on a disconnected session returned %v", err)
	}
}

func TestConnect(t *testing.T) {
	eng := usersEngine()
	eng.Users = map[string]string{"sysadm": "secret"}

	sess, err := New(eng, Config{})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	err = sess.Connect("testdb", "sysadm", "wrong")
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindConnectFailure {
		t.Fatalf("Connect with a bad password returned %v, want ConnectFailure", err)
	}
	if e.Code != engine.CodeLoginFailure {
		t.Errorf("Code = %d, want %d", e.Code, engine.CodeLoginFailure)
	}
	if sess.IsConnected() {
		t.Error("session connected after a failed login")
	}

	if err := sess.Connect("testdb", "sysadm", "secret"); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	if !sess.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}

	if err := sess.Connect("otherdb", "sysadm", "secret"); !errors.Is(err, ErrConnectFailure) {
		t.Errorf("second Connect returned %v, want ConnectFailure", err)
	}
	if eng.OpenSessions() != 1 {
		t.Errorf("engine has %d open sessions, want 1", eng.OpenSessions())
	}

	if err := sess.Close(); err != nil {
		t.Errorf("Close returned %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
	if sess.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
	if eng.OpenSessions() != 0 {
		t.Errorf("engine has %d open sessions after Close", eng.OpenSessions())
	}
}

func TestExecuteQueryStatement(t *testing.T) {
	eng := usersEngine()
	sess, _ := newTestSession(t, eng, Config{})

	res, err := sess.Execute("SELECT id, name FROM users")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !res.HasResultSet() || res.RowCount != 2 || len(res.Rows) != 2 {
		t.Fatalf("Execute returned %+v", res)
	}
	wantFields := []ColumnMetadata{
		{Name: "id", TypeCode: engine.NativeInteger, TypeName: "INTEGER", Nullable: false},
		{Name: "name", TypeCode: -engine.UTF8, TypeName: "NVARCHAR", Nullable: true},
	}
	for i, f := range wantFields {
		if res.Fields[i] != f {
			t.Errorf("Fields[%d] = %+v, want %+v", i, res.Fields[i], f)
		}
	}

	got, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	want := `{"fields":[{"name":"id","dataTypeCode":503,"dataTypeName":"INTEGER","nullable":false},` +
		`{"name":"name","dataTypeCode":-5,"dataTypeName":"NVARCHAR","nullable":true}],` +
		`"rows":[{"id":1,"name":"alice"},{"id":2,"name":null}],"rowCount":2}`
	if string(got) != want {
		t.Errorf("Marshal(result) =\n%s\nwant\n%s", got, want)
	}

	if eng.OpenStatements() != 0 {
		t.Errorf("engine has %d open statements after Execute", eng.OpenStatements())
	}
}

func TestExecuteUpdate(t *testing.T) {
	eng := usersEngine()
	sess, _ := newTestSession(t, eng, Config{})

	res, err := sess.Execute("UPDATE users SET name = ? WHERE id = ?", "bob", 2)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if res.HasResultSet() || res.RowCount != 1 {
		t.Errorf("Execute returned %+v, want 1 affected row", res)
	}
	got, _ := json.Marshal(res)
	if string(got) != `{"rowCount":1}` {
		t.Errorf("Marshal(result) = %s", got)
	}
	if eng.OpenStatements() != 0 {
		t.Errorf("engine has %d open statements after Execute", eng.OpenStatements())
	}
}

func TestExecuteDirect(t *testing.T) {
	eng := usersEngine()
	sess, _ := newTestSession(t, eng, Config{})
	eng.ResetCalls()

	res, err := sess.Execute("CREATE TABLE users (id INTEGER, name NVARCHAR(64))")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if res.HasResultSet() || res.RowCount != 0 {
		t.Errorf("Execute returned %+v, want no rows", res)
	}
	calls := eng.Calls()
	if len(calls) != 2 || !strings.HasPrefix(calls[1], "ExecuteStatement(") {
		t.Errorf("calls = %v, want BeginStatement then ExecuteStatement", calls)
	}

	eng.Script("DROP TABLE users", &enginetest.Script{
		CannotBePrepared: true,
		DirectErr:        engine.Errorf(engine.CodeExecutionFailure, "ExecuteStatement", "table is in use"),
	})
	_, err = sess.Execute("DROP TABLE users")
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindExecuteFailure {
		t.Fatalf("Execute returned %v, want ExecuteFailure", err)
	}
	if e.Detail != "table is in use" || e.Code != engine.CodeExecutionFailure {
		t.Errorf("error = %+v", e)
	}
}

func TestExecutePrepareFailure(t *testing.T) {
	eng := usersEngine()
	sess, _ := newTestSession(t, eng, Config{})

	_, err := sess.Execute("SELEC oops")
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindPrepareFailure {
		t.Fatalf("Execute returned %v, want PrepareFailure", err)
	}
	if e.Code != engine.CodeSyntaxError || !strings.Contains(e.Detail, "syntax error") {
		t.Errorf("error = %+v", e)
	}
	if !strings.Contains(err.Error(), "BeginStatement failed") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestExecuteFetchFailure(t *testing.T) {
	eng := usersEngine()
	eng.Script("SELECT id FROM flaky", &enginetest.Script{
		Columns:    []enginetest.Column{{Name: "id", Type: engine.TInteger}},
		Rows:       [][]interface{}{{int32(1)}, {int32(2)}, {int32(3)}},
		FetchErrAt: 3,
	})
	sess, hook := newTestSession(t, eng, Config{})

	res, err := sess.Execute("SELECT id FROM flaky")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if res.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2", res.RowCount)
	}

	warned := false
	for _, entry := range hook.AllEntries() {
		if entry.Level == log.WarnLevel && strings.Contains(entry.Message, "fetch failed") {
			warned = true
		}
	}
	if !warned {
		t.Error("fetch failure was not logged")
	}
}

func TestExecuteGetterFailure(t *testing.T) {
	eng := usersEngine()
	eng.Script("SELECT name FROM broken", &enginetest.Script{
		Columns: []enginetest.Column{{Name: "name", Type: engine.UTF8}},
		Rows:    [][]interface{}{{"x"}},
		Fail:    map[string]error{"GetString": engine.Errorf(engine.CodeInternalError, "GetString", "conversion failed")},
	})
	sess, _ := newTestSession(t, eng, Config{})

	_, err := sess.Execute("SELECT name FROM broken")
	if !errors.Is(err, ErrEngine) {
		t.Fatalf("Execute returned %v, want EngineFailure", err)
	}
	if eng.OpenStatements() != 0 {
		t.Errorf("engine has %d open statements after a failed Execute", eng.OpenStatements())
	}
}

func TestMarshalColumnTypes(t *testing.T) {
	eng := enginetest.NewMockEngine()
	eng.Script("SELECT * FROM everything", &enginetest.Script{
		Columns: []enginetest.Column{
			{Name: "i32", Type: engine.NativeIntegerNullable},
			{Name: "i64", Type: -engine.TBigint},
			{Name: "d", Type: engine.TDouble},
			{Name: "f", Type: engine.TReal},
			{Name: "b", Type: engine.Boolean},
			{Name: "bin", Type: engine.BinaryVarying},
			{Name: "s", Type: -engine.UTF8},
			{Name: "dec", Type: engine.Decimal},
			{Name: "blob", Type: engine.Blob},
			{Name: "clob", Type: engine.Nclob},
			{Name: "nothing", Type: -engine.TInteger},
		},
		Rows: [][]interface{}{{
			int32(1), int64(1) << 40, 2.5, float32(1.5), true, []byte{1, 2},
			"a longer string value", "12.50", []byte("blob"), "clöb", nil,
		}},
	})
	sess, _ := newTestSession(t, eng, Config{StringBuffer: 8})

	res, err := sess.Execute("SELECT * FROM everything")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	row := res.Rows[0]
	want := []Value{
		Int32(1), Int64(1 << 40), Float64(2.5), Float64(1.5), Bool(true), Bytes([]byte{1, 2}),
		Text("a longer string value"), Text("12.50"), Bytes([]byte("blob")), Text("clöb"), Null(),
	}
	for i, w := range want {
		got := row.At(i)
		if got.Kind() != w.Kind() || got.String() != w.String() {
			t.Errorf("column %s = %v (%v), want %v (%v)", row.Columns()[i], got, got.Kind(), w, w.Kind())
		}
	}

	var reads []string
	for _, call := range eng.Calls() {
		if strings.HasPrefix(call, "GetString(7,") {
			reads = append(reads, call)
		}
	}
	if len(reads) != 2 || reads[0] != "GetString(7, 8)" || reads[1] != "GetString(7, 22)" {
		t.Errorf("string reads = %v, want a short read then an exact one", reads)
	}
}

func TestTransactions(t *testing.T) {
	eng := usersEngine()
	sess, _ := newTestSession(t, eng, Config{})
	eng.ResetCalls()

	if err := sess.BeginTransaction(engine.TransactionReadWrite); err != nil {
		t.Fatalf("BeginTransaction returned error: %v", err)
	}
	if err := sess.Commit(); err != nil {
		t.Fatalf("Commit returned error: %v", err)
	}
	if err := sess.BeginTransaction(engine.TransactionReadOnly); err != nil {
		t.Fatalf("BeginTransaction returned error: %v", err)
	}
	if err := sess.Rollback(); err != nil {
		t.Fatalf("Rollback returned error: %v", err)
	}
	want := []string{"BeginTransaction", "EndTransaction(commit)", "BeginTransaction", "EndTransaction(rollback)"}
	calls := eng.Calls()
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", calls, want)
	}

	eng.TxErr = engine.Errorf(engine.CodeTransactionFailure, "EndTransaction", "serialization failure")
	err := sess.Commit()
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindEngine || e.Code != engine.CodeTransactionFailure {
		t.Errorf("Commit returned %v, want EngineFailure", err)
	}
	if e != nil && e.Operation != "EndTransaction (commit)" {
		t.Errorf("Operation = %q", e.Operation)
	}
}

func TestCloseReleasesEverything(t *testing.T) {
	eng := usersEngine()
	sess, _ := newTestSession(t, eng, Config{})

	st1, err := sess.Prepare("SELECT id, name FROM users")
	if err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	st2, err := sess.Prepare("UPDATE users SET name = ? WHERE id = ?")
	if err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	shared, err := st1.Query()
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	c1, err := sess.ExecuteQuery("SELECT id, name FROM users")
	if err != nil {
		t.Fatalf("ExecuteQuery returned error: %v", err)
	}
	c2, err := sess.ExecuteQuery("SELECT id, name FROM users")
	if err != nil {
		t.Fatalf("ExecuteQuery returned error: %v", err)
	}
	if _, ok := c2.FetchNext(); !ok {
		t.Fatal("FetchNext returned no row")
	}
	if sess.OpenStatements() != 2 || sess.OpenCursors() != 2 {
		t.Fatalf("session tracks %d statements and %d cursors", sess.OpenStatements(), sess.OpenCursors())
	}
	eng.ResetCalls()

	if err := sess.Close(); err != nil {
		t.Fatalf("Close returned %v", err)
	}

	for name, closed := range map[string]bool{
		"statement 1":   st1.IsClosed(),
		"statement 2":   st2.IsClosed(),
		"shared cursor": shared.IsClosed(),
		"cursor 1":      c1.IsClosed(),
		"cursor 2":      c2.IsClosed(),
	} {
		if !closed {
			t.Errorf("%s still open after Close", name)
		}
	}
	if eng.OpenStatements() != 0 || eng.OpenSessions() != 0 {
		t.Errorf("engine has %d statements and %d sessions open", eng.OpenStatements(), eng.OpenSessions())
	}
	if sess.OpenStatements() != 0 || sess.OpenCursors() != 0 {
		t.Errorf("session still tracks %d statements and %d cursors", sess.OpenStatements(), sess.OpenCursors())
	}

	calls := eng.Calls()
	if calls[len(calls)-1] != "EndSession" {
		t.Errorf("last call = %s, want EndSession", calls[len(calls)-1])
	}
	// Two owned cursors, then two statements.
	if strings.Count(strings.Join(calls, ","), "EndStatement") != 4 {
		t.Errorf("calls = %v, want 4 EndStatement", calls)
	}

	if _, err := st1.Execute(); !IsStatementClosed(err) {
		t.Errorf("Execute after Close returned %v, want StatementClosed", err)
	}
	if _, ok := c1.FetchNext(); ok {
		t.Error("FetchNext returned a row after Close")
	}
	if err := c1.Close(); err != nil {
		t.Errorf("cursor Close after session Close returned %v", err)
	}
	if err := st2.Close(); err != nil {
		t.Errorf("statement Close after session Close returned %v", err)
	}
}

func TestCloseLogsEndSessionFailure(t *testing.T) {
	eng := usersEngine()
	eng.EndSessionErr = engine.Errorf(engine.CodeInternalError, "EndSession", "network gone")
	sess, hook := newTestSession(t, eng, Config{})

	if err := sess.Close(); err != nil {
		t.Fatalf("Close returned %v, want nil", err)
	}
	if sess.IsConnected() {
		t.Error("session still connected")
	}

	var entry *log.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == log.WarnLevel {
			entry = e
		}
	}
	if entry == nil {
		t.Fatal("no warning logged")
	}
	if !strings.Contains(entry.Message, "end session failed") {
		t.Errorf("Message = %q", entry.Message)
	}
	if entry.Data["session"] != sess.ID() || entry.Data["target"] != "testdb" {
		t.Errorf("Data = %v", entry.Data)
	}
}

func TestConcurrentExecute(t *testing.T) {
	eng := usersEngine()
	sess, _ := newTestSession(t, eng, Config{})

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_, err := sess.Execute("SELECT id, name FROM users")
				errs <- err
				return
			}
			cur, err := sess.ExecuteQuery("SELECT id, name FROM users")
			if err != nil {
				errs <- err
				return
			}
			for _, ok := cur.FetchNext(); ok; _, ok = cur.FetchNext() {
			}
			errs <- cur.Close()
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("concurrent call returned %v", err)
		}
	}
	if eng.OpenStatements() != 0 {
		t.Errorf("engine has %d open statements", eng.OpenStatements())
	}
}
