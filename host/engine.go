package host

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"github.com/tomyedwab/sqlbridge/engine"
)

// Options configures an Engine.
type Options struct {
	// Database is the target name sessions must ask for. Empty accepts any.
	Database string
	// Users maps user names to passwords. A nil map accepts any password.
	Users map[string]string
	// TokenSecret enables session token credentials (see IssueToken).
	TokenSecret []byte

	Logger log.FieldLogger
}

// Engine implements engine.Engine on a database/sql database. Each session
// holds its own connection from the pool.
type Engine struct {
	db    *sqlx.DB
	opts  Options
	log   log.FieldLogger
	owned bool

	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates an Engine over db. The caller keeps ownership of db.
func New(db *sqlx.DB, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	return &Engine{
		db:       db,
		opts:     opts,
		log:      opts.Logger.WithField("driver", db.DriverName()),
		sessions: make(map[string]*Session),
	}
}

// Open connects to a database with the named driver and wraps it in an
// Engine that closes the database on Close.
func Open(driverName, dsn string, opts Options) (*Engine, error) {
	db, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driverName, err)
	}
	e := New(db, opts)
	e.owned = true
	return e, nil
}

// DB returns the underlying database.
func (e *Engine) DB() *sqlx.DB { return e.db }

// Sessions returns the number of sessions that have not been ended.
func (e *Engine) Sessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// Close ends every remaining session and, for an Engine created by Open,
// closes the database.
func (e *Engine) Close() error {
	e.mu.Lock()
	sessions := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		sessions = append(sessions, s)
	}
	e.mu.Unlock()

	for _, s := range sessions {
		if err := s.End(); err != nil {
			e.log.WithError(err).Warnf("Failed to end session %s", s.id)
		}
	}
	if e.owned {
		return e.db.Close()
	}
	return nil
}

// BeginSession implements engine.Engine.
func (e *Engine) BeginSession(target, user, credential string) (engine.Session, error) {
	if e.opts.Database != "" && target != e.opts.Database {
		return nil, engine.Errorf(engine.CodeUnknownDatabase, "BeginSession", "database %s not found", target)
	}
	if err := e.authenticate(target, user, credential); err != nil {
		e.log.Debugf("Login for %s on %s rejected: %v", user, target, err)
		return nil, engine.Errorf(engine.CodeLoginFailure, "BeginSession", "login failure for %s: %v", user, err)
	}

	ctx := context.Background()
	conn, err := e.db.Connx(ctx)
	if err != nil {
		return nil, engine.Errorf(engine.CodeInternalError, "BeginSession", "failed to get connection: %v", err)
	}

	s := &Session{
		eng:   e,
		id:    uuid.NewString(),
		ctx:   ctx,
		conn:  conn,
		stmts: make(map[string]*Statement),
	}
	s.log = e.log.WithFields(log.Fields{"host_session": s.id, "user": user})

	e.mu.Lock()
	e.sessions[s.id] = s
	e.mu.Unlock()
	s.log.Debugf("Session started on %s", target)
	return s, nil
}

func (e *Engine) removeSession(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, id)
}

// Session implements engine.Session on one pooled connection. A session and
// its statements must be used from one goroutine at a time.
type Session struct {
	eng  *Engine
	id   string
	ctx  context.Context
	conn *sqlx.Conn
	log  log.FieldLogger

	mu      sync.Mutex
	stmts   map[string]*Statement
	inTx    bool
	txRO    bool
	lastErr *engine.Error
	ended   bool
}

func (s *Session) fail(code int, op, format string, args ...interface{}) error {
	err := engine.Errorf(code, op, format, args...)
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	return err
}

// LastError implements engine.Session.
func (s *Session) LastError() (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr == nil {
		return engine.CodeSuccess, ""
	}
	return s.lastErr.Code, s.lastErr.Message
}

func (s *Session) check(op string) error {
	if s.ended {
		return s.fail(engine.CodeInvalidHandle, op, "session has ended")
	}
	return nil
}

// BeginStatement implements engine.Session.
func (s *Session) BeginStatement(sql string, mode engine.CursorMode) (engine.Statement, error) {
	if err := s.check("BeginStatement"); err != nil {
		return nil, err
	}
	if isDirect(sql) {
		return nil, s.fail(engine.CodeStatementCannotBePrepared, "BeginStatement", "statement cannot be prepared")
	}
	if mode == engine.CursorScrollable {
		return nil, s.fail(engine.CodeSequenceError, "BeginStatement", "scrollable cursors are not supported")
	}

	ps, err := s.conn.PreparexContext(s.ctx, sql)
	if err != nil {
		return nil, s.fail(engine.CodeSyntaxError, "BeginStatement", "%v", err)
	}
	st := &Statement{
		sess:  s,
		id:    uuid.NewString(),
		sql:   sql,
		stmt:  ps,
		query: isQuery(sql),
	}
	if err := st.describe(); err != nil {
		ps.Close()
		return nil, err
	}

	s.mu.Lock()
	s.stmts[st.id] = st
	s.mu.Unlock()
	s.log.Debugf("Prepared statement %s with %d columns and %d parameters", st.id, len(st.cols), len(st.params))
	return st, nil
}

// ExecuteStatement implements engine.Session.
func (s *Session) ExecuteStatement(sql string) error {
	if err := s.check("ExecuteStatement"); err != nil {
		return err
	}
	if s.inTx && s.txRO {
		return s.fail(engine.CodeTransactionFailure, "ExecuteStatement", "transaction is read-only")
	}
	if _, err := s.conn.ExecContext(s.ctx, sql); err != nil {
		return s.fail(engine.CodeExecutionFailure, "ExecuteStatement", "%v", err)
	}
	return nil
}

// BeginTransaction implements engine.Session. Read-only transactions reject
// statements that are not queries.
func (s *Session) BeginTransaction(mode engine.TransactionMode) error {
	if err := s.check("BeginTransaction"); err != nil {
		return err
	}
	if s.inTx {
		return s.fail(engine.CodeSequenceError, "BeginTransaction", "transaction already active")
	}
	if _, err := s.conn.ExecContext(s.ctx, "BEGIN TRANSACTION"); err != nil {
		return s.fail(engine.CodeTransactionFailure, "BeginTransaction", "%v", err)
	}
	s.inTx = true
	s.txRO = mode == engine.TransactionReadOnly
	return nil
}

// EndTransaction implements engine.Session.
func (s *Session) EndTransaction(mode engine.EndMode) error {
	if err := s.check("EndTransaction"); err != nil {
		return err
	}
	if !s.inTx {
		return s.fail(engine.CodeSequenceError, "EndTransaction", "no transaction active")
	}
	stmt := "COMMIT"
	if mode == engine.Rollback {
		stmt = "ROLLBACK"
	}
	if _, err := s.conn.ExecContext(s.ctx, stmt); err != nil {
		return s.fail(engine.CodeTransactionFailure, "EndTransaction", "%v", err)
	}
	s.inTx = false
	s.txRO = false
	return nil
}

// End implements engine.Session. Statements still open are ended and an
// active transaction is rolled back before the connection is returned.
func (s *Session) End() error {
	if err := s.check("EndSession"); err != nil {
		return err
	}
	s.mu.Lock()
	leftover := make([]*Statement, 0, len(s.stmts))
	for _, st := range s.stmts {
		leftover = append(leftover, st)
	}
	s.mu.Unlock()
	if len(leftover) > 0 {
		s.log.Debugf("Ending %d statements left open", len(leftover))
	}
	for _, st := range leftover {
		if err := st.End(); err != nil {
			s.log.WithError(err).Debugf("Failed to end statement %s", st.id)
		}
	}

	if s.inTx {
		if _, err := s.conn.ExecContext(s.ctx, "ROLLBACK"); err != nil {
			s.log.WithError(err).Warn("Rollback of open transaction failed")
		}
		s.inTx = false
	}
	s.ended = true
	s.eng.removeSession(s.id)

	if err := s.conn.Close(); err != nil {
		return s.fail(engine.CodeInternalError, "EndSession", "failed to release connection: %v", err)
	}
	s.log.Debug("Session ended")
	return nil
}

func (s *Session) removeStatement(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stmts, id)
}

// tableColumn is one row of PRAGMA table_info.
type tableColumn struct {
	CID     interface{} `db:"cid"`
	Name    string      `db:"name"`
	Type    string      `db:"type"`
	NotNull interface{} `db:"notnull"`
	Default interface{} `db:"dflt_value"`
	PK      interface{} `db:"pk"`
}

func (c tableColumn) notNull() bool {
	switch v := c.NotNull.(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case int32:
		return v != 0
	}
	return false
}

// tableInfo returns the declared columns of table by name. Tables the
// database cannot describe yield nil.
func (s *Session) tableInfo(table string) map[string]tableColumn {
	if table == "" {
		return nil
	}
	var cols []tableColumn
	if err := s.conn.SelectContext(s.ctx, &cols, fmt.Sprintf("PRAGMA table_info('%s')", table)); err != nil {
		s.log.Debugf("No column info for %s: %v", table, err)
		return nil
	}
	info := make(map[string]tableColumn, len(cols))
	for _, c := range cols {
		info[c.Name] = c
	}
	return info
}
