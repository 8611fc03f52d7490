package bridge

import (
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/tomyedwab/sqlbridge/engine"
)

// Session is one logical connection to an engine database. It tracks every
// Statement and Cursor it hands out so Close can release them.
//
// A Session and everything created from it share one mutex, so all methods
// are safe for concurrent use and engine calls for one session never overlap.
type Session struct {
	mu  sync.Mutex
	eng engine.Engine
	cfg Config
	id  string
	log log.FieldLogger

	handle     engine.Session
	target     string
	statements map[*Statement]struct{}
	cursors    map[*Cursor]struct{}

	bind binder
	rows marshaller
}

// New returns a disconnected session. Zero fields of cfg take their defaults.
func New(eng engine.Engine, cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	lob := lobStreamer{writeChunk: cfg.LobWriteChunk, readChunk: cfg.LobReadChunk}
	id := uuid.New().String()
	return &Session{
		eng:        eng,
		cfg:        cfg,
		id:         id,
		log:        cfg.Logger.WithField("session", id),
		statements: make(map[*Statement]struct{}),
		cursors:    make(map[*Cursor]struct{}),
		bind:       binder{lob: lob},
		rows:       marshaller{lob: lob, stringBuffer: cfg.StringBuffer},
	}, nil
}

// ID identifies the session in log output.
func (s *Session) ID() string { return s.id }

// Connect opens the engine session. A session that is already connected
// returns a ConnectFailure and keeps its current connection.
func (s *Session) Connect(target, user, credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		return newError(KindConnectFailure, "BeginSession", "session is already connected to "+s.target)
	}
	h, err := s.eng.BeginSession(target, user, credential)
	if err != nil {
		return engineError(KindConnectFailure, "BeginSession", nil, err)
	}
	s.handle = h
	s.target = target
	s.log = s.cfg.Logger.WithFields(log.Fields{"session": s.id, "target": target})
	s.log.Debug("session connected")
	return nil
}

// IsConnected reports whether Connect succeeded and Close has not run since.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil
}

// Close releases every open cursor, then every open statement, then the
// engine session. It always succeeds; a failure to end the engine session is
// only logged. Closing a disconnected session does nothing.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return nil
	}
	for c := range s.cursors {
		c.invalidate()
	}
	clear(s.cursors)
	for st := range s.statements {
		st.invalidate()
	}
	clear(s.statements)

	if err := s.handle.End(); err != nil {
		s.log.WithError(engineError(KindEngine, "EndSession", s.handle, err)).Warn("end session failed")
	}
	s.handle = nil
	s.log.Debug("session closed")
	return nil
}

func (s *Session) requireConnected(op string) error {
	if s.handle == nil {
		return newError(KindNotConnected, op, "session is not connected")
	}
	return nil
}

// Execute runs sql once and releases everything it used. Statements the
// engine cannot prepare (DDL) are executed directly and params are ignored.
func (s *Session) Execute(sql string, params ...interface{}) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConnected("Execute"); err != nil {
		return nil, err
	}

	stmt, err := s.handle.BeginStatement(sql, engine.CursorForwardOnly)
	if engine.IsCannotBePrepared(err) {
		if err := s.handle.ExecuteStatement(sql); err != nil {
			return nil, engineError(KindExecuteFailure, "ExecuteStatement", s.handle, err)
		}
		return &Result{}, nil
	}
	if err != nil {
		return nil, engineError(KindPrepareFailure, "BeginStatement", s.handle, err)
	}
	defer func() {
		if err := stmt.End(); err != nil {
			s.log.WithError(err).Debug("end statement failed")
		}
	}()

	if len(params) > 0 {
		if err := s.bind.bind(s.handle, stmt, Values(params...)); err != nil {
			return nil, err
		}
	}
	count, err := stmt.ColumnCount()
	if err != nil {
		return nil, engineError(KindEngine, "ColumnCount", s.handle, err)
	}
	if count == 0 {
		n, err := stmt.Execute()
		if err != nil {
			return nil, engineError(KindExecuteFailure, "Execute", s.handle, err)
		}
		return &Result{RowCount: n}, nil
	}

	fields, err := describeColumns(s.handle, stmt, count)
	if err != nil {
		return nil, err
	}
	if err := stmt.OpenCursor(); err != nil {
		return nil, engineError(KindExecuteFailure, "OpenCursor", s.handle, err)
	}
	cur := newCursor(&s.mu, s.handle, stmt, fields, false, s.rows, s.log)
	rows, err := cur.drainLocked()
	if cerr := cur.release(); cerr != nil {
		s.log.WithError(cerr).Debug("close cursor failed")
	}
	if err != nil {
		return nil, err
	}
	return &Result{Fields: fields, Rows: rows, RowCount: int64(len(rows))}, nil
}

// Prepare compiles sql into a Statement that stays open until it or the
// session is closed.
func (s *Session) Prepare(sql string) (*Statement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConnected("Prepare"); err != nil {
		return nil, err
	}

	h, err := s.handle.BeginStatement(sql, engine.CursorForwardOnly)
	if err != nil {
		return nil, engineError(KindPrepareFailure, "BeginStatement", s.handle, err)
	}
	st := &Statement{
		mu:      &s.mu,
		sess:    s,
		engSess: s.handle,
		handle:  h,
		sql:     sql,
		bind:    s.bind,
		rows:    s.rows,
		log:     s.log,
	}
	if err := s.describeStatement(st); err != nil {
		if eerr := h.End(); eerr != nil {
			s.log.WithError(eerr).Debug("end statement failed")
		}
		return nil, err
	}
	s.statements[st] = struct{}{}
	return st, nil
}

func (s *Session) describeStatement(st *Statement) error {
	n, err := st.handle.ParameterCount()
	if err != nil {
		return engineError(KindEngine, "ParameterCount", s.handle, err)
	}
	st.paramCount = n
	count, err := st.handle.ColumnCount()
	if err != nil {
		return engineError(KindEngine, "ColumnCount", s.handle, err)
	}
	if count > 0 {
		st.fields, err = describeColumns(s.handle, st.handle, count)
	}
	return err
}

// ExecuteQuery runs a query and returns a cursor over its rows. The cursor
// owns its statement and must be closed, directly or by closing the session.
// Statements without result columns fail with UnsupportedStatement before a
// cursor is opened.
func (s *Session) ExecuteQuery(sql string, params ...interface{}) (cur *Cursor, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConnected("ExecuteQuery"); err != nil {
		return nil, err
	}

	stmt, err := s.handle.BeginStatement(sql, engine.CursorForwardOnly)
	if engine.IsCannotBePrepared(err) {
		e := engineError(KindUnsupportedStatement, "BeginStatement", s.handle, err)
		e.Detail = "only statements returning rows can be queried (DDL cannot be prepared)"
		return nil, e
	}
	if err != nil {
		return nil, engineError(KindPrepareFailure, "BeginStatement", s.handle, err)
	}
	defer func() {
		if err == nil {
			return
		}
		if eerr := stmt.End(); eerr != nil {
			s.log.WithError(eerr).Debug("end statement failed")
		}
	}()

	if len(params) > 0 {
		if err := s.bind.bind(s.handle, stmt, Values(params...)); err != nil {
			return nil, err
		}
	}
	count, err := stmt.ColumnCount()
	if err != nil {
		return nil, engineError(KindEngine, "ColumnCount", s.handle, err)
	}
	if count == 0 {
		return nil, newError(KindUnsupportedStatement, "ExecuteQuery", "only statements returning rows can be queried")
	}
	fields, err := describeColumns(s.handle, stmt, count)
	if err != nil {
		return nil, err
	}
	if err := stmt.OpenCursor(); err != nil {
		return nil, engineError(KindExecuteFailure, "OpenCursor", s.handle, err)
	}

	cur = newCursor(&s.mu, s.handle, stmt, fields, true, s.rows, s.log)
	cur.sess = s
	s.cursors[cur] = struct{}{}
	return cur, nil
}

// BeginTransaction starts an explicit transaction.
func (s *Session) BeginTransaction(mode engine.TransactionMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConnected("BeginTransaction"); err != nil {
		return err
	}
	if err := s.handle.BeginTransaction(mode); err != nil {
		return engineError(KindEngine, "BeginTransaction", s.handle, err)
	}
	return nil
}

// Commit ends the open transaction, keeping its changes.
func (s *Session) Commit() error { return s.endTransaction(engine.Commit) }

// Rollback ends the open transaction, discarding its changes.
func (s *Session) Rollback() error { return s.endTransaction(engine.Rollback) }

func (s *Session) endTransaction(mode engine.EndMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	op := "EndTransaction (" + mode.String() + ")"
	if err := s.requireConnected(op); err != nil {
		return err
	}
	if err := s.handle.EndTransaction(mode); err != nil {
		return engineError(KindEngine, op, s.handle, err)
	}
	return nil
}

// OpenStatements and OpenCursors report how many entities the session is
// still tracking.
func (s *Session) OpenStatements() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.statements)
}

func (s *Session) OpenCursors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cursors)
}

// unregisterStatement and unregisterCursor run with mu held.
func (s *Session) unregisterStatement(st *Statement) { delete(s.statements, st) }
func (s *Session) unregisterCursor(c *Cursor)        { delete(s.cursors, c) }
