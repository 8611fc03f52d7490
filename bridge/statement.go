package bridge

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/tomyedwab/sqlbridge/engine"
)

// Statement is a prepared statement that can be executed any number of times
// until it is closed, either directly or by closing its session.
type Statement struct {
	mu      *sync.Mutex
	sess    *Session
	engSess engine.Session
	handle  engine.Statement
	sql     string

	fields     []ColumnMetadata
	paramCount int

	bind   binder
	rows   marshaller
	log    log.FieldLogger
	active *Cursor
	closed bool
}

// SQL returns the text the statement was prepared from.
func (s *Statement) SQL() string { return s.sql }

// Fields returns the result columns, or nil for a statement that produces no
// result set. A closed statement has no fields.
func (s *Statement) Fields() []ColumnMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.fields == nil {
		return nil
	}
	fields := make([]ColumnMetadata, len(s.fields))
	copy(fields, s.fields)
	return fields
}

// ParameterCount returns the number of positional parameters.
func (s *Statement) ParameterCount() int {
	return s.paramCount
}

// IsClosed reports whether the statement was closed directly or by its
// session.
func (s *Statement) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Execute binds params and runs the statement. A statement with result
// columns returns all of its rows; anything else returns the affected row
// count. When no params are given the previous bindings are reused.
func (s *Statement) Execute(params ...interface{}) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.prepareRun("Execute", params); err != nil {
		return nil, err
	}

	if s.fields == nil {
		n, err := s.handle.Execute()
		if err != nil {
			return nil, engineError(KindExecuteFailure, "Execute", s.engSess, err)
		}
		return &Result{RowCount: n}, nil
	}

	cur, err := s.openLocked()
	if err != nil {
		return nil, err
	}
	rows, err := cur.drainLocked()
	if cerr := cur.release(); cerr != nil {
		s.log.WithError(cerr).Debug("close cursor failed")
	}
	s.active = nil
	if err != nil {
		return nil, err
	}
	return &Result{Fields: cur.fields, Rows: rows, RowCount: int64(len(rows))}, nil
}

// Query binds params and opens a cursor over the statement's rows. The cursor
// shares the statement's handle: running the statement again, or closing it,
// closes the cursor first.
func (s *Statement) Query(params ...interface{}) (*Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.prepareRun("Query", params); err != nil {
		return nil, err
	}
	if s.fields == nil {
		return nil, newError(KindUnsupportedStatement, "Query", "statement produces no result set")
	}
	return s.openLocked()
}

// prepareRun checks the statement is usable, closes a previous cursor and
// binds params.
func (s *Statement) prepareRun(op string, params []interface{}) error {
	if s.closed {
		return newError(KindStatementClosed, op, "statement is closed")
	}
	if s.active != nil {
		if err := s.active.release(); err != nil {
			s.log.WithError(err).Debug("close previous cursor failed")
		}
		s.active.stmt = nil
		s.active = nil
	}
	if len(params) > 0 {
		if err := s.bind.bind(s.engSess, s.handle, Values(params...)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Statement) openLocked() (*Cursor, error) {
	if err := s.handle.OpenCursor(); err != nil {
		return nil, engineError(KindExecuteFailure, "OpenCursor", s.engSess, err)
	}
	cur := newCursor(s.mu, s.engSess, s.handle, s.fields, false, s.rows, s.log)
	cur.stmt = s
	s.active = cur
	return cur, nil
}

// Close releases the statement and removes it from its session. Calling it
// again does nothing.
func (s *Statement) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	err := s.release()
	if s.sess != nil {
		s.sess.unregisterStatement(s)
		s.sess = nil
	}
	return err
}

// invalidate is called by the session during teardown.
func (s *Statement) invalidate() {
	if err := s.release(); err != nil {
		s.log.WithError(err).Debug("statement release during teardown failed")
	}
	s.sess = nil
}

func (s *Statement) release() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.active != nil {
		s.active.invalidate()
		s.active = nil
	}
	err := s.handle.End()
	s.handle = nil
	if err != nil {
		return engineError(KindEngine, "EndStatement", s.engSess, err)
	}
	return nil
}
