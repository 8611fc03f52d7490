package bridge

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/tomyedwab/sqlbridge/engine"
)

// Cursor iterates the rows of one open engine cursor.
//
// A cursor is Open until a fetch finds no row, then Exhausted; Close or
// session teardown moves it to Closed from either state. Closed is final.
//
// A cursor returned by Session.ExecuteQuery owns its statement handle and
// ends it on close. A cursor returned by Statement.Query shares the
// statement's handle and only closes the engine cursor.
type Cursor struct {
	mu      *sync.Mutex
	sess    *Session
	stmt    *Statement
	engSess engine.Session
	handle  engine.Statement
	owned   bool

	fields []ColumnMetadata
	names  []string
	rows   marshaller
	log    log.FieldLogger

	exhausted bool
	closed    bool
	err       error
}

// newCursor wraps a handle whose cursor is already open. The caller holds mu.
func newCursor(mu *sync.Mutex, engSess engine.Session, handle engine.Statement, fields []ColumnMetadata, owned bool, rows marshaller, logger log.FieldLogger) *Cursor {
	return &Cursor{
		mu:      mu,
		engSess: engSess,
		handle:  handle,
		owned:   owned,
		fields:  fields,
		names:   columnNames(fields),
		rows:    rows,
		log:     logger,
	}
}

// FetchNext returns the next row. It returns false once the cursor is closed
// or exhausted, and keeps returning false after that. A failed fetch ends the
// cursor the same way as running out of rows; Err reports which one it was.
func (c *Cursor) FetchNext() (Row, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchLocked()
}

func (c *Cursor) fetchLocked() (Row, bool) {
	if c.closed || c.exhausted {
		return Row{}, false
	}
	ok, err := c.handle.Fetch()
	if err != nil {
		c.exhausted = true
		c.err = engineError(KindEngine, "Fetch", c.engSess, err)
		return Row{}, false
	}
	if !ok {
		c.exhausted = true
		return Row{}, false
	}
	row, err := c.rows.readRow(c.engSess, c.handle, c.fields, c.names)
	if err != nil {
		c.exhausted = true
		c.err = err
		return Row{}, false
	}
	return row, true
}

// drainLocked reads every remaining row. Fetch failures end the loop like end
// of data; value extraction failures are returned.
func (c *Cursor) drainLocked() ([]Row, error) {
	rows := make([]Row, 0)
	for {
		row, ok := c.fetchLocked()
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	if c.err != nil {
		if e, ok := c.err.(*Error); ok && e.Operation == "Fetch" {
			c.log.WithError(c.err).Warn("fetch failed, treating as end of data")
			return rows, nil
		}
		return nil, c.err
	}
	return rows, nil
}

// Fields returns the column metadata captured when the cursor was opened, or
// an empty slice once it is closed.
func (c *Cursor) Fields() []ColumnMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return []ColumnMetadata{}
	}
	fields := make([]ColumnMetadata, len(c.fields))
	copy(fields, c.fields)
	return fields
}

// Err returns the failure that ended the cursor, or nil if it ran out of rows
// normally or is still open.
func (c *Cursor) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// IsClosed reports whether Close has run on the cursor.
func (c *Cursor) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// IsExhausted reports whether FetchNext has stopped returning rows, either at
// the end of the result or after a failed fetch. Err tells the two apart.
func (c *Cursor) IsExhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exhausted
}

// Close releases the cursor and, for an owning cursor, its statement. Calling
// it again does nothing.
func (c *Cursor) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.release()
	if c.sess != nil {
		c.sess.unregisterCursor(c)
		c.sess = nil
	}
	if c.stmt != nil {
		c.stmt.active = nil
		c.stmt = nil
	}
	return err
}

// invalidate is called by the owner during teardown. It releases the handles
// without touching the owner's collections.
func (c *Cursor) invalidate() {
	if err := c.release(); err != nil {
		c.log.WithError(err).Debug("cursor release during teardown failed")
	}
	c.sess = nil
	c.stmt = nil
}

func (c *Cursor) release() error {
	if c.closed {
		return nil
	}
	c.closed = true
	var first error
	if err := c.handle.CloseCursor(); err != nil {
		first = engineError(KindEngine, "CloseCursor", c.engSess, err)
	}
	if c.owned {
		if err := c.handle.End(); err != nil && first == nil {
			first = engineError(KindEngine, "EndStatement", c.engSess, err)
		}
	}
	c.handle = nil
	return first
}
