package engine

// MaxLobChunk is the largest number of bytes a single Lob transfer may carry.
const MaxLobChunk = 10 << 20

// CursorMode selects how a statement's cursor may be positioned.
type CursorMode int

const (
	CursorForwardOnly CursorMode = iota
	CursorScrollable
)

// TransactionMode is passed to Session.BeginTransaction.
type TransactionMode int

const (
	TransactionReadWrite TransactionMode = iota
	TransactionReadOnly
)

// EndMode is passed to Session.EndTransaction.
type EndMode int

const (
	Commit EndMode = iota
	Rollback
)

func (m EndMode) String() string {
	if m == Rollback {
		return "rollback"
	}
	return "commit"
}

// Engine opens sessions.
type Engine interface {
	BeginSession(target, user, credential string) (Session, error)
}

// Session is one authenticated connection to the engine.
type Session interface {
	// BeginStatement compiles sql. Statements the engine executes but cannot
	// compile (DDL) fail with CodeStatementCannotBePrepared.
	BeginStatement(sql string, mode CursorMode) (Statement, error)
	// ExecuteStatement runs sql once without preparing it. No row count is
	// reported.
	ExecuteStatement(sql string) error

	BeginTransaction(mode TransactionMode) error
	EndTransaction(mode EndMode) error

	// LastError returns the status and message of the most recent failure
	// on this session or any statement derived from it.
	LastError() (code int, message string)

	End() error
}

// Statement is one compiled statement. The same handle carries the cursor
// once OpenCursor succeeds.
type Statement interface {
	ColumnCount() (int, error)
	ColumnName(col int) (string, error)
	ColumnType(col int) (int, error)
	ParameterCount() (int, error)
	ParameterType(param int) (int, error)

	// Execute runs a statement without result columns and returns the
	// number of affected rows.
	Execute() (int64, error)
	OpenCursor() error
	// Fetch advances the cursor. It returns false with a nil error at end of
	// data.
	Fetch() (bool, error)
	CloseCursor() error
	End() error

	SetNull(param int) error
	SetBoolean(param int, v bool) error
	SetInt32(param int, v int32) error
	SetInt64(param int, v int64) error
	SetDouble(param int, v float64) error
	SetString(param int, v string) error
	SetBinary(param int, v []byte) error
	// SetLob declares a large object of size bytes (binary) or characters
	// (character types) and returns the handle its data is written through.
	SetLob(param int, size int64) (Lob, error)

	IsNull(col int) (bool, error)
	GetInt32(col int) (int32, error)
	GetInt64(col int) (int64, error)
	GetDouble(col int) (float64, error)
	GetFloat(col int) (float32, error)
	GetBoolean(col int) (bool, error)
	// GetBinary copies the value into buf and returns its full size. A nil
	// buf only reports the size.
	GetBinary(col int, buf []byte) (int, error)
	// GetString writes at most len(buf)-1 bytes of the UTF-8 value followed
	// by a NUL byte and returns the full byte length of the value.
	GetString(col int, buf []byte) (int, error)
	// GetLob returns the large object in col and its size in bytes (binary)
	// or characters (character types).
	GetLob(col int) (Lob, int64, error)
}

// Lob is a streaming handle for one large object value.
type Lob interface {
	WriteBlob(p []byte) error
	// WriteNclob appends UTF-8 text. p must not end inside a code point.
	WriteNclob(p []byte) error
	// ReadBlob fills p completely from the current position.
	ReadBlob(p []byte) error
	// ReadNclob writes at most len(p)-1 bytes followed by a NUL byte and
	// returns the number of text bytes written. It never splits a code point.
	// more is false once the value has been read completely.
	ReadNclob(p []byte) (n int, more bool, err error)
}
