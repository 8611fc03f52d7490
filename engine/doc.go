// Package engine defines the handle-based interface of the SQL engine that the
// bridge drives.
//
// The engine is reached through three kinds of handles, always used in the same
// order:
//
//	Engine.BeginSession -> Session.BeginStatement -> Statement.OpenCursor
//	-> Statement.Fetch ... -> Statement.CloseCursor -> Statement.End -> Session.End
//
// Column and parameter indices are 1-based. Output values are read through
// caller-provided buffers; large objects are moved through a Lob handle in
// bounded chunks.
//
// Type codes are signed. For the generic types a negative code means the column
// is nullable. The native types come in pairs instead: an odd NOT NULL code and
// the even NULLABLE code that follows it.
//
// Failures are reported as *Error values carrying the engine's negative status
// code. Code extracts that status from any error returned by this interface.
package engine
