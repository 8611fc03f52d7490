// Package driver implements a database/sql driver on top of bridge sessions.
//
// Every database/sql connection is one bridge.Session. Prepared statements
// map to bridge.Statement, transactions to the session's begin, commit and
// rollback calls, and rows stream from a bridge.Cursor.
//
// Usage:
//
//  1. Register the engine connections should use, then open the database with
//     a DSN of the form user:credential@target:
//
//	driver.SetEngine(eng, bridge.DefaultConfig())
//	db, err := sql.Open("sqlbridge", "reporter:secret@main")
//
//  2. Or build a connector for a specific engine:
//
//	c, err := driver.NewConnector(eng, "reporter:secret@main", bridge.Config{})
//	db := sql.OpenDB(c)
//
// Statements the engine cannot prepare, such as DDL, run through db.Exec,
// which uses the connection's direct path. db.Prepare on them fails.
//
// Limitations:
//
//   - LastInsertId is not supported.
//   - Only the default isolation level is accepted; ReadOnly transactions are
//     passed to the engine.
//   - Context cancellation is checked before each call but does not interrupt
//     a call that has started.
package driver
