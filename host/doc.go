// Package host implements the engine interfaces on top of database/sql, so a
// bridge session can run against SQLite or DuckDB.
//
// Each engine session holds one pooled connection. Statements are prepared on
// that connection; column and parameter types are taken from the declared
// column types the driver and PRAGMA table_info report. DDL is not prepared
// and has to go through Session.ExecuteStatement.
//
// Credentials are checked against Options.Users, or verified as HS256 session
// tokens when Options.TokenSecret is set:
//
//	secret, err := host.LoadTokenSecret("/var/lib/sqlbridge/token.key")
//	token, err := host.IssueToken(secret, "reporter", "main", time.Hour)
package host
