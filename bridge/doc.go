// Package bridge manages sessions, statements and cursors on top of a
// handle-based SQL engine and converts values between Go and the engine's
// column types.
//
// A Session owns every Statement and Cursor it creates. Closing the session
// closes all of them, so no engine handle outlives its session:
//
//	sess, err := bridge.New(eng, bridge.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	if err := sess.Connect("db", "user", "secret"); err != nil {
//		return err
//	}
//	defer sess.Close()
//
//	res, err := sess.Execute("SELECT id, name FROM users WHERE id = ?", 7)
//
// Parameters are converted with ValueOf. Large string and byte values bound
// to NCLOB and BLOB parameters are streamed in chunks, and LOB columns are
// read back the same way.
package bridge
