package bridge

import (
	"fmt"

	"github.com/tomyedwab/sqlbridge/engine"
)

// binder maps Values onto a statement's positional parameters.
type binder struct {
	lob lobStreamer
}

// bind checks the count first, then binds each value in order and stops at the
// first failure. A failed bind leaves earlier parameters set; the caller still
// owns and must release the statement.
func (b binder) bind(sess engine.Session, stmt engine.Statement, params []Value) error {
	expected, err := stmt.ParameterCount()
	if err != nil {
		return engineError(KindEngine, "ParameterCount", sess, err)
	}
	if len(params) != expected {
		return &Error{
			Kind:      KindParameterCountMismatch,
			Operation: "BindParameters",
			Detail:    fmt.Sprintf("statement expects %d but %d were provided", expected, len(params)),
			Expected:  expected,
			Actual:    len(params),
		}
	}

	for i, v := range params {
		idx := i + 1
		if err := b.bindOne(sess, stmt, idx, v); err != nil {
			return &Error{
				Kind:      KindBindFailure,
				Code:      codeOf(err),
				Operation: "BindParameters",
				Detail:    fmt.Sprintf("failed to bind parameter %d", idx),
				Index:     idx,
				Cause:     err,
			}
		}
	}
	return nil
}

func (b binder) bindOne(sess engine.Session, stmt engine.Statement, idx int, v Value) error {
	switch v.Kind() {
	case KindNull:
		return stmt.SetNull(idx)
	case KindBool:
		return stmt.SetBoolean(idx, v.Bool())
	case KindInt32:
		return stmt.SetInt32(idx, int32(v.Int64()))
	case KindInt64:
		return stmt.SetInt64(idx, v.Int64())
	case KindFloat64:
		return stmt.SetDouble(idx, v.Float64())
	case KindText:
		ptype, err := stmt.ParameterType(idx)
		if err != nil {
			return err
		}
		if engine.IsNclob(ptype) {
			return b.lob.writeNclob(sess, stmt, idx, v.Text())
		}
		return stmt.SetString(idx, v.Text())
	case KindBytes:
		ptype, err := stmt.ParameterType(idx)
		if err != nil {
			return err
		}
		if engine.IsBlob(ptype) {
			return b.lob.writeBlob(sess, stmt, idx, v.Bytes())
		}
		return stmt.SetBinary(idx, v.Bytes())
	}
	return stmt.SetString(idx, v.String())
}

// codeOf prefers the code already recorded on a bridge error.
func codeOf(err error) int {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return engine.Code(err)
}
