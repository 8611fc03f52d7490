package bridge

import (
	"errors"
	"fmt"

	"github.com/tomyedwab/sqlbridge/engine"
)

// ErrorKind classifies bridge failures.
type ErrorKind int

const (
	// KindEngine is a negative status from an engine call with no more
	// specific kind.
	KindEngine ErrorKind = iota
	KindNotConnected
	KindConnectFailure
	KindPrepareFailure
	// KindUnsupportedStatement is returned by the cursor entry point for
	// statements that cannot be prepared or have no result columns.
	KindUnsupportedStatement
	KindParameterCountMismatch
	KindBindFailure
	KindExecuteFailure
	KindStatementClosed
)

var kindNames = map[ErrorKind]string{
	KindEngine:                 "EngineFailure",
	KindNotConnected:           "NotConnected",
	KindConnectFailure:         "ConnectFailure",
	KindPrepareFailure:         "PrepareFailure",
	KindUnsupportedStatement:   "UnsupportedStatement",
	KindParameterCountMismatch: "ParameterCountMismatch",
	KindBindFailure:            "BindFailure",
	KindExecuteFailure:         "ExecuteFailure",
	KindStatementClosed:        "StatementClosed",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is a structured bridge failure. Code is the engine status (0 when the
// failure was detected by the bridge itself) and Operation names the call
// that failed.
type Error struct {
	Kind      ErrorKind
	Code      int
	Operation string
	Detail    string

	// Index is the 1-based parameter position of a BindFailure.
	Index int
	// Expected and Actual are the counts of a ParameterCountMismatch.
	Expected int
	Actual   int

	Cause error
}

// Error implements the error interface
func (e *Error) Error() string {
	op := e.Operation
	if op == "" {
		op = e.Kind.String()
	}
	if e.Detail == "" {
		return fmt.Sprintf("%s failed (code: %d)", op, e.Code)
	}
	return fmt.Sprintf("%s failed: %s (code: %d)", op, e.Detail, e.Code)
}

// Unwrap returns the underlying engine error, if any
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// IsKind checks if the error is of a specific kind
func (e *Error) IsKind(kind ErrorKind) bool {
	return e.Kind == kind
}

// Sentinels for errors.Is.
var (
	ErrEngine                 = &Error{Kind: KindEngine}
	ErrNotConnected           = &Error{Kind: KindNotConnected}
	ErrConnectFailure         = &Error{Kind: KindConnectFailure}
	ErrPrepareFailure         = &Error{Kind: KindPrepareFailure}
	ErrUnsupportedStatement   = &Error{Kind: KindUnsupportedStatement}
	ErrParameterCountMismatch = &Error{Kind: KindParameterCountMismatch}
	ErrBindFailure            = &Error{Kind: KindBindFailure}
	ErrExecuteFailure         = &Error{Kind: KindExecuteFailure}
	ErrStatementClosed        = &Error{Kind: KindStatementClosed}
)

// KindOf returns the kind of a bridge error and false for any other error.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func isKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsNotConnected checks if an error reports a missing session
func IsNotConnected(err error) bool { return isKind(err, KindNotConnected) }

// IsStatementClosed checks if an error reports use of a closed statement
func IsStatementClosed(err error) bool { return isKind(err, KindStatementClosed) }

// IsUnsupportedStatement checks if an error reports a non-query given to ExecuteQuery
func IsUnsupportedStatement(err error) bool { return isKind(err, KindUnsupportedStatement) }

// IsParameterCountMismatch checks if an error reports a wrong number of parameters
func IsParameterCountMismatch(err error) bool { return isKind(err, KindParameterCountMismatch) }

// IsBindFailure checks if an error reports a failed parameter bind
func IsBindFailure(err error) bool { return isKind(err, KindBindFailure) }

func newError(kind ErrorKind, op, detail string) *Error {
	return &Error{Kind: kind, Operation: op, Detail: detail}
}

// engineError wraps a failed engine call. detail comes from the session's last
// error when it has one, otherwise from the engine error itself.
func engineError(kind ErrorKind, op string, sess engine.Session, err error) *Error {
	e := &Error{
		Kind:      kind,
		Code:      engine.Code(err),
		Operation: op,
		Cause:     err,
	}
	if sess != nil {
		if code, msg := sess.LastError(); code == e.Code && msg != "" {
			e.Detail = msg
		}
	}
	if e.Detail == "" {
		var ee *engine.Error
		if errors.As(err, &ee) {
			e.Detail = ee.Message
		} else if err != nil {
			e.Detail = err.Error()
		}
	}
	return e
}
