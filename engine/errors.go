package engine

import (
	"errors"
	"fmt"
)

// Status codes returned by the engine. All failures are negative.
const (
	CodeSuccess = 0

	CodeLoginFailure    = -14006
	CodeUnknownDatabase = -14011
	CodeSequenceError   = -14008
	CodeInternalError   = -14999

	CodeSyntaxError               = -12200
	CodeExecutionFailure          = -12300
	CodeStatementCannotBePrepared = -24005

	CodeInvalidHandle      = -24101
	CodeIndexOutOfRange    = -24102
	CodeTypeMismatch       = -24103
	CodeLobChunkTooLarge   = -24104
	CodeLobSizeMismatch    = -24105
	CodeTruncatedUTF8      = -24106
	CodeNullValue          = -24107
	CodeTransactionFailure = -24200
)

// Error is a failed engine call.
type Error struct {
	Code    int
	Op      string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: engine status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s (engine status %d)", e.Op, e.Message, e.Code)
}

// Errorf builds an *Error for op with a formatted message.
func Errorf(code int, op string, format string, args ...interface{}) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Code returns the engine status carried by err: 0 for nil, the Error's code
// for engine errors and CodeInternalError for anything else.
func Code(err error) int {
	if err == nil {
		return CodeSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternalError
}

// IsCannotBePrepared reports whether err is the "statement cannot be
// prepared" sentinel returned by BeginStatement for DDL.
func IsCannotBePrepared(err error) bool {
	return Code(err) == CodeStatementCannotBePrepared
}
