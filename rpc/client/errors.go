package client

import (
	"fmt"
)

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is the error type of the client package. It wraps a return code
// (of type RetCode) and an error message. Two errors match with errors.Is
// when their codes are equal.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("respkv client error (code %s): %s", e.Code, e.Msg)
}

// Is reports whether target is an *Error with the same code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// newError creates a new Error with the given code and formatted message.
func newError(code RetCode, format string, args ...interface{}) *Error {
	return &Error{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCInvalidOperation   RetCode = iota + 1 // 1: Operation is not valid in the current state.
	RetCProtocolIntegrity                     // 2: The EXEC reply does not match the queued commands.
	RetCTransactionAborted                    // 3: The server refused to execute the transaction (watched key changed).
	RetCUnexpectedReply                       // 4: A well formed reply with an unexpected value.
	RetCConnectionBroken                      // 5: The reply stream is out of sync, the connection is unusable.
)

func (c RetCode) String() string {
	switch c {
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCProtocolIntegrity:
		return "ProtocolIntegrity"
	case RetCTransactionAborted:
		return "TransactionAborted"
	case RetCUnexpectedReply:
		return "UnexpectedReply"
	case RetCConnectionBroken:
		return "ConnectionBroken"
	default:
		return "Unknown"
	}
}

// Sentinel errors, compare with errors.Is
var (
	ErrInvalidOperation   = &Error{Code: RetCInvalidOperation, Msg: "invalid operation"}
	ErrProtocolIntegrity  = &Error{Code: RetCProtocolIntegrity, Msg: "protocol integrity violated"}
	ErrTransactionAborted = &Error{Code: RetCTransactionAborted, Msg: "transaction aborted by the server, no command was executed"}
	ErrUnexpectedReply    = &Error{Code: RetCUnexpectedReply, Msg: "unexpected reply"}
	ErrConnectionBroken   = &Error{Code: RetCConnectionBroken, Msg: "connection is broken"}
)

// --------------------------------------------------------------------------
// Integrity Error
// --------------------------------------------------------------------------

// IntegrityError is returned by Transaction.Commit when the number of results
// announced by the EXEC reply differs from the number of queued commands.
//
// The transaction WAS committed on the server. The mismatch is a framing bug
// or protocol drift on the client side, callers must not assume a rollback.
type IntegrityError struct {
	Expected int
	Received int
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("invalid results received from 'EXEC', expected '%d' received '%d'\nwarning: transaction was committed",
		e.Expected, e.Received)
}

// Is makes errors.Is(err, ErrProtocolIntegrity) work
func (e *IntegrityError) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == RetCProtocolIntegrity
}
