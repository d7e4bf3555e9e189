package resp

import (
	"errors"
	"fmt"
	"strings"
)

// ServerError is an error reply (-ERR ...) sent by the server.
// It replaces exactly one reply on the wire, so the stream stays in sync.
type ServerError string

func (e ServerError) Error() string {
	return string(e)
}

// Prefix returns the error code of the reply, e.g. "ERR" or "EXECABORT"
func (e ServerError) Prefix() string {
	s := string(e)
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

// IsServerError reports whether err is (or wraps) a ServerError
func IsServerError(err error) bool {
	var se ServerError
	return errors.As(err, &se)
}

// ProtocolError is returned when the byte stream does not contain the expected frame.
// After a ProtocolError the position in the stream is unknown.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("RESP protocol error: %s", e.Msg)
}

func protocolErrorf(format string, args ...interface{}) error {
	return &ProtocolError{Msg: fmt.Sprintf(format, args...)}
}
