package resp

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
)

const (
	// MaxBulkLen is the largest bulk string the reader accepts (same as the redis default)
	MaxBulkLen = 512 * 1024 * 1024
	// MaxArrayLen is the largest number of elements accepted for one multi bulk frame
	MaxArrayLen = 1 << 24

	defaultReadBufferSize = 16 * 1024
)

// Reader decodes RESP frames from a buffered stream.
// A Reader is not safe for concurrent use, frames must be read strictly in order.
type Reader struct {
	br *bufio.Reader
}

// NewReader creates a new Reader with the given buffer size (0 = default)
func NewReader(r io.Reader, bufferSize int) *Reader {
	if bufferSize <= 0 {
		bufferSize = defaultReadBufferSize
	}
	return &Reader{br: bufio.NewReaderSize(r, bufferSize)}
}

// Buffered returns the number of bytes that are already read from the stream but not yet consumed
func (r *Reader) Buffered() int {
	return r.br.Buffered()
}

// --------------------------------------------------------------------------
// Typed Reply Readers (client side)
// --------------------------------------------------------------------------

// ReadStatus reads a status reply and returns it without the '+' prefix.
// An error reply is returned as ServerError.
func (r *Reader) ReadStatus() (string, error) {
	line, err := r.readHeader()
	if err != nil {
		return "", err
	}
	if line[0] != prefixStatus {
		return "", protocolErrorf("expected status reply, got %q", line)
	}
	return string(line[1:]), nil
}

// ReadInt reads an integer reply
func (r *Reader) ReadInt() (int64, error) {
	line, err := r.readHeader()
	if err != nil {
		return 0, err
	}
	if line[0] != prefixInteger {
		return 0, protocolErrorf("expected integer reply, got %q", line)
	}
	return parseInt(line[1:])
}

// ReadBulk reads a bulk string reply. The null bulk ($-1) is returned as a nil slice.
func (r *Reader) ReadBulk() ([]byte, error) {
	line, err := r.readHeader()
	if err != nil {
		return nil, err
	}
	if line[0] != prefixBulk {
		return nil, protocolErrorf("expected bulk reply, got %q", line)
	}
	return r.readBulkBody(line)
}

// ReadArrayLen reads the header of a multi bulk reply. The null array (*-1) is returned as -1.
func (r *Reader) ReadArrayLen() (int, error) {
	line, err := r.readHeader()
	if err != nil {
		return 0, err
	}
	if line[0] != prefixMultiBulk {
		return 0, protocolErrorf("expected multi bulk reply, got %q", line)
	}
	return parseLen(line[1:], MaxArrayLen)
}

// ReadMultiBulk reads a multi bulk reply whose elements are all bulk strings.
// The null array is returned as a nil slice.
func (r *Reader) ReadMultiBulk() ([][]byte, error) {
	n, err := r.ReadArrayLen()
	if err != nil || n < 0 {
		return nil, err
	}
	values := make([][]byte, n)
	for i := range values {
		if values[i], err = r.ReadBulk(); err != nil {
			return nil, err
		}
	}
	return values, nil
}

// ReadReply reads a reply of any type and returns it as one of
// string (status), int64, []byte (nil for the null bulk), []interface{}
// (nil for the null array) or ServerError for error replies nested in an array.
// A top level error reply is returned as error.
func (r *Reader) ReadReply() (interface{}, error) {
	return r.readReply(true)
}

func (r *Reader) readReply(topLevel bool) (interface{}, error) {
	line, err := r.readLine()
	if err != nil {
		return nil, err
	}
	if len(line) == 0 {
		return nil, protocolErrorf("empty line")
	}
	switch line[0] {
	case prefixStatus:
		return string(line[1:]), nil
	case prefixError:
		if topLevel {
			return nil, ServerError(line[1:])
		}
		return ServerError(line[1:]), nil
	case prefixInteger:
		return parseInt(line[1:])
	case prefixBulk:
		b, err := r.readBulkBody(line)
		if err != nil {
			return nil, err
		}
		return b, nil
	case prefixMultiBulk:
		n, err := parseLen(line[1:], MaxArrayLen)
		if err != nil || n < 0 {
			return nil, err
		}
		values := make([]interface{}, n)
		for i := range values {
			if values[i], err = r.readReply(false); err != nil {
				return nil, err
			}
		}
		return values, nil
	default:
		return nil, protocolErrorf("unknown reply type %q", line[0])
	}
}

// --------------------------------------------------------------------------
// Request Reader (server side)
// --------------------------------------------------------------------------

// ReadCommand reads one request. Both multi bulk requests and inline
// commands (PING\r\n) are accepted. Empty inline lines are skipped.
func (r *Reader) ReadCommand() ([][]byte, error) {
	for {
		line, err := r.readLine()
		if err != nil {
			return nil, err
		}

		// Inline command
		if len(line) == 0 || line[0] != prefixMultiBulk {
			fields := bytes.Fields(line)
			if len(fields) == 0 {
				continue
			}
			args := make([][]byte, len(fields))
			for i, f := range fields {
				args[i] = append([]byte(nil), f...)
			}
			return args, nil
		}

		n, err := parseLen(line[1:], MaxArrayLen)
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			continue
		}
		args := make([][]byte, n)
		for i := range args {
			arg, err := r.ReadBulk()
			if err != nil {
				if IsServerError(err) {
					return nil, protocolErrorf("error reply inside request")
				}
				return nil, err
			}
			if arg == nil {
				return nil, protocolErrorf("null bulk inside request")
			}
			args[i] = arg
		}
		return args, nil
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// readHeader reads the next line and converts an error reply into a ServerError
func (r *Reader) readHeader() ([]byte, error) {
	line, err := r.readLine()
	if err != nil {
		return nil, err
	}
	if len(line) == 0 {
		return nil, protocolErrorf("empty line")
	}
	if line[0] == prefixError {
		return nil, ServerError(line[1:])
	}
	return line, nil
}

// readLine reads a CRLF terminated line and returns it without the terminator.
// The returned slice is only valid until the next read.
func (r *Reader) readLine() ([]byte, error) {
	line, err := r.br.ReadSlice('\n')
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return nil, protocolErrorf("line exceeds read buffer")
		}
		return nil, err
	}
	n := len(line)
	if n < 2 || line[n-2] != '\r' {
		return nil, protocolErrorf("malformed line %q", line)
	}
	return line[:n-2], nil
}

// readBulkBody reads the payload announced by a $<len> header
func (r *Reader) readBulkBody(header []byte) ([]byte, error) {
	n, err := parseLen(header[1:], MaxBulkLen)
	if err != nil || n < 0 {
		return nil, err
	}
	buf := make([]byte, n+2)
	if _, err := io.ReadFull(r.br, buf); err != nil {
		return nil, err
	}
	if buf[n] != '\r' || buf[n+1] != '\n' {
		return nil, protocolErrorf("bulk string not terminated by CRLF")
	}
	return buf[:n:n], nil
}

func parseInt(b []byte) (int64, error) {
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, protocolErrorf("invalid integer %q", b)
	}
	return n, nil
}

// parseLen parses a length header, -1 is the null marker
func parseLen(b []byte, limit int) (int, error) {
	n, err := parseInt(b)
	if err != nil {
		return 0, err
	}
	if n < -1 || n > int64(limit) {
		return 0, protocolErrorf("invalid length %d", n)
	}
	return int(n), nil
}
