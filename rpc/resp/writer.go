package resp

import (
	"strconv"
)

// Type prefixes of the RESP2 protocol
const (
	prefixStatus    byte = '+'
	prefixError     byte = '-'
	prefixInteger   byte = ':'
	prefixBulk      byte = '$'
	prefixMultiBulk byte = '*'
)

var crlf = []byte("\r\n")

// --------------------------------------------------------------------------
// Request encoding (client side)
// --------------------------------------------------------------------------

// AppendCommand appends a command encoded as a multi bulk request to dst
// and returns the extended buffer:
//
//	*<argc>\r\n
//	$<len(arg)>\r\n<arg>\r\n   (for every argument)
func AppendCommand(dst []byte, args ...[]byte) []byte {
	dst = AppendArrayLen(dst, len(args))
	for _, arg := range args {
		dst = AppendBulk(dst, arg)
	}
	return dst
}

// --------------------------------------------------------------------------
// Reply encoding (server side)
// --------------------------------------------------------------------------

// AppendStatus appends a status reply (e.g. +OK)
func AppendStatus(dst []byte, status string) []byte {
	dst = append(dst, prefixStatus)
	dst = append(dst, status...)
	return append(dst, crlf...)
}

// AppendError appends an error reply. The message must not contain line breaks.
func AppendError(dst []byte, msg string) []byte {
	dst = append(dst, prefixError)
	dst = append(dst, msg...)
	return append(dst, crlf...)
}

// AppendInt appends an integer reply
func AppendInt(dst []byte, n int64) []byte {
	dst = append(dst, prefixInteger)
	dst = strconv.AppendInt(dst, n, 10)
	return append(dst, crlf...)
}

// AppendBulk appends a bulk string. A nil slice is still encoded as an
// empty bulk, use AppendNullBulk for the null reply.
func AppendBulk(dst []byte, b []byte) []byte {
	dst = append(dst, prefixBulk)
	dst = strconv.AppendInt(dst, int64(len(b)), 10)
	dst = append(dst, crlf...)
	dst = append(dst, b...)
	return append(dst, crlf...)
}

// AppendNullBulk appends the null bulk reply ($-1)
func AppendNullBulk(dst []byte) []byte {
	return append(dst, "$-1\r\n"...)
}

// AppendArrayLen appends the header of a multi bulk reply with n elements
func AppendArrayLen(dst []byte, n int) []byte {
	dst = append(dst, prefixMultiBulk)
	dst = strconv.AppendInt(dst, int64(n), 10)
	return append(dst, crlf...)
}

// AppendNullArray appends the null multi bulk reply (*-1)
func AppendNullArray(dst []byte) []byte {
	return append(dst, "*-1\r\n"...)
}
