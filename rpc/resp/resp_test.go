package resp

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReader(s string) *Reader {
	return NewReader(strings.NewReader(s), 0)
}

func TestAppendCommand(t *testing.T) {
	got := AppendCommand(nil, []byte("SET"), []byte("key"), []byte(""))
	assert.Equal(t, "*3\r\n$3\r\nSET\r\n$3\r\nkey\r\n$0\r\n\r\n", string(got))
}

func TestAppendReplies(t *testing.T) {
	var buf []byte
	buf = AppendStatus(buf, "OK")
	buf = AppendError(buf, "ERR boom")
	buf = AppendInt(buf, -42)
	buf = AppendBulk(buf, []byte("hello"))
	buf = AppendNullBulk(buf)
	buf = AppendArrayLen(buf, 2)
	buf = AppendNullArray(buf)
	assert.Equal(t, "+OK\r\n-ERR boom\r\n:-42\r\n$5\r\nhello\r\n$-1\r\n*2\r\n*-1\r\n", string(buf))
}

func TestReaderTypedReplies(t *testing.T) {
	r := newTestReader("+QUEUED\r\n:17\r\n$3\r\nabc\r\n$-1\r\n*2\r\n$1\r\na\r\n$0\r\n\r\n*-1\r\n")

	status, err := r.ReadStatus()
	require.NoError(t, err)
	assert.Equal(t, "QUEUED", status)

	n, err := r.ReadInt()
	require.NoError(t, err)
	assert.Equal(t, int64(17), n)

	b, err := r.ReadBulk()
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), b)

	b, err = r.ReadBulk()
	require.NoError(t, err)
	assert.Nil(t, b)

	values, err := r.ReadMultiBulk()
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a"), {}}, values)

	count, err := r.ReadArrayLen()
	require.NoError(t, err)
	assert.Equal(t, -1, count)

	_, err = r.ReadStatus()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderServerError(t *testing.T) {
	r := newTestReader("-EXECABORT Transaction discarded because of previous errors.\r\n+OK\r\n")

	_, err := r.ReadArrayLen()
	require.Error(t, err)
	assert.True(t, IsServerError(err))

	var se ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "EXECABORT", se.Prefix())

	// the error consumed exactly one frame
	status, err := r.ReadStatus()
	require.NoError(t, err)
	assert.Equal(t, "OK", status)
}

func TestReaderProtocolErrors(t *testing.T) {
	cases := map[string]struct {
		input string
		read  func(r *Reader) error
	}{
		"wrong type": {":1\r\n", func(r *Reader) error { _, err := r.ReadStatus(); return err }},
		"missing CR": {"+OK\n", func(r *Reader) error { _, err := r.ReadStatus(); return err }},
		"bad int":    {":x\r\n", func(r *Reader) error { _, err := r.ReadInt(); return err }},
		"bad length": {"$-2\r\n", func(r *Reader) error { _, err := r.ReadBulk(); return err }},
		"bulk tail":  {"$1\r\nab\r\n", func(r *Reader) error { _, err := r.ReadBulk(); return err }},
		"empty line": {"\r\n", func(r *Reader) error { _, err := r.ReadInt(); return err }},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := tc.read(newTestReader(tc.input))
			var pe *ProtocolError
			assert.ErrorAs(t, err, &pe)
		})
	}
}

func TestReadReply(t *testing.T) {
	r := newTestReader("*4\r\n+OK\r\n:3\r\n-ERR wrong type\r\n*1\r\n$1\r\nx\r\n-ERR top\r\n")

	reply, err := r.ReadReply()
	require.NoError(t, err)
	assert.Equal(t, []interface{}{
		"OK",
		int64(3),
		ServerError("ERR wrong type"),
		[]interface{}{[]byte("x")},
	}, reply)

	_, err = r.ReadReply()
	assert.True(t, IsServerError(err))
}

func TestReadCommand(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(AppendCommand(nil, []byte("GET"), []byte("k")))
	buf.WriteString("\r\nPING  hello\r\n")

	r := NewReader(&buf, 0)

	args, err := r.ReadCommand()
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("GET"), []byte("k")}, args)

	// empty inline line is skipped
	args, err = r.ReadCommand()
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("PING"), []byte("hello")}, args)
}
