package server

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/respkv/rpc/common"
	"github.com/ValentinKolb/respkv/rpc/resp"
	"github.com/ValentinKolb/respkv/rpc/transport/tcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestServer starts a server on a random local port
func startTestServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(common.ServerConfig{
		Transport: common.ServerTransportConfig{Endpoint: "127.0.0.1:0"},
	}, tcp.NewTCPServerConnector())
	require.NoError(t, s.Listen())

	done := make(chan error, 1)
	go func() { done <- s.Serve() }()

	t.Cleanup(func() {
		require.NoError(t, s.Close())
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("Serve did not return after Close")
		}
	})
	return s
}

// rawConn sends raw commands and reads raw replies
type rawConn struct {
	t    *testing.T
	conn net.Conn
	r    *resp.Reader
}

func dialRaw(t *testing.T, s *Server) *rawConn {
	t.Helper()
	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetDeadline(time.Now().Add(10*time.Second)))
	return &rawConn{t: t, conn: conn, r: resp.NewReader(conn, 0)}
}

// send writes one command per element, all in a single write
func (c *rawConn) send(cmds ...string) {
	var buf []byte
	for _, cmd := range cmds {
		var args [][]byte
		for _, f := range strings.Fields(cmd) {
			args = append(args, []byte(f))
		}
		buf = resp.AppendCommand(buf, args...)
	}
	_, err := c.conn.Write(buf)
	require.NoError(c.t, err)
}

func (c *rawConn) reply() interface{} {
	v, err := c.r.ReadReply()
	if err != nil {
		if resp.IsServerError(err) {
			return err
		}
		c.t.Fatalf("read failed: %v", err)
	}
	return v
}

func (c *rawConn) do(cmd string) interface{} {
	c.send(cmd)
	return c.reply()
}

func TestPingAndBasicCommands(t *testing.T) {
	s := startTestServer(t)
	c := dialRaw(t, s)

	assert.Equal(t, "PONG", c.do("PING"))
	assert.Equal(t, []byte("hi"), c.do("PING hi"))
	assert.Equal(t, "OK", c.do("SET a 1"))
	assert.Equal(t, []byte("1"), c.do("GET a"))
	assert.Equal(t, int64(2), c.do("INCR a"))
	assert.Equal(t, int64(12), c.do("INCRBY a 10"))
	assert.Equal(t, int64(1), c.do("EXISTS a"))
	assert.Equal(t, int64(-1), c.do("TTL a"))
	assert.Equal(t, int64(1), c.do("EXPIRE a 100"))
	assert.Equal(t, int64(100), c.do("TTL a"))
	assert.Equal(t, int64(2), c.do("SADD s x y"))
	assert.Equal(t, []interface{}{[]byte("x"), []byte("y")}, c.do("SMEMBERS s"))
	assert.Equal(t, int64(1), c.do("SREM s x"))
	assert.Equal(t, int64(2), c.do("DBSIZE"))
	assert.Equal(t, int64(2), c.do("DEL a s missing"))
	assert.Nil(t, c.do("GET a"))
	assert.Equal(t, "OK", c.do("SET b 1 EX 10"))
	assert.Equal(t, "OK", c.do("FLUSHDB"))
	assert.Equal(t, int64(0), c.do("DBSIZE"))
}

func TestCommandErrors(t *testing.T) {
	s := startTestServer(t)
	c := dialRaw(t, s)

	assert.EqualError(t, c.do("NOPE").(error), "ERR unknown command 'NOPE'")
	assert.EqualError(t, c.do("GET").(error), "ERR wrong number of arguments for 'get' command")
	assert.EqualError(t, c.do("SET a 1 PX 10").(error), "ERR syntax error")
	assert.EqualError(t, c.do("SET a 1 EX 0").(error), "ERR invalid expire time in 'set' command")
	assert.Equal(t, "OK", c.do("SET a text"))
	assert.EqualError(t, c.do("INCR a").(error), "ERR value is not an integer or out of range")
	assert.EqualError(t, c.do("SADD a x").(error), "WRONGTYPE Operation against a key holding the wrong kind of value")
	assert.EqualError(t, c.do("EXEC").(error), "ERR EXEC without MULTI")
	assert.EqualError(t, c.do("DISCARD").(error), "ERR DISCARD without MULTI")

	// the connection is still usable
	assert.Equal(t, "PONG", c.do("PING"))
}

func TestInlineCommand(t *testing.T) {
	s := startTestServer(t)
	c := dialRaw(t, s)

	_, err := c.conn.Write([]byte("PING\r\n\r\nSET k v\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "PONG", c.reply())
	assert.Equal(t, "OK", c.reply())
}

func TestMultiExecWireOrder(t *testing.T) {
	s := startTestServer(t)
	c := dialRaw(t, s)

	// one write, like a client that buffers the whole transaction
	c.send("MULTI", "SET a 1", "INCR a", "GET a", "EXEC")

	assert.Equal(t, "OK", c.reply())
	assert.Equal(t, "QUEUED", c.reply())
	assert.Equal(t, "QUEUED", c.reply())
	assert.Equal(t, "QUEUED", c.reply())

	n, err := c.r.ReadArrayLen()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, "OK", c.reply())
	assert.Equal(t, int64(2), c.reply())
	assert.Equal(t, []byte("2"), c.reply())
}

func TestExecRuntimeErrorInsideArray(t *testing.T) {
	s := startTestServer(t)
	c := dialRaw(t, s)

	c.send("SET t text", "MULTI", "INCR t", "INCR n", "EXEC")
	assert.Equal(t, "OK", c.reply())
	assert.Equal(t, "OK", c.reply())
	assert.Equal(t, "QUEUED", c.reply())
	assert.Equal(t, "QUEUED", c.reply())

	reply := c.reply().([]interface{})
	require.Len(t, reply, 2)
	assert.Equal(t, resp.ServerError("ERR value is not an integer or out of range"), reply[0])
	assert.Equal(t, int64(1), reply[1])
}

func TestExecAbort(t *testing.T) {
	s := startTestServer(t)
	c := dialRaw(t, s)

	c.send("MULTI", "SET a 1", "GET", "EXEC")
	assert.Equal(t, "OK", c.reply())
	assert.Equal(t, "QUEUED", c.reply())
	assert.EqualError(t, c.reply().(error), "ERR wrong number of arguments for 'get' command")

	err := c.reply().(error)
	assert.Equal(t, "EXECABORT", err.(resp.ServerError).Prefix())

	// nothing was executed
	assert.Equal(t, int64(0), c.do("EXISTS a"))
}

func TestDiscard(t *testing.T) {
	s := startTestServer(t)
	c := dialRaw(t, s)

	c.send("MULTI", "SET a 1", "DISCARD")
	assert.Equal(t, "OK", c.reply())
	assert.Equal(t, "QUEUED", c.reply())
	assert.Equal(t, "OK", c.reply())
	assert.Equal(t, int64(0), c.do("EXISTS a"))

	assert.Equal(t, "OK", c.do("MULTI"))
	assert.EqualError(t, c.do("MULTI").(error), "ERR MULTI calls can not be nested")
	assert.EqualError(t, c.do("WATCH a").(error), "ERR WATCH inside MULTI is not allowed")
	assert.Equal(t, "OK", c.do("DISCARD"))
}

func TestWatchConflict(t *testing.T) {
	s := startTestServer(t)
	c1 := dialRaw(t, s)
	c2 := dialRaw(t, s)

	assert.Equal(t, "OK", c1.do("WATCH lock"))
	assert.Equal(t, "OK", c2.do("SET lock other"))

	c1.send("MULTI", "SET lock mine", "EXEC")
	assert.Equal(t, "OK", c1.reply())
	assert.Equal(t, "QUEUED", c1.reply())

	n, err := c1.r.ReadArrayLen()
	require.NoError(t, err)
	assert.Equal(t, -1, n)

	assert.Equal(t, []byte("other"), c1.do("GET lock"))

	// the watch is gone after EXEC
	c1.send("MULTI", "SET lock mine", "EXEC")
	assert.Equal(t, "OK", c1.reply())
	assert.Equal(t, "QUEUED", c1.reply())
	assert.Equal(t, []interface{}{"OK"}, c1.reply())
}

func TestWatchWithoutConflict(t *testing.T) {
	s := startTestServer(t)
	c := dialRaw(t, s)

	assert.Equal(t, "OK", c.do("WATCH a b"))
	// own reads do not change anything
	assert.Nil(t, c.do("GET a"))

	c.send("MULTI", "SET a 1", "EXEC")
	assert.Equal(t, "OK", c.reply())
	assert.Equal(t, "QUEUED", c.reply())
	assert.Equal(t, []interface{}{"OK"}, c.reply())
}

func TestUnwatch(t *testing.T) {
	s := startTestServer(t)
	c1 := dialRaw(t, s)
	c2 := dialRaw(t, s)

	assert.Equal(t, "OK", c1.do("WATCH a"))
	assert.Equal(t, "OK", c1.do("UNWATCH"))
	assert.Equal(t, "OK", c2.do("SET a 1"))

	c1.send("MULTI", "INCR a", "EXEC")
	assert.Equal(t, "OK", c1.reply())
	assert.Equal(t, "QUEUED", c1.reply())
	assert.Equal(t, []interface{}{int64(2)}, c1.reply())
}

func TestProtocolErrorClosesConnection(t *testing.T) {
	s := startTestServer(t)
	c := dialRaw(t, s)

	_, err := c.conn.Write([]byte("*1\r\n:12\r\n"))
	require.NoError(t, err)

	reply := c.reply()
	require.Error(t, reply.(error))
	assert.Contains(t, reply.(error).Error(), "Protocol error")

	_, err = c.r.ReadReply()
	assert.Error(t, err)
}

func TestSessionsTracked(t *testing.T) {
	s := startTestServer(t)
	c := dialRaw(t, s)
	assert.Equal(t, "PONG", c.do("PING"))
	assert.Equal(t, 1, s.NumSessions())

	require.NoError(t, c.conn.Close())
	require.Eventually(t, func() bool { return s.NumSessions() == 0 }, 5*time.Second, 10*time.Millisecond)
}
