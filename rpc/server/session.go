package server

import (
	"bufio"
	"errors"
	"github.com/ValentinKolb/respkv/rpc/resp"
	"io"
	"net"
	"strings"
	"time"
)

// session is the state of one client connection
type session struct {
	id     uint64
	conn   net.Conn
	server *Server
	reader *resp.Reader
	writer *bufio.Writer

	// transaction state
	inMulti bool
	dirty   bool // a command was rejected while queueing
	queued  [][][]byte

	// key -> version at WATCH time
	watched map[string]uint64
}

func newSession(id uint64, conn net.Conn, server *Server) *session {
	return &session{
		id:     id,
		conn:   conn,
		server: server,
		reader: resp.NewReader(conn, server.config.Transport.ReadBufferSize),
		writer: bufio.NewWriterSize(conn, writeBufferSize(server.config.Transport.WriteBufferSize)),
	}
}

// serve reads and answers commands until the connection is closed
func (s *session) serve() {
	connectedClients.Inc()
	defer connectedClients.Dec()
	defer s.conn.Close()

	Logger.Debugf("session %d: connected from %s", s.id, s.conn.RemoteAddr())

	var out []byte
	for {
		if s.server.config.TimeoutSecond > 0 {
			timeout := time.Duration(s.server.config.TimeoutSecond) * time.Second
			_ = s.conn.SetReadDeadline(time.Now().Add(timeout))
		}

		args, err := s.reader.ReadCommand()
		if err != nil {
			var pe *resp.ProtocolError
			switch {
			case errors.As(err, &pe):
				Logger.Warningf("session %d: %v", s.id, err)
				_, _ = s.writer.Write(resp.AppendError(nil, "ERR Protocol error: "+pe.Msg))
				_ = s.writer.Flush()
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				Logger.Debugf("session %d: disconnected", s.id)
			default:
				Logger.Debugf("session %d: read failed: %v", s.id, err)
			}
			return
		}

		out = s.handle(args, out[:0])
		if _, err := s.writer.Write(out); err != nil {
			Logger.Debugf("session %d: write failed: %v", s.id, err)
			return
		}

		// pipelined requests are answered with a single write
		if s.reader.Buffered() == 0 {
			if err := s.writer.Flush(); err != nil {
				Logger.Debugf("session %d: write failed: %v", s.id, err)
				return
			}
		}
	}
}

// handle executes one command and appends the reply to out
func (s *session) handle(args [][]byte, out []byte) []byte {
	name := strings.ToUpper(string(args[0]))
	countCommand(name)

	switch name {
	case "MULTI":
		return s.multi(args, out)
	case "EXEC":
		return s.exec(args, out)
	case "DISCARD":
		return s.discard(args, out)
	case "WATCH":
		return s.watch(args, out)
	}

	cmd, errMsg := lookupCommand(name, args)

	if s.inMulti {
		if errMsg != "" {
			s.dirty = true
			return resp.AppendError(out, errMsg)
		}
		s.queued = append(s.queued, args)
		return resp.AppendStatus(out, "QUEUED")
	}

	if errMsg != "" {
		return resp.AppendError(out, errMsg)
	}
	if name == "UNWATCH" {
		s.watched = nil
	}

	s.server.keyspace.Atomically(func() {
		out = cmd.handler(s.server.keyspace, args, out)
	})
	return out
}

// --------------------------------------------------------------------------
// Transaction Commands
// --------------------------------------------------------------------------

func (s *session) multi(args [][]byte, out []byte) []byte {
	if len(args) != 1 {
		return resp.AppendError(out, arityError("multi"))
	}
	if s.inMulti {
		return resp.AppendError(out, "ERR MULTI calls can not be nested")
	}
	s.inMulti = true
	return resp.AppendStatus(out, "OK")
}

func (s *session) exec(args [][]byte, out []byte) []byte {
	if len(args) != 1 {
		return resp.AppendError(out, arityError("exec"))
	}
	if !s.inMulti {
		return resp.AppendError(out, "ERR EXEC without MULTI")
	}

	queued, dirty, watched := s.queued, s.dirty, s.watched
	s.resetMulti()
	s.watched = nil

	if dirty {
		execAborted.Inc()
		return resp.AppendError(out, "EXECABORT Transaction discarded because of previous errors.")
	}

	ks := s.server.keyspace
	ks.Atomically(func() {
		for key, version := range watched {
			if ks.Version(key) != version {
				execWatchConflicts.Inc()
				Logger.Debugf("session %d: watched key %q was modified, transaction aborted", s.id, key)
				out = resp.AppendNullArray(out)
				return
			}
		}

		out = resp.AppendArrayLen(out, len(queued))
		for _, args := range queued {
			cmd, _ := lookupCommand(strings.ToUpper(string(args[0])), args)
			out = cmd.handler(ks, args, out)
		}
		execCommitted.Inc()
	})
	return out
}

func (s *session) discard(args [][]byte, out []byte) []byte {
	if len(args) != 1 {
		return resp.AppendError(out, arityError("discard"))
	}
	if !s.inMulti {
		return resp.AppendError(out, "ERR DISCARD without MULTI")
	}
	s.resetMulti()
	s.watched = nil
	return resp.AppendStatus(out, "OK")
}

func (s *session) watch(args [][]byte, out []byte) []byte {
	if len(args) < 2 {
		return resp.AppendError(out, arityError("watch"))
	}
	if s.inMulti {
		return resp.AppendError(out, "ERR WATCH inside MULTI is not allowed")
	}

	if s.watched == nil {
		s.watched = make(map[string]uint64)
	}
	ks := s.server.keyspace
	ks.Atomically(func() {
		for _, key := range args[1:] {
			// the first WATCH of a key wins
			if _, ok := s.watched[string(key)]; !ok {
				s.watched[string(key)] = ks.Version(string(key))
			}
		}
	})
	return resp.AppendStatus(out, "OK")
}

func (s *session) resetMulti() {
	s.inMulti = false
	s.dirty = false
	s.queued = nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func writeBufferSize(size int) int {
	if size <= 0 {
		return 16 * 1024
	}
	return size
}
