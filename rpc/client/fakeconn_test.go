package client

import (
	"io"
	"strings"

	"github.com/ValentinKolb/respkv/rpc/resp"
)

// fakeReply is one scripted reply frame of a fakeConn
type fakeReply struct {
	kind  string // status, int, bulk, array, multibulk, error
	value interface{}
}

func statusReply(s string) fakeReply { return fakeReply{"status", s} }
func intReply(n int64) fakeReply { return fakeReply{"int", n} }
func bulkReply(b []byte) fakeReply { return fakeReply{"bulk", b} }
func arrayReply(n int) fakeReply { return fakeReply{"array", n} }
func errorReply(msg string) fakeReply { return fakeReply{"error", resp.ServerError(msg)} }
func multiBulkReply(v ...string) fakeReply { return fakeReply{"multibulk", v} }
func transportError(err error) fakeReply { return fakeReply{"transport", err} }

// fakeConn is an IConn that records every interaction and answers reads with
// scripted replies. Replies are only available after FlushSendBuffer.
type fakeConn struct {
	replies []fakeReply
	pos     int

	// every command that reached the "wire"
	sent    []string
	pending []string

	// the kind of every read in call order
	reads []string

	flushes int
	resets  int

	pipeline    *Pipeline
	transaction *Transaction

	pendingTypeIDs   map[string][]string
	addedTypeIDs     map[string][]string
	clearedTypeIDs   int
	committedTypeIDs int
	addTypeIDsErr    error

	broken error
}

func newFakeConn(replies ...fakeReply) *fakeConn {
	return &fakeConn{replies: replies, addedTypeIDs: map[string][]string{}}
}

// next returns the next scripted reply and checks its kind
func (f *fakeConn) next(kind string) (interface{}, error) {
	f.reads = append(f.reads, kind)
	if f.broken != nil {
		return nil, ErrConnectionBroken
	}
	if f.pos >= len(f.replies) || f.flushes == 0 {
		return nil, io.EOF
	}
	r := f.replies[f.pos]
	f.pos++
	switch r.kind {
	case "error":
		return nil, r.value.(resp.ServerError)
	case "transport":
		return nil, r.value.(error)
	case kind:
		return r.value, nil
	default:
		return nil, &resp.ProtocolError{Msg: "expected " + kind + " got " + r.kind}
	}
}

func (f *fakeConn) SendCommand(args ...[]byte) error {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = string(a)
	}
	f.pending = append(f.pending, strings.Join(parts, " "))
	return nil
}

func (f *fakeConn) FlushSendBuffer() error {
	f.flushes++
	f.sent = append(f.sent, f.pending...)
	f.pending = nil
	return nil
}

func (f *fakeConn) ResetSendBuffer() {
	f.resets++
	f.pending = nil
}

func (f *fakeConn) ExpectOK() error {
	v, err := f.next("status")
	if err != nil {
		return err
	}
	if v != "OK" {
		return newError(RetCUnexpectedReply, "expected OK, got %v", v)
	}
	return nil
}

func (f *fakeConn) ExpectQueued() error {
	v, err := f.next("status")
	if err != nil {
		return err
	}
	if v != "QUEUED" {
		return newError(RetCUnexpectedReply, "expected QUEUED, got %v", v)
	}
	return nil
}

func (f *fakeConn) ReadInt() (int64, error) {
	v, err := f.next("int")
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (f *fakeConn) ReadBulk() ([]byte, error) {
	v, err := f.next("bulk")
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (f *fakeConn) ReadMultiBulk() ([][]byte, error) {
	v, err := f.next("multibulk")
	if err != nil {
		return nil, err
	}
	var res [][]byte
	for _, s := range v.([]string) {
		res = append(res, []byte(s))
	}
	return res, nil
}

func (f *fakeConn) ReadReply() (interface{}, error) {
	if f.pos < len(f.replies) {
		return f.next(f.replies[f.pos].kind)
	}
	return f.next("reply")
}

func (f *fakeConn) ReadMultiDataResultCount() (int, error) {
	v, err := f.next("array")
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (f *fakeConn) Multi() error { return f.SendCommand([]byte("MULTI")) }
func (f *fakeConn) Exec() error { return f.SendCommand([]byte("EXEC")) }

func (f *fakeConn) Pipeline() *Pipeline { return f.pipeline }
func (f *fakeConn) SetPipeline(p *Pipeline) { f.pipeline = p }
func (f *fakeConn) Transaction() *Transaction { return f.transaction }
func (f *fakeConn) SetTransaction(t *Transaction) { f.transaction = t }

func (f *fakeConn) RegisterTypeID(typeName, id string) error {
	if f.pendingTypeIDs == nil {
		f.pendingTypeIDs = map[string][]string{}
	}
	f.pendingTypeIDs[typeName] = append(f.pendingTypeIDs[typeName], id)
	return nil
}

func (f *fakeConn) AddTypeIDsRegisteredDuringPipeline() error {
	f.committedTypeIDs++
	if f.addTypeIDsErr != nil {
		f.pendingTypeIDs = nil
		return f.addTypeIDsErr
	}
	for typeName, ids := range f.pendingTypeIDs {
		f.addedTypeIDs[typeName] = append(f.addedTypeIDs[typeName], ids...)
	}
	f.pendingTypeIDs = nil
	return nil
}

func (f *fakeConn) ClearTypeIDsRegisteredDuringPipeline() {
	f.clearedTypeIDs++
	f.pendingTypeIDs = nil
}

func (f *fakeConn) MarkBroken(cause error) {
	if f.broken == nil {
		f.broken = cause
	}
}

// remaining returns the number of scripted replies that were not read
func (f *fakeConn) remaining() int {
	return len(f.replies) - f.pos
}
