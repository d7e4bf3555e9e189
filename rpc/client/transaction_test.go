package client

import (
	"errors"
	"io"
	"testing"

	"github.com/ValentinKolb/respkv/rpc/resp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransaction(t *testing.T, conn *fakeConn) *Transaction {
	t.Helper()
	tx, err := NewTransaction(conn)
	require.NoError(t, err)
	require.Same(t, tx, conn.Transaction())
	require.Equal(t, TxActive, tx.State())
	return tx
}

func TestTransactionReadOrder(t *testing.T) {
	conn := newFakeConn(
		statusReply("OK"),
		statusReply("QUEUED"),
		statusReply("QUEUED"),
		arrayReply(2),
		statusReply("OK"),
		intReply(5),
	)
	tx := newTestTransaction(t, conn)

	var incr int64
	require.NoError(t, tx.Set("a", []byte("4"), nil))
	require.NoError(t, tx.Incr("a", func(n int64) { incr = n }))
	assert.Equal(t, 2, tx.NumCommands())

	// nothing reaches the wire before commit
	assert.Empty(t, conn.sent)

	require.NoError(t, tx.Commit())

	assert.Equal(t, []string{"MULTI", "SET a 4", "INCR a", "EXEC"}, conn.sent)
	assert.Equal(t, 1, conn.flushes)
	assert.Equal(t, []string{"status", "status", "status", "array", "status", "int"}, conn.reads)
	assert.Equal(t, int64(5), incr)
	assert.Zero(t, conn.remaining())
	assert.Equal(t, TxCommitted, tx.State())
}

func TestTransactionReadStepCount(t *testing.T) {
	for _, n := range []int{0, 1, 5, 20} {
		replies := []fakeReply{statusReply("OK")}
		for i := 0; i < n; i++ {
			replies = append(replies, statusReply("QUEUED"))
		}
		replies = append(replies, arrayReply(n))
		for i := 0; i < n; i++ {
			replies = append(replies, intReply(int64(i+1)))
		}

		conn := newFakeConn(replies...)
		tx := newTestTransaction(t, conn)
		for i := 0; i < n; i++ {
			require.NoError(t, tx.Incr("counter", nil))
		}
		require.NoError(t, tx.Commit(), "n=%d", n)
		assert.Len(t, conn.reads, 2*n+2, "n=%d", n)
		assert.Nil(t, conn.broken)
	}
}

// Scenario A: no commands
func TestTransactionCommitEmpty(t *testing.T) {
	conn := newFakeConn(statusReply("OK"), arrayReply(0))
	tx := newTestTransaction(t, conn)

	require.NoError(t, tx.Commit())
	assert.Equal(t, []string{"MULTI", "EXEC"}, conn.sent)
	assert.Equal(t, []string{"status", "array"}, conn.reads)
	assert.Nil(t, conn.Transaction())
	assert.Nil(t, conn.Pipeline())
}

// Scenario B: callbacks fire in queue order
func TestTransactionCallbacksInOrder(t *testing.T) {
	conn := newFakeConn(
		statusReply("OK"),
		statusReply("QUEUED"),
		statusReply("QUEUED"),
		statusReply("QUEUED"),
		arrayReply(3),
		statusReply("OK"),
		bulkReply([]byte("v")),
		intReply(1),
	)
	tx := newTestTransaction(t, conn)

	var order []string
	require.NoError(t, tx.Set("k", []byte("v"), func() { order = append(order, "set") }))
	require.NoError(t, tx.Get("k", func(v []byte) { order = append(order, "get:"+string(v)) }))
	require.NoError(t, tx.Del("k", func(n int64) { order = append(order, "del") }))

	require.NoError(t, tx.Commit())
	assert.Equal(t, []string{"set", "get:v", "del"}, order)
}

// Scenario C: count mismatch
func TestTransactionIntegrityError(t *testing.T) {
	conn := newFakeConn(
		statusReply("OK"),
		statusReply("QUEUED"),
		statusReply("QUEUED"),
		arrayReply(1),
		statusReply("OK"),
	)
	tx := newTestTransaction(t, conn)
	require.NoError(t, tx.Set("a", []byte("1"), nil))
	require.NoError(t, tx.Set("b", []byte("2"), nil))

	err := tx.Commit()
	require.Error(t, err)

	var ie *IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 2, ie.Expected)
	assert.Equal(t, 1, ie.Received)
	assert.ErrorIs(t, err, ErrProtocolIntegrity)
	assert.Contains(t, err.Error(), "expected '2'")
	assert.Contains(t, err.Error(), "received '1'")
	assert.Contains(t, err.Error(), "transaction was committed")

	assert.Nil(t, conn.Transaction())
	assert.Nil(t, conn.Pipeline())
	assert.Equal(t, TxFailed, tx.State())

	// the command replies were not read
	assert.NotNil(t, conn.broken)
}

func TestTransactionIntegrityErrorWithoutCommands(t *testing.T) {
	conn := newFakeConn(statusReply("OK"), arrayReply(1), intReply(42))
	tx := newTestTransaction(t, conn)

	err := tx.Commit()
	require.ErrorIs(t, err, ErrProtocolIntegrity)
	assert.Equal(t, TxFailed, tx.State())

	// the count reader was the last read but one reply is still unread
	assert.Equal(t, 1, conn.remaining())
	assert.NotNil(t, conn.broken)
}

// Scenario D: rollback before commit
func TestTransactionRollback(t *testing.T) {
	conn := newFakeConn()
	tx := newTestTransaction(t, conn)
	require.NoError(t, tx.StoreObject("User", "1", []byte("{}"), nil))

	require.NoError(t, tx.Rollback())

	assert.Nil(t, conn.Transaction())
	assert.Nil(t, conn.Pipeline())
	assert.Empty(t, conn.sent)
	assert.Empty(t, conn.pending)
	assert.Zero(t, conn.flushes)
	assert.Nil(t, conn.pendingTypeIDs)
	assert.Empty(t, conn.addedTypeIDs)
	assert.Equal(t, TxRolledBack, tx.State())

	// the transaction can not be used anymore
	assert.ErrorIs(t, tx.Set("a", nil, nil), ErrInvalidOperation)
	assert.ErrorIs(t, tx.Commit(), ErrInvalidOperation)
}

func TestTransactionRollbackWithoutActiveTransaction(t *testing.T) {
	conn := newFakeConn(statusReply("OK"), arrayReply(0))
	tx := newTestTransaction(t, conn)
	require.NoError(t, tx.Commit())

	sent := append([]string(nil), conn.sent...)
	cleared := conn.clearedTypeIDs
	resets := conn.resets

	err := tx.Rollback()
	require.ErrorIs(t, err, ErrInvalidOperation)

	assert.Equal(t, sent, conn.sent)
	assert.Equal(t, cleared, conn.clearedTypeIDs)
	assert.Equal(t, resets, conn.resets)
	assert.Equal(t, TxCommitted, tx.State())

	// a second rollback fails the same way
	assert.ErrorIs(t, tx.Rollback(), ErrInvalidOperation)
}

func TestTransactionCloseUncommitted(t *testing.T) {
	conn := newFakeConn()
	tx := newTestTransaction(t, conn)
	require.NoError(t, tx.Incr("a", nil))

	require.NoError(t, tx.Close())
	assert.Nil(t, conn.Transaction())
	assert.Nil(t, conn.Pipeline())
	assert.Empty(t, conn.sent)
	assert.Equal(t, TxClosed, tx.State())

	require.NoError(t, tx.Close())
	assert.Nil(t, conn.Transaction())
	assert.Equal(t, TxClosed, tx.State())
}

func TestTransactionCloseAfterCommit(t *testing.T) {
	conn := newFakeConn(statusReply("OK"), statusReply("QUEUED"), arrayReply(1), intReply(1))
	tx := newTestTransaction(t, conn)
	require.NoError(t, tx.Incr("a", nil))
	require.NoError(t, tx.Commit())

	resets := conn.resets
	cleared := conn.clearedTypeIDs

	require.NoError(t, tx.Close())
	require.NoError(t, tx.Close())

	assert.Equal(t, resets, conn.resets)
	assert.Equal(t, cleared, conn.clearedTypeIDs)
	assert.Equal(t, []string{"MULTI", "INCR a", "EXEC"}, conn.sent)
}

func TestTransactionAbortedByServer(t *testing.T) {
	conn := newFakeConn(statusReply("OK"), statusReply("QUEUED"), arrayReply(-1))
	tx := newTestTransaction(t, conn)
	require.NoError(t, tx.StoreObject("User", "7", []byte("{}"), nil))

	err := tx.Commit()
	require.ErrorIs(t, err, ErrTransactionAborted)
	assert.Equal(t, TxFailed, tx.State())

	// no reply is missing, the connection stays usable
	assert.Nil(t, conn.broken)
	assert.Zero(t, conn.remaining())
	assert.Empty(t, conn.addedTypeIDs)
	assert.Nil(t, conn.pendingTypeIDs)
}

func TestTransactionExecError(t *testing.T) {
	conn := newFakeConn(
		statusReply("OK"),
		statusReply("QUEUED"),
		errorReply("EXECABORT Transaction discarded because of previous errors."),
	)
	tx := newTestTransaction(t, conn)
	require.NoError(t, tx.Incr("a", nil))

	err := tx.Commit()
	require.Error(t, err)
	assert.True(t, resp.IsServerError(err))
	assert.Nil(t, conn.broken)
	assert.Nil(t, conn.Transaction())
}

func TestTransactionTransportErrorPropagates(t *testing.T) {
	conn := newFakeConn(
		statusReply("OK"),
		statusReply("QUEUED"),
		transportError(io.ErrUnexpectedEOF),
	)
	tx := newTestTransaction(t, conn)
	require.NoError(t, tx.StoreObject("User", "1", []byte("{}"), nil))

	err := tx.Commit()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	assert.Nil(t, conn.Transaction())
	assert.Nil(t, conn.Pipeline())
	assert.NotNil(t, conn.broken)
	assert.Empty(t, conn.addedTypeIDs)
	assert.Equal(t, TxFailed, tx.State())
}

func TestTransactionErrorHandler(t *testing.T) {
	conn := newFakeConn(
		statusReply("OK"),
		statusReply("QUEUED"),
		statusReply("QUEUED"),
		arrayReply(2),
		errorReply("ERR value is not an integer or out of range"),
		intReply(3),
	)
	tx := newTestTransaction(t, conn)

	var handled error
	var second int64
	op := WithErrorHandler(NewValueOperation(conn.ReadInt, nil), func(err error) { handled = err })
	require.NoError(t, tx.QueueCommand(op, []byte("INCR"), []byte("text")))
	require.NoError(t, tx.Incr("n", func(n int64) { second = n }))

	require.NoError(t, tx.Commit())
	require.Error(t, handled)
	assert.Contains(t, handled.Error(), "not an integer")
	assert.Equal(t, int64(3), second)
}

func TestTransactionCommandErrorInsideExecKeepsConnection(t *testing.T) {
	conn := newFakeConn(
		statusReply("OK"),
		statusReply("QUEUED"),
		statusReply("QUEUED"),
		statusReply("QUEUED"),
		arrayReply(3),
		errorReply("ERR value is not an integer or out of range"),
		intReply(3),
		errorReply("WRONGTYPE Operation against a key holding the wrong kind of value"),
	)
	tx := newTestTransaction(t, conn)

	var second int64
	require.NoError(t, tx.Incr("text", nil))
	require.NoError(t, tx.Incr("n", func(n int64) { second = n }))
	require.NoError(t, tx.Incr("set", nil))

	err := tx.Commit()
	require.Error(t, err)
	assert.True(t, resp.IsServerError(err))
	assert.Contains(t, err.Error(), "not an integer")
	assert.Equal(t, TxFailed, tx.State())

	// every reply was read, the stream is still in sync
	assert.Equal(t, int64(3), second)
	assert.Zero(t, conn.remaining())
	assert.Nil(t, conn.broken)
}

func TestTransactionQueueErrorStillBreaksConnection(t *testing.T) {
	conn := newFakeConn(
		statusReply("OK"),
		errorReply("ERR unknown command 'FOO'"),
		statusReply("QUEUED"),
		errorReply("EXECABORT Transaction discarded because of previous errors."),
	)
	tx := newTestTransaction(t, conn)
	require.NoError(t, tx.QueueRaw([]string{"FOO"}, nil))
	require.NoError(t, tx.Incr("n", nil))

	err := tx.Commit()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
	assert.NotNil(t, conn.broken)
}

func TestTransactionTypeIDFailureAfterCommit(t *testing.T) {
	conn := newFakeConn(
		statusReply("OK"),
		statusReply("QUEUED"),
		arrayReply(1),
		statusReply("OK"),
	)
	conn.addTypeIDsErr = errors.New("sadd failed")
	tx := newTestTransaction(t, conn)
	require.NoError(t, tx.StoreObject("User", "1", []byte("a"), nil))

	commits := txCommits.Get()
	failures := txFailures.Get()
	typeIDFailures := txTypeIDFailures.Get()

	err := tx.Commit()
	require.ErrorIs(t, err, conn.addTypeIDsErr)

	// the commands were executed on the server
	assert.Equal(t, TxCommitted, tx.State())
	assert.Equal(t, commits+1, txCommits.Get())
	assert.Equal(t, failures, txFailures.Get())
	assert.Equal(t, typeIDFailures+1, txTypeIDFailures.Get())
	assert.Zero(t, conn.clearedTypeIDs)
	assert.Nil(t, conn.Transaction())
}

func TestTransactionTypeIDsAddedOnCommit(t *testing.T) {
	conn := newFakeConn(
		statusReply("OK"),
		statusReply("QUEUED"),
		statusReply("QUEUED"),
		arrayReply(2),
		statusReply("OK"),
		statusReply("OK"),
	)
	tx := newTestTransaction(t, conn)
	require.NoError(t, tx.StoreObject("User", "1", []byte("a"), nil))
	require.NoError(t, tx.StoreObject("User", "2", []byte("b"), nil))

	require.NoError(t, tx.Commit())
	assert.Equal(t, []string{"MULTI", "SET urn:user:1 a", "SET urn:user:2 b", "EXEC"}, conn.sent)
	assert.Equal(t, []string{"1", "2"}, conn.addedTypeIDs["User"])
}

func TestTransactionSingleActive(t *testing.T) {
	conn := newFakeConn()
	tx := newTestTransaction(t, conn)

	_, err := NewTransaction(conn)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = NewPipeline(conn)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	require.NoError(t, tx.Close())

	tx2, err := NewTransaction(conn)
	require.NoError(t, err)
	require.NoError(t, tx2.Close())
}

func TestTransactionFlushCommits(t *testing.T) {
	conn := newFakeConn(statusReply("OK"), statusReply("QUEUED"), arrayReply(1), intReply(1))
	tx := newTestTransaction(t, conn)
	require.NoError(t, tx.Incr("a", nil))

	require.NoError(t, tx.Flush())
	assert.Equal(t, TxCommitted, tx.State())
	assert.ErrorIs(t, tx.Commit(), ErrInvalidOperation)
}

func TestTxStateString(t *testing.T) {
	assert.Equal(t, "active", TxActive.String())
	assert.Equal(t, "rolled back", TxRolledBack.String())
	assert.Equal(t, "unknown", TxState(42).String())
	assert.True(t, errors.Is(newError(RetCInvalidOperation, "x"), ErrInvalidOperation))
}
