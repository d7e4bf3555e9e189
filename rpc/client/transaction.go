package client

import (
	"errors"
	"github.com/ValentinKolb/respkv/rpc/resp"
	"time"
)

// TxState is the lifecycle state of a Transaction
type TxState int

const (
	TxInactive TxState = iota
	TxActive
	TxCommitting
	TxCommitted
	TxFailed
	TxRolledBack
	TxClosed
)

func (s TxState) String() string {
	switch s {
	case TxInactive:
		return "inactive"
	case TxActive:
		return "active"
	case TxCommitting:
		return "committing"
	case TxCommitted:
		return "committed"
	case TxFailed:
		return "failed"
	case TxRolledBack:
		return "rolled back"
	case TxClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transaction queues commands between MULTI and EXEC and decodes the replies
// on Commit.
//
// While a transaction is open, the server answers every queued command with
// +QUEUED. The results of the commands arrive after EXEC as one array. For N
// queued commands the reply stream therefore looks like this:
//
//	+OK            (MULTI)
//	+QUEUED        (N times, one per command)
//	*N             (EXEC)
//	<reply 1> ... <reply N>
//
// Every reply is read by one queued operation, the queue is arranged to match
// this order exactly before anything is flushed.
//
// Usage:
//
//	tx, _ := c.CreateTransaction()
//	defer tx.Close() // rolls back if Commit was not called
//	_ = tx.Set("a", []byte("1"), nil)
//	_ = tx.Incr("a", func(n int64) { fmt.Println(n) })
//	err := tx.Commit()
type Transaction struct {
	*Pipeline

	state TxState

	// number of real commands, incremented together with every ack operation
	numCommands int

	// the EXEC reply was an error or a null array, no command replies follow
	execRejected bool

	// the EXEC header announced exactly numCommands replies
	execAccepted bool
}

// NewTransaction opens a transaction on the connection.
// The connection's active transaction is set until Commit, Rollback or Close.
func NewTransaction(conn IConn) (*Transaction, error) {
	if conn.Transaction() != nil {
		return nil, newError(RetCInvalidOperation, "a transaction is already active on this connection")
	}

	t := &Transaction{state: TxInactive}
	p, err := newPipeline(conn, t.queueExpectQueued)
	if err != nil {
		return nil, err
	}
	t.Pipeline = p

	if err := t.init(); err != nil {
		_ = p.Close()
		return nil, err
	}
	return t, nil
}

// init sends MULTI and registers the transaction on the connection
func (t *Transaction) init() error {
	if err := t.conn.Multi(); err != nil {
		return err
	}
	t.conn.SetTransaction(t)
	t.state = TxActive
	return nil
}

// State returns the current lifecycle state
func (t *Transaction) State() TxState {
	return t.state
}

// Commit executes the transaction and decodes all replies.
//
// An *IntegrityError means the transaction was committed but the EXEC reply
// announced a different number of results than commands were queued, the
// connection is broken afterwards. If single commands fail inside EXEC
// (e.g. INCR on a non-integer) all replies are still read and the first
// error reply is returned, the connection stays usable.
// ErrTransactionAborted means the server discarded the transaction (a watched
// key was modified). For any other error the outcome on the server is unknown.
//
// The transaction is closed afterwards, no matter if it succeeded.
func (t *Transaction) Commit() (err error) {
	if t.state != TxActive {
		return newError(RetCInvalidOperation, "cannot commit a transaction that is %s", t.state)
	}
	t.state = TxCommitting
	start := time.Now()

	defer func() {
		t.conn.SetTransaction(nil)
		t.ClosePipeline()
		observeCommit(t.numCommands, start, err)
		if err != nil {
			t.state = TxFailed
			t.conn.ClearTypeIDsRegisteredDuringPipeline()
			return
		}
		// the commands are executed, a failing SADD does not undo that
		t.state = TxCommitted
		if err = t.conn.AddTypeIDsRegisteredDuringPipeline(); err != nil {
			txTypeIDFailures.Inc()
		}
	}()

	// EXEC is written directly, it is not a queued command
	if err := t.conn.Exec(); err != nil {
		return err
	}

	numCommands := t.numCommands

	// The first numCommands replies after +OK are the acks. The EXEC header
	// follows them, the command replies come after it.
	t.queue.Insert(numCommands, NewValueOperation(t.readMultiDataResultCount, t.handleMultiDataResultCount))

	// +OK of MULTI is the very first reply
	t.queue.Insert(0, NewVoidOperation(t.conn.ExpectOK, nil))

	if err := t.conn.FlushSendBuffer(); err != nil {
		return err
	}

	Logger.Debugf("Committing transaction with %d commands (%d queued reads)", numCommands, t.queue.Len())

	// An error reply of a single command inside the EXEC array takes exactly
	// one frame, the replies of the other commands are still read.
	return t.processQueue(
		func(error) bool { return t.execRejected },
		func(err error) bool { return t.execAccepted && resp.IsServerError(err) },
	)
}

// Flush commits the transaction, see Commit
func (t *Transaction) Flush() error {
	return t.Commit()
}

// Rollback discards the transaction. MULTI and all queued commands are still
// in the send buffer and never reach the server.
// It fails with ErrInvalidOperation if this transaction is not the active
// transaction of the connection.
func (t *Transaction) Rollback() error {
	if t.conn.Transaction() != t {
		return newError(RetCInvalidOperation, "there is no current transaction to rollback")
	}

	t.conn.SetTransaction(nil)
	t.conn.ClearTypeIDsRegisteredDuringPipeline()
	t.conn.ResetSendBuffer()
	t.ClosePipeline()
	t.state = TxRolledBack

	txRollbacks.Inc()
	Logger.Debugf("Rolled back transaction with %d commands", t.numCommands)
	return nil
}

// Close releases the transaction. If it is still active (neither committed
// nor rolled back) it is rolled back. Close is idempotent.
func (t *Transaction) Close() error {
	if t.conn.Transaction() == t {
		if err := t.Rollback(); err != nil {
			return err
		}
	}
	t.ClosePipeline()
	t.state = TxClosed
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// queueExpectQueued is the hook called for every queued command. The ack
// operation is put at the head of the queue: acks arrive before the EXEC reply,
// so they are kept massed in front of the command reads.
func (t *Transaction) queueExpectQueued() {
	t.numCommands++
	t.queue.Insert(0, NewVoidOperation(t.conn.ExpectQueued, nil))
}

// readMultiDataResultCount reads the EXEC header and remembers if the server
// rejected the transaction
func (t *Transaction) readMultiDataResultCount() (int, error) {
	count, err := t.conn.ReadMultiDataResultCount()
	if resp.IsServerError(err) || (err == nil && count < 0) {
		t.execRejected = true
	}
	return count, err
}

// handleMultiDataResultCount checks the EXEC result count against the number of queued commands
func (t *Transaction) handleMultiDataResultCount(count int) error {
	if count < 0 {
		return ErrTransactionAborted
	}
	if count != t.numCommands {
		// the number of frames left on the wire is unknown
		err := &IntegrityError{Expected: t.numCommands, Received: count}
		t.conn.MarkBroken(err)
		return err
	}
	t.execAccepted = true
	return nil
}

// observeCommit updates the transaction metrics
func observeCommit(numCommands int, start time.Time, err error) {
	txCommandCount.Update(float64(numCommands))
	txCommitDuration.UpdateDuration(start)

	switch {
	case err == nil:
		txCommits.Inc()
	case errors.Is(err, ErrTransactionAborted):
		txAborts.Inc()
	case errors.Is(err, ErrProtocolIntegrity):
		txIntegrityErrors.Inc()
	default:
		txFailures.Inc()
	}
}
