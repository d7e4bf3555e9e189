package client

// Pipeline batches commands on a connection. Queued commands are written to
// the send buffer of the connection and their replies are read in one go when
// the pipeline is flushed.
//
// Usage:
//
//	p, _ := c.CreatePipeline()
//	defer p.Close()
//	_ = p.Incr("visits", func(n int64) { fmt.Println(n) })
//	_ = p.Get("name", func(v []byte) { fmt.Println(string(v)) })
//	err := p.Flush()
type Pipeline struct {
	conn        IConn
	queue       CommandQueue
	numCommands int
	closed      bool

	// onCommandQueued is called once for every command after its read
	// operation was added to the queue
	onCommandQueued func()
}

// NewPipeline creates a new pipeline on the connection.
// Only one pipeline (or transaction) can be active per connection.
func NewPipeline(conn IConn) (*Pipeline, error) {
	return newPipeline(conn, nil)
}

func newPipeline(conn IConn, onCommandQueued func()) (*Pipeline, error) {
	if conn.Pipeline() != nil {
		return nil, newError(RetCInvalidOperation, "a pipeline is already active on this connection")
	}
	p := &Pipeline{
		conn:            conn,
		onCommandQueued: onCommandQueued,
	}
	conn.SetPipeline(p)
	return p, nil
}

// QueueCommand writes the command to the send buffer and registers op as the
// reader of its reply. This is the extension point for commands without a
// typed helper:
//
//	p.QueueCommand(NewValueOperation(conn.ReadInt, nil), []byte("HLEN"), []byte("h"))
func (p *Pipeline) QueueCommand(op QueuedOperation, args ...[]byte) error {
	if p.closed {
		return newError(RetCInvalidOperation, "pipeline is closed")
	}
	if len(args) == 0 {
		return newError(RetCInvalidOperation, "empty command")
	}
	if err := p.conn.SendCommand(args...); err != nil {
		return err
	}
	p.addCurrentQueuedOperation(op)
	return nil
}

// NumCommands returns the number of commands queued so far
func (p *Pipeline) NumCommands() int {
	return p.numCommands
}

// Flush sends all queued commands and processes their replies in order.
// The pipeline is closed afterwards, no matter if it succeeded.
func (p *Pipeline) Flush() (err error) {
	if p.closed {
		return newError(RetCInvalidOperation, "pipeline is closed")
	}

	defer func() {
		p.ClosePipeline()
		if err == nil {
			err = p.conn.AddTypeIDsRegisteredDuringPipeline()
		} else {
			p.conn.ClearTypeIDsRegisteredDuringPipeline()
		}
	}()

	pipelineFlushes.Inc()
	if err := p.conn.FlushSendBuffer(); err != nil {
		return err
	}
	return p.processQueue(nil, nil)
}

// ClosePipeline clears the queue and releases the connection.
// It is idempotent and does not touch the send buffer.
func (p *Pipeline) ClosePipeline() {
	if p.closed {
		return
	}
	p.closed = true
	p.queue.Clear()
	if p.conn.Pipeline() == p {
		p.conn.SetPipeline(nil)
	}
}

// Close discards a pipeline that was not flushed. None of its commands reach
// the server. Calling Close after Flush is a no-op.
func (p *Pipeline) Close() error {
	if p.closed {
		return nil
	}
	p.conn.ResetSendBuffer()
	p.conn.ClearTypeIDsRegisteredDuringPipeline()
	p.ClosePipeline()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// addCurrentQueuedOperation appends the read operation of a real command and
// notifies the hook
func (p *Pipeline) addCurrentQueuedOperation(op QueuedOperation) {
	p.queue.Append(op)
	p.numCommands++
	if p.onCommandQueued != nil {
		p.onCommandQueued()
	}
}

// processQueue walks the queue. If the walk stops before the last operation,
// the replies of the remaining operations are still on the wire and the
// connection is marked broken, unless inSync reports otherwise. Errors for
// which skip returns true do not stop the walk (see ProcessAllSkipping).
func (p *Pipeline) processQueue(inSync, skip func(err error) bool) error {
	processed, err := p.queue.ProcessAllSkipping(skip)
	if err == nil {
		return nil
	}
	if processed+1 < p.queue.Len() && (inSync == nil || !inSync(err)) {
		p.conn.MarkBroken(err)
	}
	return err
}
