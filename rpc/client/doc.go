// Package client implements a RESP client with support for pipelines and
// MULTI/EXEC transactions.
//
// The package focuses on:
//   - Request/response commands on a single connection (Client)
//   - Batching of commands with deferred reply decoding (Pipeline)
//   - Atomic execution of batches on the server (Transaction)
//
// Key Components:
//
//   - Conn: A single connection with a client side send buffer. Commands are
//     appended to the buffer and only reach the server on FlushSendBuffer.
//     Pipelines and transactions talk to the connection through the IConn
//     interface.
//
//   - CommandQueue / QueuedOperation: The ordered list of expected replies of a
//     pipeline. Every entry knows how to read exactly one reply frame and what
//     to do with the decoded value. The order of the queue is the order of the
//     frames on the wire.
//
//   - Pipeline: Writes every queued command to the send buffer and appends a
//     read operation for its reply. Flush sends the buffer and walks the queue.
//
//   - Transaction: A pipeline wrapped in MULTI/EXEC. The server acknowledges
//     every queued command with +QUEUED and returns the results as one array
//     after EXEC. The transaction registers a hook on its pipeline that adds
//     one ack operation per command at the head of the queue. Commit inserts
//     the reader of the EXEC header behind the acks and the reader of the
//     MULTI status in front of everything, then flushes and walks the queue.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  TimeoutSecond: 5,
//	  Transport: common.ClientTransportConfig{Endpoint: "localhost:6380"},
//	}
//
//	c, _ := client.NewClient(config, tcp.NewTCPClientConnector())
//	defer c.Close()
//
//	tx, _ := c.CreateTransaction()
//	defer tx.Close()
//
//	_ = tx.Set("greeting", []byte("hello"), nil)
//	_ = tx.Incr("counter", func(n int64) { fmt.Println("counter is now", n) })
//
//	if err := tx.Commit(); err != nil {
//	  var ie *client.IntegrityError
//	  if errors.As(err, &ie) {
//	    // the transaction was executed, but the reply did not match
//	  }
//	}
//
// Optimistic Locking:
//
// Keys passed to Client.Watch are monitored by the server. If one of them is
// modified before EXEC, the server executes nothing and Commit returns
// ErrTransactionAborted. The connection stays usable.
//
// Broken Connections:
//
// If decoding stops before all replies of a flush were read (transport error,
// malformed frame, error reply without a handler, result count mismatch), the
// remaining replies are still on the wire. The connection is marked broken and
// closed, every following call fails with ErrConnectionBroken. Error replies
// handled by WithErrorHandler do not stop the walk.
//
// Thread Safety:
//
// A connection and everything created on it must be used by one goroutine at
// a time. There is no locking, use one connection per goroutine.
package client
