package client

import (
	"github.com/ValentinKolb/respkv/rpc/resp"
	"slices"
)

// --------------------------------------------------------------------------
// Queued Operations
// --------------------------------------------------------------------------

// QueuedOperation describes one reply that is expected on the wire: how it is
// read and what happens with the decoded value. Every operation is created
// when its command (or protocol frame) is queued and processed exactly once.
type QueuedOperation interface {
	// ProcessResult reads the reply from the connection and hands the decoded
	// value to the success callback (if any). Errors of the read or the
	// callback are returned.
	ProcessResult() error
}

// voidOperation reads a reply without a value (e.g. +OK or +QUEUED)
type voidOperation struct {
	read      func() error
	onSuccess func() error
}

func (o *voidOperation) ProcessResult() error {
	if err := o.read(); err != nil {
		return err
	}
	if o.onSuccess != nil {
		return o.onSuccess()
	}
	return nil
}

// valueOperation reads a reply and decodes it into a T
type valueOperation[T any] struct {
	read      func() (T, error)
	onSuccess func(T) error
}

func (o *valueOperation[T]) ProcessResult() error {
	v, err := o.read()
	if err != nil {
		return err
	}
	if o.onSuccess != nil {
		return o.onSuccess(v)
	}
	return nil
}

// NewVoidOperation creates an operation that reads a reply without a value.
// onSuccess may be nil.
func NewVoidOperation(read func() error, onSuccess func() error) QueuedOperation {
	return &voidOperation{read: read, onSuccess: onSuccess}
}

// NewValueOperation creates an operation that reads a value (count, bulk, ...).
// onSuccess may be nil, an error returned by it aborts the processing of the queue.
func NewValueOperation[T any](read func() (T, error), onSuccess func(T) error) QueuedOperation {
	return &valueOperation[T]{read: read, onSuccess: onSuccess}
}

// errorHandlingOperation hands server error replies to a callback instead of returning them
type errorHandlingOperation struct {
	QueuedOperation
	onError func(err error)
}

func (o *errorHandlingOperation) ProcessResult() error {
	err := o.QueuedOperation.ProcessResult()
	if err != nil && resp.IsServerError(err) {
		o.onError(err)
		return nil
	}
	return err
}

// WithErrorHandler wraps op so that an error reply from the server (-ERR ...)
// is passed to onError and the remaining queue is still processed.
// Transport and protocol errors are never handled, they always abort.
func WithErrorHandler(op QueuedOperation, onError func(err error)) QueuedOperation {
	if onError == nil {
		return op
	}
	return &errorHandlingOperation{QueuedOperation: op, onError: onError}
}

// --------------------------------------------------------------------------
// Command Queue
// --------------------------------------------------------------------------

// CommandQueue is the ordered list of operations of one pipeline. The order
// must be exactly the order in which the server produces the replies.
//
// A CommandQueue is not safe for concurrent use.
type CommandQueue struct {
	ops []QueuedOperation
}

// Append adds op to the tail of the queue
func (q *CommandQueue) Append(op QueuedOperation) {
	q.ops = append(q.ops, op)
}

// Insert inserts op at index, shifting all following operations.
// It panics if index is out of range [0, Len()].
func (q *CommandQueue) Insert(index int, op QueuedOperation) {
	q.ops = slices.Insert(q.ops, index, op)
}

// Len returns the number of queued operations
func (q *CommandQueue) Len() int {
	return len(q.ops)
}

// Clear removes all operations
func (q *CommandQueue) Clear() {
	clear(q.ops)
	q.ops = q.ops[:0]
}

// ProcessAll walks the queue from head to tail and processes every operation.
// The walk stops at the first error, processed is the number of operations
// that completed before it.
func (q *CommandQueue) ProcessAll() (processed int, err error) {
	return q.ProcessAllSkipping(nil)
}

// ProcessAllSkipping works like ProcessAll, but an error for which skip
// returns true does not stop the walk. The first skipped error is returned
// once every operation was processed.
func (q *CommandQueue) ProcessAllSkipping(skip func(err error) bool) (processed int, err error) {
	var skipped error
	for i, op := range q.ops {
		if err := op.ProcessResult(); err != nil {
			if skip != nil && skip(err) {
				if skipped == nil {
					skipped = err
				}
				continue
			}
			Logger.Debugf("queued operation %d/%d failed: %v", i+1, len(q.ops), err)
			return i, err
		}
	}
	return len(q.ops), skipped
}
