package client

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/respkv/rpc/common"
	"github.com/ValentinKolb/respkv/rpc/resp"
	"github.com/ValentinKolb/respkv/rpc/transport"
	"net"
	"sort"
	"time"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IConn is the connection as seen by pipelines and transactions.
// Commands are written to a client side send buffer, nothing reaches the
// server before FlushSendBuffer. Every read method blocks until exactly one
// reply frame was consumed.
type IConn interface {
	// SendCommand appends a command to the send buffer
	SendCommand(args ...[]byte) error
	// FlushSendBuffer writes the send buffer to the socket
	FlushSendBuffer() error
	// ResetSendBuffer drops all commands that were not flushed yet
	ResetSendBuffer()

	// ExpectOK reads a status reply and checks that it is OK
	ExpectOK() error
	// ExpectQueued reads the acknowledgement of a command queued inside MULTI
	ExpectQueued() error
	ReadInt() (int64, error)
	ReadBulk() ([]byte, error)
	ReadMultiBulk() ([][]byte, error)
	ReadReply() (interface{}, error)
	// ReadMultiDataResultCount reads the header of the EXEC reply.
	// A null array (transaction aborted by the server) is returned as -1.
	ReadMultiDataResultCount() (int, error)

	// Multi sends the transaction-begin command (buffered)
	Multi() error
	// Exec sends the transaction-execute command (buffered)
	Exec() error

	// Pipeline returns the active pipeline of the connection (or nil)
	Pipeline() *Pipeline
	SetPipeline(p *Pipeline)
	// Transaction returns the active transaction of the connection (or nil)
	Transaction() *Transaction
	SetTransaction(t *Transaction)

	// RegisterTypeID records that an object with the id was stored for the type.
	// While a pipeline is active the registration is kept pending.
	RegisterTypeID(typeName, id string) error
	// AddTypeIDsRegisteredDuringPipeline persists the pending registrations
	AddTypeIDsRegisteredDuringPipeline() error
	// ClearTypeIDsRegisteredDuringPipeline discards the pending registrations
	ClearTypeIDsRegisteredDuringPipeline()

	// MarkBroken marks the reply stream as out of sync and closes the socket
	MarkBroken(cause error)
}

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

// Conn is a single RESP connection.
//
// Thread Safety:
//
//	A Conn (and every pipeline or transaction created on it) must only be used
//	by one goroutine at a time. The active pipeline and transaction slots are
//	plain fields without locking. Use one connection per goroutine or guard
//	the connection with an external mutex.
type Conn struct {
	netConn net.Conn
	config  common.ClientConfig
	reader  *resp.Reader
	sendBuf []byte

	pipeline    *Pipeline
	transaction *Transaction

	// type name -> ids registered while a pipeline was active
	pendingTypeIDs map[string][]string

	broken error
}

// Dial connects to the configured endpoint using the given connector
func Dial(config common.ClientConfig, connector transport.IClientConnector) (*Conn, error) {
	endpoint := config.Transport.Endpoint
	if endpoint == "" {
		return nil, fmt.Errorf("no endpoint provided")
	}

	netConn, err := connector.Connect(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}

	// Apply protocol-specific settings
	if err := connector.UpgradeConnection(netConn, config); err != nil {
		netConn.Close()
		return nil, fmt.Errorf("failed to upgrade connection to %s: %w", endpoint, err)
	}

	Logger.Debugf("Connected to %s using %s transport", endpoint, connector.GetName())

	return NewConn(netConn, config), nil
}

// NewConn wraps an established connection
func NewConn(netConn net.Conn, config common.ClientConfig) *Conn {
	return &Conn{
		netConn: netConn,
		config:  config,
		reader:  resp.NewReader(netConn, 0),
	}
}

// Close closes the underlying connection
func (c *Conn) Close() error {
	return c.netConn.Close()
}

// Broken returns the cause if the connection was marked broken, else nil
func (c *Conn) Broken() error {
	return c.broken
}

// --------------------------------------------------------------------------
// Interface Methods (docu see IConn)
// --------------------------------------------------------------------------

func (c *Conn) SendCommand(args ...[]byte) error {
	if c.broken != nil {
		return c.brokenError()
	}
	c.sendBuf = resp.AppendCommand(c.sendBuf, args...)
	return nil
}

func (c *Conn) FlushSendBuffer() error {
	if c.broken != nil {
		return c.brokenError()
	}
	if len(c.sendBuf) == 0 {
		return nil
	}

	if c.config.TimeoutSecond > 0 {
		timeout := time.Duration(c.config.TimeoutSecond) * time.Second
		if err := c.netConn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}

	_, err := c.netConn.Write(c.sendBuf)
	c.sendBuf = c.sendBuf[:0]
	if err != nil {
		// a partial write leaves the server with a truncated command
		c.MarkBroken(err)
		return fmt.Errorf("failed to flush send buffer: %w", err)
	}
	return nil
}

func (c *Conn) ResetSendBuffer() {
	c.sendBuf = c.sendBuf[:0]
}

func (c *Conn) ReadStatus() (string, error) {
	if err := c.beforeRead(); err != nil {
		return "", err
	}
	status, err := c.reader.ReadStatus()
	return status, c.afterRead(err)
}

func (c *Conn) ExpectOK() error {
	return c.expectStatus("OK")
}

func (c *Conn) ExpectQueued() error {
	return c.expectStatus("QUEUED")
}

func (c *Conn) ReadInt() (int64, error) {
	if err := c.beforeRead(); err != nil {
		return 0, err
	}
	n, err := c.reader.ReadInt()
	return n, c.afterRead(err)
}

func (c *Conn) ReadBulk() ([]byte, error) {
	if err := c.beforeRead(); err != nil {
		return nil, err
	}
	b, err := c.reader.ReadBulk()
	return b, c.afterRead(err)
}

func (c *Conn) ReadMultiBulk() ([][]byte, error) {
	if err := c.beforeRead(); err != nil {
		return nil, err
	}
	values, err := c.reader.ReadMultiBulk()
	return values, c.afterRead(err)
}

func (c *Conn) ReadReply() (interface{}, error) {
	if err := c.beforeRead(); err != nil {
		return nil, err
	}
	reply, err := c.reader.ReadReply()
	return reply, c.afterRead(err)
}

func (c *Conn) ReadMultiDataResultCount() (int, error) {
	if err := c.beforeRead(); err != nil {
		return 0, err
	}
	n, err := c.reader.ReadArrayLen()
	return n, c.afterRead(err)
}

func (c *Conn) Multi() error {
	return c.SendCommand([]byte("MULTI"))
}

func (c *Conn) Exec() error {
	return c.SendCommand([]byte("EXEC"))
}

func (c *Conn) Pipeline() *Pipeline {
	return c.pipeline
}

func (c *Conn) SetPipeline(p *Pipeline) {
	c.pipeline = p
}

func (c *Conn) Transaction() *Transaction {
	return c.transaction
}

func (c *Conn) SetTransaction(t *Transaction) {
	c.transaction = t
}

func (c *Conn) RegisterTypeID(typeName, id string) error {
	if c.pipeline != nil {
		if c.pendingTypeIDs == nil {
			c.pendingTypeIDs = make(map[string][]string)
		}
		c.pendingTypeIDs[typeName] = append(c.pendingTypeIDs[typeName], id)
		return nil
	}

	if err := c.sendNow(buildArgs("SADD", TypeIDsKey(typeName), id)...); err != nil {
		return err
	}
	_, err := c.ReadInt()
	return err
}

func (c *Conn) AddTypeIDsRegisteredDuringPipeline() error {
	pending := c.pendingTypeIDs
	c.pendingTypeIDs = nil
	if len(pending) == 0 {
		return nil
	}

	// Sort type names for a deterministic command order
	typeNames := make([]string, 0, len(pending))
	for typeName := range pending {
		typeNames = append(typeNames, typeName)
	}
	sort.Strings(typeNames)

	// Send all SADD commands in one flush, then read the replies in order
	for _, typeName := range typeNames {
		values := make([]interface{}, 0, len(pending[typeName])+1)
		values = append(values, TypeIDsKey(typeName))
		for _, id := range pending[typeName] {
			values = append(values, id)
		}
		if err := c.SendCommand(buildArgs("SADD", values...)...); err != nil {
			return err
		}
	}
	if err := c.FlushSendBuffer(); err != nil {
		return err
	}

	var errs []error
	for range typeNames {
		if _, err := c.ReadInt(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Conn) ClearTypeIDsRegisteredDuringPipeline() {
	c.pendingTypeIDs = nil
}

func (c *Conn) MarkBroken(cause error) {
	if c.broken != nil {
		return
	}
	c.broken = cause
	c.ResetSendBuffer()
	Logger.Warningf("Connection to %s is out of sync and will be closed: %v", c.netConn.RemoteAddr(), cause)
	_ = c.netConn.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sendNow sends a single command outside of a pipeline
func (c *Conn) sendNow(args ...[]byte) error {
	if c.pipeline != nil {
		return newError(RetCInvalidOperation, "cannot send %s directly while a pipeline is active, queue it instead", args[0])
	}
	if err := c.SendCommand(args...); err != nil {
		return err
	}
	return c.FlushSendBuffer()
}

// expectStatus reads a status reply and compares it with the expected value
func (c *Conn) expectStatus(expected string) error {
	status, err := c.ReadStatus()
	if err != nil {
		return err
	}
	if status != expected {
		return newError(RetCUnexpectedReply, "expected status %q, got %q", expected, status)
	}
	return nil
}

// beforeRead fails fast on a broken connection and sets the read deadline
func (c *Conn) beforeRead() error {
	if c.broken != nil {
		return c.brokenError()
	}
	if c.config.TimeoutSecond > 0 {
		timeout := time.Duration(c.config.TimeoutSecond) * time.Second
		return c.netConn.SetReadDeadline(time.Now().Add(timeout))
	}
	return nil
}

// afterRead marks the connection broken if a read failed below the reply level.
// Server error replies consume one frame and keep the stream in sync.
func (c *Conn) afterRead(err error) error {
	if err != nil && !resp.IsServerError(err) {
		c.MarkBroken(err)
	}
	return err
}

func (c *Conn) brokenError() error {
	return fmt.Errorf("%w: %v", ErrConnectionBroken, c.broken)
}
