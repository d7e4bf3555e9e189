package client

import (
	"github.com/ValentinKolb/respkv/rpc/common"
	"github.com/ValentinKolb/respkv/rpc/transport"
	"sort"
)

// NewClient connects to the endpoint of the config using the given connector
// and returns a new Client
func NewClient(config common.ClientConfig, connector transport.IClientConnector) (*Client, error) {
	conn, err := Dial(config, connector)
	if err != nil {
		return nil, err
	}
	return NewClientFromConn(conn), nil
}

// NewClientFromConn creates a client on top of an existing connection
func NewClientFromConn(conn *Conn) *Client {
	return &Client{conn: conn}
}

// Client sends request/response commands over a single connection and creates
// pipelines and transactions on it.
//
// A Client is not safe for concurrent use, see Conn.
type Client struct {
	conn *Conn
}

// Conn returns the underlying connection
func (c *Client) Conn() *Conn {
	return c.conn
}

// Close closes the connection. An open pipeline or transaction is discarded.
func (c *Client) Close() error {
	if t := c.conn.Transaction(); t != nil {
		_ = t.Close()
	}
	if p := c.conn.Pipeline(); p != nil {
		_ = p.Close()
	}
	return c.conn.Close()
}

// CreatePipeline starts a new pipeline on the connection
func (c *Client) CreatePipeline() (*Pipeline, error) {
	return NewPipeline(c.conn)
}

// CreateTransaction starts a new transaction (MULTI) on the connection
func (c *Client) CreateTransaction() (*Transaction, error) {
	return NewTransaction(c.conn)
}

// --------------------------------------------------------------------------
// Commands
// --------------------------------------------------------------------------

// Ping checks that the server responds
func (c *Client) Ping() error {
	reply, err := invoke(c, c.conn.ReadStatus, buildArgs("PING"))
	if err != nil {
		return err
	}
	if reply != "PONG" {
		return newError(RetCUnexpectedReply, "expected PONG, got %q", reply)
	}
	return nil
}

// Set stores value under key
func (c *Client) Set(key string, value []byte) error {
	return invokeVoid(c, c.conn.ExpectOK, buildArgs("SET", key, value))
}

// SetEx stores value under key, the key is removed after ttlSeconds
func (c *Client) SetEx(key string, value []byte, ttlSeconds int64) error {
	return invokeVoid(c, c.conn.ExpectOK, buildArgs("SET", key, value, "EX", ttlSeconds))
}

// Get returns the value of key. loaded is false if the key does not exist.
func (c *Client) Get(key string) (value []byte, loaded bool, err error) {
	value, err = invoke(c, c.conn.ReadBulk, buildArgs("GET", key))
	return value, value != nil, err
}

// Del removes key and reports if it existed
func (c *Client) Del(key string) (bool, error) {
	n, err := invoke(c, c.conn.ReadInt, buildArgs("DEL", key))
	return n == 1, err
}

// Has reports if key exists
func (c *Client) Has(key string) (bool, error) {
	n, err := invoke(c, c.conn.ReadInt, buildArgs("EXISTS", key))
	return n == 1, err
}

// Incr increments the integer stored at key and returns the new value
func (c *Client) Incr(key string) (int64, error) {
	return invoke(c, c.conn.ReadInt, buildArgs("INCR", key))
}

// IncrBy adds delta to the integer stored at key and returns the new value
func (c *Client) IncrBy(key string, delta int64) (int64, error) {
	return invoke(c, c.conn.ReadInt, buildArgs("INCRBY", key, delta))
}

// Expire sets a timeout on key. It returns false if the key does not exist.
func (c *Client) Expire(key string, seconds int64) (bool, error) {
	n, err := invoke(c, c.conn.ReadInt, buildArgs("EXPIRE", key, seconds))
	return n == 1, err
}

// TTL returns the remaining seconds of key,
// -1 if it has no timeout and -2 if it does not exist
func (c *Client) TTL(key string) (int64, error) {
	return invoke(c, c.conn.ReadInt, buildArgs("TTL", key))
}

// SAdd adds members to the set at key and returns the number of new members
func (c *Client) SAdd(key string, members ...string) (int64, error) {
	return invoke(c, c.conn.ReadInt, buildArgs("SADD", append([]interface{}{key}, stringArgs(members)...)...))
}

// SRem removes members from the set at key and returns the number of removed members
func (c *Client) SRem(key string, members ...string) (int64, error) {
	return invoke(c, c.conn.ReadInt, buildArgs("SREM", append([]interface{}{key}, stringArgs(members)...)...))
}

// SMembers returns the members of the set at key in sorted order
func (c *Client) SMembers(key string) ([]string, error) {
	members, err := invoke(c, func() ([]string, error) { return readStrings(c.conn) }, buildArgs("SMEMBERS", key))
	if err != nil {
		return nil, err
	}
	sort.Strings(members)
	return members, nil
}

// DBSize returns the number of keys
func (c *Client) DBSize() (int64, error) {
	return invoke(c, c.conn.ReadInt, buildArgs("DBSIZE"))
}

// FlushDB removes all keys
func (c *Client) FlushDB() error {
	return invokeVoid(c, c.conn.ExpectOK, buildArgs("FLUSHDB"))
}

// Watch marks keys for the next transaction. If one of them is modified
// before EXEC, the transaction is aborted (see ErrTransactionAborted).
func (c *Client) Watch(keys ...string) error {
	if len(keys) == 0 {
		return newError(RetCInvalidOperation, "WATCH needs at least one key")
	}
	return invokeVoid(c, c.conn.ExpectOK, buildArgs("WATCH", stringArgs(keys)...))
}

// Unwatch forgets all watched keys
func (c *Client) Unwatch() error {
	return invokeVoid(c, c.conn.ExpectOK, buildArgs("UNWATCH"))
}

// StoreObject stores value as object of the given type and registers the id
func (c *Client) StoreObject(typeName, id string, value []byte) error {
	if err := c.Set(ObjectKey(typeName, id), value); err != nil {
		return err
	}
	return c.conn.RegisterTypeID(typeName, id)
}

// GetObject returns the object of the given type and id
func (c *Client) GetObject(typeName, id string) (value []byte, loaded bool, err error) {
	return c.Get(ObjectKey(typeName, id))
}

// GetAllIDs returns all ids registered for the type in sorted order
func (c *Client) GetAllIDs(typeName string) ([]string, error) {
	return c.SMembers(TypeIDsKey(typeName))
}

// Do sends an arbitrary command and returns the decoded reply
// (see resp.Reader.ReadReply for the possible types)
func (c *Client) Do(args ...string) (interface{}, error) {
	if len(args) == 0 {
		return nil, newError(RetCInvalidOperation, "empty command")
	}
	return invoke(c, c.conn.ReadReply, buildArgs(args[0], stringArgs(args[1:])...))
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// invoke sends a single command and reads its reply
func invoke[T any](c *Client, read func() (T, error), args [][]byte) (T, error) {
	if err := c.conn.sendNow(args...); err != nil {
		var zero T
		return zero, err
	}
	return read()
}

// invokeVoid sends a single command and reads a reply without a value
func invokeVoid(c *Client, read func() error, args [][]byte) error {
	if err := c.conn.sendNow(args...); err != nil {
		return err
	}
	return read()
}
