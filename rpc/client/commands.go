package client

// --------------------------------------------------------------------------
// Queued Commands
// --------------------------------------------------------------------------
//
// The methods below are available on pipelines and transactions. They only
// write the command to the send buffer, the reply is decoded when the
// pipeline is flushed (or the transaction committed) and passed to the
// callback. All callbacks may be nil.

// Set queues SET key value
func (p *Pipeline) Set(key string, value []byte, onSuccess func()) error {
	return p.QueueCommand(NewVoidOperation(p.conn.ExpectOK, void(onSuccess)), buildArgs("SET", key, value)...)
}

// SetEx queues SET key value EX ttlSeconds
func (p *Pipeline) SetEx(key string, value []byte, ttlSeconds int64, onSuccess func()) error {
	return p.QueueCommand(NewVoidOperation(p.conn.ExpectOK, void(onSuccess)), buildArgs("SET", key, value, "EX", ttlSeconds)...)
}

// Get queues GET key. The callback receives nil if the key does not exist.
func (p *Pipeline) Get(key string, onSuccess func(value []byte)) error {
	return p.QueueCommand(NewValueOperation(p.conn.ReadBulk, typed(onSuccess)), buildArgs("GET", key)...)
}

// Del queues DEL key. The callback receives the number of removed keys.
func (p *Pipeline) Del(key string, onSuccess func(removed int64)) error {
	return p.QueueCommand(NewValueOperation(p.conn.ReadInt, typed(onSuccess)), buildArgs("DEL", key)...)
}

// Has queues EXISTS key
func (p *Pipeline) Has(key string, onSuccess func(exists bool)) error {
	return p.QueueCommand(NewValueOperation(p.readBool, typed(onSuccess)), buildArgs("EXISTS", key)...)
}

// Incr queues INCR key. The callback receives the new value.
func (p *Pipeline) Incr(key string, onSuccess func(n int64)) error {
	return p.QueueCommand(NewValueOperation(p.conn.ReadInt, typed(onSuccess)), buildArgs("INCR", key)...)
}

// IncrBy queues INCRBY key delta. The callback receives the new value.
func (p *Pipeline) IncrBy(key string, delta int64, onSuccess func(n int64)) error {
	return p.QueueCommand(NewValueOperation(p.conn.ReadInt, typed(onSuccess)), buildArgs("INCRBY", key, delta)...)
}

// Expire queues EXPIRE key seconds. The callback receives false if the key does not exist.
func (p *Pipeline) Expire(key string, seconds int64, onSuccess func(ok bool)) error {
	return p.QueueCommand(NewValueOperation(p.readBool, typed(onSuccess)), buildArgs("EXPIRE", key, seconds)...)
}

// TTL queues TTL key. The callback receives the remaining seconds,
// -1 for keys without expiry and -2 for missing keys.
func (p *Pipeline) TTL(key string, onSuccess func(seconds int64)) error {
	return p.QueueCommand(NewValueOperation(p.conn.ReadInt, typed(onSuccess)), buildArgs("TTL", key)...)
}

// SAdd queues SADD key members... The callback receives the number of added members.
func (p *Pipeline) SAdd(key string, members []string, onSuccess func(added int64)) error {
	args := append([]interface{}{key}, stringArgs(members)...)
	return p.QueueCommand(NewValueOperation(p.conn.ReadInt, typed(onSuccess)), buildArgs("SADD", args...)...)
}

// SRem queues SREM key members... The callback receives the number of removed members.
func (p *Pipeline) SRem(key string, members []string, onSuccess func(removed int64)) error {
	args := append([]interface{}{key}, stringArgs(members)...)
	return p.QueueCommand(NewValueOperation(p.conn.ReadInt, typed(onSuccess)), buildArgs("SREM", args...)...)
}

// SMembers queues SMEMBERS key
func (p *Pipeline) SMembers(key string, onSuccess func(members []string)) error {
	return p.QueueCommand(NewValueOperation(p.readStrings, typed(onSuccess)), buildArgs("SMEMBERS", key)...)
}

// FlushDB queues FLUSHDB
func (p *Pipeline) FlushDB(onSuccess func()) error {
	return p.QueueCommand(NewVoidOperation(p.conn.ExpectOK, void(onSuccess)), buildArgs("FLUSHDB")...)
}

// StoreObject queues SET urn:<type>:<id> value and registers the id for the
// type. The id is added to the type's id set only after a successful flush.
func (p *Pipeline) StoreObject(typeName, id string, value []byte, onSuccess func()) error {
	if err := p.QueueCommand(NewVoidOperation(p.conn.ExpectOK, void(onSuccess)), buildArgs("SET", ObjectKey(typeName, id), value)...); err != nil {
		return err
	}
	return p.conn.RegisterTypeID(typeName, id)
}

// QueueRaw queues an arbitrary command. The callback receives the decoded
// reply (see resp.Reader.ReadReply for the possible types).
func (p *Pipeline) QueueRaw(args []string, onSuccess func(reply interface{})) error {
	if len(args) == 0 {
		return newError(RetCInvalidOperation, "empty command")
	}
	return p.QueueCommand(NewValueOperation(p.conn.ReadReply, typed(onSuccess)), buildArgs(args[0], stringArgs(args[1:])...)...)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (p *Pipeline) readBool() (bool, error) {
	n, err := p.conn.ReadInt()
	return n == 1, err
}

func (p *Pipeline) readStrings() ([]string, error) {
	return readStrings(p.conn)
}

func readStrings(conn IConn) ([]string, error) {
	values, err := conn.ReadMultiBulk()
	if err != nil {
		return nil, err
	}
	res := make([]string, 0, len(values))
	for _, v := range values {
		res = append(res, string(v))
	}
	return res, nil
}

// void adapts a user callback without a value
func void(fn func()) func() error {
	if fn == nil {
		return nil
	}
	return func() error {
		fn()
		return nil
	}
}

// typed adapts a user callback with a value
func typed[T any](fn func(T)) func(T) error {
	if fn == nil {
		return nil
	}
	return func(v T) error {
		fn(v)
		return nil
	}
}
