// Package server implements a single node RESP server for development and tests.
//
// The server keeps all data in a keyspace.Keyspace and speaks enough of the
// RESP protocol to exercise the client package, including MULTI/EXEC
// transactions and optimistic locking with WATCH.
//
// Supported commands:
//
//	PING [message]
//	SET key value [EX seconds]
//	GET key
//	DEL key [key ...]
//	EXISTS key [key ...]
//	INCR key
//	INCRBY key delta
//	EXPIRE key seconds
//	TTL key
//	SADD key member [member ...]
//	SREM key member [member ...]
//	SMEMBERS key
//	DBSIZE
//	FLUSHDB
//	MULTI / EXEC / DISCARD
//	WATCH key [key ...] / UNWATCH
//
// Transactions:
//
// After MULTI every command is checked (existence and number of arguments) and
// answered with +QUEUED. A command that fails this check is answered with an
// error and marks the transaction, EXEC then replies -EXECABORT and executes
// nothing. Otherwise EXEC runs all queued commands while holding the keyspace
// lock, no other client sees an intermediate state. Errors of single commands
// at execution time (e.g. INCR on a non-integer) are returned inside the EXEC
// reply array and do not stop the other commands.
//
// If a key passed to WATCH was modified (by any client, or by expiry) before
// EXEC, the reply is a null array and nothing is executed. EXEC and DISCARD
// always forget the watched keys.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Transport: common.ServerTransportConfig{Endpoint: "127.0.0.1:6380"},
//	  LogLevel:  "info",
//	}
//
//	s := server.NewServer(config, tcp.NewTCPServerConnector())
//	defer s.Close()
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
package server
