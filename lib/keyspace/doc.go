// Package keyspace provides the in-memory database behind the development server.
//
// Values are either strings or sets of strings. Every key can carry a deadline
// after which it is removed, expired keys are dropped lazily on access and by a
// background collector (see Options.GCInterval).
//
// Every modification is stamped with a write index taken from a single counter.
// Version(key) returns the write index of the last modification of a key,
// including deletion, expiry and FLUSHDB. Comparing two versions of a key tells
// if it was modified in between, which is what the server uses for WATCH.
//
// The keyspace is not locked per operation. Callers group operations with
// Atomically:
//
//	ks := keyspace.New(nil)
//	defer ks.Close()
//
//	ks.Atomically(func() {
//	  ks.Set("a", []byte("1"), 0)
//	  n, _ := ks.IncrBy("a", 1)
//	  fmt.Println(n) // 2
//	})
package keyspace
