// Package lockmgr implements a locking mechanism on top of a RESP key-value
// server using client.Client. It provides a simple way to coordinate access
// to shared resources across multiple processes.
//
// The lockmgr only ever stores in the server and has no other internal state
// than the client it uses. Therefore it is safe to be created multiple times,
// even for every acquire and or release operation. As long as the clients
// connect to the same server, all locks will work as expected.
//
// Core Functionality:
//   - Lock acquisition with ownership verification
//   - Automatic lock expiration through configurable timeouts
//   - Safe release operations that verify ownership
//
// Implementation Approach:
//
//	Locks are implemented with optimistic transactions (WATCH + MULTI/EXEC):
//
//	- Lock Acquisition: The key is watched and checked with EXISTS. If it
//	  does not exist, a transaction sets the key to a randomly generated
//	  owner ID (and sets the timeout with EXPIRE). If another client created
//	  the key in the meantime, the server aborts the transaction and the
//	  lock was not acquired.
//
//	- Timeouts: Locks can be configured with an optional timeout in seconds
//	  that automatically releases the lock after the specified period,
//	  preventing deadlocks if a client crashes.
//
//	- Safe Release: The key is watched and read with GET. Only if the
//	  stored value matches the owner ID, a transaction deletes it. If the lock
//	  was changed in the meantime (e.g. it expired and was acquired by
//	  someone else) the transaction is aborted and the lock is not released.
//
// Thread Safety:
//
//	A client owns a single connection, the lock manager serializes its
//	operations on it. Use one client per lock manager for parallel lock
//	operations.
//
// Usage Example:
//
//	// Create a lock manager with a client
//	lockProvider := lockmgr.NewLockManager(c)
//
//	// Acquire a lock with a timeout
//	acquired, ownerID, err := lockProvider.AcquireLock("resource:123", 30)
//	if err != nil {
//	    // Handle error
//	}
//
//	if acquired {
//	    // Use the resource safely
//	    // ...
//
//	    // Release the lock when done
//	    released, err := lockProvider.ReleaseLock("resource:123", ownerID)
//	    if err != nil {
//	        // Handle error
//	    }
//	}
//
// Security Considerations:
//
//	The lock mechanism uses randomly generated owner IDs, which provides
//	reasonable protection against accidental lock stealing. However, it is
//	not designed to resist malicious attacks, as an attacker with access to
//	the server could manipulate lock data directly.
//
// Performance Impact:
//
//	Lock operations need three round trips each:
//	- AcquireLock: WATCH, EXISTS and the transaction
//	- ReleaseLock: WATCH, GET and the transaction
package lockmgr
