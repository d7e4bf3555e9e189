package lockmgr

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/ValentinKolb/respkv/rpc/client"
	"sync"
)

type lockMgrImpl struct {
	// the client owns a single connection, calls are serialized
	mu     sync.Mutex
	client *client.Client
}

// NewLockManager creates a lock manager that stores its locks through c.
func NewLockManager(c *client.Client) ILockManager {
	return &lockMgrImpl{
		client: c,
	}
}

func (lm *lockMgrImpl) AcquireLock(key string, timeout uint64) (bool, []byte, error) {
	// Generate the lock value (256 bit random value)
	ownerID, err := generateOwnerID()
	if err != nil {
		return false, nil, err
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	if err := lm.client.Watch(key); err != nil {
		return false, nil, err
	}

	exists, err := lm.client.Has(key)
	if err != nil {
		lm.unwatch()
		return false, nil, err
	}
	// Return false if the lock is held BY SOMEONE ELSE
	if exists {
		lm.unwatch()
		return false, nil, nil
	}

	ok, err := lm.commit(func(tx *client.Transaction) error {
		if err := tx.Set(key, ownerID, nil); err != nil {
			return err
		}
		if timeout == 0 {
			return nil
		}
		return tx.Expire(key, int64(timeout), nil)
	})
	if !ok || err != nil {
		return false, nil, err
	}

	Logger.Debugf("acquired lock %q", key)
	return true, ownerID, nil
}

func (lm *lockMgrImpl) ReleaseLock(key string, ownerID []byte) (bool, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if err := lm.client.Watch(key); err != nil {
		return false, err
	}

	// Check if the lock exists
	value, loaded, err := lm.client.Get(key)
	if err != nil || !loaded {
		lm.unwatch()
		return err == nil, err
	}

	// Check if the lock is owned by us
	if !bytes.Equal(ownerID, value) {
		lm.unwatch()
		return false, nil
	}

	// Release the lock, unless it changed since GET
	ok, err := lm.commit(func(tx *client.Transaction) error {
		return tx.Del(key, nil)
	})
	if ok && err == nil {
		Logger.Debugf("released lock %q", key)
	}
	return ok, err
}

// commit runs the commands queued by queue in one transaction. It returns false
// without an error if the server aborted the transaction because a watched
// key was modified.
func (lm *lockMgrImpl) commit(queue func(tx *client.Transaction) error) (bool, error) {
	tx, err := lm.client.CreateTransaction()
	if err != nil {
		lm.unwatch()
		return false, err
	}
	defer tx.Close()

	if err := queue(tx); err != nil {
		_ = tx.Rollback()
		lm.unwatch()
		return false, fmt.Errorf("failed to queue lock command: %w", err)
	}

	err = tx.Commit()
	switch {
	case errors.Is(err, client.ErrTransactionAborted):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// unwatch forgets the watched keys, the connection might already be broken
func (lm *lockMgrImpl) unwatch() {
	if err := lm.client.Unwatch(); err != nil {
		Logger.Warningf("failed to unwatch: %v", err)
	}
}
