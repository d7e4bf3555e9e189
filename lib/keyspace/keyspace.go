package keyspace

import (
	"errors"
	"github.com/lni/dragonboat/v4/logger"
	"math"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("keyspace")

// --------------------------------------------------------------------------
// Constants and Errors
// --------------------------------------------------------------------------

const defaultGCInterval = 100 * time.Millisecond // Default interval between GC runs

// The messages are sent to clients as they are
var (
	ErrWrongType  = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")
	ErrNotInteger = errors.New("ERR value is not an integer or out of range")
	ErrOverflow   = errors.New("ERR increment or decrement would overflow")
)

// Kind is the type of the value stored under a key
type Kind int

const (
	KindNone Kind = iota
	KindString
	KindSet
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindSet:
		return "set"
	default:
		return "none"
	}
}

// entry is one key of the keyspace
type entry struct {
	kind  Kind
	str   []byte
	set   map[string]struct{}
	index uint64 // write index of the last modification
}

// Options configures the keyspace
type Options struct {
	GCInterval time.Duration    // Time between GC runs (0 = default, <0 = no background GC)
	Now        func() time.Time // Clock (nil = time.Now)
}

// --------------------------------------------------------------------------
// Keyspace
// --------------------------------------------------------------------------

// Keyspace is an in-memory database of string and set values with optional
// expiry.
//
// Every write is stamped with a monotonically increasing write index. The index
// of a key (Version) changes on every modification, including deletion and
// expiry, which makes it usable for optimistic locking.
//
// Thread-safety: All methods except Atomically, Close and WriteIdx require the
// caller to be inside Atomically. Atomically serializes all callers, so
// several operations run inside one call are atomic.
type Keyspace struct {
	mu      sync.Mutex
	entries map[string]*entry
	expiry  *expiryHeap

	// write index of deleted keys, a key without entry here and in entries
	// was not modified since the last flush
	tombstones map[string]uint64
	flushIdx   uint64
	writeIdx   atomic.Uint64

	now func() time.Time

	// garbage collection
	gcInterval time.Duration
	gcStop     chan struct{}
	gcDone     chan struct{}
	closeOnce  sync.Once
}

// New creates a new keyspace and starts the background expiry
func New(opts *Options) *Keyspace {
	if opts == nil {
		opts = &Options{}
	}

	k := &Keyspace{
		entries:    make(map[string]*entry),
		expiry:     newExpiryHeap(),
		tombstones: make(map[string]uint64),
		now:        opts.Now,
		gcInterval: opts.GCInterval,
		gcStop:     make(chan struct{}),
		gcDone:     make(chan struct{}),
	}
	if k.now == nil {
		k.now = time.Now
	}
	if k.gcInterval == 0 {
		k.gcInterval = defaultGCInterval
	}

	if k.gcInterval > 0 {
		go k.garbageCollector()
	} else {
		close(k.gcDone)
	}
	return k
}

// Atomically runs fn while holding the keyspace lock
func (k *Keyspace) Atomically(fn func()) {
	k.mu.Lock()
	defer k.mu.Unlock()
	fn()
}

// Close stops the background expiry. The keyspace can still be used.
func (k *Keyspace) Close() error {
	k.closeOnce.Do(func() {
		close(k.gcStop)
	})
	<-k.gcDone
	return nil
}

// WriteIdx returns the current write index
func (k *Keyspace) WriteIdx() uint64 {
	return k.writeIdx.Load()
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// Set stores a string value. Any previous value (of any kind) and its expiry
// are replaced. ttl > 0 sets a new expiry.
func (k *Keyspace) Set(key string, value []byte, ttl time.Duration) {
	k.expiry.Unschedule(key)
	k.entries[key] = &entry{
		kind:  KindString,
		str:   append([]byte(nil), value...),
		index: k.nextIdx(),
	}
	delete(k.tombstones, key)
	if ttl > 0 {
		k.expiry.Schedule(key, k.now().Add(ttl).UnixNano())
	}
}

// Delete removes key, it reports if the key existed
func (k *Keyspace) Delete(key string) bool {
	if k.lookup(key) == nil {
		return false
	}
	k.remove(key)
	return true
}

// IncrBy adds delta to the integer stored at key. A missing key counts as 0.
// The expiry of the key is kept.
func (k *Keyspace) IncrBy(key string, delta int64) (int64, error) {
	e := k.lookup(key)
	var current int64
	if e != nil {
		if e.kind != KindString {
			return 0, ErrWrongType
		}
		n, err := strconv.ParseInt(string(e.str), 10, 64)
		if err != nil {
			return 0, ErrNotInteger
		}
		current = n
	}

	if (delta > 0 && current > math.MaxInt64-delta) || (delta < 0 && current < math.MinInt64-delta) {
		return 0, ErrOverflow
	}
	current += delta

	if e == nil {
		e = &entry{kind: KindString}
		k.entries[key] = e
		delete(k.tombstones, key)
	}
	e.str = strconv.AppendInt(e.str[:0], current, 10)
	e.index = k.nextIdx()
	return current, nil
}

// Expire sets the time to live of key. A ttl <= 0 deletes the key.
// It reports if the key existed.
func (k *Keyspace) Expire(key string, ttl time.Duration) bool {
	e := k.lookup(key)
	if e == nil {
		return false
	}
	if ttl <= 0 {
		k.remove(key)
		return true
	}
	k.expiry.Schedule(key, k.now().Add(ttl).UnixNano())
	e.index = k.nextIdx()
	return true
}

// SAdd adds members to the set at key and returns the number of new members
func (k *Keyspace) SAdd(key string, members ...string) (int, error) {
	e := k.lookup(key)
	if e != nil && e.kind != KindSet {
		return 0, ErrWrongType
	}
	if e == nil {
		e = &entry{kind: KindSet, set: make(map[string]struct{})}
		k.entries[key] = e
		delete(k.tombstones, key)
	}

	added := 0
	for _, m := range members {
		if _, ok := e.set[m]; !ok {
			e.set[m] = struct{}{}
			added++
		}
	}
	e.index = k.nextIdx()
	return added, nil
}

// SRem removes members from the set at key and returns the number of removed
// members. An empty set is deleted.
func (k *Keyspace) SRem(key string, members ...string) (int, error) {
	e := k.lookup(key)
	if e == nil {
		return 0, nil
	}
	if e.kind != KindSet {
		return 0, ErrWrongType
	}

	removed := 0
	for _, m := range members {
		if _, ok := e.set[m]; ok {
			delete(e.set, m)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	if len(e.set) == 0 {
		k.remove(key)
	} else {
		e.index = k.nextIdx()
	}
	return removed, nil
}

// Flush removes all keys
func (k *Keyspace) Flush() {
	k.entries = make(map[string]*entry)
	k.tombstones = make(map[string]uint64)
	k.expiry.Reset()
	k.flushIdx = k.nextIdx()
}

// --------------------------------------------------------------------------
// Query Operations
// --------------------------------------------------------------------------

// Get returns the string value of key
func (k *Keyspace) Get(key string) (value []byte, loaded bool, err error) {
	e := k.lookup(key)
	if e == nil {
		return nil, false, nil
	}
	if e.kind != KindString {
		return nil, false, ErrWrongType
	}
	return append([]byte(nil), e.str...), true, nil
}

// Has reports if key exists
func (k *Keyspace) Has(key string) bool {
	return k.lookup(key) != nil
}

// Type returns the kind of the value at key
func (k *Keyspace) Type(key string) Kind {
	if e := k.lookup(key); e != nil {
		return e.kind
	}
	return KindNone
}

// TTL returns the remaining time to live of key in seconds (rounded),
// -1 if the key has no expiry and -2 if the key does not exist
func (k *Keyspace) TTL(key string) int64 {
	if k.lookup(key) == nil {
		return -2
	}
	deadline, ok := k.expiry.Deadline(key)
	if !ok {
		return -1
	}
	remaining := time.Duration(deadline - k.now().UnixNano())
	return int64((remaining + 500*time.Millisecond) / time.Second)
}

// SMembers returns the members of the set at key in sorted order
func (k *Keyspace) SMembers(key string) ([]string, error) {
	e := k.lookup(key)
	if e == nil {
		return []string{}, nil
	}
	if e.kind != KindSet {
		return nil, ErrWrongType
	}
	members := make([]string, 0, len(e.set))
	for m := range e.set {
		members = append(members, m)
	}
	sort.Strings(members)
	return members, nil
}

// Size returns the number of keys
func (k *Keyspace) Size() int {
	k.collect()
	return len(k.entries)
}

// Version returns the write index of the last modification of key.
// Keys that were never written since the last flush share the index of the flush.
func (k *Keyspace) Version(key string) uint64 {
	if e := k.lookup(key); e != nil {
		return e.index
	}
	if idx, ok := k.tombstones[key]; ok {
		return idx
	}
	return k.flushIdx
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (k *Keyspace) nextIdx() uint64 {
	return k.writeIdx.Add(1)
}

// lookup returns the entry of key, expired entries are removed first
func (k *Keyspace) lookup(key string) *entry {
	e, ok := k.entries[key]
	if !ok {
		return nil
	}
	if deadline, ok := k.expiry.Deadline(key); ok && deadline <= k.now().UnixNano() {
		k.remove(key)
		return nil
	}
	return e
}

// remove deletes key and leaves a tombstone with a new write index
func (k *Keyspace) remove(key string) {
	delete(k.entries, key)
	k.expiry.Unschedule(key)
	k.tombstones[key] = k.nextIdx()
}

// collect removes all expired entries
func (k *Keyspace) collect() int {
	keys := k.expiry.PopExpired(k.now().UnixNano())
	for _, key := range keys {
		delete(k.entries, key)
		k.tombstones[key] = k.nextIdx()
	}
	return len(keys)
}

// garbageCollector removes expired entries in the background until Close
func (k *Keyspace) garbageCollector() {
	defer close(k.gcDone)

	ticker := time.NewTicker(k.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-k.gcStop:
			return
		case <-ticker.C:
			var removed int
			k.Atomically(func() { removed = k.collect() })
			if removed > 0 {
				Logger.Debugf("gc removed %d expired keys", removed)
			}
		}
	}
}
