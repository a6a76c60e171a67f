// Package cache implements the in-process response cache for upstream reads.
//
// The cache keeps the most recent successful payload per user and operation
// class, along with its fetch time and the provider quota observed on that
// fetch. Entries are only overwritten by a successful upstream call and are
// never evicted automatically: indefinitely stale data is preferred over no
// data when the upstream is throttled or down.
//
// Payloads are stored as JSON blobs and zstd-compressed above a small
// threshold to bound resident memory across many users.
package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"latebird/internal/types"
)

// compressThreshold is the payload size in bytes above which entries are
// stored zstd-compressed.
const compressThreshold = 1024

type entryKey struct {
	userID string
	class  types.OpClass
}

type entry struct {
	payload    []byte
	compressed bool
	fetchedAt  time.Time
	quota      *types.QuotaSnapshot
}

// Result is a cache read: the decoded payload, its age at read time, and the
// quota snapshot recorded with it.
type Result struct {
	Payload json.RawMessage
	Age     time.Duration
	Quota   *types.QuotaSnapshot
}

// ResponseCache is the process-wide read cache. All methods are safe for
// concurrent use. Like the governor, it is constructed once and injected.
type ResponseCache struct {
	mu      sync.RWMutex
	entries map[entryKey]*entry
	clock   types.Clock

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// New creates an empty ResponseCache. A nil clock defaults to the real clock.
func New(clock types.Clock) *ResponseCache {
	if clock == nil {
		clock = types.RealClock{}
	}
	// Both constructors only fail on invalid options; none are passed.
	enc, _ := zstd.NewWriter(nil)
	dec, _ := zstd.NewReader(nil)
	return &ResponseCache{
		entries: make(map[entryKey]*entry),
		clock:   clock,
		enc:     enc,
		dec:     dec,
	}
}

// Put records a successful upstream payload for the user/class pair,
// unconditionally overwriting any previous entry and stamping the fetch time.
// The payload is marshalled to JSON once here so later reads are allocation-light.
func (c *ResponseCache) Put(userID string, class types.OpClass, payload any, quota *types.QuotaSnapshot) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling cache payload: %w", err)
	}

	e := &entry{fetchedAt: c.clock.Now(), quota: quota}
	if len(raw) > compressThreshold {
		e.payload = c.enc.EncodeAll(raw, nil)
		e.compressed = true
	} else {
		e.payload = raw
	}

	c.mu.Lock()
	c.entries[entryKey{userID: userID, class: class}] = e
	c.mu.Unlock()
	return nil
}

// Get returns the cached payload for the user/class pair, if any. The age is
// computed against the injected clock at call time. Staleness is the
// caller's policy; Get never refuses an old entry.
func (c *ResponseCache) Get(userID string, class types.OpClass) (Result, bool) {
	c.mu.RLock()
	e, ok := c.entries[entryKey{userID: userID, class: class}]
	c.mu.RUnlock()
	if !ok {
		return Result{}, false
	}

	raw := e.payload
	if e.compressed {
		decoded, err := c.dec.DecodeAll(e.payload, nil)
		if err != nil {
			// A corrupt entry is equivalent to a miss; it will be
			// overwritten by the next successful fetch.
			return Result{}, false
		}
		raw = decoded
	}

	return Result{
		Payload: json.RawMessage(raw),
		Age:     c.clock.Now().Sub(e.fetchedAt),
		Quota:   e.quota,
	}, true
}

// Len reports the number of cached entries, for diagnostics.
func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
