// Package attempts tracks failed login attempts per identity in memory.
//
// State is split across a fixed number of shards, each guarded by its own
// mutex, so a flood of attempts against one identity only contends with the
// identities that hash to the same shard. Records expire lazily when touched
// and are also removed by Sweep, which a single background worker calls on an
// interval. No timers are created per failure.
package attempts

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	DefaultLimit      = 5
	DefaultWindow     = 30 * time.Minute
	DefaultMaxTracked = 100_000

	shardCount = 64
)

// Decision is the result of checking an identity against the limit
type Decision int

const (
	Allowed Decision = iota
	Blocked
)

func (d Decision) String() string {
	if d == Blocked {
		return "blocked"
	}
	return "allowed"
}

// Config holds tracker limits
type Config struct {
	Limit      int              // failures allowed inside one window
	Window     time.Duration    // measured from the most recent failure
	MaxTracked int              // upper bound on tracked identities
	Now        func() time.Time // clock; time.Now when nil
}

// DefaultConfig returns the default limits: 5 failures per 30 minutes
func DefaultConfig() Config {
	return Config{
		Limit:      DefaultLimit,
		Window:     DefaultWindow,
		MaxTracked: DefaultMaxTracked,
		Now:        time.Now,
	}
}

type entry struct {
	failures  int
	expiresAt time.Time
	inFlight  int // outstanding reservations
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Tracker counts failed attempts per identity within a sliding window
type Tracker struct {
	limit    int
	window   time.Duration
	perShard int
	seed     uint64 // per-tracker so shard placement cannot be predicted
	now      func() time.Time
	shards   [shardCount]shard
}

// New creates a Tracker. Zero or negative fields in cfg take their defaults.
func New(cfg Config) *Tracker {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxTracked <= 0 {
		cfg.MaxTracked = DefaultMaxTracked
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	perShard := (cfg.MaxTracked + shardCount - 1) / shardCount

	var seed [8]byte
	_, _ = rand.Read(seed[:])

	t := &Tracker{
		limit:    cfg.Limit,
		window:   cfg.Window,
		perShard: perShard,
		seed:     binary.LittleEndian.Uint64(seed[:]),
		now:      cfg.Now,
	}
	for i := range t.shards {
		t.shards[i].entries = make(map[string]*entry)
	}
	return t
}

// Limit returns the configured failure limit
func (t *Tracker) Limit() int { return t.limit }

// Window returns the configured window duration
func (t *Tracker) Window() time.Duration { return t.window }

func (t *Tracker) shardFor(identity string) *shard {
	d := xxhash.NewWithSeed(t.seed)
	_, _ = d.WriteString(identity)
	return &t.shards[d.Sum64()%shardCount]
}

// CheckLimit reports Blocked when identity has reached the limit inside an unexpired window
func (t *Tracker) CheckLimit(identity string) Decision {
	s := t.shardFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(identity, t.now())
	if e != nil && e.failures >= t.limit {
		return Blocked
	}
	return Allowed
}

// RecordFailure counts a failure for identity and restarts its window from now.
// It returns the failure count after the update, which never exceeds the limit.
func (t *Tracker) RecordFailure(identity string) int {
	s := t.shardFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := t.now()
	e := s.live(identity, now)
	if e == nil {
		e = t.insert(s, identity, now)
	}
	t.fail(e, now)
	return e.failures
}

// Reset clears any failures recorded for identity
func (t *Tracker) Reset(identity string) {
	s := t.shardFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[identity]
	if !ok {
		return
	}
	e.failures = 0
	if e.inFlight == 0 {
		delete(s.entries, identity)
	}
}

// Count returns the failures currently counted against identity
func (t *Tracker) Count(identity string) int {
	s := t.shardFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.live(identity, t.now()); e != nil {
		return e.failures
	}
	return 0
}

// Len returns the number of identities currently tracked
func (t *Tracker) Len() int {
	n := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// Sweep removes expired records that have no outstanding reservations and
// returns how many were removed. It is safe to call at any time.
func (t *Tracker) Sweep() int {
	now := t.now()
	removed := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		removed += s.purgeExpired(now)
		s.mu.Unlock()
	}
	return removed
}

// Reserve atomically checks the limit and, when allowed, holds one attempt
// slot for identity until the reservation is resolved. Outstanding
// reservations count against the limit, so concurrent attempts for the same
// identity can never record more than limit failures in total.
//
// The returned reservation is nil when the decision is Blocked.
func (t *Tracker) Reserve(identity string) (*Reservation, Decision) {
	s := t.shardFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := t.now()
	e := s.live(identity, now)
	if e != nil && e.failures+e.inFlight >= t.limit {
		return nil, Blocked
	}
	if e == nil {
		e = t.insert(s, identity, now)
	}
	e.inFlight++

	return &Reservation{tracker: t, identity: identity}, Allowed
}

// fail must be called with the entry's shard lock held
func (t *Tracker) fail(e *entry, now time.Time) {
	if e.failures < t.limit {
		e.failures++
	}
	e.expiresAt = now.Add(t.window)
}

// release resolves one reservation for identity and applies resolve to its entry
func (t *Tracker) release(identity string, resolve func(e *entry, now time.Time)) int {
	s := t.shardFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := t.now()
	e, ok := s.entries[identity]
	if !ok {
		// Reserved entries are never swept or evicted; recreate in case that ever changes.
		e = t.insert(s, identity, now)
		e.inFlight = 1
	}
	expire(e, now)

	e.inFlight--
	resolve(e, now)

	failures := e.failures
	if e.failures == 0 && e.inFlight == 0 {
		delete(s.entries, identity)
	}
	return failures
}

// Reservation is one held attempt slot. Exactly one of Fail, Succeed or Cancel
// takes effect; later calls are no-ops.
type Reservation struct {
	tracker  *Tracker
	identity string
	resolved atomic.Bool
}

// Fail records a failed attempt and returns the failure count after it
func (r *Reservation) Fail() int {
	if !r.resolved.CompareAndSwap(false, true) {
		return r.tracker.Count(r.identity)
	}
	return r.tracker.release(r.identity, r.tracker.fail)
}

// Succeed clears the identity's failures
func (r *Reservation) Succeed() {
	if !r.resolved.CompareAndSwap(false, true) {
		return
	}
	r.tracker.release(r.identity, func(e *entry, _ time.Time) {
		e.failures = 0
	})
}

// Cancel gives the slot back without counting an attempt
func (r *Reservation) Cancel() {
	if !r.resolved.CompareAndSwap(false, true) {
		return
	}
	r.tracker.release(r.identity, func(*entry, time.Time) {})
}

// expire zeroes failures whose window has passed
func expire(e *entry, now time.Time) {
	if e.failures > 0 && !now.Before(e.expiresAt) {
		e.failures = 0
	}
}

// live returns the current entry for identity, dropping it if it has expired
// and is not reserved. Callers hold s.mu.
func (s *shard) live(identity string, now time.Time) *entry {
	e, ok := s.entries[identity]
	if !ok {
		return nil
	}
	expire(e, now)
	if e.failures == 0 && e.inFlight == 0 {
		delete(s.entries, identity)
		return nil
	}
	return e
}

// insert adds a fresh entry to s, making room first when the shard is at
// capacity. Callers hold s.mu.
func (t *Tracker) insert(s *shard, identity string, now time.Time) *entry {
	if len(s.entries) >= t.perShard {
		s.purgeExpired(now)
	}
	if len(s.entries) >= t.perShard {
		s.evictOldest(t.limit)
	}
	e := &entry{}
	s.entries[identity] = e
	return e
}

func (s *shard) purgeExpired(now time.Time) int {
	removed := 0
	for id, e := range s.entries {
		expire(e, now)
		if e.failures == 0 && e.inFlight == 0 {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// evictOldest drops the unreserved entry whose window ends soonest. Entries
// below limit go first; a locked entry is only dropped when every unreserved
// entry in the shard is locked.
func (s *shard) evictOldest(limit int) {
	var open, locked candidate
	for id, e := range s.entries {
		if e.inFlight > 0 {
			continue
		}
		if e.failures >= limit {
			locked.consider(id, e.expiresAt)
		} else {
			open.consider(id, e.expiresAt)
		}
	}
	switch {
	case open.found:
		delete(s.entries, open.id)
	case locked.found:
		delete(s.entries, locked.id)
	}
}

type candidate struct {
	id      string
	expires time.Time
	found   bool
}

func (c *candidate) consider(id string, expires time.Time) {
	if !c.found || expires.Before(c.expires) {
		c.id, c.expires, c.found = id, expires, true
	}
}
