// Package session implements the bridge's Session Keyer: tracking
// affinity between a client's conversation identity and a session id, so
// repeated calls for the same conversation can be correlated (for
// instance, by telemetry or by an upstream that rewards cache-affinity
// routing) without the bridge persisting any message content itself.
package session

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one tracked conversation identity.
type Session struct {
	mu sync.Mutex

	ID           string
	Key          string
	CreatedAt    time.Time
	LastAccessAt time.Time
	Hits         int
	TotalTokens  int64
	TTLCurrent   time.Duration
	expiresAt    time.Time
}

func (s *Session) expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.After(s.expiresAt)
}

// Keyer maps an identity key (derived by the caller from whatever
// client-stable signal is available — e.g. an x-device-id header, or a
// hash of the credential and client IP) to a Session record.
type Keyer struct {
	minTTL time.Duration
	maxTTL time.Duration

	tableMu sync.RWMutex
	table   map[string]*Session
}

// New builds a Keyer whose TTL is clamped to [minTTL, maxTTL].
func New(minTTL, maxTTL time.Duration) *Keyer {
	return &Keyer{
		minTTL: minTTL,
		maxTTL: maxTTL,
		table:  make(map[string]*Session),
	}
}

// Touch records a hit against identityKey, creating a new Session if none
// exists yet or if the previous one has expired, and returns it along with
// whether it is newly created. tokens is the token count this request
// contributed, used to grow the TTL.
func (k *Keyer) Touch(identityKey string, tokens int) (*Session, bool) {
	now := time.Now()

	k.tableMu.RLock()
	existing, ok := k.table[identityKey]
	k.tableMu.RUnlock()

	if ok && !existing.expired(now) {
		existing.mu.Lock()
		existing.Hits++
		existing.TotalTokens += int64(tokens)
		existing.LastAccessAt = now
		existing.TTLCurrent = k.computeTTL(existing.Hits, existing.TotalTokens)
		existing.expiresAt = now.Add(existing.TTLCurrent)
		existing.mu.Unlock()
		return existing, false
	}

	fresh := &Session{
		ID:           "sess_" + uuid.NewString(),
		Key:          identityKey,
		CreatedAt:    now,
		LastAccessAt: now,
		Hits:         1,
		TotalTokens:  int64(tokens),
	}
	fresh.TTLCurrent = k.computeTTL(1, int64(tokens))
	fresh.expiresAt = now.Add(fresh.TTLCurrent)

	k.tableMu.Lock()
	k.table[identityKey] = fresh
	k.tableMu.Unlock()

	return fresh, true
}

// computeTTL implements the TTL-growth formula: a session accessed more
// often, or carrying more tokens, earns a longer TTL, clamped to
// [minTTL, maxTTL].
func (k *Keyer) computeTTL(hits int, tokens int64) time.Duration {
	const (
		hitWeight   = 600.0 // seconds per unit of ln(hits+1)
		tokenWeight = 0.05  // seconds per token
	)

	extra := hitWeight*math.Log(float64(hits)+1) + tokenWeight*float64(tokens)
	computed := k.minTTL + time.Duration(extra*float64(time.Second))
	if computed < k.minTTL {
		return k.minTTL
	}
	if computed > k.maxTTL {
		return k.maxTTL
	}
	return computed
}

// Sweep removes every expired session from the table. Call it
// periodically via RunCleanup, or directly from tests.
func (k *Keyer) Sweep() int {
	now := time.Now()
	removed := 0

	k.tableMu.Lock()
	for key, s := range k.table {
		if s.expired(now) {
			delete(k.table, key)
			removed++
		}
	}
	k.tableMu.Unlock()

	return removed
}

// RunCleanup sweeps expired sessions every interval until ctx is canceled.
func (k *Keyer) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.Sweep()
		}
	}
}

// Len reports the number of tracked sessions, expired or not.
func (k *Keyer) Len() int {
	k.tableMu.RLock()
	defer k.tableMu.RUnlock()
	return len(k.table)
}
