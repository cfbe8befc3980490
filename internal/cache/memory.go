package cache

import (
	"strings"
	"sync"
	"time"
)

const (
	DefaultMaxSizeBytes int64 = 50 * 1024 * 1024
	DefaultTTL                = 5 * time.Minute
)

const (
	EvictExpired  = "expired"
	EvictCapacity = "capacity"
	EvictReplaced = "replaced"
	EvictExplicit = "explicit"
)

type EvictFunc func(reason string, sizeBytes int64)

type entry struct {
	data           []byte
	insertedAt     time.Time
	lastAccessedAt time.Time
	accessCount    int64
	sizeBytes      int64
}

// MemoryStore keeps chunk payloads in process memory. Expiry is lazy: a
// stale entry is dropped on the next lookup that touches it, there is no
// background sweep. Eviction under capacity pressure removes the entry
// with the lowest access count, breaking ties on oldest last access.
type MemoryStore struct {
	mu               sync.Mutex
	entries          map[string]*entry
	currentSizeBytes int64
	maxSizeBytes     int64
	ttl              time.Duration
	now              func() time.Time
	onEvict          EvictFunc
}

func NewMemoryStore(maxSizeBytes int64, ttl time.Duration) *MemoryStore {
	if maxSizeBytes <= 0 {
		maxSizeBytes = DefaultMaxSizeBytes
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		entries:      make(map[string]*entry),
		maxSizeBytes: maxSizeBytes,
		ttl:          ttl,
		now:          time.Now,
	}
}

// SetEvictHook registers a callback invoked whenever an entry leaves the
// store, with the removal reason. Intended for metrics wiring.
func (m *MemoryStore) SetEvictHook(fn EvictFunc) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.onEvict = fn
	m.mu.Unlock()
}

func (m *MemoryStore) Get(key string) ([]byte, bool) {
	data, status := m.Lookup(key)
	return data, status == LookupHit
}

// Lookup behaves like Get but reports whether a miss was caused by TTL
// expiry, which the proxy surfaces as its own cache-request status.
func (m *MemoryStore) Lookup(key string) ([]byte, LookupStatus) {
	if m == nil {
		return nil, LookupMiss
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ent, ok := m.entries[key]
	if !ok {
		return nil, LookupMiss
	}
	now := m.now()
	if now.Sub(ent.insertedAt) > m.ttl {
		m.removeLocked(key, ent, EvictExpired)
		return nil, LookupExpired
	}
	ent.accessCount++
	ent.lastAccessedAt = now
	return append([]byte(nil), ent.data...), LookupHit
}

func (m *MemoryStore) Set(key string, data []byte) {
	if m == nil {
		return
	}
	size := int64(len(data))
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.entries[key]; ok {
		m.removeLocked(key, old, EvictReplaced)
	}
	for m.currentSizeBytes+size > m.maxSizeBytes && len(m.entries) > 0 {
		m.evictLowestLocked()
	}

	now := m.now()
	m.entries[key] = &entry{
		data:           append([]byte(nil), data...),
		insertedAt:     now,
		lastAccessedAt: now,
		accessCount:    1,
		sizeBytes:      size,
	}
	m.currentSizeBytes += size
}

func (m *MemoryStore) Delete(key string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ent, ok := m.entries[key]; ok {
		m.removeLocked(key, ent, EvictExplicit)
	}
}

// PurgePrefix removes every entry whose key starts with prefix and
// reports how many were dropped. Used by the admin purge endpoint to
// clear all chunks of one resource at once.
func (m *MemoryStore) PurgePrefix(prefix string) int {
	if m == nil || prefix == "" {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, ent := range m.entries {
		if strings.HasPrefix(key, prefix) {
			m.removeLocked(key, ent, EvictExplicit)
			removed++
		}
	}
	return removed
}

// Flush drops every entry and reports how many were removed.
func (m *MemoryStore) Flush() int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := len(m.entries)
	for key, ent := range m.entries {
		m.removeLocked(key, ent, EvictExplicit)
	}
	return removed
}

func (m *MemoryStore) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Entries:      len(m.entries),
		SizeBytes:    m.currentSizeBytes,
		MaxSizeBytes: m.maxSizeBytes,
	}
}

func (m *MemoryStore) evictLowestLocked() {
	var victimKey string
	var victim *entry
	for key, ent := range m.entries {
		if victim == nil {
			victimKey, victim = key, ent
			continue
		}
		if ent.accessCount < victim.accessCount {
			victimKey, victim = key, ent
			continue
		}
		if ent.accessCount == victim.accessCount && ent.lastAccessedAt.Before(victim.lastAccessedAt) {
			victimKey, victim = key, ent
		}
	}
	if victim != nil {
		m.removeLocked(victimKey, victim, EvictCapacity)
	}
}

func (m *MemoryStore) removeLocked(key string, ent *entry, reason string) {
	delete(m.entries, key)
	m.currentSizeBytes -= ent.sizeBytes
	if m.onEvict != nil {
		m.onEvict(reason, ent.sizeBytes)
	}
}
