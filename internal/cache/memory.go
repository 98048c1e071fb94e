package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/ahrav/go-fitplan/internal/domain"
)

// Default bounds for the in-memory backend.
const (
	DefaultMaxEntries = 256
	DefaultEntryTTL   = 5 * time.Minute
)

// memoryEntry is one cached workout plus its expiry deadline.
type memoryEntry struct {
	key       string
	workout   *domain.GeneratedWorkout
	expiresAt time.Time
}

// MemoryStore is an LRU cache with per-entry TTL. Both bounds apply: an entry
// is evicted when it expires or when capacity pressure reaches it, whichever
// happens first. Leases live in a side map and never count against capacity.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used
	leases  map[string]time.Time

	maxEntries int
	ttl        time.Duration

	now func() time.Time // test seam
}

// NewMemoryStore creates a bounded in-memory store. Non-positive arguments
// fall back to the defaults.
func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultEntryTTL
	}
	return &MemoryStore{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		leases:     make(map[string]time.Time),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get returns the cached workout and refreshes its recency. Expired entries
// are removed on access and report a miss.
func (s *MemoryStore) Get(_ context.Context, key string) (*domain.GeneratedWorkout, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}

	entry := elem.Value.(*memoryEntry)
	if s.now().After(entry.expiresAt) {
		s.removeLocked(elem)
		return nil, false, nil
	}

	s.order.MoveToFront(elem)
	return entry.workout, true, nil
}

// Put stores a workout, replacing any existing entry and evicting the least
// recently used entry when over capacity.
func (s *MemoryStore) Put(_ context.Context, key string, workout *domain.GeneratedWorkout) error {
	if workout == nil {
		return ErrNilWorkout
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.entries[key]; ok {
		entry := elem.Value.(*memoryEntry)
		entry.workout = workout
		entry.expiresAt = s.now().Add(s.ttl)
		s.order.MoveToFront(elem)
		return nil
	}

	elem := s.order.PushFront(&memoryEntry{
		key:       key,
		workout:   workout,
		expiresAt: s.now().Add(s.ttl),
	})
	s.entries[key] = elem

	for len(s.entries) > s.maxEntries {
		oldest := s.order.Back()
		if oldest == nil {
			break
		}
		s.removeLocked(oldest)
	}
	return nil
}

// TryLease claims the in-flight slot for key unless a live lease exists.
func (s *MemoryStore) TryLease(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if deadline, ok := s.leases[key]; ok && s.now().Before(deadline) {
		return false, nil
	}
	s.leases[key] = s.now().Add(ttl)
	return true, nil
}

// ReleaseLease frees the in-flight slot for key.
func (s *MemoryStore) ReleaseLease(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.leases, key)
	return nil
}

// Clear drops all cached entries while keeping live leases.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*list.Element)
	s.order.Init()
	return nil
}

// Close drops all entries and leases.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*list.Element)
	s.order.Init()
	s.leases = make(map[string]time.Time)
	return nil
}

// Len reports the live entry count, excluding expired-but-unswept entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	now := s.now()
	for elem := s.order.Front(); elem != nil; elem = elem.Next() {
		if now.Before(elem.Value.(*memoryEntry).expiresAt) {
			count++
		}
	}
	return count
}

func (s *MemoryStore) removeLocked(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	s.order.Remove(elem)
	delete(s.entries, entry.key)
}
