package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/speedometer/speedometer/internal/timeline"
	"github.com/speedometer/speedometer/pkg/types"
)

// key identifies one sampled frame of one source.
type key struct {
	source string
	frame  float64
}

// Entry is a cached sample together with the time it was stored.
type Entry struct {
	Sample    types.Sample
	UpdatedAt time.Time
}

// Store is a thread-safe in-memory sample cache. A background goroutine (Run)
// periodically evicts entries older than the configured TTL.
type Store struct {
	mu   sync.RWMutex
	data map[key]*Entry
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests

	hits, misses uint64
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[key]*Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Put stores or replaces the sample for (source, frame).
func (s *Store) Put(source string, frame float64, sample types.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key{source, frame}] = &Entry{Sample: sample, UpdatedAt: s.now()}
}

// Get returns the live sample for (source, frame). Entries older than the
// TTL are reported as missing even if not yet evicted.
func (s *Store) Get(source string, frame float64) (types.Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key{source, frame}]
	if !ok || !e.UpdatedAt.After(s.now().Add(-s.ttl)) {
		s.misses++
		return types.Sample{}, false
	}
	s.hits++
	return e.Sample, true
}

// Stats is a point-in-time view of the cache counters.
type Stats struct {
	Entries int
	Hits    uint64
	Misses  uint64
}

// Stats returns the entry count and the hit and miss counters since creation.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{Entries: len(s.data), Hits: s.hits, Misses: s.misses}
}

// Reset drops every entry, e.g. after the scene configuration changed.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[key]*Entry)
}

// Evict removes entries whose UpdatedAt is older than now minus TTL.
// It returns the number of entries removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for k, e := range s.data {
		if !e.UpdatedAt.After(cutoff) {
			delete(s.data, k)
			removed++
		}
	}
	return removed
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// (minimum 1 second) and blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("cache: evicted stale samples", "count", n)
			}
		}
	}
}

// Wrap returns a timeline.Source that reads through the cache under id.
// A nil Store returns src unchanged.
func (s *Store) Wrap(id string, src timeline.Source) timeline.Source {
	if s == nil {
		return src
	}
	return &cachedSource{id: id, src: src, store: s}
}

type cachedSource struct {
	id    string
	src   timeline.Source
	store *Store
}

func (c *cachedSource) Sample(frame float64) (types.Sample, error) {
	if v, ok := c.store.Get(c.id, frame); ok {
		return v, nil
	}
	v, err := c.src.Sample(frame)
	if err != nil {
		return types.Sample{}, err
	}
	c.store.Put(c.id, frame, v)
	return v, nil
}

func (c *cachedSource) Range() (float64, float64) {
	return c.src.Range()
}
