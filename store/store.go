// Package store keeps runs submitted through the API in memory.
package store

import (
	"sync"
	"time"

	"github.com/use-agent/pageshot/models"
)

type entry struct {
	job       *models.RunJob
	createdAt time.Time
	updatedAt time.Time
}

// Store is an in-memory run store bounded by entry count and by the age of
// finished runs. It is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	runs       map[string]*entry
	maxEntries int
	ttl        time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// New creates a Store and starts a background loop evicting finished runs
// older than ttl. Call Close to stop it.
func New(maxEntries int, ttl time.Duration) *Store {
	if maxEntries <= 0 {
		maxEntries = 200
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	s := &Store{
		runs:       make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		stop:       make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// Put stores job under job.ID. At capacity the oldest finished run is
// evicted; queued and running runs are never evicted, so Put reports false
// and stores nothing when every slot holds one.
func (s *Store) Put(job *models.RunJob) bool {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[job.ID]; !exists && len(s.runs) >= s.maxEntries {
		if !s.evictOldestFinishedLocked() {
			return false
		}
	}
	s.runs[job.ID] = &entry{job: job, createdAt: now, updatedAt: now}
	return true
}

// Get returns a copy of the run, so callers can read it without holding
// the lock.
func (s *Store) Get(id string) (models.RunJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.runs[id]
	if !ok {
		return models.RunJob{}, false
	}
	return *e.job, true
}

// Update applies fn to the stored run under the write lock. It reports
// whether the run exists.
func (s *Store) Update(id string, fn func(job *models.RunJob)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.runs[id]
	if !ok {
		return false
	}
	fn(e.job)
	e.updatedAt = time.Now()
	return true
}

// Delete removes a run.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, id)
}

// Len returns the number of stored runs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

// Close stops the cleanup loop.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Store) evictOldestFinishedLocked() bool {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, e := range s.runs {
		if !isFinished(e.job.Status) {
			continue
		}
		if oldestID == "" || e.createdAt.Before(oldest) {
			oldestID, oldest = id, e.createdAt
		}
	}
	if oldestID == "" {
		return false
	}
	delete(s.runs, oldestID)
	return true
}

// evictExpired removes finished runs last updated before now-ttl and
// returns how many were removed.
func (s *Store) evictExpired(now time.Time) int {
	cutoff := now.Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.runs {
		if isFinished(e.job.Status) && e.updatedAt.Before(cutoff) {
			delete(s.runs, id)
			n++
		}
	}
	return n
}

func (s *Store) cleanupLoop() {
	interval := s.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.evictExpired(now)
		}
	}
}

func isFinished(status string) bool {
	return status == models.JobPassed || status == models.JobFailed
}
