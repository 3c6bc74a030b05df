package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/pageshot/models"
)

func TestPutGetUpdate(t *testing.T) {
	s := New(10, time.Hour)
	defer s.Close()

	s.Put(&models.RunJob{ID: "a", Status: models.JobQueued})

	job, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, models.JobQueued, job.Status)

	job.Status = "mutated"
	again, _ := s.Get("a")
	assert.Equal(t, models.JobQueued, again.Status, "Get returns a copy")

	assert.True(t, s.Update("a", func(j *models.RunJob) { j.Status = models.JobRunning }))
	again, _ = s.Get("a")
	assert.Equal(t, models.JobRunning, again.Status)

	assert.False(t, s.Update("missing", func(*models.RunJob) {}))
	_, ok = s.Get("missing")
	assert.False(t, ok)

	s.Delete("a")
	assert.Zero(t, s.Len())
}

func TestPut_EvictsOldestFinishedFirst(t *testing.T) {
	s := New(3, time.Hour)
	defer s.Close()

	s.Put(&models.RunJob{ID: "running", Status: models.JobRunning})
	time.Sleep(time.Millisecond)
	s.Put(&models.RunJob{ID: "done-old", Status: models.JobPassed})
	time.Sleep(time.Millisecond)
	s.Put(&models.RunJob{ID: "done-new", Status: models.JobFailed})
	time.Sleep(time.Millisecond)
	s.Put(&models.RunJob{ID: "fresh", Status: models.JobQueued})

	assert.Equal(t, 3, s.Len())
	_, ok := s.Get("done-old")
	assert.False(t, ok)
	for _, id := range []string{"running", "done-new", "fresh"} {
		_, ok := s.Get(id)
		assert.True(t, ok, id)
	}
}

func TestPut_NeverEvictsActiveRuns(t *testing.T) {
	s := New(2, time.Hour)
	defer s.Close()

	require.True(t, s.Put(&models.RunJob{ID: "first", Status: models.JobRunning}))
	require.True(t, s.Put(&models.RunJob{ID: "second", Status: models.JobQueued}))
	assert.False(t, s.Put(&models.RunJob{ID: "third", Status: models.JobQueued}))

	for _, id := range []string{"first", "second"} {
		_, ok := s.Get(id)
		assert.True(t, ok, id)
	}
	_, ok := s.Get("third")
	assert.False(t, ok)
	assert.Equal(t, 2, s.Len())

	assert.True(t, s.Update("first", func(j *models.RunJob) { j.Status = models.JobPassed }))
	assert.True(t, s.Put(&models.RunJob{ID: "third", Status: models.JobQueued}))
	_, ok = s.Get("first")
	assert.False(t, ok, "finished run makes room")
}

func TestPut_ReplacesExistingAtCapacity(t *testing.T) {
	s := New(1, time.Hour)
	defer s.Close()

	require.True(t, s.Put(&models.RunJob{ID: "a", Status: models.JobQueued}))
	assert.True(t, s.Put(&models.RunJob{ID: "a", Status: models.JobRunning}))
	job, _ := s.Get("a")
	assert.Equal(t, models.JobRunning, job.Status)
}

func TestEvictExpired(t *testing.T) {
	s := New(10, time.Minute)
	defer s.Close()

	s.Put(&models.RunJob{ID: "done", Status: models.JobPassed})
	s.Put(&models.RunJob{ID: "queued", Status: models.JobQueued})

	assert.Zero(t, s.evictExpired(time.Now()))
	assert.Equal(t, 1, s.evictExpired(time.Now().Add(2*time.Minute)))

	_, ok := s.Get("queued")
	assert.True(t, ok, "unfinished runs never expire")
}

func TestConcurrentAccess(t *testing.T) {
	s := New(50, time.Hour)
	defer s.Close()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("run-%d", i)
			s.Put(&models.RunJob{ID: id, Status: models.JobQueued})
			s.Update(id, func(j *models.RunJob) { j.Status = models.JobPassed })
			_, _ = s.Get(id)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, s.Len())
}

func TestClose_Idempotent(t *testing.T) {
	s := New(1, time.Hour)
	s.Close()
	s.Close()
}
