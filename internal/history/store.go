package history

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dgnsrekt/pagecapture/internal/capture"
	"github.com/dgnsrekt/pagecapture/internal/engine"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
	// HostPreviewSize caps the distinct-host list in Stats.
	HostPreviewSize = 10
)

// ArtifactRemover deletes the output file of a job.
type ArtifactRemover interface {
	Remove(path string) error
}

// Query filters and pages List results.
type Query struct {
	Status capture.Status
	Offset int
	Limit  int
}

// Page is one slice of the filtered history.
type Page struct {
	Total  int           `json:"total"`
	Offset int           `json:"offset"`
	Limit  int           `json:"limit"`
	Items  []capture.Job `json:"items"`
}

// Stats aggregates the whole history.
type Stats struct {
	TotalJobs      int      `json:"total_jobs"`
	Completed      int      `json:"completed"`
	Failed         int      `json:"failed"`
	TotalSizeBytes int64    `json:"total_size_bytes"`
	UniqueHosts    int      `json:"unique_hosts"`
	Hosts          []string `json:"hosts"`
}

type record struct {
	seq uint64
	job capture.Job
}

// Store is the in-memory record of finalized jobs.
type Store struct {
	remover ArtifactRemover

	mu      sync.RWMutex
	nextSeq uint64
	byID    map[string]*record
}

// NewStore creates an empty Store. remover may be nil when no files are kept.
func NewStore(remover ArtifactRemover) *Store {
	return &Store{remover: remover, byID: make(map[string]*record)}
}

// Append adds a finalized job.
func (s *Store) Append(job capture.Job) error {
	if !job.Status.Terminal() {
		return fmt.Errorf("history: job %s is %s, only finalized jobs are recorded", job.ID, job.Status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[job.ID]; ok {
		return fmt.Errorf("history: duplicate job id %s", job.ID)
	}
	s.nextSeq++
	s.byID[job.ID] = &record{seq: s.nextSeq, job: job}
	return nil
}

// Get returns the job with id.
func (s *Store) Get(id string) (capture.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return capture.Job{}, notFound(id)
	}
	return rec.job, nil
}

// List returns jobs newest first. Ties on completion time fall back to
// insertion order so pages never overlap.
func (s *Store) List(q Query) Page {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	s.mu.RLock()
	recs := make([]*record, 0, len(s.byID))
	for _, rec := range s.byID {
		if q.Status == "" || rec.job.Status == q.Status {
			recs = append(recs, rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		ti, tj := recs[i].job.FinishedAt(), recs[j].job.FinishedAt()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return recs[i].seq > recs[j].seq
	})

	page := Page{Total: len(recs), Offset: q.Offset, Limit: q.Limit, Items: []capture.Job{}}
	if q.Offset >= len(recs) {
		return page
	}
	end := min(q.Offset+q.Limit, len(recs))
	for _, rec := range recs[q.Offset:end] {
		page.Items = append(page.Items, rec.job)
	}
	return page
}

// Delete removes the job and its output file.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	rec, ok := s.byID[id]
	if ok {
		delete(s.byID, id)
	}
	s.mu.Unlock()
	if !ok {
		return notFound(id)
	}
	s.removeArtifact(rec.job)
	return nil
}

// Clear drops every record and output file. It returns how many records
// were removed.
func (s *Store) Clear() int {
	s.mu.Lock()
	recs := s.byID
	s.byID = make(map[string]*record)
	s.mu.Unlock()

	for _, rec := range recs {
		s.removeArtifact(rec.job)
	}
	return len(recs)
}

func (s *Store) removeArtifact(job capture.Job) {
	if s.remover == nil || job.Result == nil || job.Result.FilePath == "" {
		return
	}
	if err := s.remover.Remove(job.Result.FilePath); err != nil {
		slog.Warn("history artifact removal failed", "id", job.ID, "path", job.Result.FilePath, "error", err)
	}
}

// Stats scans the store. Hosts lists distinct hosts, most recently
// captured first.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type seen struct {
		at  time.Time
		seq uint64
	}
	var st Stats
	hosts := make(map[string]seen)
	for _, rec := range s.byID {
		st.TotalJobs++
		switch rec.job.Status {
		case capture.StatusCompleted:
			st.Completed++
			if rec.job.Result != nil {
				st.TotalSizeBytes += rec.job.Result.FileSize
			}
		case capture.StatusFailed:
			st.Failed++
		}
		if h := rec.job.Host(); h != "" {
			at := rec.job.FinishedAt()
			if prev, ok := hosts[h]; !ok || at.After(prev.at) || (at.Equal(prev.at) && rec.seq > prev.seq) {
				hosts[h] = seen{at: at, seq: rec.seq}
			}
		}
	}
	st.UniqueHosts = len(hosts)
	st.Hosts = make([]string, 0, len(hosts))
	for h := range hosts {
		st.Hosts = append(st.Hosts, h)
	}
	sort.Slice(st.Hosts, func(i, j int) bool {
		a, b := hosts[st.Hosts[i]], hosts[st.Hosts[j]]
		if !a.at.Equal(b.at) {
			return a.at.After(b.at)
		}
		return a.seq > b.seq
	})
	if len(st.Hosts) > HostPreviewSize {
		st.Hosts = st.Hosts[:HostPreviewSize]
	}
	return st
}

func notFound(id string) error {
	return engine.NewError(engine.CodeNotFound, fmt.Sprintf("job not found: %s", id), nil)
}
