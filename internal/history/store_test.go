package history

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgnsrekt/pagecapture/internal/capture"
	"github.com/dgnsrekt/pagecapture/internal/engine"
	"github.com/dgnsrekt/pagecapture/internal/snapshot"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func finished(id string, status capture.Status, at time.Time, url string) capture.Job {
	done := at
	j := capture.Job{ID: id, Status: status, SubmittedAt: at.Add(-time.Second), CompletedAt: &done, URL: url}
	if status == capture.StatusCompleted {
		j.Result = &capture.Result{Filename: id + ".png", FileSize: 100}
	} else {
		j.Error = "boom"
	}
	return j
}

func TestAppendRejectsPendingAndDuplicates(t *testing.T) {
	s := NewStore(nil)
	if err := s.Append(capture.Job{ID: "a", Status: capture.StatusPending}); err == nil {
		t.Fatal("Append(pending) error = nil")
	}
	job := finished("a", capture.StatusCompleted, epoch, "https://a.com")
	if err := s.Append(job); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := s.Append(job); err == nil {
		t.Fatal("Append(duplicate) error = nil")
	}
}

func TestListNewestFirstAndFilter(t *testing.T) {
	s := NewStore(nil)
	_ = s.Append(finished("old", capture.StatusCompleted, epoch, "https://a.com"))
	_ = s.Append(finished("new", capture.StatusFailed, epoch.Add(time.Hour), "https://b.com"))
	_ = s.Append(finished("mid", capture.StatusCompleted, epoch.Add(time.Minute), "https://c.com"))

	page := s.List(Query{})
	if page.Total != 3 || page.Limit != DefaultLimit {
		t.Fatalf("List() total=%d limit=%d", page.Total, page.Limit)
	}
	got := []string{page.Items[0].ID, page.Items[1].ID, page.Items[2].ID}
	if got[0] != "new" || got[1] != "mid" || got[2] != "old" {
		t.Fatalf("List() order = %v; want new mid old", got)
	}

	page = s.List(Query{Status: capture.StatusCompleted})
	if page.Total != 2 || len(page.Items) != 2 {
		t.Fatalf("List(completed) total=%d items=%d; want 2", page.Total, len(page.Items))
	}
	if page := s.List(Query{Limit: 1000}); page.Limit != MaxLimit {
		t.Fatalf("List() limit = %d; want capped %d", page.Limit, MaxLimit)
	}
	if page := s.List(Query{Offset: 10}); page.Total != 3 || len(page.Items) != 0 {
		t.Fatalf("List(offset past end) = %+v", page)
	}
}

func TestPaginationInvariant(t *testing.T) {
	s := NewStore(nil)
	for i := 0; i < 37; i++ {
		status := capture.StatusCompleted
		if i%3 == 0 {
			status = capture.StatusFailed
		}
		// Shared timestamps exercise the insertion-order tie break.
		_ = s.Append(finished(fmt.Sprintf("job-%02d", i), status, epoch.Add(time.Duration(i/5)*time.Second), "https://x.com"))
	}

	for _, filter := range []capture.Status{"", capture.StatusCompleted, capture.StatusFailed} {
		for _, limit := range []int{1, 4, 7, 50} {
			seen := make(map[string]bool)
			total := s.List(Query{Status: filter, Limit: limit}).Total
			count := 0
			for off := 0; off < total; off += limit {
				page := s.List(Query{Status: filter, Offset: off, Limit: limit})
				for _, j := range page.Items {
					if seen[j.ID] {
						t.Fatalf("filter=%q limit=%d: %s on two pages", filter, limit, j.ID)
					}
					seen[j.ID] = true
					count++
				}
			}
			if count != total {
				t.Fatalf("filter=%q limit=%d: paged %d items; total %d", filter, limit, count, total)
			}
		}
	}
}

func TestDeleteRemovesRecordAndFile(t *testing.T) {
	store, err := snapshot.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("snapshot.NewStore() error = %v", err)
	}
	a, err := store.Save("x", engine.FormatPNG, []byte("png"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	s := NewStore(store)
	job := finished("a", capture.StatusCompleted, epoch, "https://a.com")
	job.Result.FilePath = a.Path
	_ = s.Append(job)

	if err := s.Delete("a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(a.Path); !os.IsNotExist(err) {
		t.Fatalf("artifact still present: %v", err)
	}
	if _, err := s.Get("a"); !engine.IsCode(err, engine.CodeNotFound) {
		t.Fatalf("Get() after Delete() error = %v; want %s", err, engine.CodeNotFound)
	}
	if err := s.Delete("a"); !engine.IsCode(err, engine.CodeNotFound) {
		t.Fatalf("Delete(unknown) error = %v; want %s", err, engine.CodeNotFound)
	}
}

func TestDeleteMissingFileIsNotError(t *testing.T) {
	store, err := snapshot.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("snapshot.NewStore() error = %v", err)
	}
	s := NewStore(store)
	job := finished("a", capture.StatusCompleted, epoch, "https://a.com")
	job.Result.FilePath = filepath.Join(store.Dir(), "already-gone.png")
	_ = s.Append(job)
	if err := s.Delete("a"); err != nil {
		t.Fatalf("Delete() error = %v; want nil", err)
	}
}

func TestClear(t *testing.T) {
	s := NewStore(nil)
	_ = s.Append(finished("a", capture.StatusCompleted, epoch, "https://a.com"))
	_ = s.Append(finished("b", capture.StatusFailed, epoch, "https://b.com"))
	if n := s.Clear(); n != 2 {
		t.Fatalf("Clear() = %d; want 2", n)
	}
	if page := s.List(Query{}); page.Total != 0 {
		t.Fatalf("List() after Clear() total = %d", page.Total)
	}
}

func TestStats(t *testing.T) {
	s := NewStore(nil)
	for i := 0; i < 12; i++ {
		_ = s.Append(finished(fmt.Sprintf("c%d", i), capture.StatusCompleted, epoch.Add(time.Duration(i)*time.Minute), fmt.Sprintf("https://host%02d.com/page", i)))
	}
	_ = s.Append(finished("f1", capture.StatusFailed, epoch.Add(time.Hour), "https://HOST00.com/other"))

	st := s.Stats()
	if st.TotalJobs != 13 || st.Completed != 12 || st.Failed != 1 {
		t.Fatalf("Stats() counts = %+v", st)
	}
	if st.TotalSizeBytes != 1200 {
		t.Fatalf("TotalSizeBytes = %d; want 1200", st.TotalSizeBytes)
	}
	if st.UniqueHosts != 12 || len(st.Hosts) != HostPreviewSize {
		t.Fatalf("hosts = %d %v; want 12 unique, %d previewed", st.UniqueHosts, st.Hosts, HostPreviewSize)
	}
	if st.Hosts[0] != "host00.com" || st.Hosts[1] != "host11.com" || st.Hosts[9] != "host03.com" {
		t.Fatalf("Hosts = %v; want most recent first, host00.com then host11.com", st.Hosts)
	}
}
