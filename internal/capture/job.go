package capture

import (
	"net/url"
	"strings"
	"time"
)

// Status is a job lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ParseStatus accepts the three lifecycle states.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusCompleted, StatusFailed:
		return st, true
	}
	return "", false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Metadata describes a produced image.
type Metadata struct {
	Width          int      `json:"width"`
	Height         int      `json:"height"`
	Format         string   `json:"format"`
	SizeBytes      int64    `json:"size_bytes"`
	ElapsedMS      int64    `json:"elapsed_ms"`
	Browser        string   `json:"browser"`
	BrowserVersion string   `json:"browser_version,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// Result is attached to a completed job.
type Result struct {
	Filename string   `json:"filename"`
	FilePath string   `json:"file_path"`
	FileSize int64    `json:"file_size"`
	Format   string   `json:"format"`
	Metadata Metadata `json:"metadata"`
}

// Job is the tracked record of one capture.
type Job struct {
	ID          string     `json:"id"`
	Status      Status     `json:"status"`
	SubmittedAt time.Time  `json:"submitted_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	URL         string     `json:"url"`
	Browser     string     `json:"browser"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	FullPage    bool       `json:"full_page"`
	Result      *Result    `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	ErrorCode   string     `json:"error_code,omitempty"`
}

// Host returns the lower-cased host of the job URL.
func (j Job) Host() string {
	u, err := url.Parse(j.URL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// FinishedAt returns the completion time, or the submission time while pending.
func (j Job) FinishedAt() time.Time {
	if j.CompletedAt != nil {
		return *j.CompletedAt
	}
	return j.SubmittedAt
}
