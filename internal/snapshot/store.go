package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/idna"

	"github.com/dgnsrekt/pagecapture/internal/engine"
)

const (
	maxNameLen   = 120
	maxCollision = 1000
)

var unsafeRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Artifact describes one image file written by the store.
type Artifact struct {
	Filename string `json:"filename"`
	Path     string `json:"file_path"`
	Size     int64  `json:"file_size"`
}

// Store manages capture output files in one directory.
type Store struct {
	dir string
}

// NewStore creates a Store and ensures the directory exists.
func NewStore(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("snapshot store: resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot store: mkdir %s: %w", abs, err)
	}
	return &Store{dir: abs}, nil
}

// Dir returns the absolute output directory.
func (s *Store) Dir() string { return s.dir }

// BaseName returns the file name, without extension, for a capture of rawURL
// at the given time. A non-empty custom name wins over the generated
// {host}_{YYYYMMDD_HHMMSS} form.
func BaseName(custom, rawURL string, at time.Time) string {
	if name := sanitize(stripImageExt(custom)); name != "" {
		return name
	}
	host := sanitize(hostOf(rawURL))
	if host == "" {
		host = "capture"
	}
	return host + "_" + at.Format("20060102_150405")
}

func hostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	return strings.ToLower(host)
}

func stripImageExt(name string) string {
	name = strings.TrimSpace(name)
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".webp":
		return strings.TrimSuffix(name, name[len(name)-len(ext):])
	}
	return name
}

func sanitize(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	name = unsafeRe.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._-")
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	return name
}

// Save writes data under base.ext. An existing file is never overwritten;
// collisions get _2, _3, ... suffixes.
func (s *Store) Save(base string, format engine.Format, data []byte) (Artifact, error) {
	if base = sanitize(base); base == "" {
		base = "capture"
	}
	for i := 1; i <= maxCollision; i++ {
		name := base
		if i > 1 {
			name += "_" + strconv.Itoa(i)
		}
		name += "." + format.Ext()
		path := filepath.Join(s.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return Artifact{}, engine.NewError(engine.CodeStorageFailure, "create output file", err)
		}
		n, werr := f.Write(data)
		cerr := f.Close()
		if werr == nil {
			werr = cerr
		}
		if werr != nil {
			_ = os.Remove(path)
			return Artifact{}, engine.NewError(engine.CodeStorageFailure, "write output file", werr)
		}
		return Artifact{Filename: name, Path: path, Size: int64(n)}, nil
	}
	return Artifact{}, engine.NewError(engine.CodeStorageFailure,
		fmt.Sprintf("too many files named %s.%s", base, format.Ext()), nil)
}

// contains reports whether path lies inside the store directory.
func (s *Store) contains(path string) bool {
	rel, err := filepath.Rel(s.dir, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)
}

// Read returns the bytes of a stored artifact.
func (s *Store) Read(path string) ([]byte, error) {
	if !s.contains(path) {
		return nil, engine.NewError(engine.CodeNotFound, "artifact outside output directory", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, engine.NewError(engine.CodeNotFound, fmt.Sprintf("artifact not found: %s", filepath.Base(path)), nil)
		}
		return nil, engine.NewError(engine.CodeStorageFailure, "read artifact", err)
	}
	return data, nil
}

// Remove deletes a stored artifact. A file that is already gone is not an
// error.
func (s *Store) Remove(path string) error {
	if path == "" {
		return nil
	}
	if !s.contains(path) {
		slog.Debug("snapshot cleanup skipped", "path", path, "reason", "outside output directory")
		return nil
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("snapshot image cleanup failed", "path", path, "error", err)
			return nil
		}
		return engine.NewError(engine.CodeStorageFailure, "remove artifact", err)
	}
	return nil
}
