package activation

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/commons-systems/pdfmerger/internal/debug"
	"github.com/commons-systems/pdfmerger/internal/sanitize"
)

// SpoolExt marks a complete spool file.
const SpoolExt = ".paths"

// DefaultSpoolMaxAge is how old a spool file may be and still be ingested.
const DefaultSpoolMaxAge = 30 * time.Second

// Spool is a directory of path lists written by secondaries. It backs up
// the path channel: if the channel delivery fails the primary still finds
// the paths here.
type Spool struct {
	dir    string
	maxAge time.Duration
	now    func() time.Time
}

// NewSpool returns a spool rooted at dir. maxAge <= 0 selects
// DefaultSpoolMaxAge.
func NewSpool(dir string, maxAge time.Duration) *Spool {
	if maxAge <= 0 {
		maxAge = DefaultSpoolMaxAge
	}
	return &Spool{dir: dir, maxAge: maxAge, now: time.Now}
}

// Dir returns the spool directory.
func (s *Spool) Dir() string {
	return s.dir
}

// IsSpoolFile reports whether path names a complete spool file.
func IsSpoolFile(path string) bool {
	base := filepath.Base(path)
	return filepath.Ext(base) == SpoolExt && !strings.HasPrefix(base, ".")
}

// WritePaths stores paths as a new spool file and returns its name. The file
// appears atomically (write to a temp file, then rename). Returns "" when
// there is nothing to write.
func (s *Spool) WritePaths(paths []string) (string, error) {
	var buf bytes.Buffer
	for _, p := range paths {
		p = sanitize.Path(p)
		if p == "" || strings.ContainsAny(p, "\r\n") {
			continue
		}
		buf.WriteString(p)
		buf.WriteByte('\n')
	}
	if buf.Len() == 0 {
		return "", nil
	}

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create spool directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create spool temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write spool file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close spool file: %w", err)
	}

	final := filepath.Join(s.dir, uuid.NewString()+SpoolExt)
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to publish spool file: %w", err)
	}

	debug.Log("SPOOL_WRITTEN file=%s", final)
	return final, nil
}

// Consume claims the spool file at path, removes it and returns its paths.
// A file that is already gone (claimed by someone else) yields nil, nil.
func (s *Spool) Consume(path string) ([]string, error) {
	claimed := path + ".claim-" + uuid.NewString()
	if err := os.Rename(path, claimed); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim spool file: %w", err)
	}
	defer os.Remove(claimed)

	data, err := os.ReadFile(claimed)
	if err != nil {
		return nil, fmt.Errorf("failed to read spool file: %w", err)
	}

	var paths []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		if p := sanitize.Path(sc.Text()); p != "" {
			paths = append(paths, p)
		}
	}
	if err := sc.Err(); err != nil {
		return paths, fmt.Errorf("failed to parse spool file: %w", err)
	}

	debug.Log("SPOOL_CONSUMED file=%s count=%d", path, len(paths))
	return paths, nil
}

// Drain consumes every spool file younger than the max age, oldest first.
// Older files are deleted unread.
func (s *Spool) Drain() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read spool directory: %w", err)
	}

	type spoolFile struct {
		path string
		mod  time.Time
	}
	var files []spoolFile
	now := s.now()
	for _, e := range entries {
		if e.IsDir() || !IsSpoolFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		p := filepath.Join(s.dir, e.Name())
		if now.Sub(info.ModTime()) > s.maxAge {
			debug.Log("SPOOL_STALE_REMOVED file=%s age=%v", p, now.Sub(info.ModTime()))
			os.Remove(p)
			continue
		}
		files = append(files, spoolFile{path: p, mod: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod.Before(files[j].mod) })

	var out []string
	for _, f := range files {
		paths, err := s.Consume(f.path)
		if err != nil {
			debug.Log("SPOOL_CONSUME_ERROR file=%s error=%v", f.path, err)
		}
		out = append(out, paths...)
	}
	return out, nil
}
