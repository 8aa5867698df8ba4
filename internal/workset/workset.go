// Package workset holds the ordered list of PDFs queued for merging.
//
// A Set is owned by the UI and is not safe for concurrent use.
package workset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/commons-systems/pdfmerger/internal/debug"
	"github.com/commons-systems/pdfmerger/internal/sanitize"
)

const pdfExt = ".pdf"

var (
	// ErrEmpty is returned for a blank path.
	ErrEmpty = errors.New("empty path")
	// ErrNotPDF is returned for a path without a .pdf extension.
	ErrNotPDF = errors.New("not a PDF file")
	// ErrNotExist is returned for a path that is not an existing regular file.
	ErrNotExist = errors.New("file does not exist")
)

// Item is one queued PDF.
type Item struct {
	Path  string
	Name  string
	Pages int // 0 until counted
}

// Set is the working set: ordered, without duplicates.
type Set struct {
	items   []Item
	keys    map[string]struct{}
	baseDir string
}

// New returns an empty set.
func New() *Set {
	return &Set{keys: make(map[string]struct{})}
}

// Validate checks that path names an existing regular .pdf file and returns
// the cleaned path.
func Validate(path string) (string, error) {
	p := sanitize.Path(path)
	if p == "" {
		return "", ErrEmpty
	}
	if !strings.EqualFold(filepath.Ext(p), pdfExt) {
		return "", fmt.Errorf("%w: %s", ErrNotPDF, p)
	}
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrNotExist, p)
	}
	return p, nil
}

// Ingest adds every valid path that is not already present, in order, and
// returns the new items. Invalid and duplicate paths are skipped.
func (s *Set) Ingest(paths []string) []Item {
	var added []Item
	for _, raw := range paths {
		p, err := Validate(raw)
		if err != nil {
			debug.Log("WORKSET_SKIP_INVALID path=%q error=%v", raw, err)
			continue
		}
		key := sanitize.Key(p)
		if _, dup := s.keys[key]; dup {
			debug.Log("WORKSET_SKIP_DUPLICATE path=%s", p)
			continue
		}

		if s.baseDir == "" {
			s.baseDir = filepath.Dir(p)
		}
		item := Item{Path: p, Name: filepath.Base(p)}
		s.keys[key] = struct{}{}
		s.items = append(s.items, item)
		added = append(added, item)
		debug.Log("WORKSET_ADDED path=%s count=%d", p, len(s.items))
	}
	return added
}

// Len returns the number of items.
func (s *Set) Len() int {
	return len(s.items)
}

// Items returns a copy of the items in order.
func (s *Set) Items() []Item {
	return append([]Item(nil), s.items...)
}

// Paths returns the item paths in order.
func (s *Set) Paths() []string {
	out := make([]string, len(s.items))
	for i, it := range s.items {
		out[i] = it.Path
	}
	return out
}

// BaseDir is the output directory: the directory of the first file ever
// added unless set explicitly.
func (s *Set) BaseDir() string {
	return s.baseDir
}

// SetBaseDir overrides the output directory.
func (s *Set) SetBaseDir(dir string) {
	s.baseDir = dir
}

// SetPages records the page count for path. It reports false if path is not
// in the set (it may have been removed while counting).
func (s *Set) SetPages(path string, pages int) bool {
	for i := range s.items {
		if s.items[i].Path == path {
			s.items[i].Pages = pages
			return true
		}
	}
	return false
}

// Remove deletes the item at index i.
func (s *Set) Remove(i int) bool {
	if i < 0 || i >= len(s.items) {
		return false
	}
	delete(s.keys, sanitize.Key(s.items[i].Path))
	s.items = append(s.items[:i], s.items[i+1:]...)
	return true
}

// MoveUp swaps item i with its predecessor.
func (s *Set) MoveUp(i int) bool {
	if i <= 0 || i >= len(s.items) {
		return false
	}
	s.items[i-1], s.items[i] = s.items[i], s.items[i-1]
	return true
}

// MoveDown swaps item i with its successor.
func (s *Set) MoveDown(i int) bool {
	if i < 0 || i >= len(s.items)-1 {
		return false
	}
	s.items[i], s.items[i+1] = s.items[i+1], s.items[i]
	return true
}

// Clear removes every item. The output directory is kept.
func (s *Set) Clear() {
	s.items = nil
	s.keys = make(map[string]struct{})
}
