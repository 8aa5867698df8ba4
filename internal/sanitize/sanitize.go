// Package sanitize normalizes file paths that arrive from activation arguments,
// the path channel and the spool.
package sanitize

import (
	"net/url"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const quoteChars = "\"'"

// Path strips surrounding whitespace and quote characters from a raw path token.
// Returns "" for blank input.
func Path(raw string) string {
	s := strings.TrimSpace(raw)
	for {
		trimmed := strings.TrimSpace(strings.Trim(s, quoteChars))
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}

// FromURI converts a file:// URI to a local path. ok is false when raw is not a
// file URI.
func FromURI(raw string) (path string, ok bool) {
	if !strings.HasPrefix(strings.ToLower(raw), "file://") {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "", false
	}
	p := u.Path
	if runtime.GOOS == "windows" {
		// file:///C:/dir/a.pdf parses to /C:/dir/a.pdf
		if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
			p = p[1:]
		}
		if u.Host != "" && u.Host != "localhost" {
			p = `\\` + u.Host + p
		}
	}
	return filepath.FromSlash(p), true
}

// Key returns the identity used to detect duplicate paths. Two spellings of
// the same file (relative vs. absolute, NFD vs. NFC, letter case on
// case-insensitive platforms) map to the same key.
func Key(path string) string {
	p := filepath.Clean(path)
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	p = norm.NFC.String(p)
	if caseInsensitiveFS() {
		p = folder.String(p)
	}
	return p
}

var folder = cases.Fold()

func caseInsensitiveFS() bool {
	return runtime.GOOS == "windows" || runtime.GOOS == "darwin"
}
