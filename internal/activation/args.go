package activation

import (
	"path/filepath"
	"strings"

	"github.com/commons-systems/pdfmerger/internal/sanitize"
)

// NormalizeArgs turns launch arguments into paths.
//
// Each argument is usually one path. Two other shapes are accepted: a
// file:// URI (desktop file activation) and a single argument holding
// several quoted paths, e.g. `"a.pdf" "b.pdf"`.
//
// Relative paths are resolved against the working directory of the calling
// process, since the primary that ingests them runs elsewhere.
func NormalizeArgs(args []string) []string {
	var out []string
	for _, arg := range args {
		for _, tok := range splitQuoted(arg) {
			p := sanitize.Path(tok)
			if p == "" {
				continue
			}
			if local, ok := sanitize.FromURI(p); ok {
				p = local
			}
			if abs, err := filepath.Abs(p); err == nil {
				p = abs
			}
			out = append(out, p)
		}
	}
	return out
}

func splitQuoted(arg string) []string {
	s := strings.TrimSpace(arg)
	if !strings.HasPrefix(s, `"`) || strings.Count(s, `"`) <= 2 {
		return []string{s}
	}

	// Odd segments sit inside quotes; even segments are unquoted gaps.
	var toks []string
	for i, seg := range strings.Split(s, `"`) {
		if i%2 == 1 {
			toks = append(toks, seg)
			continue
		}
		toks = append(toks, strings.Fields(seg)...)
	}
	return toks
}
