package sanitize

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "/tmp/a.pdf", want: "/tmp/a.pdf"},
		{name: "surrounding whitespace", in: "  /tmp/a.pdf \r\n", want: "/tmp/a.pdf"},
		{name: "double quoted", in: `"/tmp/a b.pdf"`, want: "/tmp/a b.pdf"},
		{name: "single quoted", in: `'/tmp/a.pdf'`, want: "/tmp/a.pdf"},
		{name: "quotes and spaces mixed", in: ` " /tmp/a.pdf " `, want: "/tmp/a.pdf"},
		{name: "blank", in: "   ", want: ""},
		{name: "only quotes", in: `""`, want: ""},
		{name: "inner quote kept", in: `/tmp/it's.pdf`, want: `/tmp/it's.pdf`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Path(tt.in))
		})
	}
}

func TestFromURI(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix path layout")
	}

	p, ok := FromURI("file:///home/me/My%20Docs/a.pdf")
	assert.True(t, ok)
	assert.Equal(t, "/home/me/My Docs/a.pdf", p)

	_, ok = FromURI("/home/me/a.pdf")
	assert.False(t, ok)

	_, ok = FromURI("https://example.com/a.pdf")
	assert.False(t, ok)
}

func TestKey_SameFileDifferentSpelling(t *testing.T) {
	dir := t.TempDir()

	a := filepath.Join(dir, "x", "..", "caf\u00e9.pdf") // NFC
	b := filepath.Join(dir, "cafe\u0301.pdf")           // NFD

	assert.Equal(t, Key(a), Key(b))
	assert.NotEqual(t, Key(filepath.Join(dir, "a.pdf")), Key(filepath.Join(dir, "b.pdf")))
}

func TestKey_CaseHandling(t *testing.T) {
	dir := t.TempDir()
	upper := Key(filepath.Join(dir, "A.PDF"))
	lower := Key(filepath.Join(dir, "a.pdf"))

	if caseInsensitiveFS() {
		assert.Equal(t, upper, lower)
	} else {
		assert.NotEqual(t, upper, lower)
	}
}
