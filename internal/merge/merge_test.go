package merge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestPDF writes a minimal PDF with the given number of blank pages.
func writeTestPDF(t *testing.T, path string, pages int) {
	t.Helper()

	var objs []string
	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	objs = append(objs, "<< /Type /Catalog /Pages 2 0 R >>")
	objs = append(objs, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))
	for i := 0; i < pages; i++ {
		objs = append(objs, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>")
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))
}

func TestPDFCPU_Merge(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.pdf")
	b := filepath.Join(dir, "b.pdf")
	writeTestPDF(t, a, 1)
	writeTestPDF(t, b, 2)

	eng := NewPDFCPU()
	out := filepath.Join(dir, "out", "merged.pdf")
	require.NoError(t, eng.Merge(context.Background(), []string{a, b}, out))

	n, err := eng.PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, api.ValidateFile(out, eng.conf()))

	// No temp files left next to the output.
	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPDFCPU_PageCount(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "three.pdf")
	writeTestPDF(t, p, 3)

	n, err := NewPDFCPU().PageCount(p)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPDFCPU_MergeErrors(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.pdf")
	writeTestPDF(t, a, 1)
	broken := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(broken, []byte("not a pdf"), 0600))
	eng := NewPDFCPU()
	ctx := context.Background()
	out := filepath.Join(dir, "out.pdf")

	err := eng.Merge(ctx, []string{a}, out)
	assert.ErrorIs(t, err, ErrTooFewInputs)

	err = eng.Merge(ctx, []string{a, filepath.Join(dir, "missing.pdf")}, out)
	var ie *InputError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "Error in 'missing.pdf': source file not found", Message(err))

	err = eng.Merge(ctx, []string{a, broken}, out)
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, broken, ie.Path)
	assert.True(t, strings.HasPrefix(Message(err), "Error in 'broken.pdf': "))

	err = eng.Merge(ctx, []string{a, broken}, a)
	assert.ErrorIs(t, err, ErrOutputIsInput)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "failed merges must not leave an output")
}

func TestPDFCPU_MergeCancelled(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.pdf")
	b := filepath.Join(dir, "b.pdf")
	writeTestPDF(t, a, 1)
	writeTestPDF(t, b, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewPDFCPU().Merge(ctx, []string{a, b}, filepath.Join(dir, "out.pdf"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveOutput(t *testing.T) {
	base := t.TempDir()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "blank", in: "  ", want: "merged.pdf"},
		{name: "no extension", in: "report", want: "report.pdf"},
		{name: "lower ext", in: "report.pdf", want: "report.pdf"},
		{name: "upper ext", in: "REPORT.PDF", want: "REPORT.PDF"},
		{name: "other ext", in: "report.v2", want: "report.v2.pdf"},
		{name: "trimmed", in: "  x  ", want: "x.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveOutput(base, tt.in)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(base, tt.want), got)
		})
	}

	_, err := ResolveOutput("", "x")
	assert.ErrorIs(t, err, ErrNoOutputDir)
}

func TestDefaultFileName(t *testing.T) {
	ts := time.Date(2024, 3, 9, 7, 5, 2, 0, time.UTC)
	assert.Equal(t, "merged_pdf_2024-03-09_07-05-02.pdf", DefaultFileName(ts))
}

func TestMessage(t *testing.T) {
	assert.Empty(t, Message(nil))
	assert.Equal(t, "boom", Message(errors.New("boom")))

	wrapped := fmt.Errorf("merge: %w", &InputError{Path: "/x/y.pdf", Err: errors.New("bad xref")})
	assert.Equal(t, "Error in 'y.pdf': bad xref", Message(wrapped))
}
