// Package merge combines PDF files through pdfcpu.
package merge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/commons-systems/pdfmerger/internal/debug"
	"github.com/commons-systems/pdfmerger/internal/sanitize"
)

// DefaultName is used when the user leaves the output name blank.
const DefaultName = "merged"

// Engine merges inputs, in order, into output.
type Engine interface {
	Merge(ctx context.Context, inputs []string, output string) error
	PageCount(path string) (int, error)
}

// PDFCPU is the Engine backed by pdfcpu.
type PDFCPU struct{}

var disableConfigOnce sync.Once

// NewPDFCPU returns the pdfcpu engine. pdfcpu's on-disk config directory is
// disabled; the built-in defaults are used.
func NewPDFCPU() *PDFCPU {
	disableConfigOnce.Do(api.DisableConfigDir)
	return &PDFCPU{}
}

func (p *PDFCPU) conf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Merge validates every input and writes the merged document to output.
// The output appears atomically: pdfcpu writes a temp file next to it which
// is renamed on success.
func (p *PDFCPU) Merge(ctx context.Context, inputs []string, output string) error {
	if len(inputs) < 2 {
		return ErrTooFewInputs
	}

	outKey := sanitize.Key(output)
	for _, in := range inputs {
		if sanitize.Key(in) == outKey {
			return fmt.Errorf("%w: %s", ErrOutputIsInput, filepath.Base(output))
		}
	}

	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		info, err := os.Stat(in)
		if err != nil || !info.Mode().IsRegular() {
			return &InputError{Path: in, Err: errors.New("source file not found")}
		}
		if err := api.ValidateFile(in, p.conf()); err != nil {
			return &InputError{Path: in, Err: err}
		}
	}

	dir := filepath.Dir(output)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".pdfmerger-*.pdf")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	tmpName := tmp.Name()
	tmp.Close()

	start := time.Now()
	if err := api.MergeCreateFile(inputs, tmpName, false, p.conf()); err != nil {
		os.Remove(tmpName)
		debug.Log("MERGE_FAILED inputs=%d output=%s error=%v", len(inputs), output, err)
		return fmt.Errorf("failed to merge PDFs: %w", err)
	}
	if err := os.Rename(tmpName, output); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write output file: %w", err)
	}

	debug.Log("MERGE_DONE inputs=%d output=%s elapsed=%v", len(inputs), output, time.Since(start))
	return nil
}

// PageCount returns the number of pages in path.
func (p *PDFCPU) PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, &InputError{Path: path, Err: err}
	}
	return n, nil
}

// ResolveOutput joins baseDir and the user-supplied name. A blank name
// becomes DefaultName and ".pdf" is appended unless already present.
func ResolveOutput(baseDir, name string) (string, error) {
	if strings.TrimSpace(baseDir) == "" {
		return "", ErrNoOutputDir
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		name += ".pdf"
	}
	return filepath.Join(baseDir, name), nil
}

// DefaultFileName returns a timestamped output name.
func DefaultFileName(now time.Time) string {
	return "merged_pdf_" + now.Format("2006-01-02_15-04-05") + ".pdf"
}
