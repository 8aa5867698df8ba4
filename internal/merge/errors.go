package merge

import (
	"errors"
	"fmt"
	"path/filepath"
)

var (
	// ErrTooFewInputs is returned when fewer than two inputs are given.
	ErrTooFewInputs = errors.New("select at least 2 PDF files to merge")

	// ErrOutputIsInput is returned when the output would overwrite an input.
	ErrOutputIsInput = errors.New("output file is one of the inputs")

	// ErrNoOutputDir is returned when no output directory is known.
	ErrNoOutputDir = errors.New("could not determine the output directory")
)

// InputError attributes a merge failure to one input file.
type InputError struct {
	Path string
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("Error in '%s': %v", filepath.Base(e.Path), e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// Message renders err as the single line shown to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ie *InputError
	if errors.As(err, &ie) {
		return ie.Error()
	}
	return err.Error()
}
