// Package channel carries file paths from secondary instances to the primary.
//
// Wire format: one connection carries one UTF-8 path terminated by '\n'.
// There is no framing beyond the newline and no response. Closing the
// connection without a newline also ends the message.
package channel

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/commons-systems/pdfmerger/internal/sanitize"
)

// DefaultMaxLineBytes bounds a single path message, excluding the newline.
const DefaultMaxLineBytes = 32 << 10

var (
	// ErrEmptyPath is returned for a message that is blank after cleaning.
	ErrEmptyPath = errors.New("empty path")
	// ErrLineTooLong is returned when a message exceeds the line limit.
	ErrLineTooLong = errors.New("path line too long")
	// ErrMalformed is returned for messages that are not a single UTF-8 line.
	ErrMalformed = errors.New("malformed path message")
)

// CleanPath strips whitespace and surrounding quotes, as the receiver does
// for every message.
func CleanPath(s string) string {
	return sanitize.Path(s)
}

// EncodePath writes path as one message.
func EncodePath(w io.Writer, path string) error {
	path = CleanPath(path)
	if path == "" {
		return ErrEmptyPath
	}
	if strings.ContainsAny(path, "\r\n\x00") || !utf8.ValidString(path) {
		return fmt.Errorf("%w: %q", ErrMalformed, path)
	}
	if _, err := io.WriteString(w, path+"\n"); err != nil {
		return fmt.Errorf("failed to write path: %w", err)
	}
	return nil
}

// DecodePath reads exactly one message from r and returns the cleaned path.
// maxBytes <= 0 selects DefaultMaxLineBytes.
func DecodePath(r io.Reader, maxBytes int) (string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxLineBytes
	}

	br := bufio.NewReader(io.LimitReader(r, int64(maxBytes)+1))
	line, err := br.ReadString('\n')
	terminated := strings.HasSuffix(line, "\n")
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		if !terminated && len(line) > maxBytes {
			return "", ErrLineTooLong
		}
		if line == "" {
			return "", ErrEmptyPath
		}
	default:
		return "", fmt.Errorf("failed to read path: %w", err)
	}

	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	if !utf8.ValidString(line) || strings.ContainsRune(line, 0) {
		return "", ErrMalformed
	}

	path := CleanPath(line)
	if path == "" {
		return "", ErrEmptyPath
	}
	return path, nil
}
