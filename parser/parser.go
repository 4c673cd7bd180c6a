// Package parser is the boundary to document readers. The scan pipeline only
// needs plain text and a title; how a format becomes text is a collaborator
// concern behind the Parser interface.
package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"scout/types"
)

// Parser turns a document reference into plain text plus a display title.
type Parser interface {
	Parse(ref types.DocumentRef) (text, title string, err error)
}

// ParseError is a per-document parse failure. It never aborts the task; the
// orchestrator records it and moves on.
type ParseError struct {
	DocID string
	Path  string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s (%s): %v", e.DocID, e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// TextParser reads UTF-8 text files. It is the reference implementation;
// richer formats plug in behind the same interface.
type TextParser struct {
	// MaxBytes caps how much of a file is read. Zero means 10 MiB.
	MaxBytes int64
}

const defaultMaxBytes = 10 << 20

// Parse reads the file and uses the base filename without extension as the
// title.
func (p *TextParser) Parse(ref types.DocumentRef) (string, string, error) {
	maxBytes := p.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}

	info, err := os.Stat(ref.Path)
	if err != nil {
		return "", "", &ParseError{DocID: ref.ID, Path: ref.Path, Err: err}
	}
	if info.IsDir() {
		return "", "", &ParseError{DocID: ref.ID, Path: ref.Path, Err: fmt.Errorf("is a directory")}
	}
	if info.Size() > maxBytes {
		return "", "", &ParseError{DocID: ref.ID, Path: ref.Path, Err: fmt.Errorf("file too large: %d bytes", info.Size())}
	}

	data, err := os.ReadFile(ref.Path)
	if err != nil {
		return "", "", &ParseError{DocID: ref.ID, Path: ref.Path, Err: err}
	}
	if !utf8.Valid(data) {
		return "", "", &ParseError{DocID: ref.ID, Path: ref.Path, Err: fmt.Errorf("not valid UTF-8 text")}
	}

	base := filepath.Base(ref.Path)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	return string(data), title, nil
}
