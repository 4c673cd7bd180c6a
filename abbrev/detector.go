// Package abbrev finds abbreviation candidates in normalized text and scores
// them into deduplicated results with definitions and confidences.
package abbrev

import (
	"regexp"
	"sort"
	"strings"

	"scout/textnorm"
)

const (
	// DefaultContextWidth is the number of characters captured on each side
	// of a match.
	DefaultContextWidth = 50

	minFormLen = 2
	maxFormLen = 10
)

var (
	// Contiguous uppercase runs, digits allowed after the first letter (WHO, H2O).
	upperRunRe = regexp.MustCompile(`\b[A-Z][A-Z0-9]{1,9}\b`)
	// Dotted forms: letter-period repeated at least twice (U.S., e.g. a U.S.A. style token).
	dottedRe = regexp.MustCompile(`\b(?:[A-Za-z]\.){2,}`)
	// Hyphenated alphanumerics; segments checked separately for an uppercase run.
	hyphenRe = regexp.MustCompile(`\b[A-Za-z0-9]+(?:-[A-Za-z0-9]+)+\b`)
)

// Candidate is a raw, unscored match: a surface form plus where it was found
// and the text around it. Candidates are ephemeral; the scorer folds them
// into results.
type Candidate struct {
	Form    string
	DocID   string
	Offset  int
	Context string
}

// Detector scans normalized text for abbreviation-shaped tokens. It is purely
// syntactic; no entity recognition happens here.
type Detector struct {
	ContextWidth int
}

// NewDetector returns a detector with the default context width.
func NewDetector() *Detector {
	return &Detector{ContextWidth: DefaultContextWidth}
}

// Detect returns all candidates in text in offset order. Overlapping matches
// at the same offset resolve to the longest one. The returned slice is fresh
// on every call, so iteration is restartable.
func (d *Detector) Detect(docID, text string) []Candidate {
	width := d.ContextWidth
	if width <= 0 {
		width = DefaultContextWidth
	}

	// Longest match wins per start offset.
	byOffset := make(map[int]string)
	record := func(start int, form string) {
		if len(form) < minFormLen || len(form) > maxFormLen {
			return
		}
		if cur, ok := byOffset[start]; ok && len(cur) >= len(form) {
			return
		}
		byOffset[start] = form
	}

	for _, loc := range upperRunRe.FindAllStringIndex(text, -1) {
		record(loc[0], text[loc[0]:loc[1]])
	}
	for _, loc := range dottedRe.FindAllStringIndex(text, -1) {
		record(loc[0], strings.TrimSuffix(text[loc[0]:loc[1]], "."))
	}
	for _, loc := range hyphenRe.FindAllStringIndex(text, -1) {
		form := text[loc[0]:loc[1]]
		if hasUppercaseSegment(form) {
			record(loc[0], form)
		}
	}

	offsets := make([]int, 0, len(byOffset))
	for off := range byOffset {
		offsets = append(offsets, off)
	}
	sort.Ints(offsets)

	// Drop matches swallowed by a longer match starting earlier.
	out := make([]Candidate, 0, len(offsets))
	prevEnd := -1
	for _, off := range offsets {
		form := byOffset[off]
		if off < prevEnd {
			continue
		}
		prevEnd = off + len(form)
		out = append(out, Candidate{
			Form:    form,
			DocID:   docID,
			Offset:  off,
			Context: textnorm.Window(text, off, off+len(form), width),
		})
	}
	return out
}

// hasUppercaseSegment reports whether any hyphen-separated segment is an
// uppercase run of at least two characters (e.g. COVID-19, X-RAY).
func hasUppercaseSegment(form string) bool {
	for _, seg := range strings.Split(form, "-") {
		if len(seg) < 2 {
			continue
		}
		upper := true
		hasLetter := false
		for _, r := range seg {
			if r >= 'a' && r <= 'z' {
				upper = false
				break
			}
			if r >= 'A' && r <= 'Z' {
				hasLetter = true
			}
		}
		if upper && hasLetter {
			return true
		}
	}
	return false
}

// strongSurface reports whether the form alone is strong evidence of an
// abbreviation: dotted or hyphenated shapes, or letter-digit mixes like H2O.
func strongSurface(form string) bool {
	if strings.ContainsAny(form, ".-") {
		return true
	}
	hasDigit := false
	for _, r := range form {
		if r >= '0' && r <= '9' {
			hasDigit = true
			break
		}
	}
	return hasDigit
}
