// Package textnorm prepares raw extracted text for the extraction pipeline:
// cleanup, sentence segmentation and bounded truncation for expensive tiers.
package textnorm

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRe = regexp.MustCompile(`[ \t\r\f\v]+`)
	newlineRe    = regexp.MustCompile(`\n{2,}`)
	sentenceRe   = regexp.MustCompile(`[.!?]+\s+`)
)

const minSentenceLen = 10

// Clean collapses whitespace runs, strips control characters and applies
// NFKC normalization. Newlines are preserved so definition heuristics can
// stay line-scoped.
func Clean(text string) string {
	text = norm.NFKC.String(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r >= 32 || r == '\n' || r == '\t' {
			b.WriteRune(r)
		}
	}
	text = whitespaceRe.ReplaceAllString(b.String(), " ")
	text = newlineRe.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

// Sentences splits text on sentence boundaries, dropping fragments too short
// to carry context.
func Sentences(text string) []string {
	parts := sentenceRe.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if len(p) >= minSentenceLen {
			out = append(out, p)
		}
	}
	return out
}

// Truncate returns a rune-safe prefix of at most limit bytes. Oversized
// input for expensive tiers is cut from the start, never sampled.
func Truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// Window returns the text surrounding [start,end) widened by width bytes on
// each side, clamped to the document bounds.
func Window(text string, start, end, width int) string {
	lo := start - width
	if lo < 0 {
		lo = 0
	}
	hi := end + width
	if hi > len(text) {
		hi = len(text)
	}
	for lo > 0 && !utf8.RuneStart(text[lo]) {
		lo--
	}
	for hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi++
	}
	return strings.TrimSpace(text[lo:hi])
}
