package entity

import (
	"context"
	"regexp"
	"strings"

	"scout/ner"
	"scout/textnorm"
	"scout/types"
)

// NERTier wraps a statistical recognizer and enriches its person spans with
// role, organization and country read from the surrounding text.
type NERTier struct {
	recognizer ner.Recognizer
}

// NewNERTier returns nil when no recognizer is configured, so the
// coordinator skips the tier cleanly.
func NewNERTier(r ner.Recognizer) *NERTier {
	if r == nil {
		return nil
	}
	return &NERTier{recognizer: r}
}

func (t *NERTier) Name() string { return string(types.TierNER) }

// Extract maps recognizer spans onto entities. Recognizer failure is an
// unavailability, not a scan failure.
func (t *NERTier) Extract(ctx context.Context, text string) ([]types.Entity, error) {
	spans, err := t.recognizer.Recognize(ctx, text)
	if err != nil {
		return nil, &TierError{Tier: t.Name(), Reason: ReasonUnavailable, Err: err}
	}

	var out []types.Entity
	for _, sp := range spans {
		win := textnorm.Window(text, sp.Start, sp.End, 50)
		switch sp.Label {
		case ner.LabelPerson:
			e := types.Entity{
				Name:       sp.Text,
				Kind:       types.KindPerson,
				Confidence: types.ConfidenceMedium,
				Context:    win,
			}
			t.attribute(&e, text, sp)
			out = append(out, e)
		case ner.LabelOrganization:
			out = append(out, types.Entity{
				Name:       sp.Text,
				Kind:       types.KindOrganization,
				Confidence: types.ConfidenceMedium,
				Context:    win,
			})
		case ner.LabelLocation:
			out = append(out, types.Entity{
				Name:       sp.Text,
				Kind:       types.KindLocation,
				Confidence: types.ConfidenceMedium,
				Context:    win,
			})
		}
	}
	return out, nil
}

// attributionWindow is how far around a person mention we look for a role,
// organization and country.
const attributionWindow = 100

// The (?i) stays scoped to the prepositions; the captured phrase must keep
// its capitalization or the group swallows whole lowercase clauses.
var affiliationRe = regexp.MustCompile(`\b(?i:at|of|from)\s+((?:[A-Z][\w&.-]*\s*){1,6})`)

// attribute fills Role, Organization and Country on a person entity from the
// text around its first mention.
func (t *NERTier) attribute(e *types.Entity, text string, sp ner.Span) {
	window := textnorm.Window(text, sp.Start, sp.End, attributionWindow)

	if m := rolePattern.FindString(window); m != "" {
		e.Role = strings.TrimSpace(m)
	}
	if org := findAffiliation(window); org != "" {
		e.Organization = org
	}
	for c, re := range countryRes {
		if re.MatchString(window) {
			e.Country = c
			break
		}
	}
	e.Context = window
}

// findAffiliation looks for "at/of/from <Capitalized Phrase>" and prefers a
// phrase containing an org suffix; otherwise any capitalized phrase after
// the preposition is accepted.
func findAffiliation(window string) string {
	var fallback string
	for _, m := range affiliationRe.FindAllStringSubmatch(window, -1) {
		phrase := strings.TrimSpace(m[1])
		if phrase == "" {
			continue
		}
		if orgSuffixPattern.MatchString(phrase) {
			return phrase
		}
		if fallback == "" && !IsCountry(phrase) {
			fallback = phrase
		}
	}
	return fallback
}

// Country word patterns are compiled once; attribution scans run on every
// worker concurrently and only read this map.
var countryRes = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp, len(countries))
	for c := range countries {
		m[c] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(c) + `\b`)
	}
	return m
}()
