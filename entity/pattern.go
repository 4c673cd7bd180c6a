package entity

import (
	"context"
	"strings"

	"scout/textnorm"
	"scout/types"
)

// PatternTier extracts entities with regex heuristics only. It is the floor
// of the tier stack: no network, no model files, always available.
type PatternTier struct{}

func NewPatternTier() *PatternTier { return &PatternTier{} }

func (t *PatternTier) Name() string { return string(types.TierPattern) }

// Extract finds organizations by suffix, countries by gazetteer and people
// by title adjacency. Pattern output carries LOW/MEDIUM confidence; the
// validator upgrades nothing the patterns could not justify.
func (t *PatternTier) Extract(_ context.Context, text string) ([]types.Entity, error) {
	var out []types.Entity
	out = append(out, t.organizations(text)...)
	out = append(out, t.countries(text)...)
	out = append(out, t.people(text)...)
	return out, nil
}

// organizations scans sentence by sentence for org suffixes and takes the
// phrase around the match.
func (t *PatternTier) organizations(text string) []types.Entity {
	var out []types.Entity
	for _, sentence := range strings.Split(text, ".") {
		for _, loc := range orgSuffixPattern.FindAllStringIndex(sentence, -1) {
			start := loc[0] - 50
			if start < 0 {
				start = 0
			}
			end := loc[1] + 20
			if end > len(sentence) {
				end = len(sentence)
			}
			words := strings.Fields(strings.TrimSpace(sentence[start:end]))
			if len(words) < 2 {
				continue
			}
			if len(words) > 5 {
				words = words[:5]
			}
			name := strings.Trim(strings.Join(words, " "), " •\t\n")
			out = append(out, types.Entity{
				Name:       name,
				Kind:       types.KindOrganization,
				Confidence: types.ConfidenceLow,
				Context:    strings.TrimSpace(sentence),
			})
		}
	}
	return out
}

// countries reports each gazetteer country at most once, with the context of
// its first mention.
func (t *PatternTier) countries(text string) []types.Entity {
	var out []types.Entity
	for country, re := range countryRes {
		loc := re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		out = append(out, types.Entity{
			Name:       country,
			Kind:       types.KindLocation,
			Confidence: types.ConfidenceMedium,
			Context:    textnorm.Window(text, loc[0], loc[1], 50),
		})
	}
	return out
}

// people looks for a title followed by two or three capitalized words.
func (t *PatternTier) people(text string) []types.Entity {
	var out []types.Entity
	for _, loc := range rolePattern.FindAllStringIndex(text, -1) {
		tail := text[loc[1]:]
		if len(tail) > 50 {
			tail = tail[:50]
		}

		var nameParts []string
		for _, word := range strings.Fields(tail) {
			if len(nameParts) == 3 {
				break
			}
			if word == "" || !startsUpper(word) || word == strings.ToUpper(word) {
				break
			}
			nameParts = append(nameParts, strings.Trim(word, ".,;:"))
		}
		if len(nameParts) < 2 {
			continue
		}

		name := strings.Join(nameParts, " ")
		role := strings.TrimSpace(text[loc[0]:loc[1]])
		out = append(out, types.Entity{
			Name:       name,
			Kind:       types.KindPerson,
			Confidence: types.ConfidenceLow,
			Role:       role,
			Context:    textnorm.Window(text, loc[0], loc[1], 100),
		})
	}
	return out
}

func startsUpper(word string) bool {
	return word != "" && word[0] >= 'A' && word[0] <= 'Z'
}
