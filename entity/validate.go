package entity

import (
	"sort"
	"strings"
	"unicode"

	"scout/types"
)

// Options controls validator output filtering.
type Options struct {
	// ExcludeLow drops LOW-confidence entities from the validated set.
	ExcludeLow bool
}

// Validator rejects implausible names, deduplicates mentions and assigns the
// final confidence tier. Validation is idempotent: running it on its own
// output changes nothing.
type Validator struct {
	opts Options
}

func NewValidator(opts Options) *Validator { return &Validator{opts: opts} }

// Validate filters, merges and grades the raw tier output. Output order is
// deterministic: by kind, then name.
func (v *Validator) Validate(raw []types.Entity) []types.Entity {
	merged := make(map[string]*types.Entity)

	for _, e := range raw {
		e.Name = strings.TrimSpace(strings.Trim(e.Name, " •\t\n"))
		if !v.accept(e) {
			continue
		}

		// Already-validated entities carry their mention counts forward, so
		// re-validating a validated set is a no-op.
		if e.Mentions == 0 {
			e.Mentions = 1
		}

		key := string(e.Kind) + "|" + normalizeName(e.Name)
		cur, ok := merged[key]
		if !ok {
			cp := e
			merged[key] = &cp
			continue
		}
		cur.Mentions += e.Mentions
		// A later mention can fill attribution gaps but never blank them.
		if cur.Role == "" {
			cur.Role = e.Role
		}
		if cur.Organization == "" {
			cur.Organization = e.Organization
		}
		if cur.Country == "" {
			cur.Country = e.Country
		}
		if cur.Context == "" {
			cur.Context = e.Context
		}
	}

	out := make([]types.Entity, 0, len(merged))
	for _, cur := range merged {
		e := v.grade(*cur)
		if v.opts.ExcludeLow && e.Confidence == types.ConfidenceLow {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// accept applies the per-kind rejection rules.
func (v *Validator) accept(e types.Entity) bool {
	if e.Name == "" || !hasLetter(e.Name) {
		return false
	}
	switch e.Kind {
	case types.KindPerson:
		return validPersonName(e.Name)
	case types.KindOrganization:
		return validOrganizationName(e.Name)
	case types.KindLocation:
		return validLocationName(e.Name)
	}
	return false
}

// grade assigns the confidence tier. Person confidence follows attribution
// completeness; organization and location confidence follows context
// strength.
func (v *Validator) grade(e types.Entity) types.Entity {
	switch e.Kind {
	case types.KindPerson:
		e.Completeness = e.CompletenessScore()
		strong := e.Mentions >= 2 || strings.TrimSpace(e.Context) != ""
		switch {
		case e.Completeness >= 0.75 && strong:
			e.Confidence = types.ConfidenceHigh
		case e.Completeness >= 0.50:
			e.Confidence = types.ConfidenceMedium
		default:
			e.Confidence = types.ConfidenceLow
		}
	default:
		if e.Mentions >= 2 || strings.TrimSpace(e.Context) != "" {
			e.Confidence = types.ConfidenceHigh
		} else {
			e.Confidence = types.ConfidenceMedium
		}
	}
	return e
}

// normalizeName is the dedup key: lowercased with whitespace collapsed.
func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// validPersonName wants at least two words, a leading capital, no digits or
// markup, and no disqualifying token.
func validPersonName(name string) bool {
	if len(name) < 3 {
		return false
	}
	words := strings.Fields(name)
	if len(words) < 2 {
		return false
	}
	for _, w := range words {
		if _, bad := nonPersonWords[strings.ToLower(w)]; bad {
			return false
		}
	}
	first := []rune(name)[0]
	if !unicode.IsUpper(first) {
		return false
	}
	return !strings.ContainsAny(name, "•0123456789@#$%^&*()[]{}")
}

// validOrganizationName rejects bullets, technical acronym pairs, denylisted
// short caps and names built only from generic words.
func validOrganizationName(name string) bool {
	if len(name) < 3 {
		return false
	}
	first := []rune(name)[0]
	if strings.ContainsRune("•●◦▪▫-–—", first) {
		return false
	}

	// PET/SPECT and the like are instrument pairs, not organizations.
	if parts := strings.Split(name, "/"); len(parts) == 2 {
		allShortCaps := true
		for _, p := range parts {
			if len(p) > 6 || p != strings.ToUpper(p) {
				allShortCaps = false
				break
			}
		}
		if allShortCaps {
			return false
		}
	}

	words := strings.Fields(name)
	if len(words) == 1 {
		lower := strings.ToLower(words[0])
		if _, bad := acronymDenylist[lower]; bad {
			return false
		}
		if _, bad := nonOrgWords[lower]; bad {
			return false
		}
		if len(words[0]) <= 4 && words[0] == strings.ToUpper(words[0]) {
			_, known := knownOrgAcronyms[lower]
			return known
		}
	}
	if len(words) <= 2 {
		generic := 0
		for _, w := range words {
			if _, bad := nonOrgWords[strings.ToLower(w)]; bad {
				generic++
			}
		}
		if generic >= len(words) {
			return false
		}
	}
	if words[0] == "the" || words[0] == "a" || words[0] == "an" {
		return false
	}
	return true
}

// validLocationName accepts gazetteer countries outright; other locations
// must be short and free of generic filler.
func validLocationName(name string) bool {
	if len(name) < 2 {
		return false
	}
	if IsCountry(name) {
		return true
	}
	words := strings.Fields(name)
	if len(words) > 3 {
		return false
	}
	for _, w := range words {
		switch strings.ToLower(w) {
		case "result", "key", "main", "primary":
			return false
		}
	}
	return true
}
