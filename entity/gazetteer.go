package entity

import (
	"regexp"
	"strings"
)

// Static word lists the pattern tier and validator share. Kept small on
// purpose; the generative tier is the accuracy path, these keep the fallback
// honest.

var orgSuffixes = []string{
	"Inc", "LLC", "Ltd", "Corp", "Corporation", "Company", "Co",
	"Foundation", "Institute", "Association", "Organization",
	"Ministry", "Department", "Agency", "Authority", "Commission",
	"University", "College", "Hospital", "Center", "Centre",
}

// countries covers the locations the scans actually encounter.
var countries = map[string]struct{}{
	"Kenya": {}, "United States": {}, "USA": {}, "US": {},
	"United Kingdom": {}, "UK": {}, "Britain": {},
	"Canada": {}, "Australia": {}, "Germany": {}, "France": {}, "Italy": {},
	"Spain": {}, "China": {}, "Japan": {}, "India": {}, "Brazil": {},
	"Mexico": {}, "South Africa": {}, "Nigeria": {}, "Egypt": {},
	"Ethiopia": {}, "Ghana": {}, "Tanzania": {}, "Uganda": {}, "Rwanda": {},
	"Netherlands": {}, "Belgium": {}, "Switzerland": {}, "Sweden": {},
	"Norway": {}, "Denmark": {}, "Poland": {}, "Russia": {}, "Turkey": {},
	"Israel": {}, "Saudi Arabia": {}, "UAE": {}, "Singapore": {},
	"South Korea": {}, "Thailand": {}, "Indonesia": {}, "Malaysia": {},
	"Philippines": {}, "Vietnam": {}, "Argentina": {}, "Chile": {},
	"Colombia": {}, "Peru": {},
}

// nonPersonWords are tokens that disqualify a candidate person name.
var nonPersonWords = map[string]struct{}{
	"and": {}, "or": {}, "the": {}, "a": {}, "an": {}, "in": {}, "on": {},
	"at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "from": {},
	"by": {}, "about": {}, "as": {}, "into": {}, "through": {},
	"during": {}, "before": {}, "after": {}, "above": {}, "below": {},
	"between": {}, "under": {}, "again": {}, "further": {}, "then": {},
	"once": {}, "advocacy": {}, "education": {}, "capacity": {},
	"coordination": {}, "equity": {}, "governance": {}, "integration": {},
	"collaboration": {}, "sustainability": {}, "building": {},
	"strengthening": {},
}

// nonOrgWords are single words that never make an organization name on
// their own.
var nonOrgWords = map[string]struct{}{
	"equity": {}, "sustainability": {}, "advocacy": {}, "education": {},
	"coordination": {}, "governance": {}, "integration": {},
	"collaboration": {}, "capacity": {}, "building": {}, "strengthen": {},
	"ensure": {}, "promote": {}, "increase": {}, "improve": {},
	"prioritize": {}, "expand": {}, "secure": {}, "provide": {},
	"support": {}, "develop": {}, "implement": {}, "key": {},
	"national": {}, "regional": {}, "local": {}, "main": {},
	"primary": {}, "secondary": {}, "equityvision": {}, "kes": {},
}

// acronymDenylist holds short caps that read like organizations but are
// units, currencies or clinical terms.
var acronymDenylist = map[string]struct{}{
	"hpv": {}, "kes": {}, "pet": {}, "spect": {}, "mri": {}, "ct": {},
	"usd": {}, "eur": {}, "gbp": {},
}

// knownOrgAcronyms are short caps that really are organizations.
var knownOrgAcronyms = map[string]struct{}{
	"mtrh": {}, "ncceap": {}, "who": {}, "cdc": {}, "fda": {}, "nih": {},
	"un": {}, "eu": {},
}

var (
	rolePattern = regexp.MustCompile(`(?i)\b(?:Dr|Mr|Ms|Mrs|Prof|Professor|Director|Manager|Chief|President|` +
		`CEO|CFO|CTO|Chairman|Vice President|Secretary|Minister|Commissioner|` +
		`Executive|Officer|Coordinator|Head|Lead|Senior|Principal)\b`)

	orgSuffixPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(orgSuffixes, "|") + `)\b`)
)

// IsCountry reports whether name is in the country gazetteer, ignoring case.
func IsCountry(name string) bool {
	if _, ok := countries[name]; ok {
		return true
	}
	for c := range countries {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// CanonicalCountry returns the gazetteer spelling for name, or "" when it is
// not a known country.
func CanonicalCountry(name string) string {
	if _, ok := countries[name]; ok {
		return name
	}
	for c := range countries {
		if strings.EqualFold(c, name) {
			return c
		}
	}
	return ""
}
