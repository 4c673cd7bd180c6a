package abbrev

import (
	"context"
	"log"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"scout/embeddings"
	"scout/ner"
	"scout/textnorm"
	"scout/types"
)

// ScoreWeights is the confidence model. The weights sum to 1.0; without a
// recognizer the NERClear share is unearnable, so degraded scans have a
// lower ceiling by construction.
type ScoreWeights struct {
	Definition float64 // an explicit definition pattern matched
	Frequency  float64 // occurrence count, log-scaled and capped
	Proximity  float64 // the definition sits at the first mention
	Uncommon   float64 // survived the common-word list
	NERClear   float64 // not part of a recognized person/location name
}

// DefaultScoreWeights are tuned so an explicitly defined abbreviation scores
// at least 0.80 from patterns alone.
var DefaultScoreWeights = ScoreWeights{
	Definition: 0.55,
	Frequency:  0.15,
	Proximity:  0.10,
	Uncommon:   0.15,
	NERClear:   0.05,
}

const (
	// SingletonThreshold: a form seen once with no definition survives only
	// if its surface pattern alone is this strong.
	SingletonThreshold = 0.85

	strongSurfaceStrength = 0.90
	weakSurfaceStrength   = 0.30

	frequencyCapDoublings = 3
)

// NoiseFilter is an optional, shared record of abbreviation forms already
// judged to be noise. Errors are advisory; the scorer never fails on them.
type NoiseFilter interface {
	Exists(form string) (bool, error)
	Add(form string) error
	Close() error
}

// Scorer turns a document's candidate sequence into deduplicated
// AbbreviationResults. Deduplication is by exact surface form: WHO and who
// stay distinct results on purpose.
type Scorer struct {
	Weights ScoreWeights

	// Recognizer, Embedder and Noise are optional capabilities. A nil value
	// is a configuration state, not an error; scoring degrades to
	// pattern+frequency signals.
	Recognizer ner.Recognizer
	Embedder   embeddings.Provider
	Noise      NoiseFilter
}

// NewScorer returns a scorer with default weights and no optional tiers.
func NewScorer() *Scorer {
	return &Scorer{Weights: DefaultScoreWeights}
}

type occurrence struct {
	offset     int
	definition string
	defWeight  float64
}

// Score groups candidates by surface form, hunts definitions in their
// context windows, applies the weighted confidence model and frequency
// filtering, and returns results keyed by surface form.
func (s *Scorer) Score(ctx context.Context, docID, text string, cands []Candidate) map[string]*types.AbbreviationResult {
	groups := make(map[string][]occurrence)
	for _, c := range cands {
		window := definitionWindow(text, c.Offset, c.Offset+len(c.Form))
		def, w := findDefinition(window, c.Form)
		groups[c.Form] = append(groups[c.Form], occurrence{offset: c.Offset, definition: def, defWeight: w})
	}

	suppressed := s.nameSpanForms(ctx, text)

	results := make(map[string]*types.AbbreviationResult, len(groups))
	for form, occs := range groups {
		if _, isName := suppressed[form]; isName {
			continue
		}

		sort.Slice(occs, func(i, j int) bool { return occs[i].offset < occs[j].offset })
		definition, defWeight := s.electDefinition(ctx, form, text, occs)

		// A listed common word is only believed to be an abbreviation when a
		// high-reliability definition pattern vouches for it (e.g. the WHO in
		// "World Health Organization (WHO)").
		if IsCommonWord(form) && defWeight < 0.9 {
			continue
		}

		// Singleton noise filter: one mention, no definitional context.
		if len(occs) == 1 && definition == "" {
			strength := weakSurfaceStrength
			if strongSurface(form) {
				strength = strongSurfaceStrength
			}
			if strength < SingletonThreshold || s.knownNoise(form) {
				s.recordNoise(form)
				continue
			}
		}

		results[form] = &types.AbbreviationResult{
			Abbreviation: form,
			Definition:   definition,
			Confidence:   s.confidence(occs, definition, defWeight, suppressed != nil),
			Count:        len(occs),
			Sources:      []string{docID},
		}
	}
	return results
}

// electDefinition picks the definition supported by the most occurrences,
// breaking ties by pattern weight and then by span length. With an
// embeddings provider configured
// and several disagreeing candidates, the vote is replaced by similarity
// ranking against the abbreviation.
func (s *Scorer) electDefinition(ctx context.Context, form, text string, occs []occurrence) (string, float64) {
	votes := make(map[string]int)
	weightOf := make(map[string]float64)
	for _, o := range occs {
		if o.definition == "" {
			continue
		}
		votes[o.definition]++
		if o.defWeight > weightOf[o.definition] {
			weightOf[o.definition] = o.defWeight
		}
	}

	// Last resort: first-letter expansion over the whole document.
	if len(votes) == 0 {
		if def := firstLetterMatch(text, strings.ReplaceAll(form, ".", "")); def != "" {
			return def, 0.6
		}
		return "", 0
	}

	candidates := make([]string, 0, len(votes))
	for def := range votes {
		candidates = append(candidates, def)
	}
	sort.Strings(candidates)

	if len(candidates) > 1 && s.Embedder != nil {
		if best := s.rerank(ctx, form, candidates); best != "" {
			return best, weightOf[best]
		}
	}

	// Vote first, then pattern weight, then span length: a clipped fragment
	// like "Health Organization" never beats the full expansion it came from.
	best := candidates[0]
	for _, def := range candidates[1:] {
		switch {
		case votes[def] != votes[best]:
			if votes[def] > votes[best] {
				best = def
			}
		case weightOf[def] != weightOf[best]:
			if weightOf[def] > weightOf[best] {
				best = def
			}
		case len(def) > len(best):
			best = def
		}
	}
	return best, weightOf[best]
}

// rerank orders disagreeing candidate definitions by embedding similarity to
// the abbreviation itself. Failure falls back to the frequency vote.
func (s *Scorer) rerank(ctx context.Context, form string, candidates []string) string {
	texts := append([]string{form}, candidates...)
	vecs, err := s.Embedder.EmbedTexts(ctx, texts)
	if err != nil || len(vecs) != len(texts) {
		log.Printf("Warning: definition re-rank unavailable for %s: %v", form, err)
		return ""
	}
	best, bestSim := "", float32(-2)
	for i, def := range candidates {
		if sim := embeddings.Cosine(vecs[0], vecs[i+1]); sim > bestSim {
			best, bestSim = def, sim
		}
	}
	return best
}

// confidence applies the weighted sum, capped at 1.0.
func (s *Scorer) confidence(occs []occurrence, definition string, defWeight float64, nerEnabled bool) float64 {
	w := s.Weights
	if w == (ScoreWeights{}) {
		w = DefaultScoreWeights
	}

	conf := w.Uncommon // survivors already cleared the common-word list
	if definition != "" {
		conf += w.Definition * defWeight
		if occs[0].definition != "" {
			conf += w.Proximity
		} else {
			conf += w.Proximity / 2
		}
	}

	doublings := math.Log2(float64(len(occs)))
	if doublings > frequencyCapDoublings {
		doublings = frequencyCapDoublings
	}
	conf += w.Frequency * doublings / frequencyCapDoublings

	if nerEnabled {
		conf += w.NERClear
	}

	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}

// nameSpanForms asks the optional recognizer for person/location spans and
// returns the abbreviation-shaped tokens inside them, so fragments of names
// are not reported as abbreviations. Returns nil when the filter is off.
func (s *Scorer) nameSpanForms(ctx context.Context, text string) map[string]struct{} {
	if s.Recognizer == nil {
		return nil
	}
	spans, err := s.Recognizer.Recognize(ctx, text)
	if err != nil {
		log.Printf("Warning: NER filter unavailable, scoring without it: %v", err)
		return nil
	}
	forms := make(map[string]struct{})
	for _, sp := range spans {
		if sp.Label != ner.LabelPerson && sp.Label != ner.LabelLocation {
			continue
		}
		for _, tok := range strings.Fields(sp.Text) {
			tok = strings.Trim(tok, ".,;:()")
			if len(tok) >= minFormLen && tok == strings.ToUpper(tok) {
				forms[tok] = struct{}{}
			}
		}
	}
	return forms
}

func (s *Scorer) knownNoise(form string) bool {
	if s.Noise == nil {
		return false
	}
	exists, err := s.Noise.Exists(form)
	if err != nil {
		log.Printf("Warning: noise filter check failed: %v", err)
		return false
	}
	return exists
}

func (s *Scorer) recordNoise(form string) {
	if s.Noise == nil {
		return
	}
	if err := s.Noise.Add(form); err != nil {
		log.Printf("Warning: noise filter add failed: %v", err)
	}
}

// Merge folds src into dst across a task's document set. Counts add up,
// sources union, the better-supported definition wins, and confidence never
// decreases.
func Merge(dst, src map[string]*types.AbbreviationResult) {
	for form, r := range src {
		cur, ok := dst[form]
		if !ok {
			cp := *r
			cp.Sources = append([]string(nil), r.Sources...)
			dst[form] = &cp
			continue
		}
		cur.Count += r.Count
		for _, doc := range r.Sources {
			if !containsString(cur.Sources, doc) {
				cur.Sources = append(cur.Sources, doc)
			}
		}
		if cur.Definition == "" || (r.Definition != "" && r.Confidence > cur.Confidence) {
			if r.Definition != "" {
				cur.Definition = r.Definition
			}
		}
		if r.Confidence > cur.Confidence {
			cur.Confidence = r.Confidence
		}
		// Extra corroboration nudges confidence up, capped.
		cur.Confidence = math.Min(1.0, cur.Confidence+0.02*float64(len(cur.Sources)-1))
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// --- definition heuristics ---

// definitionWindowRadius is wider than the candidate's display context so a
// long multi-word expansion next to the form is never cut off.
const definitionWindowRadius = 120

// definitionWindow slices text around one occurrence, widened to whole words
// so the definition patterns never see a truncated leading or trailing word.
func definitionWindow(text string, start, end int) string {
	lo := start - definitionWindowRadius
	if lo < 0 {
		lo = 0
	}
	hi := end + definitionWindowRadius
	if hi > len(text) {
		hi = len(text)
	}
	for lo > 0 && text[lo-1] != ' ' && text[lo-1] != '\n' {
		lo--
	}
	for hi < len(text) && text[hi] != ' ' && text[hi] != '\n' {
		hi++
	}
	return text[lo:hi]
}

// Pattern cache keyed by escaped form; scans run concurrently, so access is
// guarded.
var defPatternCache = struct {
	mu          sync.Mutex
	parenBefore map[string]*regexp.Regexp
	parenAfter  map[string]*regexp.Regexp
	colonDash   map[string]*regexp.Regexp
	standsFor   map[string]*regexp.Regexp
}{
	parenBefore: map[string]*regexp.Regexp{},
	parenAfter:  map[string]*regexp.Regexp{},
	colonDash:   map[string]*regexp.Regexp{},
	standsFor:   map[string]*regexp.Regexp{},
}

// findDefinition tries the ordered heuristic patterns inside one context
// window; the first match wins. The returned weight reflects how reliable
// the matched pattern is.
func findDefinition(window, form string) (string, float64) {
	esc := regexp.QuoteMeta(form)

	// "World Health Organization (WHO)"
	re := cached(defPatternCache.parenBefore, esc,
		`([A-Z][a-z]+(?:\s+(?:of|and|the|for)?\s*[A-Z][a-z]+){0,7})\s*\(`+esc+`\)`)
	if m := re.FindStringSubmatch(window); m != nil {
		if def := stripLeadingArticle(strings.TrimSpace(m[1])); plausibleDefinition(def) {
			return def, 1.0
		}
	}

	// "WHO (World Health Organization)"
	re = cached(defPatternCache.parenAfter, esc,
		esc+`\s*\(([A-Z][a-z]+(?:\s+[A-Z]?[a-z]+){0,7})\)`)
	if m := re.FindStringSubmatch(window); m != nil {
		if def := stripLeadingArticle(strings.TrimSpace(m[1])); plausibleDefinition(def) {
			return def, 1.0
		}
	}

	// "WHO stands for World Health Organization" / "short for" / "means"
	re = cached(defPatternCache.standsFor, esc,
		`(?i)`+esc+`\s+(?:stands for|short for|means)\s+([A-Z][^\n.]+?)(?:[\n.]|$)`)
	if m := re.FindStringSubmatch(window); m != nil {
		if def := clampWords(m[1], 10); plausibleDefinition(def) {
			return def, 0.95
		}
	}

	// "WHO: World Health Organization" / "WHO - ..."
	re = cached(defPatternCache.colonDash, esc,
		esc+`\s*[:\-—]\s*([A-Z][^\n.]+?)(?:[\n.]|$)`)
	if m := re.FindStringSubmatch(window); m != nil {
		if def := clampWords(m[1], 10); plausibleDefinition(def) {
			return def, 0.9
		}
	}

	return "", 0
}

func cached(cache map[string]*regexp.Regexp, key, pattern string) *regexp.Regexp {
	defPatternCache.mu.Lock()
	defer defPatternCache.mu.Unlock()
	if re, ok := cache[key]; ok {
		return re
	}
	re := regexp.MustCompile(pattern)
	cache[key] = re
	return re
}

// stripLeadingArticle drops an article the capture group absorbed, as in
// "The World Health Organization (WHO)".
func stripLeadingArticle(def string) string {
	for _, art := range []string{"The ", "An ", "A "} {
		if rest, ok := strings.CutPrefix(def, art); ok && rest != "" {
			return rest
		}
	}
	return def
}

func clampWords(s string, n int) string {
	words := strings.Fields(strings.TrimSpace(s))
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

// plausibleDefinition rejects section titles and fragments.
func plausibleDefinition(def string) bool {
	return len(def) > 3 && def != strings.ToUpper(def)
}

var capSequenceRe = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*`)

// firstLetterMatch looks for a capitalized word sequence whose initials
// spell the abbreviation, sentence by sentence. Inaccurate, so it is the
// last resort and carries a reduced weight.
func firstLetterMatch(text, letters string) string {
	if len(letters) < minFormLen {
		return ""
	}
	for _, sentence := range textnorm.Sentences(text) {
		for _, seq := range capSequenceRe.FindAllString(sentence, -1) {
			words := strings.Fields(seq)
			if len(words) < len(letters) {
				continue
			}
			for i := 0; i+len(letters) <= len(words); i++ {
				run := words[i : i+len(letters)]
				initials := make([]byte, len(run))
				for j, w := range run {
					initials[j] = w[0]
				}
				if string(initials) == letters {
					def := strings.Join(run, " ")
					if len(def) > len(letters)+2 {
						return def
					}
				}
			}
		}
	}
	return ""
}

// Stats summarizes a result set for reporting.
type Stats struct {
	Total              int     `json:"total"`
	WithDefinitions    int     `json:"with_definitions"`
	WithoutDefinitions int     `json:"without_definitions"`
	CoveragePercent    float64 `json:"coverage_percent"`
}

// Statistics computes coverage numbers over a result set.
func Statistics(results map[string]*types.AbbreviationResult) Stats {
	st := Stats{Total: len(results)}
	for _, r := range results {
		if r.Definition != "" {
			st.WithDefinitions++
		}
	}
	st.WithoutDefinitions = st.Total - st.WithDefinitions
	if st.Total > 0 {
		st.CoveragePercent = math.Round(float64(st.WithDefinitions)/float64(st.Total)*1000) / 10
	}
	return st
}

// Sorted returns results ordered by "alpha", "count" or "files".
func Sorted(results map[string]*types.AbbreviationResult, by string) []*types.AbbreviationResult {
	out := make([]*types.AbbreviationResult, 0, len(results))
	for _, r := range results {
		out = append(out, r)
	}
	switch by {
	case "count":
		sort.Slice(out, func(i, j int) bool {
			if out[i].Count != out[j].Count {
				return out[i].Count > out[j].Count
			}
			return out[i].Abbreviation < out[j].Abbreviation
		})
	case "files":
		sort.Slice(out, func(i, j int) bool {
			if len(out[i].Sources) != len(out[j].Sources) {
				return len(out[i].Sources) > len(out[j].Sources)
			}
			return out[i].Abbreviation < out[j].Abbreviation
		})
	default:
		sort.Slice(out, func(i, j int) bool { return out[i].Abbreviation < out[j].Abbreviation })
	}
	return out
}
