package abbrev

import (
	"context"
	"strings"
	"testing"

	"scout/ner"
)

type fakeRecognizer struct {
	spans []ner.Span
	err   error
}

func (f *fakeRecognizer) Recognize(_ context.Context, _ string) ([]ner.Span, error) {
	return f.spans, f.err
}

type fakeNoise struct {
	known map[string]bool
	added []string
	err   error
}

func (f *fakeNoise) Exists(form string) (bool, error) { return f.known[form], f.err }
func (f *fakeNoise) Add(form string) error {
	f.added = append(f.added, form)
	return f.err
}
func (f *fakeNoise) Close() error { return nil }

func scoreText(t *testing.T, s *Scorer, text string) map[string]float64 {
	t.Helper()
	d := NewDetector()
	results := s.Score(context.Background(), "doc1", text, d.Detect("doc1", text))
	confs := make(map[string]float64, len(results))
	for form, r := range results {
		confs[form] = r.Confidence
	}
	return confs
}

func TestExplicitlyDefinedAbbreviationScoresHigh(t *testing.T) {
	text := "The World Health Organization (WHO) leads the response. " +
		"WHO published guidance today. Partners rely on WHO for coordination."

	s := NewScorer()
	d := NewDetector()
	results := s.Score(context.Background(), "doc1", text, d.Detect("doc1", text))

	r, ok := results["WHO"]
	if !ok {
		t.Fatalf("WHO missing from results: %v", results)
	}
	if r.Definition != "World Health Organization" {
		t.Fatalf("definition = %q", r.Definition)
	}
	if r.Confidence < 0.8 {
		t.Fatalf("confidence = %.3f, want >= 0.8", r.Confidence)
	}
	if r.Count != 3 {
		t.Fatalf("count = %d, want 3", r.Count)
	}
	if len(r.Sources) != 1 || r.Sources[0] != "doc1" {
		t.Fatalf("sources = %v", r.Sources)
	}
}

func TestDefinitionDropsLeadingArticle(t *testing.T) {
	text := "The World Health Organization (WHO) announced new travel guidance."
	s := NewScorer()
	d := NewDetector()
	results := s.Score(context.Background(), "doc1", text, d.Detect("doc1", text))

	r, ok := results["WHO"]
	if !ok {
		t.Fatalf("WHO missing: %v", results)
	}
	if r.Definition != "World Health Organization" {
		t.Fatalf("definition = %q, article not stripped", r.Definition)
	}
}

func TestDistantMentionFragmentLosesElection(t *testing.T) {
	// The second mention sits far enough away that its window opens
	// mid-phrase; the clipped fragment it sees must not outvote the full
	// expansion from the first mention.
	text := "The World Health Organization (WHO) coordinates the response across every region and program area. " +
		"Field offices escalate unresolved cases to WHO weekly."
	s := NewScorer()
	d := NewDetector()
	results := s.Score(context.Background(), "doc1", text, d.Detect("doc1", text))

	r, ok := results["WHO"]
	if !ok {
		t.Fatalf("WHO missing: %v", results)
	}
	if r.Definition != "World Health Organization" {
		t.Fatalf("definition = %q, fragment won the election", r.Definition)
	}
	if r.Count != 2 {
		t.Fatalf("count = %d, want 2", r.Count)
	}
}

func TestCommonWordWithoutDefinitionIsDropped(t *testing.T) {
	// Shouty heading words are stopword-listed and carry no definition.
	confs := scoreText(t, NewScorer(), "INTRODUCTION AND SUMMARY follow below in this report.")
	for form := range confs {
		if IsCommonWord(form) {
			t.Fatalf("common word %q survived without a definition", form)
		}
	}
}

func TestWeakSingletonWithoutDefinitionIsDropped(t *testing.T) {
	confs := scoreText(t, NewScorer(), "We met the XQZV delegation during the morning session.")
	if _, ok := confs["XQZV"]; ok {
		t.Fatalf("weak singleton survived: %v", confs)
	}
}

func TestStrongSurfaceSingletonSurvives(t *testing.T) {
	confs := scoreText(t, NewScorer(), "Patients diagnosed with COVID-19 were isolated immediately.")
	if _, ok := confs["COVID-19"]; !ok {
		t.Fatalf("strong-surface singleton dropped: %v", confs)
	}
}

func TestParentheticalAfterFormDefines(t *testing.T) {
	text := "Reports from the CDC (Centers for Disease Control) arrived late."
	s := NewScorer()
	d := NewDetector()
	results := s.Score(context.Background(), "doc1", text, d.Detect("doc1", text))

	r, ok := results["CDC"]
	if !ok {
		t.Fatalf("CDC missing: %v", results)
	}
	if !strings.Contains(r.Definition, "Centers") {
		t.Fatalf("definition = %q", r.Definition)
	}
}

func TestRecognizerSuppressesNameFragments(t *testing.T) {
	text := "Delegate MARY JONES spoke first. The WHO (World Health Organization) responded."
	s := NewScorer()
	s.Recognizer = &fakeRecognizer{spans: []ner.Span{
		{Text: "MARY JONES", Label: ner.LabelPerson, Start: 9, End: 19},
	}}

	confs := scoreText(t, s, text)
	if _, ok := confs["MARY"]; ok {
		t.Fatalf("name fragment reported as abbreviation: %v", confs)
	}
	if _, ok := confs["JONES"]; ok {
		t.Fatalf("name fragment reported as abbreviation: %v", confs)
	}
	if _, ok := confs["WHO"]; !ok {
		t.Fatalf("WHO suppressed unexpectedly: %v", confs)
	}
}

func TestRecognizerFailureDegradesWithoutFailing(t *testing.T) {
	text := "The WHO (World Health Organization) responded quickly to it."
	s := NewScorer()
	s.Recognizer = &fakeRecognizer{err: context.DeadlineExceeded}

	confs := scoreText(t, s, text)
	if _, ok := confs["WHO"]; !ok {
		t.Fatalf("scan failed under recognizer outage: %v", confs)
	}
}

func TestNoiseFilterRecordsAndSuppressesSingletons(t *testing.T) {
	noise := &fakeNoise{known: map[string]bool{"COVID-19": true}}
	s := NewScorer()
	s.Noise = noise

	// Known noise: even a strong-surface singleton is dropped.
	confs := scoreText(t, s, "Patients diagnosed with COVID-19 were isolated immediately.")
	if _, ok := confs["COVID-19"]; ok {
		t.Fatalf("known noise survived: %v", confs)
	}

	// A weak dropped singleton is recorded for future scans.
	scoreText(t, s, "We met the XQZV delegation during the morning session.")
	found := false
	for _, f := range noise.added {
		if f == "XQZV" {
			found = true
		}
	}
	if !found {
		t.Fatalf("dropped singleton not recorded: %v", noise.added)
	}
}

func TestMergeAccumulatesAcrossDocuments(t *testing.T) {
	s := NewScorer()
	d := NewDetector()

	text1 := "The United Nations High Commissioner for Refugees (UNHCR) leads. UNHCR reported progress."
	text2 := "Staff at UNHCR confirmed the new numbers. UNHCR released a statement on it."

	dst := s.Score(context.Background(), "doc1", text1, d.Detect("doc1", text1))
	src := s.Score(context.Background(), "doc2", text2, d.Detect("doc2", text2))

	before := dst["UNHCR"].Confidence
	Merge(dst, src)

	r := dst["UNHCR"]
	if r.Count != 4 {
		t.Fatalf("merged count = %d, want 4", r.Count)
	}
	if len(r.Sources) != 2 {
		t.Fatalf("merged sources = %v", r.Sources)
	}
	if r.Definition != "United Nations High Commissioner for Refugees" {
		t.Fatalf("merge lost the definition: %q", r.Definition)
	}
	if r.Confidence < before {
		t.Fatalf("confidence decreased on merge: %.3f -> %.3f", before, r.Confidence)
	}
	if r.Confidence > 1.0 {
		t.Fatalf("confidence exceeds 1.0: %.3f", r.Confidence)
	}
}

func TestStatisticsCoverage(t *testing.T) {
	s := NewScorer()
	d := NewDetector()
	text := "The World Health Organization (WHO) leads. The CDC-19 team helps too."

	results := s.Score(context.Background(), "doc1", text, d.Detect("doc1", text))
	st := Statistics(results)

	if st.Total != st.WithDefinitions+st.WithoutDefinitions {
		t.Fatalf("inconsistent stats: %+v", st)
	}
	if st.Total > 0 && st.WithDefinitions == st.Total && st.CoveragePercent != 100.0 {
		t.Fatalf("coverage = %.1f, want 100.0", st.CoveragePercent)
	}
}

func TestSortedByCount(t *testing.T) {
	s := NewScorer()
	d := NewDetector()
	text := "The World Health Organization (WHO) leads. WHO reported. " +
		"The CDC (Centers for Disease Control) helps out as well."

	results := s.Score(context.Background(), "doc1", text, d.Detect("doc1", text))
	sorted := Sorted(results, "count")

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Count > sorted[i-1].Count {
			t.Fatalf("not sorted by count: %v then %v", sorted[i-1], sorted[i])
		}
	}
}
