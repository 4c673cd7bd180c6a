package entity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scout/types"
)

func extractPattern(t *testing.T, text string) []types.Entity {
	t.Helper()
	ents, err := NewPatternTier().Extract(context.Background(), text)
	require.NoError(t, err)
	return ents
}

func findKind(ents []types.Entity, kind types.EntityKind) []types.Entity {
	var out []types.Entity
	for _, e := range ents {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func TestPatternTierFindsOrganizationsBySuffix(t *testing.T) {
	ents := extractPattern(t, "Funded by the Health Ministry. No other sponsor stepped up.")

	orgs := findKind(ents, types.KindOrganization)
	require.NotEmpty(t, orgs)
	assert.Contains(t, orgs[0].Name, "Ministry")
	assert.Equal(t, types.ConfidenceLow, orgs[0].Confidence)
	assert.NotEmpty(t, orgs[0].Context)
}

func TestPatternTierReportsEachCountryOnce(t *testing.T) {
	ents := extractPattern(t, "Programs run in Kenya and Uganda. Kenya remains the largest site.")

	locs := findKind(ents, types.KindLocation)
	names := map[string]int{}
	for _, e := range locs {
		names[e.Name]++
		assert.Equal(t, types.ConfidenceMedium, e.Confidence)
	}
	assert.Equal(t, 1, names["Kenya"])
	assert.Equal(t, 1, names["Uganda"])
}

func TestPatternTierFindsPeopleAfterTitles(t *testing.T) {
	ents := extractPattern(t, "Director Jane Smith announced the results yesterday.")

	people := findKind(ents, types.KindPerson)
	require.Len(t, people, 1)
	assert.Equal(t, "Jane Smith", people[0].Name)
	assert.Equal(t, "Director", people[0].Role)
	assert.Equal(t, types.ConfidenceLow, people[0].Confidence)
}

func TestPatternTierIgnoresSingleWordAfterTitle(t *testing.T) {
	ents := extractPattern(t, "Director Jane announced the results yesterday.")
	assert.Empty(t, findKind(ents, types.KindPerson))
}

func TestPatternTierStopsNameAtAllCapsWord(t *testing.T) {
	ents := extractPattern(t, "Director Jane WHO Smith announced the results.")
	assert.Empty(t, findKind(ents, types.KindPerson))
}
