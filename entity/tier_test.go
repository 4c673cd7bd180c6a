package entity

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scout/types"
)

type fakeTier struct {
	name     string
	entities []types.Entity
	err      error
	calls    int
}

func (f *fakeTier) Name() string { return f.name }
func (f *fakeTier) Extract(_ context.Context, _ string) ([]types.Entity, error) {
	f.calls++
	return f.entities, f.err
}

const longEnough = "This document text is comfortably long enough to be worth extracting entities from."

func TestCoordinatorUsesFirstSucceedingTier(t *testing.T) {
	llm := &fakeTier{name: "llm", entities: []types.Entity{
		{Name: "Jane Smith", Kind: types.KindPerson, Role: "Director", Organization: "WHO", Country: "Kenya", Context: "ctx"},
	}}
	fallback := &fakeTier{name: "pattern", entities: []types.Entity{
		{Name: "Acme Corp", Kind: types.KindOrganization},
	}}

	c := NewCoordinator(NewValidator(Options{}), llm, fallback)
	ents, tier, err := c.Extract(context.Background(), longEnough)

	require.NoError(t, err)
	assert.Equal(t, types.TierLLM, tier)
	require.Len(t, ents, 1)
	assert.Equal(t, "Jane Smith", ents[0].Name)
	assert.Equal(t, types.TierLLM, ents[0].Tier)
	assert.Equal(t, 0, fallback.calls, "lower tier ran despite a successful higher tier")
}

func TestCoordinatorFallsBackOnTierError(t *testing.T) {
	llm := &fakeTier{name: "llm", err: &TierError{Tier: "llm", Reason: ReasonAuth, Err: errors.New("bad key")}}
	ner := &fakeTier{name: "ner", err: &TierError{Tier: "ner", Reason: ReasonUnavailable, Err: errors.New("no model")}}
	pattern := &fakeTier{name: "pattern", entities: []types.Entity{
		{Name: "Ministry of Health", Kind: types.KindOrganization, Context: "ctx"},
	}}

	c := NewCoordinator(NewValidator(Options{}), llm, ner, pattern)
	ents, tier, err := c.Extract(context.Background(), longEnough)

	require.NoError(t, err)
	assert.Equal(t, types.TierPattern, tier)
	require.Len(t, ents, 1)
	assert.Equal(t, types.TierPattern, ents[0].Tier)
	assert.Equal(t, 1, llm.calls)
	assert.Equal(t, 1, ner.calls)
}

func TestCoordinatorReturnsNothingWhenAllTiersFail(t *testing.T) {
	failing := &fakeTier{name: "llm", err: &TierError{Tier: "llm", Reason: ReasonNetwork, Err: errors.New("down")}}

	c := NewCoordinator(NewValidator(Options{}), failing)
	ents, tier, err := c.Extract(context.Background(), longEnough)

	require.NoError(t, err)
	assert.Empty(t, ents)
	assert.Empty(t, tier)
}

func TestCoordinatorSkipsShortDocuments(t *testing.T) {
	tier := &fakeTier{name: "pattern", entities: []types.Entity{
		{Name: "Kenya", Kind: types.KindLocation},
	}}

	c := NewCoordinator(NewValidator(Options{}), tier)
	ents, _, err := c.Extract(context.Background(), "Too short to bother.")

	require.NoError(t, err)
	assert.Empty(t, ents)
	assert.Equal(t, 0, tier.calls)
}

func TestCoordinatorSkipsNilTiers(t *testing.T) {
	pattern := &fakeTier{name: "pattern", entities: []types.Entity{
		{Name: "Kenya", Kind: types.KindLocation, Context: "ctx"},
	}}

	c := NewCoordinator(NewValidator(Options{}), nil, pattern)
	ents, tier, err := c.Extract(context.Background(), longEnough)

	require.NoError(t, err)
	assert.Equal(t, types.TierPattern, tier)
	require.Len(t, ents, 1)
}

func TestCoordinatorHonorsCancellation(t *testing.T) {
	tier := &fakeTier{name: "pattern"}
	c := NewCoordinator(NewValidator(Options{}), tier)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := c.Extract(ctx, longEnough)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestTierErrorWrapsCause(t *testing.T) {
	cause := errors.New("socket closed")
	err := &TierError{Tier: "llm", Reason: ReasonNetwork, Err: cause}

	assert.True(t, errors.Is(err, cause))
	assert.True(t, strings.Contains(err.Error(), "llm"))
	assert.True(t, strings.Contains(err.Error(), ReasonNetwork))
}
