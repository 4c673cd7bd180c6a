// Package entity extracts people, organizations and locations from document
// text through tiered extraction: a generative model when credentials exist,
// a local statistical recognizer when one is loaded, and pattern matching as
// the floor that is always available.
package entity

import (
	"context"
	"fmt"
	"log"

	"scout/types"
)

// MinDocumentLength is the shortest text worth extracting from. Anything
// below it returns no entities from any tier.
const MinDocumentLength = 50

// Failure reasons a tier reports so the coordinator can decide whether the
// next tier is worth trying.
const (
	ReasonAuth        = "auth"
	ReasonQuota       = "quota"
	ReasonNetwork     = "network"
	ReasonMalformed   = "malformed_response"
	ReasonUnavailable = "unavailable"
)

// TierError is a tier failure with a classified reason. Tier failures are
// expected operational conditions, never scan failures.
type TierError struct {
	Tier   string
	Reason string
	Err    error
}

func (e *TierError) Error() string {
	return fmt.Sprintf("%s tier failed (%s): %v", e.Tier, e.Reason, e.Err)
}

func (e *TierError) Unwrap() error { return e.Err }

// Tier is one extraction strategy. Extract returns raw entities; validation
// and deduplication happen afterwards in the validator.
type Tier interface {
	Name() string
	Extract(ctx context.Context, text string) ([]types.Entity, error)
}

// Coordinator runs tiers in descending accuracy order and keeps the first
// one that produces output. Exactly one tier's entities are reported per
// document.
type Coordinator struct {
	tiers     []Tier
	validator *Validator
}

// NewCoordinator orders the given tiers as passed; nil tiers are skipped so
// callers can wire optional tiers unconditionally.
func NewCoordinator(validator *Validator, tiers ...Tier) *Coordinator {
	if validator == nil {
		validator = NewValidator(Options{})
	}
	kept := make([]Tier, 0, len(tiers))
	for _, t := range tiers {
		if t != nil {
			kept = append(kept, t)
		}
	}
	return &Coordinator{tiers: kept, validator: validator}
}

// Extract returns the validated entities of the first tier that succeeds,
// plus that tier's name. Tier failures log a warning and fall through; if
// every tier fails the document simply has no entities.
func (c *Coordinator) Extract(ctx context.Context, text string) ([]types.Entity, types.ExtractionTier, error) {
	if len(text) < MinDocumentLength {
		return nil, "", nil
	}

	for _, tier := range c.tiers {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		ents, err := tier.Extract(ctx, text)
		if err != nil {
			log.Printf("Warning: %s entity tier unavailable, falling back: %v", tier.Name(), err)
			continue
		}
		tagged := make([]types.Entity, len(ents))
		for i, e := range ents {
			e.Tier = types.ExtractionTier(tier.Name())
			tagged[i] = e
		}
		return c.validator.Validate(tagged), types.ExtractionTier(tier.Name()), nil
	}
	return nil, "", nil
}
