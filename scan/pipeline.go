// Package scan runs scan tasks: a worker pool drains a task queue, and each
// task walks its documents through the extraction pipeline sequentially.
package scan

import (
	"context"
	"fmt"

	"scout/abbrev"
	"scout/entity"
	"scout/parser"
	"scout/textnorm"
	"scout/types"
)

// Pipeline is the per-document extraction flow shared by all workers. All
// fields are read-only after construction.
type Pipeline struct {
	Parser   parser.Parser
	Detector *abbrev.Detector
	Scorer   *abbrev.Scorer
	Entities *entity.Coordinator
}

// NewPipeline wires the default flow around the given collaborators.
func NewPipeline(p parser.Parser, scorer *abbrev.Scorer, coord *entity.Coordinator) *Pipeline {
	return &Pipeline{
		Parser:   p,
		Detector: abbrev.NewDetector(),
		Scorer:   scorer,
		Entities: coord,
	}
}

// ProcessDocument runs one document end to end. A returned error names the
// stage that failed; the caller records it and continues with the next
// document.
func (p *Pipeline) ProcessDocument(ctx context.Context, ref types.DocumentRef) (*types.DocumentResult, error) {
	raw, title, err := p.Parser.Parse(ref)
	if err != nil {
		return nil, stageError("parse", err)
	}

	text := textnorm.Clean(raw)
	result := &types.DocumentResult{
		DocID:         ref.ID,
		Title:         title,
		Abbreviations: map[string]*types.AbbreviationResult{},
	}
	if text == "" {
		return result, nil
	}

	cands := p.Detector.Detect(ref.ID, text)
	result.Abbreviations = p.Scorer.Score(ctx, ref.ID, text, cands)

	ents, tier, err := p.Entities.Extract(ctx, text)
	if err != nil {
		// Only context cancellation escapes the coordinator.
		return nil, stageError("entities", err)
	}
	result.Entities = ents
	result.Tier = tier

	return result, nil
}

type stagedError struct {
	stage string
	err   error
}

func (e *stagedError) Error() string { return fmt.Sprintf("%s: %v", e.stage, e.err) }
func (e *stagedError) Unwrap() error { return e.err }

func stageError(stage string, err error) error {
	return &stagedError{stage: stage, err: err}
}

// stageOf extracts the pipeline stage from an error for DocumentError
// reporting.
func stageOf(err error) string {
	if se, ok := err.(*stagedError); ok {
		return se.stage
	}
	return "scan"
}
