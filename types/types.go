package types

import "time"

// EntityKind classifies an extracted entity.
type EntityKind string

const (
	KindPerson       EntityKind = "person"
	KindOrganization EntityKind = "organization"
	KindLocation     EntityKind = "location"
)

// ConfidenceTier is the reliability classification of a result.
type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "high"   // complete info with strong context
	ConfidenceMedium ConfidenceTier = "medium" // partial info or weak context
	ConfidenceLow    ConfidenceTier = "low"    // incomplete or uncertain
)

// ExtractionTier records which strategy produced an entity.
type ExtractionTier string

const (
	TierPattern ExtractionTier = "pattern"
	TierNER     ExtractionTier = "ner"
	TierLLM     ExtractionTier = "llm"
)

// Entity is a validated extraction result. Role, Organization, Country and
// Completeness are only populated for person entities.
type Entity struct {
	Name         string         `json:"name"`
	Kind         EntityKind     `json:"kind"`
	Confidence   ConfidenceTier `json:"confidence"`
	Context      string         `json:"context,omitempty"`
	Tier         ExtractionTier `json:"tier"`
	Role         string         `json:"role,omitempty"`
	Organization string         `json:"organization,omitempty"`
	Country      string         `json:"country,omitempty"`
	Completeness float64        `json:"completeness,omitempty"`
	Mentions     int            `json:"mentions"`
}

// CompletenessScore returns the populated-field fraction for a person:
// name (always present) plus role, organization and country, out of four.
func (e Entity) CompletenessScore() float64 {
	populated := 1 // name is mandatory
	if e.Role != "" {
		populated++
	}
	if e.Organization != "" {
		populated++
	}
	if e.Country != "" {
		populated++
	}
	return float64(populated) / 4
}

// AbbreviationResult is a scored, deduplicated abbreviation with the best
// definition found across its occurrences.
type AbbreviationResult struct {
	Abbreviation string   `json:"abbreviation"`
	Definition   string   `json:"definition,omitempty"`
	Confidence   float64  `json:"confidence"`
	Count        int      `json:"count"`
	Sources      []string `json:"sources,omitempty"`
}

// DocumentRef identifies one input document for a scan.
type DocumentRef struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// DocumentResult holds everything extracted from a single document.
type DocumentResult struct {
	DocID         string                         `json:"doc_id"`
	Title         string                         `json:"title,omitempty"`
	Abbreviations map[string]*AbbreviationResult `json:"abbreviations"`
	Entities      []Entity                       `json:"entities"`
	Tier          ExtractionTier                 `json:"tier"`
}

// TaskState is the lifecycle state of a scan task. Terminal states
// (completed, failed, cancelled) are immutable once reached.
type TaskState string

const (
	TaskQueued    TaskState = "queued"
	TaskRunning   TaskState = "running"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskCancelled TaskState = "cancelled"
)

// Terminal reports whether s is a final state.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	}
	return false
}

// DocumentError captures a single document's failure inside a task.
// It never aborts sibling documents.
type DocumentError struct {
	DocID   string `json:"doc_id"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// TaskSnapshot is a read-only copy of a scan task's state for callers.
// The owning manager keeps the live task; external code only sees snapshots.
type TaskSnapshot struct {
	ID         string          `json:"id"`
	State      TaskState       `json:"state"`
	Processed  int             `json:"processed"`
	Total      int             `json:"total"`
	Partial    bool            `json:"partial"`
	Errors     []DocumentError `json:"errors,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  time.Time       `json:"started_at,omitzero"`
	FinishedAt time.Time       `json:"finished_at,omitzero"`
}

// Progress returns the processed fraction in [0,1].
func (t TaskSnapshot) Progress() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.Processed) / float64(t.Total)
}

// Elapsed returns how long the task has been (or was) running.
func (t TaskSnapshot) Elapsed() time.Duration {
	if t.StartedAt.IsZero() {
		return 0
	}
	end := t.FinishedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(t.StartedAt)
}

// TaskResults is the exporter-facing view of a completed task: per-document
// results in submission order plus the merged abbreviation set.
type TaskResults struct {
	TaskID    string                         `json:"task_id"`
	Documents []*DocumentResult              `json:"documents"`
	Merged    map[string]*AbbreviationResult `json:"merged_abbreviations"`
}
