package scan

import (
	"sync/atomic"
	"time"

	"scout/types"
)

// Options control how a single scan task behaves.
type Options struct {
	// KeepPartialResults retains the documents already processed when the
	// task is cancelled mid-run.
	KeepPartialResults bool
	// ExcludeLowConfidence drops LOW-confidence entities from stored
	// document results.
	ExcludeLowConfidence bool
}

// task is the manager-internal state of one scan. The manager's mutex guards
// state and the result slices; processed and cancel are atomics so the hot
// path between documents takes no lock.
type task struct {
	id   string
	docs []types.DocumentRef
	opts Options

	state      types.TaskState
	processed  atomic.Int32
	cancel     atomic.Bool
	errors     []types.DocumentError
	errMessage string

	documents []*types.DocumentResult
	merged    map[string]*types.AbbreviationResult

	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time
}

func newTask(id string, docs []types.DocumentRef, opts Options) *task {
	return &task{
		id:        id,
		docs:      docs,
		opts:      opts,
		state:     types.TaskQueued,
		merged:    map[string]*types.AbbreviationResult{},
		createdAt: time.Now(),
	}
}

// snapshot copies the externally visible state. Caller holds the manager
// lock.
func (t *task) snapshot() types.TaskSnapshot {
	errs := make([]types.DocumentError, len(t.errors))
	copy(errs, t.errors)
	return types.TaskSnapshot{
		ID:         t.id,
		State:      t.state,
		Processed:  int(t.processed.Load()),
		Total:      len(t.docs),
		Partial:    t.state == types.TaskCompleted && len(t.errors) > 0,
		Errors:     errs,
		Error:      t.errMessage,
		CreatedAt:  t.createdAt,
		StartedAt:  t.startedAt,
		FinishedAt: t.finishedAt,
	}
}

// results copies the exporter view. Caller holds the manager lock.
func (t *task) results() *types.TaskResults {
	docs := make([]*types.DocumentResult, len(t.documents))
	copy(docs, t.documents)
	merged := make(map[string]*types.AbbreviationResult, len(t.merged))
	for k, v := range t.merged {
		cp := *v
		merged[k] = &cp
	}
	return &types.TaskResults{TaskID: t.id, Documents: docs, Merged: merged}
}
