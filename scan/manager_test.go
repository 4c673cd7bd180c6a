package scan

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scout/abbrev"
	"scout/entity"
	"scout/parser"
	"scout/types"
)

const scanText = "The World Health Organization (WHO) coordinates the regional health response. " +
	"Partners such as the Ministry of Health in Kenya rely on WHO guidance for their programs."

// fakeParser serves canned text and can block or fail selected documents.
type fakeParser struct {
	text     string
	fail     map[string]bool
	block    map[string]bool
	blockAll bool
	started  chan string
	release  chan struct{}
}

func (f *fakeParser) Parse(ref types.DocumentRef) (string, string, error) {
	if f.started != nil {
		f.started <- ref.ID
	}
	if f.blockAll || (f.block != nil && f.block[ref.ID]) {
		<-f.release
	}
	if f.fail != nil && f.fail[ref.ID] {
		return "", "", &parser.ParseError{DocID: ref.ID, Path: ref.Path, Err: errors.New("unreadable")}
	}
	return f.text, ref.ID, nil
}

func testPipeline(p parser.Parser) *Pipeline {
	coord := entity.NewCoordinator(entity.NewValidator(entity.Options{}), entity.NewPatternTier())
	return NewPipeline(p, abbrev.NewScorer(), coord)
}

func docRefs(n int) []types.DocumentRef {
	refs := make([]types.DocumentRef, n)
	for i := range refs {
		refs[i] = types.DocumentRef{ID: fmt.Sprintf("doc%d", i), Path: fmt.Sprintf("/tmp/doc%d.txt", i)}
	}
	return refs
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func stateCounts(m *Manager) map[types.TaskState]int {
	counts := map[types.TaskState]int{}
	for _, s := range m.List() {
		counts[s.State]++
	}
	return counts
}

func TestWorkerPoolRunsFiveAndQueuesTheRest(t *testing.T) {
	fp := &fakeParser{
		text:     scanText,
		blockAll: true,
		started:  make(chan string, 16),
		release:  make(chan struct{}),
	}
	m := NewManager(testPipeline(fp), 0, 0)
	defer m.Stop()

	for i := 0; i < 7; i++ {
		_, err := m.Submit(docRefs(1), Options{})
		require.NoError(t, err)
	}

	for i := 0; i < DefaultWorkers; i++ {
		select {
		case <-fp.started:
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d tasks started", i)
		}
	}

	counts := stateCounts(m)
	assert.Equal(t, 5, counts[types.TaskRunning])
	assert.Equal(t, 2, counts[types.TaskQueued])

	close(fp.release)
	waitFor(t, "all tasks to finish", func() bool {
		return stateCounts(m)[types.TaskCompleted] == 7
	})
}

func TestCancelQueuedTaskIsImmediate(t *testing.T) {
	fp := &fakeParser{
		text:     scanText,
		blockAll: true,
		started:  make(chan string, 4),
		release:  make(chan struct{}),
	}
	m := NewManager(testPipeline(fp), 1, 10)
	defer m.Stop()

	blocking, err := m.Submit(docRefs(1), Options{})
	require.NoError(t, err)
	<-fp.started

	queued, err := m.Submit(docRefs(1), Options{})
	require.NoError(t, err)

	require.True(t, m.Cancel(queued))
	snap, ok := m.Get(queued)
	require.True(t, ok)
	assert.Equal(t, types.TaskCancelled, snap.State)

	// A terminal task cannot be cancelled again.
	assert.False(t, m.Cancel(queued))

	close(fp.release)
	waitFor(t, "blocking task to finish", func() bool {
		s, _ := m.Get(blocking)
		return s.State == types.TaskCompleted
	})

	// The worker must not resurrect the cancelled task.
	snap, _ = m.Get(queued)
	assert.Equal(t, types.TaskCancelled, snap.State)
	_, ok = m.Results(queued)
	assert.False(t, ok)
}

func TestCancelRunningTaskStopsBetweenDocuments(t *testing.T) {
	fp := &fakeParser{
		text:    scanText,
		block:   map[string]bool{"doc0": true},
		started: make(chan string, 4),
		release: make(chan struct{}),
	}
	m := NewManager(testPipeline(fp), 1, 10)
	defer m.Stop()

	id, err := m.Submit(docRefs(3), Options{KeepPartialResults: true})
	require.NoError(t, err)

	<-fp.started // doc0 is in flight
	require.True(t, m.Cancel(id))
	close(fp.release)

	waitFor(t, "task to reach a terminal state", func() bool {
		s, _ := m.Get(id)
		return s.State.Terminal()
	})

	snap, _ := m.Get(id)
	assert.Equal(t, types.TaskCancelled, snap.State)
	assert.Equal(t, 1, snap.Processed, "only the in-flight document should finish")

	results, ok := m.Results(id)
	require.True(t, ok, "partial results were requested")
	assert.Len(t, results.Documents, 1)
}

func TestCancelDuringFinalDocumentEndsCancelled(t *testing.T) {
	fp := &fakeParser{
		text:    scanText,
		block:   map[string]bool{"doc0": true},
		started: make(chan string, 4),
		release: make(chan struct{}),
	}
	m := NewManager(testPipeline(fp), 1, 10)
	defer m.Stop()

	id, err := m.Submit(docRefs(1), Options{})
	require.NoError(t, err)

	<-fp.started // the only document is in flight
	require.True(t, m.Cancel(id))
	close(fp.release)

	waitFor(t, "task to reach a terminal state", func() bool {
		s, _ := m.Get(id)
		return s.State.Terminal()
	})

	snap, _ := m.Get(id)
	assert.Equal(t, types.TaskCancelled, snap.State, "a cancel during the last document must not end COMPLETED")
	_, ok := m.Results(id)
	assert.False(t, ok, "results must be dropped without KeepPartialResults")
}

func TestCancelledTaskDropsResultsByDefault(t *testing.T) {
	fp := &fakeParser{
		text:    scanText,
		block:   map[string]bool{"doc0": true},
		started: make(chan string, 4),
		release: make(chan struct{}),
	}
	m := NewManager(testPipeline(fp), 1, 10)
	defer m.Stop()

	id, err := m.Submit(docRefs(2), Options{})
	require.NoError(t, err)

	<-fp.started
	require.True(t, m.Cancel(id))
	close(fp.release)

	waitFor(t, "task to reach a terminal state", func() bool {
		s, _ := m.Get(id)
		return s.State.Terminal()
	})

	_, ok := m.Results(id)
	assert.False(t, ok)
}

func TestTaskCompletesPartiallyWhenSomeDocumentsFail(t *testing.T) {
	fp := &fakeParser{text: scanText, fail: map[string]bool{"doc1": true}}
	m := NewManager(testPipeline(fp), 1, 10)
	defer m.Stop()

	id, err := m.Submit(docRefs(2), Options{})
	require.NoError(t, err)

	waitFor(t, "task to finish", func() bool {
		s, _ := m.Get(id)
		return s.State.Terminal()
	})

	snap, _ := m.Get(id)
	assert.Equal(t, types.TaskCompleted, snap.State)
	assert.True(t, snap.Partial)
	require.Len(t, snap.Errors, 1)
	assert.Equal(t, "doc1", snap.Errors[0].DocID)
	assert.Equal(t, "parse", snap.Errors[0].Stage)

	results, ok := m.Results(id)
	require.True(t, ok)
	assert.Len(t, results.Documents, 1)
	assert.NotEmpty(t, results.Merged)
}

func TestTaskFailsWhenAllDocumentsFail(t *testing.T) {
	fp := &fakeParser{text: scanText, fail: map[string]bool{"doc0": true, "doc1": true}}
	m := NewManager(testPipeline(fp), 1, 10)
	defer m.Stop()

	id, err := m.Submit(docRefs(2), Options{})
	require.NoError(t, err)

	waitFor(t, "task to finish", func() bool {
		s, _ := m.Get(id)
		return s.State.Terminal()
	})

	snap, _ := m.Get(id)
	assert.Equal(t, types.TaskFailed, snap.State)
	assert.False(t, snap.Partial)
	assert.NotEmpty(t, snap.Error)
}

func TestSubmitRejectsEmptyAndOverflow(t *testing.T) {
	fp := &fakeParser{
		text:     scanText,
		blockAll: true,
		started:  make(chan string, 4),
		release:  make(chan struct{}),
	}
	m := NewManager(testPipeline(fp), 1, 1)
	defer m.Stop()

	_, err := m.Submit(nil, Options{})
	require.Error(t, err)

	_, err = m.Submit(docRefs(1), Options{})
	require.NoError(t, err)
	<-fp.started

	_, err = m.Submit(docRefs(1), Options{})
	require.NoError(t, err)

	_, err = m.Submit(docRefs(1), Options{})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(fp.release)
}

func TestRemoveAndClearFinished(t *testing.T) {
	fp := &fakeParser{text: scanText}
	m := NewManager(testPipeline(fp), 1, 10)
	defer m.Stop()

	id, err := m.Submit(docRefs(1), Options{})
	require.NoError(t, err)

	waitFor(t, "task to finish", func() bool {
		s, _ := m.Get(id)
		return s.State.Terminal()
	})

	assert.True(t, m.RemoveTask(id))
	_, ok := m.Get(id)
	assert.False(t, ok)
	assert.False(t, m.RemoveTask(id))

	id2, err := m.Submit(docRefs(1), Options{})
	require.NoError(t, err)
	waitFor(t, "second task to finish", func() bool {
		s, _ := m.Get(id2)
		return s.State.Terminal()
	})
	assert.Equal(t, 1, m.ClearFinished())
	assert.Empty(t, m.List())
}

func TestScanProducesAbbreviationsAndEntities(t *testing.T) {
	fp := &fakeParser{text: scanText}
	m := NewManager(testPipeline(fp), 1, 10)
	defer m.Stop()

	id, err := m.Submit(docRefs(1), Options{})
	require.NoError(t, err)

	waitFor(t, "task to finish", func() bool {
		s, _ := m.Get(id)
		return s.State.Terminal()
	})

	results, ok := m.Results(id)
	require.True(t, ok)
	require.Len(t, results.Documents, 1)

	doc := results.Documents[0]
	who, found := doc.Abbreviations["WHO"]
	require.True(t, found, "WHO not extracted: %v", doc.Abbreviations)
	assert.Equal(t, "World Health Organization", who.Definition)
	assert.GreaterOrEqual(t, who.Confidence, 0.8)

	assert.Equal(t, types.TierPattern, doc.Tier)
	foundKenya := false
	for _, e := range doc.Entities {
		if e.Name == "Kenya" && e.Kind == types.KindLocation {
			foundKenya = true
		}
	}
	assert.True(t, foundKenya, "Kenya not extracted: %v", doc.Entities)
}
