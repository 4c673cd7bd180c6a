package scan

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"scout/abbrev"
	"scout/types"
)

const (
	// DefaultWorkers is the number of tasks that run concurrently. Work
	// beyond that queues.
	DefaultWorkers = 5

	// DefaultQueueDepth bounds how many tasks may wait behind the running
	// ones before submissions are refused. Generous so refusal only happens
	// under real backpressure.
	DefaultQueueDepth = 256
)

// ErrQueueFull is returned by Submit when the backlog is at capacity.
var ErrQueueFull = errors.New("scan queue is full")

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("scan manager is stopped")

// Manager owns the task registry and the worker pool. All exported methods
// are safe for concurrent use; callers only ever see snapshots and copies.
type Manager struct {
	mu      sync.Mutex
	tasks   map[string]*task
	queue   chan string
	stopped bool

	pipeline *Pipeline
	wg       sync.WaitGroup
}

// NewManager starts workers draining the queue. workers<=0 and depth<=0
// select the defaults.
func NewManager(pipeline *Pipeline, workers, depth int) *Manager {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	m := &Manager{
		tasks:    make(map[string]*task),
		queue:    make(chan string, depth),
		pipeline: pipeline,
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}
	return m
}

// Stop refuses new submissions, lets queued and running tasks finish and
// waits for the workers to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	close(m.queue)
	m.mu.Unlock()
	m.wg.Wait()
}

// Submit registers a task over the given documents and queues it. The
// returned id is the handle for every later call.
func (m *Manager) Submit(docs []types.DocumentRef, opts Options) (string, error) {
	if len(docs) == 0 {
		return "", errors.New("no documents to scan")
	}

	id := uuid.NewString()[:8]
	t := newTask(id, docs, opts)

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return "", ErrStopped
	}
	m.tasks[id] = t

	select {
	case m.queue <- id:
		m.mu.Unlock()
		return id, nil
	default:
		delete(m.tasks, id)
		m.mu.Unlock()
		return "", ErrQueueFull
	}
}

// Cancel requests cancellation. A queued task transitions immediately; a
// running task stops after the document in flight. Cancelling a terminal
// task is a no-op returning false.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.state.Terminal() {
		return false
	}
	t.cancel.Store(true)
	if t.state == types.TaskQueued {
		t.state = types.TaskCancelled
		t.finishedAt = time.Now()
	}
	return true
}

// Get returns a snapshot of one task.
func (m *Manager) Get(id string) (types.TaskSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return types.TaskSnapshot{}, false
	}
	return t.snapshot(), true
}

// List returns snapshots of every known task.
func (m *Manager) List() []types.TaskSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.TaskSnapshot, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t.snapshot())
	}
	return out
}

// ActiveTasks returns snapshots of queued and running tasks.
func (m *Manager) ActiveTasks() []types.TaskSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.TaskSnapshot
	for _, t := range m.tasks {
		if !t.state.Terminal() {
			out = append(out, t.snapshot())
		}
	}
	return out
}

// Results returns the extracted output of a terminal task. Cancelled tasks
// expose results only when KeepPartialResults was set.
func (m *Manager) Results(id string) (*types.TaskResults, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || !t.state.Terminal() {
		return nil, false
	}
	if t.state == types.TaskCancelled && !t.opts.KeepPartialResults {
		return nil, false
	}
	return t.results(), true
}

// RemoveTask deletes a terminal task from the registry.
func (m *Manager) RemoveTask(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || !t.state.Terminal() {
		return false
	}
	delete(m.tasks, id)
	return true
}

// ClearFinished removes every terminal task and reports how many went.
func (m *Manager) ClearFinished() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, t := range m.tasks {
		if t.state.Terminal() {
			delete(m.tasks, id)
			n++
		}
	}
	return n
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for id := range m.queue {
		m.run(id)
	}
}

// run executes one task to a terminal state. Documents are processed
// sequentially; per-document failures are recorded and never abort the rest.
func (m *Manager) run(id string) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok || t.state != types.TaskQueued {
		// Cancelled while queued, or removed.
		m.mu.Unlock()
		return
	}
	t.state = types.TaskRunning
	t.startedAt = time.Now()
	m.mu.Unlock()

	ctx := context.Background()
	succeeded := 0
	for _, ref := range t.docs {
		if t.cancel.Load() {
			m.finishCancelled(t)
			return
		}

		doc, err := m.pipeline.ProcessDocument(ctx, ref)
		t.processed.Add(1)

		m.mu.Lock()
		if err != nil {
			t.errors = append(t.errors, types.DocumentError{
				DocID:   ref.ID,
				Stage:   stageOf(err),
				Message: err.Error(),
			})
			m.mu.Unlock()
			log.Printf("Warning: task %s: document %s failed: %v", t.id, ref.ID, err)
			continue
		}
		if t.opts.ExcludeLowConfidence {
			doc.Entities = withoutLowConfidence(doc.Entities)
		}
		t.documents = append(t.documents, doc)
		abbrev.Merge(t.merged, doc.Abbreviations)
		m.mu.Unlock()
		succeeded++
	}

	// A cancel that landed while the final document was in flight still wins.
	if t.cancel.Load() {
		m.finishCancelled(t)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	t.finishedAt = time.Now()
	if succeeded > 0 {
		t.state = types.TaskCompleted
	} else {
		t.state = types.TaskFailed
		t.errMessage = "all documents failed"
	}
}

func withoutLowConfidence(ents []types.Entity) []types.Entity {
	out := ents[:0]
	for _, e := range ents {
		if e.Confidence != types.ConfidenceLow {
			out = append(out, e)
		}
	}
	return out
}

// finishCancelled transitions a running task after its cancel flag was
// observed. Partial results are dropped unless the task opted to keep them.
func (m *Manager) finishCancelled(t *task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.state = types.TaskCancelled
	t.finishedAt = time.Now()
	if !t.opts.KeepPartialResults {
		t.documents = nil
		t.merged = map[string]*types.AbbreviationResult{}
	}
}
