// Package memory holds the in-process task tracker. The map is guarded by
// one mutex; per-key single-writer discipline comes from the lifecycle
// starting exactly one poller per task id.
package memory

import (
	"fmt"
	"sync"
	"time"

	domain "github.com/bryanwahyu/automaton-triage/internal/domain/tasks"
)

type Tracker struct {
	mu    sync.Mutex
	tasks map[domain.TaskID]*domain.RemediationTask
}

func NewTracker() *Tracker {
	return &Tracker{tasks: make(map[domain.TaskID]*domain.RemediationTask)}
}

func (t *Tracker) Put(task *domain.RemediationTask) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.tasks[task.ID]; exists {
		return fmt.Errorf("task %s already tracked", task.ID)
	}
	cp := *task
	t.tasks[task.ID] = &cp
	return nil
}

// Get returns a copy so callers never share the tracked record.
func (t *Tracker) Get(id domain.TaskID) (*domain.RemediationTask, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[id]
	if !ok {
		return nil, false
	}
	cp := *task
	return &cp, true
}

func (t *Tracker) MarkInProgress(id domain.TaskID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[id]
	if !ok || task.Status.Terminal() {
		return
	}
	task.Status = domain.StatusInProgress
	task.UpdatedAt = time.Now()
}

// MarkTerminal transitions a task into a terminal status exactly once.
// Returns the updated record and true when this call made the transition;
// false when the task is unknown or already terminal.
func (t *Tracker) MarkTerminal(id domain.TaskID, status domain.Status, url, summary string) (*domain.RemediationTask, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[id]
	if !ok || task.Status.Terminal() {
		return nil, false
	}
	task.Status = status
	task.URL = url
	task.Summary = summary
	task.UpdatedAt = time.Now()
	cp := *task
	return &cp, true
}

func (t *Tracker) Evict(id domain.TaskID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tasks, id)
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tasks)
}
