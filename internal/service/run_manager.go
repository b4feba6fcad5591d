package service

import (
	"context"
	"sync"

	"biobyia-go/internal/model"
	"biobyia-go/internal/pipeline"
	"biobyia-go/pkg/log"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of an asynchronous ingestion run.
type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusCompleted   RunStatus = "completed"
	RunStatusFailed      RunStatus = "failed"
	RunStatusInterrupted RunStatus = "interrupted"
)

// RunState is a snapshot of one asynchronous run, safe to serialize.
type RunState struct {
	ID         string            `json:"id"`
	Source     string            `json:"source"`
	Status     RunStatus         `json:"status"`
	Progress   pipeline.Progress `json:"progress"`
	Report     *pipeline.Report  `json:"report,omitempty"`
	Error      string            `json:"error,omitempty"`
	StartedAt  model.LocalTime   `json:"started_at"`
	FinishedAt *model.LocalTime  `json:"finished_at,omitempty"`
}

type runEntry struct {
	state       RunState
	cancel      context.CancelFunc
	subscribers map[chan pipeline.Progress]struct{}
}

// RunManager tracks asynchronous ingestion runs and fans progress updates
// out to WebSocket subscribers. Runs live in memory for the process
// lifetime; durable history goes through the run repository.
type RunManager struct {
	mu      sync.RWMutex
	entries map[string]*runEntry
	order   []string
}

// NewRunManager creates an empty RunManager.
func NewRunManager() *RunManager {
	return &RunManager{entries: make(map[string]*runEntry)}
}

// RunFunc is the unit of work driven by Start. It must honor ctx and report
// progress through onProgress.
type RunFunc func(ctx context.Context, onProgress func(pipeline.Progress)) (*pipeline.Report, error)

// Start launches fn in the background and returns the new run id.
func (m *RunManager) Start(source string, fn RunFunc) string {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())

	entry := &runEntry{
		state: RunState{
			ID:        id,
			Source:    source,
			Status:    RunStatusRunning,
			StartedAt: model.Now(),
		},
		cancel:      cancel,
		subscribers: make(map[chan pipeline.Progress]struct{}),
	}
	m.mu.Lock()
	m.entries[id] = entry
	m.order = append(m.order, id)
	m.mu.Unlock()

	log.Infof("[RunManager] run %s started, source: %s", id, source)
	go func() {
		defer cancel()
		report, err := fn(ctx, func(p pipeline.Progress) { m.publish(id, p) })
		m.finish(id, report, err)
	}()
	return id
}

// Get returns a snapshot of one run.
func (m *RunManager) Get(id string) (RunState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[id]
	if !ok {
		return RunState{}, false
	}
	return entry.state, true
}

// List returns snapshots of all runs, newest first.
func (m *RunManager) List() []RunState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	states := make([]RunState, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		states = append(states, m.entries[m.order[i]].state)
	}
	return states
}

// Cancel asks a running run to stop. The run finishes asynchronously and
// leaves a checkpoint behind.
func (m *RunManager) Cancel(id string) bool {
	m.mu.RLock()
	entry, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	log.Infof("[RunManager] run %s cancel requested", id)
	entry.cancel()
	return true
}

// Subscribe registers a progress channel for a run. The channel is closed
// when the run finishes or the returned cancel function is called. For runs
// that already finished, the channel is returned closed.
func (m *RunManager) Subscribe(id string) (<-chan pipeline.Progress, func(), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok {
		return nil, nil, false
	}

	ch := make(chan pipeline.Progress, 16)
	if entry.state.Status != RunStatusRunning {
		close(ch)
		return ch, func() {}, true
	}

	entry.subscribers[ch] = struct{}{}
	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, present := entry.subscribers[ch]; present {
			delete(entry.subscribers, ch)
			close(ch)
		}
	}
	return ch, cancel, true
}

// publish records the latest progress and forwards it to subscribers. Slow
// subscribers miss updates instead of blocking the pipeline.
func (m *RunManager) publish(id string, p pipeline.Progress) {
	m.mu.Lock()
	entry, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	entry.state.Progress = p
	channels := make([]chan pipeline.Progress, 0, len(entry.subscribers))
	for ch := range entry.subscribers {
		channels = append(channels, ch)
	}
	m.mu.Unlock()

	for _, ch := range channels {
		select {
		case ch <- p:
		default:
		}
	}
}

func (m *RunManager) finish(id string, report *pipeline.Report, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok {
		return
	}

	now := model.Now()
	entry.state.Report = report
	entry.state.FinishedAt = &now
	switch {
	case err != nil && report != nil && report.Interrupted:
		entry.state.Status = RunStatusInterrupted
		entry.state.Error = err.Error()
	case err != nil:
		entry.state.Status = RunStatusFailed
		entry.state.Error = err.Error()
	default:
		entry.state.Status = RunStatusCompleted
	}
	log.Infof("[RunManager] run %s finished, status: %s", id, entry.state.Status)

	for ch := range entry.subscribers {
		delete(entry.subscribers, ch)
		close(ch)
	}
}
