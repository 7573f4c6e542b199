// Package recorder implements the execution recorder (spec C8): a bounded,
// FIFO-evicting map of execution records plus a best-effort event stream
// consumed by SSE/WebSocket adapters. It is grounded on the teacher's
// internal/infrastructure/monitoring/observer.go (fan-out to multiple
// listeners under a single RWMutex) combined with the bounded in-memory
// map shape of internal/infrastructure/storage/memory.go, re-targeted to
// spec §4.6's {id, workflowId, workflowName, status, mode, startTime,
// endTime, nodeData, errors[]} record shape and FIFO eviction policy.
package recorder

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/flowbridge/engine/internal/domain"
)

// DefaultCapacity is the bounded record map's size when Recorder isn't
// constructed with an explicit capacity (spec §4.6, §5).
const DefaultCapacity = 100

// EventType names the four event kinds the recorder's stream emits.
type EventType string

const (
	EventNodeStart         EventType = "node:start"
	EventNodeComplete      EventType = "node:complete"
	EventNodeError         EventType = "node:error"
	EventExecutionComplete EventType = "execution:complete"
)

// Event is one entry on the recorder's event stream. Fields not relevant to
// Type are left zero; delivery is best-effort and in-order per execution.
type Event struct {
	Type        EventType
	ExecutionID string
	NodeName    string
	NodeType    string
	Timestamp   int64
	DurationMs  int64
	Data        []domain.Item
	Error       string
	Status      domain.Status
}

// Record is one execution's persisted transcript.
type Record struct {
	ID            string
	WorkflowID    string
	WorkflowName  string
	Status        domain.Status
	Mode          domain.Mode
	StartTime     int64
	EndTime       int64
	NodeData      map[string][]domain.Item
	Errors        []domain.ErrorRecord
	completedTime int64 // internal FIFO-eviction ordering key, set on complete/fail/cancel
}

// Recorder owns the bounded record map and the listener fan-out. All
// operations are guarded by a single mutex: it is the one piece of shared
// mutable state between concurrent executions (spec §5).
type Recorder struct {
	mu        sync.Mutex
	capacity  int
	records   map[string]*Record
	order     []string // insertion order of *completed* records, oldest first
	listeners []chan Event
	seq       int64
}

// New returns a Recorder bounded to capacity (DefaultCapacity if <= 0).
func New(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{
		capacity: capacity,
		records:  make(map[string]*Record),
	}
}

// Start registers a new running record for an execution about to begin.
func (r *Recorder) Start(executionID, workflowID, workflowName string, mode domain.Mode, startTimeUnix int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[executionID] = &Record{
		ID:           executionID,
		WorkflowID:   workflowID,
		WorkflowName: workflowName,
		Status:       domain.StatusRunning,
		Mode:         mode,
		StartTime:    startTimeUnix,
		NodeData:     make(map[string][]domain.Item),
	}
}

// Complete finalizes a record from a finished ExecutionContext (any
// terminal status — success, failed, or cancelled — is read off ec).
func (r *Recorder) Complete(ec *domain.ExecutionContext) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[ec.ExecutionID]
	if !ok {
		rec = &Record{ID: ec.ExecutionID, NodeData: make(map[string][]domain.Item)}
		r.records[ec.ExecutionID] = rec
	}
	rec.Status = ec.Status
	rec.Mode = ec.Mode
	rec.StartTime = ec.StartTime.Unix()
	rec.EndTime = ec.EndTime.Unix()
	rec.Errors = append([]domain.ErrorRecord(nil), ec.Errors...)
	for name, items := range ec.NodeStates {
		rec.NodeData[name] = items
	}
	if ec.Workflow != nil {
		rec.WorkflowID = ec.Workflow.ID
		rec.WorkflowName = ec.Workflow.Name
	}

	r.seq++
	rec.completedTime = r.seq
	r.order = append(r.order, ec.ExecutionID)
	r.evictIfNeeded()

	r.emit(Event{
		Type:        EventExecutionComplete,
		ExecutionID: ec.ExecutionID,
		Status:      ec.Status,
	})
}

// evictIfNeeded drops the oldest completed records until the bounded map is
// back at capacity. Running records are never evicted because they are
// only added to r.order once Complete runs.
func (r *Recorder) evictIfNeeded() {
	for len(r.order) > r.capacity {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.records, oldest)
	}
}

// Get returns a copy of the record for executionID.
func (r *Recorder) Get(executionID string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[executionID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// List returns every record, optionally filtered to one workflow, ordered
// by start time.
func (r *Recorder) List(workflowID string) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		if workflowID != "" && rec.WorkflowID != workflowID {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}

// Delete removes a single record.
func (r *Recorder) Delete(executionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[executionID]; !ok {
		return false
	}
	delete(r.records, executionID)
	for i, id := range r.order {
		if id == executionID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Clear empties the recorder entirely.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = make(map[string]*Record)
	r.order = nil
}

// Subscribe returns a channel of events and an unsubscribe func. Delivery
// is non-blocking: a slow subscriber that falls behind has events dropped
// rather than stalling the recorder.
func (r *Recorder) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	r.mu.Lock()
	r.listeners = append(r.listeners, ch)
	r.mu.Unlock()

	unsubscribe := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, l := range r.listeners {
			if l == ch {
				r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
				close(ch)
				break
			}
		}
	}
	return ch, unsubscribe
}

// NodeStarted, NodeCompleted, and NodeFailed publish the node:* events; they
// do not mutate the record directly — Complete reads the final state off
// ExecutionContext once the run finishes.
func (r *Recorder) NodeStarted(executionID, nodeName, nodeType string, timestampUnix int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emit(Event{Type: EventNodeStart, ExecutionID: executionID, NodeName: nodeName, NodeType: nodeType, Timestamp: timestampUnix})
}

func (r *Recorder) NodeCompleted(executionID, nodeName, nodeType string, data []domain.Item, durationMs int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emit(Event{Type: EventNodeComplete, ExecutionID: executionID, NodeName: nodeName, NodeType: nodeType, Data: data, DurationMs: durationMs})
}

func (r *Recorder) NodeFailed(executionID, nodeName, nodeType, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emit(Event{Type: EventNodeError, ExecutionID: executionID, NodeName: nodeName, NodeType: nodeType, Error: message})
}

// emit fans an event out to every subscriber without blocking; callers
// already hold r.mu.
func (r *Recorder) emit(ev Event) {
	for _, ch := range r.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}

// NewExecutionID is a convenience for callers that need an id before the
// execution context itself exists (e.g. to pre-register with the recorder).
func NewExecutionID() string {
	return uuid.NewString()
}
