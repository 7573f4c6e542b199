package domain

import "time"

// Mode is how an execution was started.
type Mode string

const (
	ModeManual  Mode = "manual"
	ModeWebhook Mode = "webhook"
	ModeCron    Mode = "cron"
)

// Status is the terminal (or in-flight) outcome of an execution.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ErrorRecord is one entry in an execution's error log.
type ErrorRecord struct {
	NodeName  string    `json:"nodeName"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ExecutionInfo is the {id, mode, startTime} triple the expression engine
// exposes as $execution.
type ExecutionInfo struct {
	ID        string    `json:"id"`
	Mode      Mode      `json:"mode"`
	StartTime time.Time `json:"startTime"`
}

// ExecutionContext is the mutable state of one workflow run. It lives for
// the duration of a single execution, is owned by the scheduler, and is
// never shared between concurrent executions — no internal locking is
// required because only one node body runs at a time within it (§5).
type ExecutionContext struct {
	Workflow    *Workflow
	ExecutionID string
	StartTime   time.Time
	Mode        Mode
	Status      Status
	EndTime     time.Time
	Cancelled   bool

	// NodeStates holds the last produced output items per node; written at
	// most once per node-run, overwritten on loop re-entry.
	NodeStates map[string][]Item

	// NodeRunCounts counts executions per node; used for loop iteration
	// index and history indexing (mirrored into RunIndex during a job).
	NodeRunCounts map[string]int

	// PendingInputs is the join buffer: target node -> edge key -> payload.
	PendingInputs map[string]map[string]Payload

	// NodeInternalState is opaque per-node private state (e.g. the
	// SplitInBatches cursor), keyed by node name.
	NodeInternalState map[string]any

	// Errors is the ordered execution error log.
	Errors []ErrorRecord

	// Warnings holds non-fatal diagnostics (malformed templates, degraded
	// expressions) that do not affect the execution's final status.
	Warnings []ErrorRecord

	// WaitingNodes holds resumption hooks for Wait/webhook resume, keyed by
	// wait-handle id.
	WaitingNodes map[string]func()
}

// NewExecutionContext builds a fresh context for one run.
func NewExecutionContext(wf *Workflow, executionID string, mode Mode) *ExecutionContext {
	return &ExecutionContext{
		Workflow:          wf,
		ExecutionID:       executionID,
		StartTime:         time.Now(),
		Mode:              mode,
		Status:            StatusRunning,
		NodeStates:        make(map[string][]Item),
		NodeRunCounts:     make(map[string]int),
		PendingInputs:     make(map[string]map[string]Payload),
		NodeInternalState: make(map[string]any),
		WaitingNodes:      make(map[string]func()),
	}
}

// Info returns the $execution context exposed to expressions.
func (ec *ExecutionContext) Info() ExecutionInfo {
	return ExecutionInfo{ID: ec.ExecutionID, Mode: ec.Mode, StartTime: ec.StartTime}
}

// RecordError appends an entry to the execution's error log.
func (ec *ExecutionContext) RecordError(nodeName, message string) {
	ec.Errors = append(ec.Errors, ErrorRecord{
		NodeName:  nodeName,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// RecordWarning appends an entry to the execution's warning log. Warnings
// never change the execution's terminal status.
func (ec *ExecutionContext) RecordWarning(nodeName, message string) {
	ec.Warnings = append(ec.Warnings, ErrorRecord{
		NodeName:  nodeName,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// Finalize sets the terminal status per invariant 5: failed if errors is
// non-empty, success otherwise — unless cancelled, which takes precedence.
func (ec *ExecutionContext) Finalize() {
	ec.EndTime = time.Now()
	switch {
	case ec.Cancelled:
		ec.Status = StatusCancelled
	case len(ec.Errors) > 0:
		ec.Status = StatusFailed
	default:
		ec.Status = StatusSuccess
	}
}
