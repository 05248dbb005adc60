package app

import (
	"strings"
	"time"
)

// Operation tracks one CLI invocation. Its ID tags every log line the
// invocation writes so that they can be correlated afterwards.
type Operation struct {
	ID         string
	Name       string
	Parameters string
	Status     string // "running", "success" or "error"
	Started    time.Time
	Finished   time.Time
}

// NewOperation creates a running operation started at now.
func NewOperation(name, parameters string, now time.Time) *Operation {
	now = now.UTC()
	return &Operation{
		ID:         strings.ToLower(name) + "-" + now.Format("20060102T150405.000Z"),
		Name:       name,
		Parameters: parameters,
		Status:     "running",
		Started:    now,
	}
}

// Finish records the outcome of the operation.
func (op *Operation) Finish(err error, now time.Time) {
	op.Finished = now.UTC()
	op.Status = "success"
	if err != nil {
		op.Status = "error"
	}
}

// Done returns true once Finish has been called.
func (op *Operation) Done() bool {
	return !op.Finished.IsZero()
}

// Duration returns how long the operation ran, or zero while it runs.
func (op *Operation) Duration() time.Duration {
	if !op.Done() {
		return 0
	}
	return op.Finished.Sub(op.Started)
}
