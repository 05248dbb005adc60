package app

import (
	"errors"
	"testing"
	"time"
)

func TestNewOperation(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name       string
		operation  string
		parameters string
		wantID     string
	}{
		{
			name:       "with parameters",
			operation:  "Follow",
			parameters: "u1 u2",
			wantID:     "follow-20240115T103000.000Z",
		},
		{
			name:       "empty parameters",
			operation:  "ReconcileGraph",
			parameters: "",
			wantID:     "reconcilegraph-20240115T103000.000Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewOperation(tt.operation, tt.parameters, now)

			if op.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", op.ID, tt.wantID)
			}
			if op.Parameters != tt.parameters {
				t.Errorf("Parameters = %q, want %q", op.Parameters, tt.parameters)
			}
			if op.Status != "running" {
				t.Errorf("Status = %q, want %q", op.Status, "running")
			}
			if op.Done() {
				t.Error("Done() = true before Finish")
			}
		})
	}
}

func TestOperation_Finish(t *testing.T) {
	start := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name       string
		err        error
		wantStatus string
	}{
		{name: "success", err: nil, wantStatus: "success"},
		{name: "error", err: errors.New("boom"), wantStatus: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewOperation("Post", "", start)
			op.Finish(tt.err, start.Add(2*time.Second))

			if op.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", op.Status, tt.wantStatus)
			}
			if !op.Done() {
				t.Error("Done() = false after Finish")
			}
			if op.Duration() != 2*time.Second {
				t.Errorf("Duration() = %v, want %v", op.Duration(), 2*time.Second)
			}
		})
	}
}
