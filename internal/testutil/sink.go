package testutil

import (
	"context"
	"sync"

	"sn-go/internal/sn"
)

// RecordingSink keeps every reported finding in memory.
type RecordingSink struct {
	mu       sync.Mutex
	findings []sn.Finding
}

func (r *RecordingSink) Report(_ context.Context, f sn.Finding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findings = append(r.findings, f)
	return nil
}

// Findings returns a copy of everything reported so far.
func (r *RecordingSink) Findings() []sn.Finding {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sn.Finding(nil), r.findings...)
}

// OfKind returns the findings of one kind.
func (r *RecordingSink) OfKind(kind sn.FindingKind) []sn.Finding {
	var out []sn.Finding
	for _, f := range r.Findings() {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

var _ sn.FindingSink = (*RecordingSink)(nil)
