package sn

import (
	"context"
	"time"

	"sn-go/internal/model"
)

// FindingKind classifies an inconsistency left behind by a partial failure.
type FindingKind string

const (
	// FindingOrphanAsset: stored media that no document references.
	FindingOrphanAsset FindingKind = "orphan_asset"
	// FindingGraphAsymmetry: one side of a follow edge without the other.
	FindingGraphAsymmetry FindingKind = "graph_asymmetry"
	// FindingDanglingComment: a comment whose post is gone.
	FindingDanglingComment FindingKind = "dangling_comment"
)

// Finding describes one reconciliation candidate. Only the fields relevant
// to Kind are set.
type Finding struct {
	Kind       FindingKind    `json:"kind"`
	Asset      model.MediaRef `json:"asset,omitzero"`
	OwnerKind  string         `json:"owner_kind,omitempty"` // "user", "post" or "comment"
	OwnerID    string         `json:"owner_id,omitempty"`
	FollowerID string         `json:"follower_id,omitempty"`
	TargetID   string         `json:"target_id,omitempty"`
	Cause      string         `json:"cause,omitempty"`
	DetectedAt time.Time      `json:"detected_at"`
}

// FindingSink receives reconciliation candidates for out-of-band repair.
// Reporting is best effort: a failing sink never fails the operation that
// produced the finding.
type FindingSink interface {
	Report(ctx context.Context, f Finding) error
}

// LogSink records findings in the service log only.
type LogSink struct {
	logger Logger
}

func NewLogSink(logger Logger) *LogSink {
	return &LogSink{logger: orDiscard(logger)}
}

func (s *LogSink) Report(_ context.Context, f Finding) error {
	s.logger.Warn("reconciliation candidate",
		"kind", string(f.Kind),
		"owner_kind", f.OwnerKind,
		"owner_id", f.OwnerID,
		"handle", f.Asset.Handle,
		"follower", f.FollowerID,
		"target", f.TargetID,
		"cause", f.Cause,
	)
	return nil
}

var _ FindingSink = (*LogSink)(nil)
