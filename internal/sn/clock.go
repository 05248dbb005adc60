package sn

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so feed ordering is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the current UTC time truncated to milliseconds, the
// coarsest precision any supported document store keeps. Truncating up front
// means a timestamp reads back exactly as it was written.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces time-ordered (version 7) UUIDs, so the ID
// tie-break in feeds follows creation order.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
