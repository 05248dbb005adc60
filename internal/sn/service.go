package sn

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultOperationTimeout bounds an operation whose context carries no deadline.
const DefaultOperationTimeout = 10 * time.Second

// SNService is the orchestration layer for the social graph, engagement,
// media lifecycle and feed operations.
//
// The document store offers no multi-document transactions and the media
// store is never transactional with it, so every operation that touches more
// than one document or asset runs as an ordered sequence of independently
// committed steps. The order is chosen so that a failure on the first step
// leaves nothing behind and a failure on a trailing step leaves at worst an
// unreferenced asset or a one-sided follow edge, both reported to the
// FindingSink instead of being retried inline. There is no rollback.
type SNService struct {
	store     Store
	media     MediaStore
	lifecycle *MediaLifecycle
	hasher    PasswordHasher
	sink      FindingSink
	logger    Logger
	clock     Clock
	idgen     IDGenerator
	timeout   time.Duration
}

// NewSNService creates a new SNService with the provided dependencies.
// hasher may be nil when no operation that sets a password is used.
// A nil sink reports findings to the log only.
func NewSNService(store Store, media MediaStore, hasher PasswordHasher, sink FindingSink, logger Logger, clock Clock, idgen IDGenerator) *SNService {
	logger = orDiscard(logger)
	if sink == nil {
		sink = NewLogSink(logger)
	}
	s := &SNService{
		store:   store,
		media:   media,
		hasher:  hasher,
		sink:    sink,
		logger:  logger,
		clock:   clock,
		idgen:   idgen,
		timeout: DefaultOperationTimeout,
	}
	s.lifecycle = NewMediaLifecycle(media, s.report, logger)
	return s
}

// SetOperationTimeout changes the deadline applied to operations whose
// context has none. Non-positive values are ignored.
func (s *SNService) SetOperationTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// Lifecycle exposes the media lifecycle coordinator used by the service.
func (s *SNService) Lifecycle() *MediaLifecycle {
	return s.lifecycle
}

// authoritative returns the store that repairs read from.
func (s *SNService) authoritative() Store {
	if c, ok := s.store.(CachedStore); ok {
		return c.Uncached()
	}
	return s.store
}

// begin applies the default operation deadline when ctx has none.
func (s *SNService) begin(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// report stamps and forwards a finding. Sink failures are logged and dropped.
func (s *SNService) report(ctx context.Context, f Finding) {
	if f.DetectedAt.IsZero() {
		f.DetectedAt = s.clock.Now()
	}

	trace.SpanFromContext(ctx).AddEvent("reconciliation candidate",
		trace.WithAttributes(
			attribute.String("kind", string(f.Kind)),
			attribute.String("owner_id", f.OwnerID),
			attribute.String("handle", f.Asset.Handle),
		))

	// The sink gets its own short deadline: the operation context may be
	// the reason the finding exists.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if err := s.sink.Report(rctx, f); err != nil {
		s.logger.Error("reporting finding failed", "kind", string(f.Kind), "owner_id", f.OwnerID, "error", err)
	}
}
