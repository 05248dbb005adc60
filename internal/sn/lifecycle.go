package sn

import (
	"context"
	"errors"
	"fmt"

	"sn-go/internal/model"
)

// Owner identifies the document holding a media reference.
type Owner struct {
	Kind string // "user", "post" or "comment"
	ID   string
}

func (o Owner) String() string { return o.Kind + "/" + o.ID }

// SwapFunc atomically stores fresh references on the owning document and
// returns the references it replaced, index for index. A returned empty
// reference means the slot held no asset.
type SwapFunc func(ctx context.Context, fresh []model.MediaRef) (stale []model.MediaRef, err error)

// DeleteFunc deletes the owning document and returns the references it held.
type DeleteFunc func(ctx context.Context) ([]model.MediaRef, error)

// MediaLifecycle keeps stored assets in step with the documents referencing
// them. It enforces two orderings:
//
//	replace: upload new -> swap reference on the owner -> delete old
//	delete:  delete owner document -> delete its assets
//
// A failure before the owner is touched aborts with no visible effect. A
// failure after the owner is touched is reported as an orphan asset and the
// operation still succeeds.
type MediaLifecycle struct {
	media  MediaStore
	report func(context.Context, Finding)
	logger Logger
}

// NewMediaLifecycle creates a coordinator over media. report receives orphan
// findings; it may be nil.
func NewMediaLifecycle(media MediaStore, report func(context.Context, Finding), logger Logger) *MediaLifecycle {
	if report == nil {
		report = func(context.Context, Finding) {}
	}
	return &MediaLifecycle{media: media, report: report, logger: orDiscard(logger)}
}

// ReplaceAsset uploads a single asset and swaps it onto the owner.
// See ReplaceAssets.
func (m *MediaLifecycle) ReplaceAsset(ctx context.Context, owner Owner, up Upload, swap func(ctx context.Context, fresh model.MediaRef) (model.MediaRef, error)) (model.MediaRef, error) {
	refs, err := m.ReplaceAssets(ctx, owner, []Upload{up}, func(ctx context.Context, fresh []model.MediaRef) ([]model.MediaRef, error) {
		stale, err := swap(ctx, fresh[0])
		if err != nil {
			return nil, err
		}
		return []model.MediaRef{stale}, nil
	})
	if err != nil {
		return model.MediaRef{}, err
	}
	return refs[0], nil
}

// ReplaceAssets uploads every upload, hands the fresh references to swap and
// deletes whatever swap reports as replaced.
//
// If any upload fails, the uploads that already succeeded are discarded and
// swap is never called. If swap fails, the fresh assets are orphaned and
// reported; they are not deleted inline because the swap may have committed
// before its error surfaced. Failures deleting stale assets are reported and
// do not fail the call.
func (m *MediaLifecycle) ReplaceAssets(ctx context.Context, owner Owner, uploads []Upload, swap SwapFunc) ([]model.MediaRef, error) {
	fresh := make([]model.MediaRef, 0, len(uploads))
	for _, up := range uploads {
		if !up.Kind.Valid() {
			m.discard(ctx, owner, fresh)
			return nil, invalidInput("unknown media kind %q", up.Kind)
		}
		if err := ctx.Err(); err != nil {
			m.discard(ctx, owner, fresh)
			return nil, NewExternalError("media", "upload", true, err)
		}
		ref, err := m.media.Upload(ctx, up.Body, up.Size, up.Kind)
		if err != nil {
			m.discard(ctx, owner, fresh)
			var orphaned *OrphanedUploadError
			if errors.As(err, &orphaned) {
				m.orphan(ctx, owner, orphaned.Asset, orphaned.DeleteErr)
				err = orphaned.Err
			}
			return nil, mediaErr("uploading media", err)
		}
		if !ref.Valid() || ref.IsEmpty() {
			m.discard(ctx, owner, append(fresh, ref))
			return nil, NewExternalError("media", "upload", false, fmt.Errorf("store returned incomplete reference %+v", ref))
		}
		ref.Kind = up.Kind
		fresh = append(fresh, ref)
		m.logger.Debug("asset uploaded", "owner", owner.String(), "handle", ref.Handle)
	}

	stale, err := swap(ctx, fresh)
	if err != nil {
		for _, ref := range fresh {
			m.orphan(ctx, owner, ref, fmt.Errorf("swap failed: %w", err))
		}
		return nil, err
	}

	for _, ref := range stale {
		m.deleteStale(ctx, owner, ref)
	}
	return fresh, nil
}

// DeleteOwner deletes the owning document first and its assets second.
// An error from del aborts with no asset touched. Asset deletion failures
// are reported as orphans and do not fail the call.
func (m *MediaLifecycle) DeleteOwner(ctx context.Context, owner Owner, del DeleteFunc) error {
	refs, err := del(ctx)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		m.deleteStale(ctx, owner, ref)
	}
	return nil
}

// deleteStale removes an asset that is no longer referenced.
func (m *MediaLifecycle) deleteStale(ctx context.Context, owner Owner, ref model.MediaRef) {
	if ref.IsEmpty() {
		return
	}
	if ref.Handle == "" {
		// A URL without a handle cannot be deleted; nothing to do but tell someone.
		m.orphan(ctx, owner, ref, fmt.Errorf("reference has no deletion handle"))
		return
	}
	if err := ctx.Err(); err != nil {
		m.orphan(ctx, owner, ref, err)
		return
	}
	kind := ref.Kind
	if !kind.Valid() {
		kind = model.MediaImage
	}
	if err := m.media.Delete(ctx, ref.Handle, kind); err != nil {
		m.orphan(ctx, owner, ref, err)
		return
	}
	m.logger.Debug("asset deleted", "owner", owner.String(), "handle", ref.Handle)
}

// discard best-effort deletes assets that were uploaded but never linked.
func (m *MediaLifecycle) discard(ctx context.Context, owner Owner, refs []model.MediaRef) {
	for _, ref := range refs {
		m.deleteStale(ctx, owner, ref)
	}
}

func (m *MediaLifecycle) orphan(ctx context.Context, owner Owner, ref model.MediaRef, cause error) {
	m.logger.Warn("asset left without owner",
		"error", fmt.Errorf("%w: %v", ErrOrphanAsset, cause),
		"owner", owner.String(),
		"handle", ref.Handle,
		"url", ref.URL,
	)
	m.report(ctx, Finding{
		Kind:      FindingOrphanAsset,
		Asset:     ref,
		OwnerKind: owner.Kind,
		OwnerID:   owner.ID,
		Cause:     cause.Error(),
	})
}
