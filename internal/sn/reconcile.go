package sn

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"

	"sn-go/internal/model"
)

// reconcileBatch is the number of users read per page during a graph pass.
const reconcileBatch = 100

// GraphReport summarizes a follow graph reconciliation pass.
type GraphReport struct {
	UsersScanned     int
	FollowingAdded   int // interrupted follows completed
	FollowingRemoved int // interrupted unfollows completed, or targets gone
	FollowersRemoved int // followers that no longer exist
}

// ReconcileGraph scans every user and repairs one-sided follow edges.
//
// Follow and unfollow both write the target's follower set first, so the
// follower set is authoritative: a follower entry without the matching
// following entry is an interrupted follow and gets completed, a following
// entry without the matching follower entry is an interrupted unfollow and
// gets removed. Edges pointing at deleted users are dropped.
func (s *SNService) ReconcileGraph(ctx context.Context) (*GraphReport, error) {
	report := &GraphReport{}
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		ids, err := s.store.ListUserIDs(ctx, after, reconcileBatch)
		if err != nil {
			return report, storeErr("listing users", err)
		}
		if len(ids) == 0 {
			break
		}
		for _, id := range ids {
			if err := s.reconcileUser(ctx, id, report); err != nil {
				return report, fmt.Errorf("reconciling user %s: %w", id, err)
			}
			report.UsersScanned++
		}
		after = ids[len(ids)-1]
	}

	s.logger.Info("follow graph reconciled",
		"users", report.UsersScanned,
		"following_added", report.FollowingAdded,
		"following_removed", report.FollowingRemoved,
		"followers_removed", report.FollowersRemoved,
	)
	return report, nil
}

func (s *SNService) reconcileUser(ctx context.Context, userID string, report *GraphReport) error {
	ctx, cancel := s.begin(ctx)
	defer cancel()
	src := s.authoritative()

	followers, err := src.ListFollowers(ctx, userID)
	if err != nil {
		return storeErr("listing followers", err)
	}
	following, err := src.ListFollowing(ctx, userID)
	if err != nil {
		return storeErr("listing following", err)
	}
	existing, err := src.FindUsersByIDs(ctx, lo.Uniq(append(slices.Clone(followers), following...)))
	if err != nil {
		return storeErr("finding users", err)
	}

	for _, f := range followers {
		if existing[f] == nil {
			if err := s.store.RemoveFollower(ctx, userID, f); err != nil {
				return storeErr("removing follower", err)
			}
			report.FollowersRemoved++
			continue
		}
		theirs, err := src.ListFollowing(ctx, f)
		if err != nil {
			return storeErr("listing following", err)
		}
		if !slices.Contains(theirs, userID) {
			if err := s.store.AddFollowing(ctx, f, userID); err != nil {
				return storeErr("adding following", err)
			}
			s.logger.Info("completed interrupted follow", "follower", f, "target", userID)
			report.FollowingAdded++
		}
	}

	for _, t := range following {
		keep := existing[t] != nil
		if keep {
			theirs, err := src.ListFollowers(ctx, t)
			if err != nil {
				return storeErr("listing followers", err)
			}
			keep = slices.Contains(theirs, userID)
		}
		if !keep {
			if err := s.store.RemoveFollowing(ctx, userID, t); err != nil {
				return storeErr("removing following", err)
			}
			s.logger.Info("completed interrupted unfollow", "follower", userID, "target", t)
			report.FollowingRemoved++
		}
	}
	return nil
}

// ResolveFinding repairs a single reported inconsistency. It is the
// consumer-side counterpart of the FindingSink and is safe to call more
// than once for the same finding. A transient error means the finding
// should be retried later.
func (s *SNService) ResolveFinding(ctx context.Context, f Finding) error {
	ctx, cancel := s.begin(ctx)
	defer cancel()

	switch f.Kind {
	case FindingOrphanAsset:
		return s.resolveOrphan(ctx, f)
	case FindingGraphAsymmetry:
		return s.resolveAsymmetry(ctx, f.FollowerID, f.TargetID)
	case FindingDanglingComment:
		return s.resolveDanglingComment(ctx, f)
	default:
		return invalidInput("unknown finding kind %q", f.Kind)
	}
}

// resolveOrphan deletes an orphaned asset unless its owner took it back,
// which happens when a swap committed but reported an error.
func (s *SNService) resolveOrphan(ctx context.Context, f Finding) error {
	if f.Asset.Handle == "" {
		return invalidInput("orphan finding has no handle")
	}
	inUse, err := s.assetInUse(ctx, f)
	if err != nil {
		return err
	}
	if inUse {
		s.logger.Info("orphan candidate still referenced", "owner_kind", f.OwnerKind, "owner_id", f.OwnerID, "handle", f.Asset.Handle)
		return nil
	}
	kind := f.Asset.Kind
	if !kind.Valid() {
		kind = model.MediaImage
	}
	if err := s.media.Delete(ctx, f.Asset.Handle, kind); err != nil {
		return mediaErr("deleting orphan", err)
	}
	s.logger.Info("orphan asset deleted", "handle", f.Asset.Handle)
	return nil
}

func (s *SNService) assetInUse(ctx context.Context, f Finding) (bool, error) {
	var refs []model.MediaRef
	switch f.OwnerKind {
	case "user":
		u, err := s.store.FindUserByID(ctx, f.OwnerID)
		if err != nil {
			return false, storeErr("finding user", err)
		}
		if u != nil {
			refs = []model.MediaRef{u.ProfileImage, u.CoverImage}
		}
	case "post":
		p, err := s.store.FindPostByID(ctx, f.OwnerID)
		if err != nil {
			return false, storeErr("finding post", err)
		}
		if p != nil {
			refs = []model.MediaRef{p.Media}
		}
	case "comment":
		c, err := s.store.FindCommentByID(ctx, f.OwnerID)
		if err != nil {
			return false, storeErr("finding comment", err)
		}
		if c != nil {
			refs = []model.MediaRef{c.Image}
		}
	}
	return lo.ContainsBy(refs, func(r model.MediaRef) bool { return r.Handle == f.Asset.Handle }), nil
}

// resolveAsymmetry makes the follower's side agree with the target's side.
func (s *SNService) resolveAsymmetry(ctx context.Context, followerID, targetID string) error {
	if followerID == "" || targetID == "" {
		return invalidInput("asymmetry finding needs follower and target")
	}
	follower, err := s.store.FindUserByID(ctx, followerID)
	if err != nil {
		return storeErr("finding follower", err)
	}
	if follower == nil {
		return nil
	}
	target, err := s.store.FindUserByID(ctx, targetID)
	if err != nil {
		return storeErr("finding target", err)
	}

	followed := target != nil && slices.Contains(target.Followers, followerID)
	listed := slices.Contains(follower.Following, targetID)
	switch {
	case followed && !listed:
		err = s.store.AddFollowing(ctx, followerID, targetID)
	case !followed && listed:
		err = s.store.RemoveFollowing(ctx, followerID, targetID)
	default:
		return nil
	}
	if err != nil {
		return storeErr("repairing follow edge", err)
	}
	s.logger.Info("follow edge repaired", "follower", followerID, "target", targetID, "followed", followed)
	return nil
}

// resolveDanglingComment deletes a comment whose post no longer exists.
func (s *SNService) resolveDanglingComment(ctx context.Context, f Finding) error {
	switch f.OwnerKind {
	case "comment":
		c, err := s.store.FindCommentByID(ctx, f.OwnerID)
		if err != nil {
			return storeErr("finding comment", err)
		}
		if c == nil {
			return nil
		}
		p, err := s.store.FindPostByID(ctx, c.PostID)
		if err != nil {
			return storeErr("finding post", err)
		}
		if p != nil {
			return nil
		}
		if err := s.deleteComment(ctx, c.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		return nil
	case "post":
		p, err := s.store.FindPostByID(ctx, f.OwnerID)
		if err != nil {
			return storeErr("finding post", err)
		}
		if p != nil {
			return nil
		}
		threads, err := s.store.ListCommentsByPosts(ctx, []string{f.OwnerID})
		if err != nil {
			return storeErr("listing comments", err)
		}
		for _, c := range threads[f.OwnerID] {
			if err := s.deleteComment(ctx, c.ID); err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
		}
		return nil
	default:
		return invalidInput("dangling comment finding has owner kind %q", f.OwnerKind)
	}
}
