package sn

import (
	"context"
	"fmt"

	"sn-go/internal/model"
)

// Follow records that followerID follows targetID.
//
// The edge is written on two user documents in order: the target's follower
// set first, then the follower's following set. The target side is the
// source of truth for reconciliation. If the second write fails the follow
// still succeeds and the asymmetry is reported. Following an already
// followed user is a no-op.
func (s *SNService) Follow(ctx context.Context, followerID, targetID string) error {
	ctx, cancel := s.begin(ctx)
	defer cancel()

	if err := s.checkEdge(followerID, targetID); err != nil {
		return err
	}
	if _, err := s.requireUser(ctx, followerID); err != nil {
		return err
	}
	if _, err := s.requireUser(ctx, targetID); err != nil {
		return err
	}

	if err := s.store.AddFollower(ctx, targetID, followerID); err != nil {
		return storeErr("adding follower", err)
	}
	if err := s.store.AddFollowing(ctx, followerID, targetID); err != nil {
		s.asymmetry(ctx, followerID, targetID, fmt.Errorf("adding following: %w", err))
		return nil
	}

	s.logger.Info("user followed", "follower", followerID, "target", targetID)
	return nil
}

// Unfollow removes the edge followerID -> targetID, target side first.
// Removing an edge that does not exist is a no-op. The target may already be
// gone, in which case only the follower's side is cleaned up.
func (s *SNService) Unfollow(ctx context.Context, followerID, targetID string) error {
	ctx, cancel := s.begin(ctx)
	defer cancel()

	if err := s.checkEdge(followerID, targetID); err != nil {
		return err
	}
	if _, err := s.requireUser(ctx, followerID); err != nil {
		return err
	}
	target, err := s.store.FindUserByID(ctx, targetID)
	if err != nil {
		return storeErr("finding target", err)
	}

	if target != nil {
		if err := s.store.RemoveFollower(ctx, targetID, followerID); err != nil {
			return storeErr("removing follower", err)
		}
	}
	if err := s.store.RemoveFollowing(ctx, followerID, targetID); err != nil {
		if target == nil {
			return storeErr("removing following", err)
		}
		s.asymmetry(ctx, followerID, targetID, fmt.Errorf("removing following: %w", err))
		return nil
	}

	s.logger.Info("user unfollowed", "follower", followerID, "target", targetID)
	return nil
}

// ListFollowers returns the IDs of the users following userID.
func (s *SNService) ListFollowers(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := s.begin(ctx)
	defer cancel()

	if _, err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	ids, err := s.store.ListFollowers(ctx, userID)
	if err != nil {
		return nil, storeErr("listing followers", err)
	}
	return ids, nil
}

// ListFollowing returns the IDs of the users userID follows.
func (s *SNService) ListFollowing(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := s.begin(ctx)
	defer cancel()

	if _, err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	ids, err := s.store.ListFollowing(ctx, userID)
	if err != nil {
		return nil, storeErr("listing following", err)
	}
	return ids, nil
}

func (s *SNService) checkEdge(followerID, targetID string) error {
	if followerID == "" || targetID == "" {
		return invalidInput("follower and target are required")
	}
	if followerID == targetID {
		return invalidInput("a user cannot follow themselves")
	}
	return nil
}

// requireUser loads a user or returns ErrNotFound.
func (s *SNService) requireUser(ctx context.Context, id string) (*model.User, error) {
	u, err := s.store.FindUserByID(ctx, id)
	if err != nil {
		return nil, storeErr("finding user", err)
	}
	if u == nil {
		return nil, notFound("user %s", id)
	}
	return u, nil
}

func (s *SNService) asymmetry(ctx context.Context, followerID, targetID string, cause error) {
	s.logger.Warn("follow graph left asymmetric", "follower", followerID, "target", targetID, "error", cause)
	s.report(ctx, Finding{
		Kind:       FindingGraphAsymmetry,
		FollowerID: followerID,
		TargetID:   targetID,
		Cause:      cause.Error(),
	})
}
