package sn

import (
	"context"
	"strings"

	"sn-go/internal/model"
)

// ToggleLike sets the actor's membership in target's like set to desired and
// returns the resulting membership. Repeating a toggle is a no-op, so
// concurrent toggles from different actors commute.
func (s *SNService) ToggleLike(ctx context.Context, target model.Likeable, actorID string, desired bool) (bool, error) {
	ctx, cancel := s.begin(ctx)
	defer cancel()

	if actorID == "" {
		return false, invalidInput("actor is required")
	}
	if err := s.requireLikeable(ctx, target); err != nil {
		return false, err
	}

	if desired {
		if err := s.store.AddLike(ctx, target, actorID); err != nil {
			return false, storeErr("adding like", err)
		}
	} else {
		if err := s.store.RemoveLike(ctx, target, actorID); err != nil {
			return false, storeErr("removing like", err)
		}
	}

	s.logger.Debug("like toggled", "kind", string(target.LikeKind()), "id", target.LikeKey(), "actor", actorID, "liked", desired)
	return desired, nil
}

// requireLikeable checks that the entity behind target exists.
func (s *SNService) requireLikeable(ctx context.Context, target model.Likeable) error {
	if target == nil || target.LikeKey() == "" {
		return invalidInput("like target is required")
	}
	switch target.LikeKind() {
	case model.PostEntity:
		_, err := s.requirePost(ctx, target.LikeKey())
		return err
	case model.CommentEntity:
		_, err := s.requireComment(ctx, target.LikeKey())
		return err
	default:
		return invalidInput("unknown like target %q", target.LikeKind())
	}
}

// AddComment appends a comment to postID's thread. text may be empty only
// when image is supplied. The image is uploaded before the comment document
// is written; if the write fails the upload is reported as an orphan.
func (s *SNService) AddComment(ctx context.Context, postID, authorID, text string, image *Upload) (*CommentView, error) {
	ctx, cancel := s.begin(ctx)
	defer cancel()

	text = strings.TrimSpace(text)
	if text == "" && image == nil {
		return nil, invalidInput("comment needs text or an image")
	}
	if _, err := s.requirePost(ctx, postID); err != nil {
		return nil, err
	}
	author, err := s.requireUser(ctx, authorID)
	if err != nil {
		return nil, err
	}

	c := &model.Comment{
		ID:        s.idgen.New(),
		PostID:    postID,
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: s.clock.Now(),
	}
	owner := Owner{Kind: "comment", ID: c.ID}
	create := func(ctx context.Context, fresh []model.MediaRef) ([]model.MediaRef, error) {
		if len(fresh) > 0 {
			c.Image = fresh[0]
		}
		if err := s.store.CreateComment(ctx, c); err != nil {
			return nil, storeErr("creating comment", err)
		}
		return nil, nil
	}
	if _, err := s.lifecycle.ReplaceAssets(ctx, owner, uploads(asImage(image)), create); err != nil {
		return nil, err
	}

	s.logger.Info("comment added", "post", postID, "comment", c.ID, "author", authorID)
	return &CommentView{Comment: c, Author: newAuthor(author)}, nil
}

// UpdateComment changes a comment's text, image or both. At least one must be
// supplied, otherwise ErrNoUpdate is returned. A new image is uploaded first,
// swapped onto the comment, and only then is the old image deleted.
func (s *SNService) UpdateComment(ctx context.Context, commentID string, text *string, image *Upload) (*model.Comment, error) {
	ctx, cancel := s.begin(ctx)
	defer cancel()

	if text == nil && image == nil {
		return nil, ErrNoUpdate
	}
	current, err := s.requireComment(ctx, commentID)
	if err != nil {
		return nil, err
	}

	upd := model.CommentUpdate{}
	if text != nil {
		trimmed := strings.TrimSpace(*text)
		if trimmed == "" && image == nil && current.Image.IsEmpty() {
			return nil, invalidInput("comment needs text or an image")
		}
		upd.Text = &trimmed
	}

	swap := func(ctx context.Context, fresh []model.MediaRef) ([]model.MediaRef, error) {
		if len(fresh) > 0 {
			upd.Image = &fresh[0]
		}
		prev, err := s.store.UpdateComment(ctx, commentID, upd)
		if err != nil {
			return nil, storeErr("updating comment", err)
		}
		if upd.Image == nil {
			return nil, nil
		}
		return []model.MediaRef{prev.Image}, nil
	}
	if _, err := s.lifecycle.ReplaceAssets(ctx, Owner{Kind: "comment", ID: commentID}, uploads(asImage(image)), swap); err != nil {
		return nil, err
	}

	updated, err := s.requireComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("comment updated", "comment", commentID)
	return updated, nil
}

// DeleteComment removes commentID from postID's thread. The comment document
// goes first and its image second; a failed image delete is reported as an
// orphan and the call still succeeds.
func (s *SNService) DeleteComment(ctx context.Context, postID, commentID string) error {
	ctx, cancel := s.begin(ctx)
	defer cancel()

	c, err := s.requireComment(ctx, commentID)
	if err != nil {
		return err
	}
	if c.PostID != postID {
		return notFound("comment %s on post %s", commentID, postID)
	}

	if err := s.deleteComment(ctx, commentID); err != nil {
		return err
	}
	s.logger.Info("comment deleted", "post", postID, "comment", commentID)
	return nil
}

// deleteComment deletes one comment document and then its image.
func (s *SNService) deleteComment(ctx context.Context, commentID string) error {
	return s.lifecycle.DeleteOwner(ctx, Owner{Kind: "comment", ID: commentID}, func(ctx context.Context) ([]model.MediaRef, error) {
		deleted, err := s.store.DeleteComment(ctx, commentID)
		if err != nil {
			return nil, storeErr("deleting comment", err)
		}
		if deleted == nil {
			return nil, notFound("comment %s", commentID)
		}
		return []model.MediaRef{deleted.Image}, nil
	})
}

func (s *SNService) requireComment(ctx context.Context, id string) (*model.Comment, error) {
	c, err := s.store.FindCommentByID(ctx, id)
	if err != nil {
		return nil, storeErr("finding comment", err)
	}
	if c == nil {
		return nil, notFound("comment %s", id)
	}
	return c, nil
}

// asImage defaults an upload without a kind to an image.
func asImage(up *Upload) *Upload {
	if up == nil || up.Kind != "" {
		return up
	}
	img := *up
	img.Kind = model.MediaImage
	return &img
}

// uploads turns an optional upload into the slice ReplaceAssets expects.
func uploads(ups ...*Upload) []Upload {
	var out []Upload
	for _, up := range ups {
		if up != nil {
			out = append(out, *up)
		}
	}
	return out
}
