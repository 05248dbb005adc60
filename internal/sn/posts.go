package sn

import (
	"context"
	"errors"
	"strings"

	"sn-go/internal/model"
)

// NewPost describes a post to publish.
type NewPost struct {
	AuthorID string
	Text     string
	Location string
	Media    *Upload
}

// CreatePost publishes a post. Text may be empty only when media is present.
// Media is uploaded before the post document is written.
func (s *SNService) CreatePost(ctx context.Context, np NewPost) (*PostView, error) {
	ctx, cancel := s.begin(ctx)
	defer cancel()

	text := strings.TrimSpace(np.Text)
	if text == "" && np.Media == nil {
		return nil, invalidInput("post needs text or media")
	}
	author, err := s.requireUser(ctx, np.AuthorID)
	if err != nil {
		return nil, err
	}

	p := &model.Post{
		ID:        s.idgen.New(),
		AuthorID:  np.AuthorID,
		Text:      text,
		Location:  strings.TrimSpace(np.Location),
		CreatedAt: s.clock.Now(),
	}
	create := func(ctx context.Context, fresh []model.MediaRef) ([]model.MediaRef, error) {
		if len(fresh) > 0 {
			p.Media = fresh[0]
		}
		if err := s.store.CreatePost(ctx, p); err != nil {
			return nil, storeErr("creating post", err)
		}
		return nil, nil
	}
	if _, err := s.lifecycle.ReplaceAssets(ctx, Owner{Kind: "post", ID: p.ID}, uploads(asImage(np.Media)), create); err != nil {
		return nil, err
	}

	s.logger.Info("post created", "post", p.ID, "author", p.AuthorID, "media", string(p.Media.Kind))
	return &PostView{Post: p, Author: newAuthor(author), Comments: []CommentView{}}, nil
}

// PostChanges is a partial update of a post. Nil fields are left alone.
type PostChanges struct {
	Text     *string
	Location *string
	Media    *Upload
}

// UpdatePost applies changes to a post. Replacing media follows
// upload -> swap -> delete old, and the old asset is deleted with its own
// kind, so a video replaced by an image is removed from the video namespace.
func (s *SNService) UpdatePost(ctx context.Context, postID string, ch PostChanges) (*model.Post, error) {
	ctx, cancel := s.begin(ctx)
	defer cancel()

	if ch.Text == nil && ch.Location == nil && ch.Media == nil {
		return nil, ErrNoUpdate
	}
	current, err := s.requirePost(ctx, postID)
	if err != nil {
		return nil, err
	}

	upd := model.PostUpdate{}
	if ch.Text != nil {
		text := strings.TrimSpace(*ch.Text)
		if text == "" && ch.Media == nil && current.Media.IsEmpty() {
			return nil, invalidInput("post needs text or media")
		}
		upd.Text = &text
	}
	if ch.Location != nil {
		loc := strings.TrimSpace(*ch.Location)
		upd.Location = &loc
	}

	swap := func(ctx context.Context, fresh []model.MediaRef) ([]model.MediaRef, error) {
		if len(fresh) > 0 {
			upd.Media = &fresh[0]
		}
		prev, err := s.store.UpdatePost(ctx, postID, upd)
		if err != nil {
			return nil, storeErr("updating post", err)
		}
		if upd.Media == nil {
			return nil, nil
		}
		return []model.MediaRef{prev.Media}, nil
	}
	if _, err := s.lifecycle.ReplaceAssets(ctx, Owner{Kind: "post", ID: postID}, uploads(asImage(ch.Media)), swap); err != nil {
		return nil, err
	}

	updated, err := s.requirePost(ctx, postID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("post updated", "post", postID)
	return updated, nil
}

// DeletePost deletes a post, its media and its whole thread.
//
// The post document is deleted first; if that fails nothing else happens.
// Its media is deleted next. Each comment is then deleted together with its
// image independently of the others: a failure on one comment is reported
// and the cascade moves on. Comments that could not be deleted remain
// dangling and are reported for reconciliation.
func (s *SNService) DeletePost(ctx context.Context, postID string) error {
	ctx, cancel := s.begin(ctx)
	defer cancel()

	err := s.lifecycle.DeleteOwner(ctx, Owner{Kind: "post", ID: postID}, func(ctx context.Context) ([]model.MediaRef, error) {
		deleted, err := s.store.DeletePost(ctx, postID)
		if err != nil {
			return nil, storeErr("deleting post", err)
		}
		if deleted == nil {
			return nil, notFound("post %s", postID)
		}
		return []model.MediaRef{deleted.Media}, nil
	})
	if err != nil {
		return err
	}

	threads, err := s.store.ListCommentsByPosts(ctx, []string{postID})
	if err != nil {
		s.logger.Warn("listing comments of deleted post failed", "post", postID, "error", err)
		s.report(ctx, Finding{Kind: FindingDanglingComment, OwnerKind: "post", OwnerID: postID, Cause: err.Error()})
		return nil
	}

	comments := threads[postID]
	for _, c := range comments {
		if err := s.deleteComment(ctx, c.ID); err != nil && !errors.Is(err, ErrNotFound) {
			s.logger.Warn("cascading comment delete failed", "post", postID, "comment", c.ID, "error", err)
			s.report(ctx, Finding{Kind: FindingDanglingComment, OwnerKind: "comment", OwnerID: c.ID, Cause: err.Error()})
		}
	}

	s.logger.Info("post deleted", "post", postID, "comments", len(comments))
	return nil
}

// GetPost returns a single post joined with its author and thread.
func (s *SNService) GetPost(ctx context.Context, postID string) (*PostView, error) {
	ctx, cancel := s.begin(ctx)
	defer cancel()

	p, err := s.requirePost(ctx, postID)
	if err != nil {
		return nil, err
	}
	views, err := s.joinPosts(ctx, []*model.Post{p})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *SNService) requirePost(ctx context.Context, id string) (*model.Post, error) {
	p, err := s.store.FindPostByID(ctx, id)
	if err != nil {
		return nil, storeErr("finding post", err)
	}
	if p == nil {
		return nil, notFound("post %s", id)
	}
	return p, nil
}
