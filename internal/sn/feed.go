package sn

import (
	"context"
	"math"

	"github.com/samber/lo"

	"sn-go/internal/model"
)

// ProfileFeed returns page of the posts written by authorID, newest first.
// The author does not have to exist any more; their remaining posts render
// with a nil Author.
func (s *SNService) ProfileFeed(ctx context.Context, authorID string, page int) (*FeedPage, error) {
	ctx, cancel := s.begin(ctx)
	defer cancel()

	if authorID == "" {
		return nil, invalidInput("author is required")
	}
	return s.feed(ctx, []string{authorID}, page)
}

// HomeFeed returns page of the posts written by viewerID or anyone viewerID
// follows, newest first.
func (s *SNService) HomeFeed(ctx context.Context, viewerID string, page int) (*FeedPage, error) {
	ctx, cancel := s.begin(ctx)
	defer cancel()

	if _, err := s.requireUser(ctx, viewerID); err != nil {
		return nil, err
	}
	following, err := s.store.ListFollowing(ctx, viewerID)
	if err != nil {
		return nil, storeErr("listing following", err)
	}
	audience := lo.Uniq(append([]string{viewerID}, following...))
	return s.feed(ctx, audience, page)
}

// feed windows the posts of audience. Pages are 1-indexed; page N starts at
// offset (N-1)*FeedPageSize. One extra post is fetched to compute HasMore.
func (s *SNService) feed(ctx context.Context, audience []string, page int) (*FeedPage, error) {
	if page < 1 {
		return nil, invalidInput("page must be a positive integer, got %d", page)
	}
	// Past this page the offset overflows, and no store holds that many posts.
	if page-1 > math.MaxInt/FeedPageSize {
		return &FeedPage{Page: page}, nil
	}

	posts, err := s.store.FindPosts(ctx, model.PostQuery{
		AuthorIDs: audience,
		Skip:      (page - 1) * FeedPageSize,
		Limit:     FeedPageSize + 1,
	})
	if err != nil {
		return nil, storeErr("finding posts", err)
	}

	hasMore := len(posts) > FeedPageSize
	if hasMore {
		posts = posts[:FeedPageSize]
	}

	views, err := s.joinPosts(ctx, posts)
	if err != nil {
		return nil, err
	}
	return &FeedPage{Page: page, Posts: views, HasMore: hasMore}, nil
}

// joinPosts attaches authors and threads to posts in two batched reads.
// Missing authors and commenters become nil joins rather than errors.
func (s *SNService) joinPosts(ctx context.Context, posts []*model.Post) ([]PostView, error) {
	if len(posts) == 0 {
		return []PostView{}, nil
	}

	postIDs := lo.Map(posts, func(p *model.Post, _ int) string { return p.ID })
	threads, err := s.store.ListCommentsByPosts(ctx, postIDs)
	if err != nil {
		return nil, storeErr("listing comments", err)
	}

	userIDs := lo.Map(posts, func(p *model.Post, _ int) string { return p.AuthorID })
	for _, thread := range threads {
		userIDs = append(userIDs, lo.Map(thread, func(c *model.Comment, _ int) string { return c.AuthorID })...)
	}
	users, err := s.store.FindUsersByIDs(ctx, lo.Uniq(userIDs))
	if err != nil {
		return nil, storeErr("finding authors", err)
	}

	views := make([]PostView, 0, len(posts))
	for _, p := range posts {
		if p.Likes == nil {
			p.Likes = []string{}
		}
		thread := threads[p.ID]
		p.CommentIDs = lo.Map(thread, func(c *model.Comment, _ int) string { return c.ID })

		comments := make([]CommentView, 0, len(thread))
		for _, c := range thread {
			if c.Likes == nil {
				c.Likes = []string{}
			}
			comments = append(comments, CommentView{Comment: c, Author: newAuthor(users[c.AuthorID])})
		}
		views = append(views, PostView{
			Post:     p,
			Author:   newAuthor(users[p.AuthorID]),
			Comments: comments,
		})
	}
	return views, nil
}
