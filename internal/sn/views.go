package sn

import (
	"slices"

	"sn-go/internal/model"
)

// FeedPageSize is the fixed number of posts per feed page.
const FeedPageSize = 10

// Author is the public identity joined onto posts and comments.
type Author struct {
	ID              string
	Username        string
	Name            string
	ProfileImageURL string
}

func newAuthor(u *model.User) *Author {
	if u == nil {
		return nil
	}
	return &Author{
		ID:              u.ID,
		Username:        u.Username,
		Name:            u.Name,
		ProfileImageURL: u.ProfileImage.URL,
	}
}

// CommentView is a comment joined with its author. Author is nil when the
// author no longer exists.
type CommentView struct {
	Comment *model.Comment
	Author  *Author
}

// PostView is a post joined with its author and its thread. Author is nil
// when the author no longer exists.
type PostView struct {
	Post     *model.Post
	Author   *Author
	Comments []CommentView
}

// LikeCount returns the size of the post's like set.
func (v PostView) LikeCount() int { return len(v.Post.Likes) }

// LikedBy reports whether userID is in the post's like set.
func (v PostView) LikedBy(userID string) bool { return slices.Contains(v.Post.Likes, userID) }

// FeedPage is one window of a feed, newest first.
type FeedPage struct {
	Page    int
	Posts   []PostView
	HasMore bool
}
