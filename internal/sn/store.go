package sn

import (
	"context"

	"sn-go/internal/model"
)

// Store provides an interface for document persistence.
//
// Every method commits atomically against a single document (or, for the
// relational backend, the rows that make up a single document). Nothing spans
// documents: multi-document operations are sequenced by the service layer.
//
// Find methods return (nil, nil) when the document does not exist. Mutations
// of a missing document return an error wrapping ErrNotFound. Unique field
// violations wrap ErrConflict. Backend failures are returned as ExternalError.
type Store interface {
	// User operations

	// CreateUser inserts a new user. Username and email must be unique.
	CreateUser(ctx context.Context, u *model.User) error

	// FindUserByID returns a user with its follower and following sets.
	FindUserByID(ctx context.Context, id string) (*model.User, error)

	// FindUserByUsername returns a user by exact username.
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)

	// FindUserByEmail returns a user by exact email.
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)

	// FindUsersByIDs returns the users that exist among ids, keyed by ID.
	// Follow sets are not populated.
	FindUsersByIDs(ctx context.Context, ids []string) (map[string]*model.User, error)

	// SearchUsersByName returns users whose name contains fragment, case-insensitively.
	SearchUsersByName(ctx context.Context, fragment string, limit int) ([]*model.User, error)

	// ListUserIDs returns user IDs greater than afterID in ascending order.
	ListUserIDs(ctx context.Context, afterID string, limit int) ([]string, error)

	// UpdateUser applies upd and returns the user as it was before the update.
	UpdateUser(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error)

	// Follow graph operations. Each call touches exactly one user document.

	// AddFollower adds followerID to userID's follower set. Re-adding is a no-op.
	AddFollower(ctx context.Context, userID, followerID string) error

	// RemoveFollower removes followerID from userID's follower set.
	RemoveFollower(ctx context.Context, userID, followerID string) error

	// AddFollowing adds targetID to userID's following set. Re-adding is a no-op.
	AddFollowing(ctx context.Context, userID, targetID string) error

	// RemoveFollowing removes targetID from userID's following set.
	RemoveFollowing(ctx context.Context, userID, targetID string) error

	// ListFollowers returns the follower set of userID.
	ListFollowers(ctx context.Context, userID string) ([]string, error)

	// ListFollowing returns the following set of userID.
	ListFollowing(ctx context.Context, userID string) ([]string, error)

	// Post operations

	// CreatePost inserts a new post.
	CreatePost(ctx context.Context, p *model.Post) error

	// FindPostByID returns a post with its like set and comment IDs.
	FindPostByID(ctx context.Context, id string) (*model.Post, error)

	// FindPosts returns posts by any of q.AuthorIDs, ordered by creation time
	// descending with ID descending as the tie-break, windowed by Skip/Limit.
	FindPosts(ctx context.Context, q model.PostQuery) ([]*model.Post, error)

	// UpdatePost applies upd and returns the post as it was before the update.
	UpdatePost(ctx context.Context, id string, upd model.PostUpdate) (*model.Post, error)

	// DeletePost removes a post and its like set, returning the deleted post.
	// Comments are not touched. Returns (nil, nil) if the post did not exist.
	DeletePost(ctx context.Context, id string) (*model.Post, error)

	// Like operations, addressed through the Likeable capability.

	// AddLike adds userID to the target's like set. Re-adding is a no-op.
	AddLike(ctx context.Context, target model.Likeable, userID string) error

	// RemoveLike removes userID from the target's like set.
	RemoveLike(ctx context.Context, target model.Likeable, userID string) error

	// ListLikes returns the target's like set.
	ListLikes(ctx context.Context, target model.Likeable) ([]string, error)

	// Comment operations

	// CreateComment inserts a comment. The comment joins the thread of
	// c.PostID in the same write.
	CreateComment(ctx context.Context, c *model.Comment) error

	// FindCommentByID returns a comment with its like set.
	FindCommentByID(ctx context.Context, id string) (*model.Comment, error)

	// ListCommentsByPosts returns the threads of the given posts in insertion
	// order, keyed by post ID.
	ListCommentsByPosts(ctx context.Context, postIDs []string) (map[string][]*model.Comment, error)

	// UpdateComment applies upd and returns the comment as it was before the update.
	UpdateComment(ctx context.Context, id string, upd model.CommentUpdate) (*model.Comment, error)

	// DeleteComment removes a comment and its like set, returning the deleted
	// comment. Returns (nil, nil) if the comment did not exist.
	DeleteComment(ctx context.Context, id string) (*model.Comment, error)

	// Lifecycle

	// Ping verifies the store is reachable and its schema is current.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}

// CachedStore is implemented by Store decorators that serve some reads from
// a cache. Repairs read through Uncached so they decide from the documents
// themselves; their writes still go through the decorator.
type CachedStore interface {
	Store
	Uncached() Store
}
