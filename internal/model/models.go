package model

import (
	"strings"
	"time"
)

// MediaKind distinguishes how an asset is stored and later destroyed.
// Object stores keep images and videos in separate namespaces, so the kind
// must travel with the deletion handle.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Valid reports whether k is a known media kind.
func (k MediaKind) Valid() bool {
	return k == MediaImage || k == MediaVideo
}

// MediaKindFromFilename guesses the media kind from a file extension.
// Anything that is not a known video container is treated as an image.
func MediaKindFromFilename(name string) MediaKind {
	lower := strings.ToLower(name)
	for _, ext := range []string{".mp4", ".mov", ".webm", ".mkv", ".avi", ".m4v"} {
		if strings.HasSuffix(lower, ext) {
			return MediaVideo
		}
	}
	return MediaImage
}

// MediaRef identifies a stored external asset.
// URL and Handle are either both set or both empty.
type MediaRef struct {
	URL    string    // public URL
	Handle string    // deletion handle understood by the media store
	Kind   MediaKind // image or video
}

// IsEmpty reports whether the reference points at no asset.
func (r MediaRef) IsEmpty() bool {
	return r.URL == "" && r.Handle == ""
}

// Valid reports whether the URL/handle pair is consistent.
func (r MediaRef) Valid() bool {
	return (r.URL == "") == (r.Handle == "")
}

// SocialLinks holds the optional external profile links of a user.
type SocialLinks struct {
	Facebook  string
	Instagram string
	Twitter   string
}

// User is an account in the social graph.
type User struct {
	ID           string // UUID
	Username     string // unique
	Email        string // unique
	Name         string
	PasswordHash string // opaque to the core
	Bio          string
	Links        SocialLinks
	ProfileImage MediaRef
	CoverImage   MediaRef
	Followers    []string // user IDs following this user
	Following    []string // user IDs this user follows
	CreatedAt    time.Time
}

// ImageSlot names one of the two media references a user owns.
type ImageSlot string

const (
	ProfileImageSlot ImageSlot = "profile"
	CoverImageSlot   ImageSlot = "cover"
)

// Image returns the reference held in the given slot.
func (u *User) Image(slot ImageSlot) MediaRef {
	if slot == CoverImageSlot {
		return u.CoverImage
	}
	return u.ProfileImage
}

// UserUpdate is a partial update applied atomically to one user document.
// Nil fields are left untouched.
type UserUpdate struct {
	Name         *string
	Bio          *string
	Links        *SocialLinks
	PasswordHash *string
	ProfileImage *MediaRef
	CoverImage   *MediaRef
}

// IsEmpty reports whether the update changes nothing.
func (u UserUpdate) IsEmpty() bool {
	return u.Name == nil && u.Bio == nil && u.Links == nil && u.PasswordHash == nil &&
		u.ProfileImage == nil && u.CoverImage == nil
}

// Post is a published entry on an author's profile.
type Post struct {
	ID         string // UUID
	AuthorID   string // immutable after creation
	Text       string
	Location   string
	Media      MediaRef
	Likes      []string // user IDs, no duplicates
	CommentIDs []string // insertion order
	CreatedAt  time.Time
}

// PostUpdate is a partial update applied atomically to one post document.
type PostUpdate struct {
	Text     *string
	Location *string
	Media    *MediaRef
}

// PostQuery selects a window of posts by author, newest first.
type PostQuery struct {
	AuthorIDs []string
	Skip      int
	Limit     int
}

// Comment is a reply attached to a post.
// PostID is the back-link that defines membership in the post's thread.
type Comment struct {
	ID        string // UUID
	PostID    string
	AuthorID  string
	Text      string
	Image     MediaRef
	Likes     []string
	CreatedAt time.Time
}

// CommentUpdate is a partial update applied atomically to one comment document.
type CommentUpdate struct {
	Text  *string
	Image *MediaRef
}
