package model

// EntityKind names a document type that carries a like set.
type EntityKind string

const (
	PostEntity    EntityKind = "post"
	CommentEntity EntityKind = "comment"
)

// Likeable is anything that has a like set identified by an ID.
// Posts and comments implement it, as do the lightweight PostRef and
// CommentRef handles used when only the ID is known.
type Likeable interface {
	LikeKind() EntityKind
	LikeKey() string
}

// PostRef addresses a post's like set by ID.
type PostRef string

func (r PostRef) LikeKind() EntityKind { return PostEntity }
func (r PostRef) LikeKey() string      { return string(r) }

// CommentRef addresses a comment's like set by ID.
type CommentRef string

func (r CommentRef) LikeKind() EntityKind { return CommentEntity }
func (r CommentRef) LikeKey() string      { return string(r) }

func (p *Post) LikeKind() EntityKind { return PostEntity }

// LikeKey is empty for a nil post, which callers reject as a missing target.
func (p *Post) LikeKey() string {
	if p == nil {
		return ""
	}
	return p.ID
}

func (c *Comment) LikeKind() EntityKind { return CommentEntity }

// LikeKey is empty for a nil comment.
func (c *Comment) LikeKey() string {
	if c == nil {
		return ""
	}
	return c.ID
}

var (
	_ Likeable = PostRef("")
	_ Likeable = CommentRef("")
	_ Likeable = (*Post)(nil)
	_ Likeable = (*Comment)(nil)
)
