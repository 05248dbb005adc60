package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"sn-go/internal/model"
	"sn-go/internal/sn"
)

// Post operations

const postColumns = `id, author_id, text, location, media_url, media_handle, media_kind, created_at`

func scanPost(row rowScanner) (*model.Post, error) {
	var p model.Post
	var kind string
	var created int64
	err := row.Scan(&p.ID, &p.AuthorID, &p.Text, &p.Location, &p.Media.URL, &p.Media.Handle, &kind, &created)
	if err != nil {
		return nil, err
	}
	if !p.Media.IsEmpty() {
		p.Media.Kind = model.MediaKind(kind)
	}
	p.CreatedAt = fromNanos(created)
	p.Likes = []string{}
	p.CommentIDs = []string{}
	return &p, nil
}

func (s *SQLiteStore) CreatePost(ctx context.Context, p *model.Post) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO posts (`+postColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.AuthorID, p.Text, p.Location, p.Media.URL, p.Media.Handle, string(p.Media.Kind), p.CreatedAt.UnixNano())
	return classify("creating post", err)
}

func (s *SQLiteStore) FindPostByID(ctx context.Context, id string) (*model.Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, "SELECT "+postColumns+" FROM posts WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, classify("finding post", err)
	}
	if err := s.attachPostSets(ctx, []*model.Post{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLiteStore) FindPosts(ctx context.Context, q model.PostQuery) ([]*model.Post, error) {
	posts := []*model.Post{}
	if len(q.AuthorIDs) == 0 || q.Limit <= 0 {
		return posts, nil
	}

	args := append(stringArgs(q.AuthorIDs), q.Limit, q.Skip)
	rows, err := s.db.QueryContext(ctx, "SELECT "+postColumns+` FROM posts
		WHERE author_id IN (`+placeholders(len(q.AuthorIDs))+`)
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, classify("finding posts", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, classify("finding posts", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("finding posts", err)
	}
	rows.Close()

	if err := s.attachPostSets(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// attachPostSets fills in like sets and comment IDs for posts in two queries.
func (s *SQLiteStore) attachPostSets(ctx context.Context, posts []*model.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	in := placeholders(len(ids))

	likes, err := s.queryPairs(ctx, "listing post likes",
		"SELECT post_id, user_id FROM post_likes WHERE post_id IN ("+in+") ORDER BY rowid", stringArgs(ids)...)
	if err != nil {
		return err
	}
	comments, err := s.queryPairs(ctx, "listing post comments",
		"SELECT post_id, id FROM comments WHERE post_id IN ("+in+") ORDER BY created_at, rowid", stringArgs(ids)...)
	if err != nil {
		return err
	}

	for _, p := range posts {
		if l := likes[p.ID]; l != nil {
			p.Likes = l
		}
		if c := comments[p.ID]; c != nil {
			p.CommentIDs = c
		}
	}
	return nil
}

func (s *SQLiteStore) UpdatePost(ctx context.Context, id string, upd model.PostUpdate) (*model.Post, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("starting transaction", err)
	}
	defer tx.Rollback()

	prev, err := scanPost(tx.QueryRowContext(ctx, "SELECT "+postColumns+" FROM posts WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("post %s: %w", id, sn.ErrNotFound)
	}
	if err != nil {
		return nil, classify("finding post", err)
	}

	var sets []string
	var args []any
	if upd.Text != nil {
		sets = append(sets, "text = ?")
		args = append(args, *upd.Text)
	}
	if upd.Location != nil {
		sets = append(sets, "location = ?")
		args = append(args, *upd.Location)
	}
	if upd.Media != nil {
		sets = append(sets, "media_url = ?", "media_handle = ?", "media_kind = ?")
		args = append(args, upd.Media.URL, upd.Media.Handle, string(upd.Media.Kind))
	}
	if len(sets) == 0 {
		return prev, nil
	}

	args = append(args, id)
	if _, err := tx.ExecContext(ctx, "UPDATE posts SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
		return nil, classify("updating post", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, classify("committing post update", err)
	}
	return prev, nil
}

func (s *SQLiteStore) DeletePost(ctx context.Context, id string) (*model.Post, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("starting transaction", err)
	}
	defer tx.Rollback()

	p, err := scanPost(tx.QueryRowContext(ctx, "SELECT "+postColumns+" FROM posts WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("finding post", err)
	}

	// post_likes rows go with the post via ON DELETE CASCADE.
	if _, err := tx.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", id); err != nil {
		return nil, classify("deleting post", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, classify("committing post delete", err)
	}
	return p, nil
}

// Like operations

// likeTable returns the set table and owner column for a likeable entity.
func likeTable(target model.Likeable) (table, column, owner string, err error) {
	switch target.LikeKind() {
	case model.PostEntity:
		return "post_likes", "post_id", "posts", nil
	case model.CommentEntity:
		return "comment_likes", "comment_id", "comments", nil
	default:
		return "", "", "", fmt.Errorf("%w: unknown like target %q", sn.ErrInvalidInput, target.LikeKind())
	}
}

func (s *SQLiteStore) AddLike(ctx context.Context, target model.Likeable, userID string) error {
	table, column, _, err := likeTable(target)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO "+table+" ("+column+", user_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
		target.LikeKey(), userID)
	return classify("adding like", err)
}

func (s *SQLiteStore) RemoveLike(ctx context.Context, target model.Likeable, userID string) error {
	table, column, owner, err := likeTable(target)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM "+table+" WHERE "+column+" = ? AND user_id = ?", target.LikeKey(), userID)
	if err != nil {
		return classify("removing like", err)
	}
	return s.requireAfterNoop(ctx, res, owner, target.LikeKey())
}

func (s *SQLiteStore) ListLikes(ctx context.Context, target model.Likeable) ([]string, error) {
	table, column, _, err := likeTable(target)
	if err != nil {
		return nil, err
	}
	return s.queryStrings(ctx, "listing likes",
		"SELECT user_id FROM "+table+" WHERE "+column+" = ? ORDER BY rowid", target.LikeKey())
}

// Comment operations

const commentColumns = `id, post_id, author_id, text, image_url, image_handle, created_at`

func scanComment(row rowScanner) (*model.Comment, error) {
	var c model.Comment
	var url, handle string
	var created int64
	if err := row.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Text, &url, &handle, &created); err != nil {
		return nil, err
	}
	c.Image = imageRef(url, handle)
	c.CreatedAt = fromNanos(created)
	c.Likes = []string{}
	return &c, nil
}

func (s *SQLiteStore) CreateComment(ctx context.Context, c *model.Comment) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO comments (`+commentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.PostID, c.AuthorID, c.Text, c.Image.URL, c.Image.Handle, c.CreatedAt.UnixNano())
	return classify("creating comment", err)
}

func (s *SQLiteStore) FindCommentByID(ctx context.Context, id string) (*model.Comment, error) {
	c, err := scanComment(s.db.QueryRowContext(ctx, "SELECT "+commentColumns+" FROM comments WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, classify("finding comment", err)
	}
	if c.Likes, err = s.ListLikes(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *SQLiteStore) ListCommentsByPosts(ctx context.Context, postIDs []string) (map[string][]*model.Comment, error) {
	out := make(map[string][]*model.Comment)
	if len(postIDs) == 0 {
		return out, nil
	}
	in := placeholders(len(postIDs))

	rows, err := s.db.QueryContext(ctx, "SELECT "+commentColumns+" FROM comments WHERE post_id IN ("+in+
		") ORDER BY created_at, rowid", stringArgs(postIDs)...)
	if err != nil {
		return nil, classify("listing comments", err)
	}
	defer rows.Close()

	byID := make(map[string]*model.Comment)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, classify("listing comments", err)
		}
		out[c.PostID] = append(out[c.PostID], c)
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, classify("listing comments", err)
	}
	rows.Close()

	if len(byID) == 0 {
		return out, nil
	}
	likes, err := s.queryPairs(ctx, "listing comment likes",
		`SELECT l.comment_id, l.user_id FROM comment_likes l
		JOIN comments c ON c.id = l.comment_id
		WHERE c.post_id IN (`+in+`) ORDER BY l.rowid`, stringArgs(postIDs)...)
	if err != nil {
		return nil, err
	}
	for id, users := range likes {
		if c := byID[id]; c != nil {
			c.Likes = users
		}
	}
	return out, nil
}

func (s *SQLiteStore) UpdateComment(ctx context.Context, id string, upd model.CommentUpdate) (*model.Comment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("starting transaction", err)
	}
	defer tx.Rollback()

	prev, err := scanComment(tx.QueryRowContext(ctx, "SELECT "+commentColumns+" FROM comments WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("comment %s: %w", id, sn.ErrNotFound)
	}
	if err != nil {
		return nil, classify("finding comment", err)
	}

	var sets []string
	var args []any
	if upd.Text != nil {
		sets = append(sets, "text = ?")
		args = append(args, *upd.Text)
	}
	if upd.Image != nil {
		sets = append(sets, "image_url = ?", "image_handle = ?")
		args = append(args, upd.Image.URL, upd.Image.Handle)
	}
	if len(sets) == 0 {
		return prev, nil
	}

	args = append(args, id)
	if _, err := tx.ExecContext(ctx, "UPDATE comments SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
		return nil, classify("updating comment", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, classify("committing comment update", err)
	}
	return prev, nil
}

func (s *SQLiteStore) DeleteComment(ctx context.Context, id string) (*model.Comment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("starting transaction", err)
	}
	defer tx.Rollback()

	c, err := scanComment(tx.QueryRowContext(ctx, "SELECT "+commentColumns+" FROM comments WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("finding comment", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM comments WHERE id = ?", id); err != nil {
		return nil, classify("deleting comment", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, classify("committing comment delete", err)
	}
	return c, nil
}
