package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"sn-go/internal/database/migrations"
	"sn-go/internal/model"
	"sn-go/internal/sn"
)

// SQLiteStore implements the sn.Store interface using SQLite.
//
// Each document maps to a row plus its set tables (follow edges, likes).
// Methods that read-modify-write a document run in a transaction confined to
// that document's rows; nothing ever spans two documents.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewSQLiteStore opens the database at path and applies pending migrations.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return &SQLiteStore{db: db, path: path, now: time.Now}, nil
}

// OpenConnection opens and configures a SQLite connection pool.
// Pragmas go in the DSN so that every pooled connection gets them.
func OpenConnection(path string) (*sql.DB, error) {
	dsn := path + "?_foreign_keys=on&_busy_timeout=5000"
	if path != ":memory:" {
		dsn += "&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// classify maps driver errors onto the sn error taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		switch {
		case serr.ExtendedCode == sqlite3.ErrConstraintUnique || serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%s: %w: %v", op, sn.ErrConflict, err)
		case serr.ExtendedCode == sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%s: %w: %v", op, sn.ErrNotFound, err)
		case serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked:
			return sn.NewExternalError("store", op, true, err)
		}
	}
	return sn.NewExternalError("store", op, false, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// placeholders returns "?, ?, ?" for n parameters.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func imageRef(url, handle string) model.MediaRef {
	if url == "" && handle == "" {
		return model.MediaRef{}
	}
	return model.MediaRef{URL: url, Handle: handle, Kind: model.MediaImage}
}

// queryStrings runs a single-column query and collects the results.
func (s *SQLiteStore) queryStrings(ctx context.Context, op, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, classify(op, err)
		}
		out = append(out, v)
	}
	return out, classify(op, rows.Err())
}

// queryPairs runs a two-column (key, value) query and groups values by key.
func (s *SQLiteStore) queryPairs(ctx context.Context, op, query string, args ...any) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, classify(op, err)
		}
		out[k] = append(out[k], v)
	}
	return out, classify(op, rows.Err())
}

// exists reports whether a row with the given id is present in table.
func (s *SQLiteStore) exists(ctx context.Context, table, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, classify("checking "+table, err)
	}
	return true, nil
}

// requireAfterNoop turns a zero-row mutation on a missing owner into ErrNotFound.
func (s *SQLiteStore) requireAfterNoop(ctx context.Context, res sql.Result, table, id string) error {
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return nil
	}
	ok, err := s.exists(ctx, table, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s %s: %w", strings.TrimSuffix(table, "s"), id, sn.ErrNotFound)
	}
	return nil
}

// User operations

const userColumns = `id, username, email, name, password_hash, bio, facebook, instagram, twitter,
	profile_image_url, profile_image_handle, cover_image_url, cover_image_handle, created_at`

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	var profileURL, profileHandle, coverURL, coverHandle string
	var created int64
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Name, &u.PasswordHash, &u.Bio,
		&u.Links.Facebook, &u.Links.Instagram, &u.Links.Twitter,
		&profileURL, &profileHandle, &coverURL, &coverHandle, &created)
	if err != nil {
		return nil, err
	}
	u.ProfileImage = imageRef(profileURL, profileHandle)
	u.CoverImage = imageRef(coverURL, coverHandle)
	u.CreatedAt = fromNanos(created)
	return &u, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.Name, u.PasswordHash, u.Bio,
		u.Links.Facebook, u.Links.Instagram, u.Links.Twitter,
		u.ProfileImage.URL, u.ProfileImage.Handle, u.CoverImage.URL, u.CoverImage.Handle,
		u.CreatedAt.UnixNano())
	return classify("creating user", err)
}

func (s *SQLiteStore) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.findUser(ctx, "id", id)
}

func (s *SQLiteStore) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.findUser(ctx, "username", username)
}

func (s *SQLiteStore) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findUser(ctx, "email", email)
}

// findUser loads one user by a unique column, including both follow sets.
func (s *SQLiteStore) findUser(ctx context.Context, column, value string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+column+" = ?", value)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, classify("finding user", err)
	}

	if u.Followers, err = s.ListFollowers(ctx, u.ID); err != nil {
		return nil, err
	}
	if u.Following, err = s.ListFollowing(ctx, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *SQLiteStore) FindUsersByIDs(ctx context.Context, ids []string) (map[string]*model.User, error) {
	out := make(map[string]*model.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id IN ("+placeholders(len(ids))+")", stringArgs(ids)...)
	if err != nil {
		return nil, classify("finding users", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, classify("finding users", err)
		}
		out[u.ID] = u
	}
	return out, classify("finding users", rows.Err())
}

func (s *SQLiteStore) SearchUsersByName(ctx context.Context, fragment string, limit int) ([]*model.User, error) {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(fragment)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+userColumns+` FROM users WHERE name LIKE ? ESCAPE '\' ORDER BY name COLLATE NOCASE, id LIMIT ?`,
		"%"+escaped+"%", limit)
	if err != nil {
		return nil, classify("searching users", err)
	}
	defer rows.Close()

	out := []*model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, classify("searching users", err)
		}
		out = append(out, u)
	}
	return out, classify("searching users", rows.Err())
}

func (s *SQLiteStore) ListUserIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	return s.queryStrings(ctx, "listing users",
		"SELECT id FROM users WHERE id > ? ORDER BY id LIMIT ?", afterID, limit)
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("starting transaction", err)
	}
	defer tx.Rollback()

	prev, err := scanUser(tx.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, sn.ErrNotFound)
	}
	if err != nil {
		return nil, classify("finding user", err)
	}

	var sets []string
	var args []any
	set := func(column string, v any) {
		sets = append(sets, column+" = ?")
		args = append(args, v)
	}
	if upd.Name != nil {
		set("name", *upd.Name)
	}
	if upd.Bio != nil {
		set("bio", *upd.Bio)
	}
	if upd.Links != nil {
		set("facebook", upd.Links.Facebook)
		set("instagram", upd.Links.Instagram)
		set("twitter", upd.Links.Twitter)
	}
	if upd.PasswordHash != nil {
		set("password_hash", *upd.PasswordHash)
	}
	if upd.ProfileImage != nil {
		set("profile_image_url", upd.ProfileImage.URL)
		set("profile_image_handle", upd.ProfileImage.Handle)
	}
	if upd.CoverImage != nil {
		set("cover_image_url", upd.CoverImage.URL)
		set("cover_image_handle", upd.CoverImage.Handle)
	}
	if len(sets) == 0 {
		return prev, nil
	}

	args = append(args, id)
	if _, err := tx.ExecContext(ctx, "UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
		return nil, classify("updating user", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, classify("committing user update", err)
	}
	return prev, nil
}

// Follow graph operations

func (s *SQLiteStore) AddFollower(ctx context.Context, userID, followerID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO user_followers (user_id, follower_id, created_at)
		VALUES (?, ?, ?) ON CONFLICT DO NOTHING`, userID, followerID, s.now().UnixNano())
	return classify("adding follower", err)
}

func (s *SQLiteStore) RemoveFollower(ctx context.Context, userID, followerID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM user_followers WHERE user_id = ? AND follower_id = ?", userID, followerID)
	if err != nil {
		return classify("removing follower", err)
	}
	return s.requireAfterNoop(ctx, res, "users", userID)
}

func (s *SQLiteStore) AddFollowing(ctx context.Context, userID, targetID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO user_following (user_id, target_id, created_at)
		VALUES (?, ?, ?) ON CONFLICT DO NOTHING`, userID, targetID, s.now().UnixNano())
	return classify("adding following", err)
}

func (s *SQLiteStore) RemoveFollowing(ctx context.Context, userID, targetID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM user_following WHERE user_id = ? AND target_id = ?", userID, targetID)
	if err != nil {
		return classify("removing following", err)
	}
	return s.requireAfterNoop(ctx, res, "users", userID)
}

func (s *SQLiteStore) ListFollowers(ctx context.Context, userID string) ([]string, error) {
	return s.queryStrings(ctx, "listing followers",
		"SELECT follower_id FROM user_followers WHERE user_id = ? ORDER BY created_at, follower_id", userID)
}

func (s *SQLiteStore) ListFollowing(ctx context.Context, userID string) ([]string, error) {
	return s.queryStrings(ctx, "listing following",
		"SELECT target_id FROM user_following WHERE user_id = ? ORDER BY created_at, target_id", userID)
}

// Lifecycle

// Ping verifies the connection and that the schema is current.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classify("pinging database", err)
	}
	if err := migrations.CheckStatus(s.db); err != nil {
		return fmt.Errorf("database schema out of date: %w", err)
	}
	return nil
}

// BackupTo writes a consistent copy of the database to destPath using VACUUM INTO.
func (s *SQLiteStore) BackupTo(ctx context.Context, destPath string) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteStore implements sn.Store interface
var _ sn.Store = (*SQLiteStore)(nil)
