package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sn-go/internal/config"
	"sn-go/internal/model"
	"sn-go/internal/sn"
)

// newTestApp wires an app over an on-disk SQLite store and filesystem media
// in a temp directory.
func newTestApp(t *testing.T) (*SNApp, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.NewConfig(dir)

	a, err := NewSNApp(context.Background(), cfg, "Test", false)
	if err != nil {
		t.Fatalf("NewSNApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close(nil) })
	return a, dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewSNApp_InvalidConfig(t *testing.T) {
	cfg := config.NewConfig(t.TempDir())
	cfg.CallTimeout = "later"

	if _, err := NewSNApp(context.Background(), cfg, "Test", false); err == nil {
		t.Fatal("NewSNApp() expected error for bad call_timeout")
	}
}

func TestSNApp_ValidateSetup(t *testing.T) {
	a, _ := newTestApp(t)

	if err := a.ValidateSetup(context.Background()); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}
}

func TestSNApp_PostWithMediaFile(t *testing.T) {
	ctx := context.Background()
	a, dir := newTestApp(t)

	u, err := a.RegisterUser(ctx, sn.NewUser{Username: "alice", Email: "a@example.com", Password: "pw"}, "")
	if err != nil {
		t.Fatalf("RegisterUser() error = %v", err)
	}
	if err := a.Hasher().Compare(u.PasswordHash, "pw"); err != nil {
		t.Errorf("Compare() error = %v", err)
	}

	clip := writeFile(t, dir, "clip.MP4", "frames")
	v, err := a.CreatePost(ctx, sn.NewPost{AuthorID: u.ID, Text: "look"}, clip)
	if err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}
	if v.Post.Media.Kind != model.MediaVideo {
		t.Errorf("Media.Kind = %q, want %q", v.Post.Media.Kind, model.MediaVideo)
	}
	if !strings.HasPrefix(v.Post.Media.URL, "file://") {
		t.Errorf("Media.URL = %q, want file:// URL", v.Post.Media.URL)
	}

	photo := writeFile(t, dir, "photo.jpg", "pixels")
	p, err := a.UpdatePost(ctx, v.Post.ID, sn.PostChanges{}, photo)
	if err != nil {
		t.Fatalf("UpdatePost() error = %v", err)
	}
	if p.Media.Kind != model.MediaImage {
		t.Errorf("Media.Kind = %q, want %q", p.Media.Kind, model.MediaImage)
	}

	cv, err := a.AddComment(ctx, v.Post.ID, u.ID, "", photo)
	if err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}
	if cv.Comment.Image.IsEmpty() {
		t.Error("comment image not stored")
	}
}

func TestSNApp_MissingFile(t *testing.T) {
	ctx := context.Background()
	a, dir := newTestApp(t)
	u, err := a.RegisterUser(ctx, sn.NewUser{Username: "alice", Email: "a@example.com"}, "")
	if err != nil {
		t.Fatalf("RegisterUser() error = %v", err)
	}

	if _, err := a.ReplaceUserImage(ctx, u.ID, model.ProfileImageSlot, filepath.Join(dir, "nope.png")); err == nil {
		t.Error("ReplaceUserImage() expected error for missing file")
	}
	if _, err := a.ReplaceUserImage(ctx, u.ID, model.ProfileImageSlot, ""); !errors.Is(err, sn.ErrInvalidInput) {
		t.Errorf("ReplaceUserImage(\"\") error = %v, want ErrInvalidInput", err)
	}
	if _, err := a.CreatePost(ctx, sn.NewPost{AuthorID: u.ID}, dir); !errors.Is(err, sn.ErrInvalidInput) {
		t.Errorf("CreatePost(dir) error = %v, want ErrInvalidInput", err)
	}
}

func TestSNApp_Backup(t *testing.T) {
	ctx := context.Background()
	a, dir := newTestApp(t)
	if _, err := a.RegisterUser(ctx, sn.NewUser{Username: "alice", Email: "a@example.com"}, ""); err != nil {
		t.Fatalf("RegisterUser() error = %v", err)
	}

	dest := filepath.Join(dir, "backup.db")
	if err := a.Backup(ctx, dest); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("backup file not created: %v", err)
	}
	if err := a.Backup(ctx, dest); !errors.Is(err, sn.ErrConflict) {
		t.Errorf("second Backup() error = %v, want ErrConflict", err)
	}
}

func TestSNApp_CloseWritesOperationLog(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewConfig(dir)
	cfg.Database = config.DatabaseConfig{Type: "memory"}
	cfg.Media = config.MediaConfig{Type: "memory"}

	a, err := NewSNApp(context.Background(), cfg, "Feed", false)
	if err != nil {
		t.Fatalf("NewSNApp() error = %v", err)
	}
	if err := a.Close(errors.New("boom")); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(cfg.LogDir, "sn.log"))
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(data), "operation finished") || !strings.Contains(string(data), "status=error") {
		t.Errorf("log = %q, want finished line with status=error", data)
	}
}
