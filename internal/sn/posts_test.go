package sn_test

import (
	"context"
	"errors"
	"testing"

	"sn-go/internal/model"
	"sn-go/internal/sn"
)

func TestSNService_CreatePost(t *testing.T) {
	ctx := context.Background()

	t.Run("text post", func(t *testing.T) {
		h := newHarness(t)
		alice := h.user(t, "alice")

		v, err := h.svc.CreatePost(ctx, sn.NewPost{AuthorID: alice.ID, Text: "  hello  ", Location: "Lisbon"})
		if err != nil {
			t.Fatalf("CreatePost() error = %v", err)
		}
		if v.Post.Text != "hello" {
			t.Errorf("Text = %q, want %q", v.Post.Text, "hello")
		}
		if v.Author == nil || v.Author.Username != "alice" {
			t.Errorf("Author = %+v, want alice", v.Author)
		}
		if !v.Post.Media.IsEmpty() {
			t.Errorf("Media = %+v, want empty", v.Post.Media)
		}
	})

	t.Run("video without text", func(t *testing.T) {
		h := newHarness(t)
		alice := h.user(t, "alice")

		v, err := h.svc.CreatePost(ctx, sn.NewPost{AuthorID: alice.ID, Media: video("frames")})
		if err != nil {
			t.Fatalf("CreatePost() error = %v", err)
		}
		if v.Post.Media.Kind != model.MediaVideo {
			t.Errorf("Media.Kind = %q, want %q", v.Post.Media.Kind, model.MediaVideo)
		}

		got, err := h.svc.GetPost(ctx, v.Post.ID)
		if err != nil {
			t.Fatalf("GetPost() error = %v", err)
		}
		if got.Post.Media != v.Post.Media {
			t.Errorf("stored Media = %+v, want %+v", got.Post.Media, v.Post.Media)
		}
	})

	t.Run("needs text or media", func(t *testing.T) {
		h := newHarness(t)
		alice := h.user(t, "alice")

		_, err := h.svc.CreatePost(ctx, sn.NewPost{AuthorID: alice.ID, Text: "   "})
		if !errors.Is(err, sn.ErrInvalidInput) {
			t.Errorf("CreatePost() error = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("unknown author uploads nothing", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.svc.CreatePost(ctx, sn.NewPost{AuthorID: "ghost", Media: upload("img")})
		if !errors.Is(err, sn.ErrNotFound) {
			t.Errorf("CreatePost() error = %v, want ErrNotFound", err)
		}
		if h.media.Uploads() != 0 {
			t.Errorf("Uploads() = %d, want 0", h.media.Uploads())
		}
	})

	t.Run("store failure orphans the upload", func(t *testing.T) {
		h := newHarness(t)
		alice := h.user(t, "alice")
		h.store.FailOn("CreatePost", errors.New("disk full"))

		_, err := h.svc.CreatePost(ctx, sn.NewPost{AuthorID: alice.ID, Text: "hi", Media: upload("img")})
		if !errors.Is(err, sn.ErrExternalService) {
			t.Fatalf("CreatePost() error = %v, want ErrExternalService", err)
		}
		orphans := h.sink.OfKind(sn.FindingOrphanAsset)
		if len(orphans) != 1 || orphans[0].OwnerKind != "post" {
			t.Fatalf("orphans = %+v, want one post orphan", orphans)
		}
		if orphans[0].DetectedAt.IsZero() {
			t.Error("DetectedAt not stamped")
		}
	})
}

func TestSNService_UpdatePost(t *testing.T) {
	ctx := context.Background()

	t.Run("no changes", func(t *testing.T) {
		h := newHarness(t)
		alice := h.user(t, "alice")
		p := h.post(t, alice.ID, "first")

		if _, err := h.svc.UpdatePost(ctx, p.ID, sn.PostChanges{}); !errors.Is(err, sn.ErrNoUpdate) {
			t.Errorf("UpdatePost() error = %v, want ErrNoUpdate", err)
		}
	})

	t.Run("text and location", func(t *testing.T) {
		h := newHarness(t)
		alice := h.user(t, "alice")
		p := h.post(t, alice.ID, "first")

		got, err := h.svc.UpdatePost(ctx, p.ID, sn.PostChanges{Text: ptr("edited"), Location: ptr("Porto")})
		if err != nil {
			t.Fatalf("UpdatePost() error = %v", err)
		}
		if got.Text != "edited" || got.Location != "Porto" {
			t.Errorf("post = %q/%q, want edited/Porto", got.Text, got.Location)
		}
		if !got.CreatedAt.Equal(p.CreatedAt) {
			t.Errorf("CreatedAt = %v, want unchanged %v", got.CreatedAt, p.CreatedAt)
		}
	})

	t.Run("clearing text of a text-only post", func(t *testing.T) {
		h := newHarness(t)
		alice := h.user(t, "alice")
		p := h.post(t, alice.ID, "first")

		if _, err := h.svc.UpdatePost(ctx, p.ID, sn.PostChanges{Text: ptr("")}); !errors.Is(err, sn.ErrInvalidInput) {
			t.Errorf("UpdatePost() error = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("replacing video with image deletes the video once", func(t *testing.T) {
		h := newHarness(t)
		alice := h.user(t, "alice")
		v, err := h.svc.CreatePost(ctx, sn.NewPost{AuthorID: alice.ID, Media: video("X")})
		if err != nil {
			t.Fatalf("CreatePost() error = %v", err)
		}
		old := v.Post.Media

		got, err := h.svc.UpdatePost(ctx, v.Post.ID, sn.PostChanges{Media: upload("Y")})
		if err != nil {
			t.Fatalf("UpdatePost() error = %v", err)
		}
		if got.Media.Kind != model.MediaImage || got.Media.Handle == old.Handle {
			t.Errorf("Media = %+v, want fresh image", got.Media)
		}
		if n := h.media.DeleteCount(old.Handle); n != 1 {
			t.Errorf("DeleteCount(old) = %d, want 1", n)
		}
		if h.media.Has(old.Handle) {
			t.Error("old video still stored")
		}
	})

	t.Run("missing post", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.svc.UpdatePost(ctx, "nope", sn.PostChanges{Text: ptr("x"), Media: upload("Y")})
		if !errors.Is(err, sn.ErrNotFound) {
			t.Errorf("UpdatePost() error = %v, want ErrNotFound", err)
		}
		if h.media.Uploads() != 0 {
			t.Errorf("Uploads() = %d, want 0", h.media.Uploads())
		}
	})
}

func TestSNService_DeletePost(t *testing.T) {
	ctx := context.Background()

	t.Run("cascades to thread and media", func(t *testing.T) {
		h := newHarness(t)
		alice := h.user(t, "alice")
		bob := h.user(t, "bob")
		v, err := h.svc.CreatePost(ctx, sn.NewPost{AuthorID: alice.ID, Text: "post", Media: upload("P")})
		if err != nil {
			t.Fatalf("CreatePost() error = %v", err)
		}
		postID := v.Post.ID

		var comments []*model.Comment
		for _, img := range []string{"A", "B", "C"} {
			cv, err := h.svc.AddComment(ctx, postID, bob.ID, "c"+img, upload(img))
			if err != nil {
				t.Fatalf("AddComment() error = %v", err)
			}
			comments = append(comments, cv.Comment)
		}
		plain, err := h.svc.AddComment(ctx, postID, bob.ID, "no image", nil)
		if err != nil {
			t.Fatalf("AddComment() error = %v", err)
		}
		comments = append(comments, plain.Comment)

		// One image refuses to go; the rest of the cascade must still run.
		h.media.FailDelete(comments[1].Image.Handle, errors.New("throttled"))

		if err := h.svc.DeletePost(ctx, postID); err != nil {
			t.Fatalf("DeletePost() error = %v", err)
		}

		if _, err := h.svc.GetPost(ctx, postID); !errors.Is(err, sn.ErrNotFound) {
			t.Errorf("GetPost() error = %v, want ErrNotFound", err)
		}
		for _, c := range comments {
			if got, _ := h.store.FindCommentByID(ctx, c.ID); got != nil {
				t.Errorf("comment %s survived the cascade", c.ID)
			}
		}
		if h.media.Has(v.Post.Media.Handle) {
			t.Error("post media still stored")
		}
		if h.media.Has(comments[0].Image.Handle) || h.media.Has(comments[2].Image.Handle) {
			t.Error("comment images still stored")
		}

		orphans := h.sink.OfKind(sn.FindingOrphanAsset)
		if len(orphans) != 1 || orphans[0].Asset.Handle != comments[1].Image.Handle {
			t.Errorf("orphans = %+v, want the throttled image only", orphans)
		}
	})

	t.Run("comment failure leaves a dangling finding", func(t *testing.T) {
		h := newHarness(t)
		alice := h.user(t, "alice")
		p := h.post(t, alice.ID, "post")
		cv, err := h.svc.AddComment(ctx, p.ID, alice.ID, "reply", upload("R"))
		if err != nil {
			t.Fatalf("AddComment() error = %v", err)
		}
		h.store.FailOn("DeleteComment", errors.New("lock timeout"))

		if err := h.svc.DeletePost(ctx, p.ID); err != nil {
			t.Fatalf("DeletePost() error = %v", err)
		}
		dangling := h.sink.OfKind(sn.FindingDanglingComment)
		if len(dangling) != 1 || dangling[0].OwnerID != cv.Comment.ID {
			t.Fatalf("dangling = %+v, want comment %s", dangling, cv.Comment.ID)
		}

		h.store.FailOn("DeleteComment", nil)
		if err := h.svc.ResolveFinding(ctx, dangling[0]); err != nil {
			t.Fatalf("ResolveFinding() error = %v", err)
		}
		if got, _ := h.store.FindCommentByID(ctx, cv.Comment.ID); got != nil {
			t.Error("dangling comment not deleted")
		}
		if h.media.Has(cv.Comment.Image.Handle) {
			t.Error("dangling comment image not deleted")
		}
	})

	t.Run("document failure touches nothing", func(t *testing.T) {
		h := newHarness(t)
		alice := h.user(t, "alice")
		v, err := h.svc.CreatePost(ctx, sn.NewPost{AuthorID: alice.ID, Media: upload("P")})
		if err != nil {
			t.Fatalf("CreatePost() error = %v", err)
		}
		h.store.FailOn("DeletePost", errors.New("read only"))

		if err := h.svc.DeletePost(ctx, v.Post.ID); !errors.Is(err, sn.ErrExternalService) {
			t.Fatalf("DeletePost() error = %v, want ErrExternalService", err)
		}
		if !h.media.Has(v.Post.Media.Handle) {
			t.Error("media deleted although the post survived")
		}
	})

	t.Run("missing post", func(t *testing.T) {
		h := newHarness(t)

		if err := h.svc.DeletePost(ctx, "nope"); !errors.Is(err, sn.ErrNotFound) {
			t.Errorf("DeletePost() error = %v, want ErrNotFound", err)
		}
	})
}
