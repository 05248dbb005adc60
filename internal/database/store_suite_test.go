package database

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"sn-go/internal/model"
	"sn-go/internal/sn"
)

// storeSuite runs the behaviour every sn.Store backend must share.
// open returns a fresh, empty store for each subtest.
func storeSuite(t *testing.T, open func(t *testing.T) sn.Store) {
	ctx := context.Background()
	base := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	newUser := func(t *testing.T, s sn.Store, id, username string) *model.User {
		t.Helper()
		u := &model.User{ID: id, Username: username, Email: username + "@example.com", Name: username, CreatedAt: base}
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser(%s) error = %v", id, err)
		}
		return u
	}
	newPost := func(t *testing.T, s sn.Store, id, author string, at time.Time) *model.Post {
		t.Helper()
		p := &model.Post{ID: id, AuthorID: author, Text: "text " + id, CreatedAt: at}
		if err := s.CreatePost(ctx, p); err != nil {
			t.Fatalf("CreatePost(%s) error = %v", id, err)
		}
		return p
	}

	t.Run("FindUserByID returns nil when missing", func(t *testing.T) {
		s := open(t)

		u, err := s.FindUserByID(ctx, "nope")
		if err != nil {
			t.Fatalf("FindUserByID() error = %v", err)
		}
		if u != nil {
			t.Errorf("FindUserByID() = %+v, want nil", u)
		}
	})

	t.Run("CreateUser round trip", func(t *testing.T) {
		s := open(t)
		want := &model.User{
			ID:           "u1",
			Username:     "alice",
			Email:        "alice@example.com",
			Name:         "Alice",
			PasswordHash: "hash",
			Bio:          "bio",
			Links:        model.SocialLinks{Twitter: "https://twitter.com/alice"},
			ProfileImage: model.MediaRef{URL: "https://cdn/p.jpg", Handle: "image/p", Kind: model.MediaImage},
			CreatedAt:    base,
		}
		if err := s.CreateUser(ctx, want); err != nil {
			t.Fatalf("CreateUser() error = %v", err)
		}

		for name, find := range map[string]func() (*model.User, error){
			"id":       func() (*model.User, error) { return s.FindUserByID(ctx, "u1") },
			"username": func() (*model.User, error) { return s.FindUserByUsername(ctx, "alice") },
			"email":    func() (*model.User, error) { return s.FindUserByEmail(ctx, "alice@example.com") },
		} {
			got, err := find()
			if err != nil {
				t.Fatalf("find by %s error = %v", name, err)
			}
			if got == nil {
				t.Fatalf("find by %s = nil", name)
			}
			if got.Username != want.Username || got.Links != want.Links || got.ProfileImage != want.ProfileImage {
				t.Errorf("find by %s = %+v, want %+v", name, got, want)
			}
			if !got.CreatedAt.Equal(base) {
				t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, base)
			}
			if !got.CoverImage.IsEmpty() {
				t.Errorf("CoverImage = %+v, want empty", got.CoverImage)
			}
		}
	})

	t.Run("CreateUser conflicts on username and email", func(t *testing.T) {
		s := open(t)
		newUser(t, s, "u1", "alice")

		dupUsername := &model.User{ID: "u2", Username: "alice", Email: "other@example.com", CreatedAt: base}
		if err := s.CreateUser(ctx, dupUsername); !errors.Is(err, sn.ErrConflict) {
			t.Errorf("CreateUser(dup username) error = %v, want ErrConflict", err)
		}
		dupEmail := &model.User{ID: "u3", Username: "other", Email: "alice@example.com", CreatedAt: base}
		if err := s.CreateUser(ctx, dupEmail); !errors.Is(err, sn.ErrConflict) {
			t.Errorf("CreateUser(dup email) error = %v, want ErrConflict", err)
		}
	})

	t.Run("UpdateUser returns previous state", func(t *testing.T) {
		s := open(t)
		newUser(t, s, "u1", "alice")
		img := model.MediaRef{URL: "https://cdn/c.jpg", Handle: "image/c", Kind: model.MediaImage}

		prev, err := s.UpdateUser(ctx, "u1", model.UserUpdate{Bio: ptr("new bio"), CoverImage: &img})
		if err != nil {
			t.Fatalf("UpdateUser() error = %v", err)
		}
		if prev.Bio != "" || !prev.CoverImage.IsEmpty() {
			t.Errorf("prev = %+v, want original", prev)
		}
		got, _ := s.FindUserByID(ctx, "u1")
		if got.Bio != "new bio" || got.CoverImage != img {
			t.Errorf("updated = %+v, want bio and cover set", got)
		}

		if _, err := s.UpdateUser(ctx, "nope", model.UserUpdate{Bio: ptr("x")}); !errors.Is(err, sn.ErrNotFound) {
			t.Errorf("UpdateUser(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("FindUsersByIDs skips missing", func(t *testing.T) {
		s := open(t)
		newUser(t, s, "u1", "alice")
		newUser(t, s, "u2", "bob")

		got, err := s.FindUsersByIDs(ctx, []string{"u1", "u2", "ghost"})
		if err != nil {
			t.Fatalf("FindUsersByIDs() error = %v", err)
		}
		if len(got) != 2 || got["u1"] == nil || got["ghost"] != nil {
			t.Errorf("FindUsersByIDs() = %v, want u1 and u2", got)
		}
	})

	t.Run("SearchUsersByName is case insensitive and literal", func(t *testing.T) {
		s := open(t)
		newUser(t, s, "u1", "Alice")
		newUser(t, s, "u2", "malice")
		newUser(t, s, "u3", "bob")
		newUser(t, s, "u4", "100%")

		got, err := s.SearchUsersByName(ctx, "ALIC", 10)
		if err != nil {
			t.Fatalf("SearchUsersByName() error = %v", err)
		}
		if len(got) != 2 {
			t.Errorf("SearchUsersByName(ALIC) = %d users, want 2", len(got))
		}
		got, _ = s.SearchUsersByName(ctx, "%", 10)
		if len(got) != 1 || got[0].ID != "u4" {
			t.Errorf("SearchUsersByName(%%) = %v, want only u4", got)
		}
	})

	t.Run("ListUserIDs pages in id order", func(t *testing.T) {
		s := open(t)
		for i := 1; i <= 5; i++ {
			newUser(t, s, fmt.Sprintf("u%d", i), fmt.Sprintf("user%d", i))
		}

		first, err := s.ListUserIDs(ctx, "", 3)
		if err != nil {
			t.Fatalf("ListUserIDs() error = %v", err)
		}
		rest, _ := s.ListUserIDs(ctx, first[len(first)-1], 3)
		if got := append(first, rest...); !slices.Equal(got, []string{"u1", "u2", "u3", "u4", "u5"}) {
			t.Errorf("ListUserIDs() pages = %v", got)
		}
	})

	t.Run("follow sets are independent and idempotent", func(t *testing.T) {
		s := open(t)
		newUser(t, s, "u1", "alice")
		newUser(t, s, "u2", "bob")

		for range 2 {
			if err := s.AddFollower(ctx, "u2", "u1"); err != nil {
				t.Fatalf("AddFollower() error = %v", err)
			}
		}
		followers, _ := s.ListFollowers(ctx, "u2")
		if !slices.Equal(followers, []string{"u1"}) {
			t.Errorf("ListFollowers(u2) = %v, want [u1]", followers)
		}
		following, _ := s.ListFollowing(ctx, "u1")
		if len(following) != 0 {
			t.Errorf("ListFollowing(u1) = %v, want empty until written", following)
		}

		if err := s.AddFollowing(ctx, "u1", "u2"); err != nil {
			t.Fatalf("AddFollowing() error = %v", err)
		}
		u, _ := s.FindUserByID(ctx, "u1")
		if !slices.Equal(u.Following, []string{"u2"}) {
			t.Errorf("Following = %v, want [u2]", u.Following)
		}

		if err := s.RemoveFollower(ctx, "u2", "u1"); err != nil {
			t.Fatalf("RemoveFollower() error = %v", err)
		}
		if err := s.RemoveFollower(ctx, "u2", "u1"); err != nil {
			t.Errorf("second RemoveFollower() error = %v", err)
		}
		if err := s.RemoveFollowing(ctx, "ghost", "u2"); !errors.Is(err, sn.ErrNotFound) {
			t.Errorf("RemoveFollowing(missing owner) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("FindPosts orders newest first with id tie-break", func(t *testing.T) {
		s := open(t)
		newPost(t, s, "p1", "a", base)
		newPost(t, s, "p3", "a", base.Add(time.Second))
		newPost(t, s, "p2", "b", base.Add(time.Second))
		newPost(t, s, "p4", "c", base.Add(2*time.Second))

		got, err := s.FindPosts(ctx, model.PostQuery{AuthorIDs: []string{"a", "b"}, Limit: 10})
		if err != nil {
			t.Fatalf("FindPosts() error = %v", err)
		}
		var ids []string
		for _, p := range got {
			ids = append(ids, p.ID)
		}
		if !slices.Equal(ids, []string{"p3", "p2", "p1"}) {
			t.Errorf("FindPosts() = %v, want [p3 p2 p1]", ids)
		}

		window, _ := s.FindPosts(ctx, model.PostQuery{AuthorIDs: []string{"a", "b"}, Skip: 1, Limit: 1})
		if len(window) != 1 || window[0].ID != "p2" {
			t.Errorf("FindPosts(skip 1, limit 1) = %v, want [p2]", window)
		}
		if none, _ := s.FindPosts(ctx, model.PostQuery{Limit: 10}); len(none) != 0 {
			t.Errorf("FindPosts(no authors) = %d posts, want 0", len(none))
		}
	})

	t.Run("post media and update", func(t *testing.T) {
		s := open(t)
		p := &model.Post{ID: "p1", AuthorID: "a", Media: model.MediaRef{URL: "https://cdn/v.mp4", Handle: "video/v", Kind: model.MediaVideo}, CreatedAt: base}
		if err := s.CreatePost(ctx, p); err != nil {
			t.Fatalf("CreatePost() error = %v", err)
		}

		fresh := model.MediaRef{URL: "https://cdn/i.jpg", Handle: "image/i", Kind: model.MediaImage}
		prev, err := s.UpdatePost(ctx, "p1", model.PostUpdate{Text: ptr("caption"), Media: &fresh})
		if err != nil {
			t.Fatalf("UpdatePost() error = %v", err)
		}
		if prev.Media != p.Media {
			t.Errorf("prev.Media = %+v, want %+v", prev.Media, p.Media)
		}
		got, _ := s.FindPostByID(ctx, "p1")
		if got.Text != "caption" || got.Media != fresh {
			t.Errorf("updated = %+v", got)
		}
		if _, err := s.UpdatePost(ctx, "nope", model.PostUpdate{Text: ptr("x")}); !errors.Is(err, sn.ErrNotFound) {
			t.Errorf("UpdatePost(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("likes on posts and comments", func(t *testing.T) {
		s := open(t)
		newPost(t, s, "p1", "a", base)
		c := &model.Comment{ID: "c1", PostID: "p1", AuthorID: "a", Text: "hi", CreatedAt: base}
		if err := s.CreateComment(ctx, c); err != nil {
			t.Fatalf("CreateComment() error = %v", err)
		}

		for _, target := range []model.Likeable{model.PostRef("p1"), model.CommentRef("c1")} {
			for range 2 {
				if err := s.AddLike(ctx, target, "u1"); err != nil {
					t.Fatalf("AddLike(%s) error = %v", target.LikeKind(), err)
				}
			}
			likes, err := s.ListLikes(ctx, target)
			if err != nil {
				t.Fatalf("ListLikes() error = %v", err)
			}
			if !slices.Equal(likes, []string{"u1"}) {
				t.Errorf("ListLikes(%s) = %v, want [u1]", target.LikeKind(), likes)
			}
			if err := s.RemoveLike(ctx, target, "u1"); err != nil {
				t.Fatalf("RemoveLike() error = %v", err)
			}
			if err := s.RemoveLike(ctx, target, "u1"); err != nil {
				t.Errorf("second RemoveLike() error = %v", err)
			}
		}

		if err := s.AddLike(ctx, model.PostRef("ghost"), "u1"); !errors.Is(err, sn.ErrNotFound) {
			t.Errorf("AddLike(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("concurrent comments and likes are not lost", func(t *testing.T) {
		const actors, perActor = 20, 5
		s := open(t)
		newPost(t, s, "p1", "a", base)
		c0 := &model.Comment{ID: "c0", PostID: "p1", AuthorID: "a", Text: "first", CreatedAt: base}
		if err := s.CreateComment(ctx, c0); err != nil {
			t.Fatalf("CreateComment() error = %v", err)
		}

		var wg sync.WaitGroup
		for i := range actors {
			wg.Add(1)
			go func() {
				defer wg.Done()
				user := fmt.Sprintf("u%02d", i)
				for j := range perActor {
					c := &model.Comment{
						ID:        fmt.Sprintf("c-%s-%d", user, j),
						PostID:    "p1",
						AuthorID:  user,
						Text:      "reply",
						CreatedAt: base.Add(time.Duration(j+1) * time.Second),
					}
					if err := s.CreateComment(ctx, c); err != nil {
						t.Errorf("CreateComment(%s) error = %v", c.ID, err)
					}
					// Repeated likes from the same actor must collapse to one.
					if err := s.AddLike(ctx, model.PostRef("p1"), user); err != nil {
						t.Errorf("AddLike(post, %s) error = %v", user, err)
					}
					if err := s.AddLike(ctx, model.CommentRef("c0"), user); err != nil {
						t.Errorf("AddLike(comment, %s) error = %v", user, err)
					}
				}
			}()
		}
		wg.Wait()

		var want []string
		for i := range actors {
			want = append(want, fmt.Sprintf("u%02d", i))
		}
		for _, target := range []model.Likeable{model.PostRef("p1"), model.CommentRef("c0")} {
			likes, err := s.ListLikes(ctx, target)
			if err != nil {
				t.Fatalf("ListLikes() error = %v", err)
			}
			slices.Sort(likes)
			if !slices.Equal(likes, want) {
				t.Errorf("ListLikes(%s) = %v, want %d distinct actors", target.LikeKind(), likes, actors)
			}
		}

		threads, err := s.ListCommentsByPosts(ctx, []string{"p1"})
		if err != nil {
			t.Fatalf("ListCommentsByPosts() error = %v", err)
		}
		if got, want := len(threads["p1"]), actors*perActor+1; got != want {
			t.Errorf("len(thread) = %d, want %d", got, want)
		}
		p, err := s.FindPostByID(ctx, "p1")
		if err != nil {
			t.Fatalf("FindPostByID() error = %v", err)
		}
		if got, want := len(p.CommentIDs), actors*perActor+1; got != want {
			t.Errorf("len(CommentIDs) = %d, want %d", got, want)
		}
		if len(p.CommentIDs) > 0 && p.CommentIDs[0] != "c0" {
			t.Errorf("CommentIDs[0] = %s, want c0", p.CommentIDs[0])
		}
	})

	t.Run("threads keep insertion order", func(t *testing.T) {
		s := open(t)
		newPost(t, s, "p1", "a", base)
		newPost(t, s, "p2", "a", base)
		for i, id := range []string{"c1", "c2", "c3"} {
			c := &model.Comment{ID: id, PostID: "p1", AuthorID: "a", Text: id, CreatedAt: base.Add(time.Duration(i) * time.Second)}
			if err := s.CreateComment(ctx, c); err != nil {
				t.Fatalf("CreateComment() error = %v", err)
			}
		}
		if err := s.AddLike(ctx, model.CommentRef("c2"), "u9"); err != nil {
			t.Fatalf("AddLike() error = %v", err)
		}

		threads, err := s.ListCommentsByPosts(ctx, []string{"p1", "p2"})
		if err != nil {
			t.Fatalf("ListCommentsByPosts() error = %v", err)
		}
		var ids []string
		for _, c := range threads["p1"] {
			ids = append(ids, c.ID)
		}
		if !slices.Equal(ids, []string{"c1", "c2", "c3"}) {
			t.Errorf("thread = %v, want [c1 c2 c3]", ids)
		}
		if !slices.Equal(threads["p1"][1].Likes, []string{"u9"}) {
			t.Errorf("c2 likes = %v, want [u9]", threads["p1"][1].Likes)
		}
		if len(threads["p2"]) != 0 {
			t.Errorf("p2 thread = %v, want empty", threads["p2"])
		}

		p, _ := s.FindPostByID(ctx, "p1")
		if !slices.Equal(p.CommentIDs, []string{"c1", "c2", "c3"}) {
			t.Errorf("CommentIDs = %v, want [c1 c2 c3]", p.CommentIDs)
		}
	})

	t.Run("comment update and delete", func(t *testing.T) {
		s := open(t)
		newPost(t, s, "p1", "a", base)
		img := model.MediaRef{URL: "https://cdn/c.jpg", Handle: "image/c", Kind: model.MediaImage}
		c := &model.Comment{ID: "c1", PostID: "p1", AuthorID: "a", Image: img, CreatedAt: base}
		if err := s.CreateComment(ctx, c); err != nil {
			t.Fatalf("CreateComment() error = %v", err)
		}

		prev, err := s.UpdateComment(ctx, "c1", model.CommentUpdate{Text: ptr("edited")})
		if err != nil {
			t.Fatalf("UpdateComment() error = %v", err)
		}
		if prev.Text != "" || prev.Image != img {
			t.Errorf("prev = %+v, want original", prev)
		}

		deleted, err := s.DeleteComment(ctx, "c1")
		if err != nil {
			t.Fatalf("DeleteComment() error = %v", err)
		}
		if deleted == nil || deleted.Image != img || deleted.Text != "edited" {
			t.Errorf("DeleteComment() = %+v, want the edited comment", deleted)
		}
		if again, err := s.DeleteComment(ctx, "c1"); err != nil || again != nil {
			t.Errorf("second DeleteComment() = %v, %v, want nil, nil", again, err)
		}
	})

	t.Run("DeletePost leaves comments for the caller", func(t *testing.T) {
		s := open(t)
		newPost(t, s, "p1", "a", base)
		if err := s.AddLike(ctx, model.PostRef("p1"), "u1"); err != nil {
			t.Fatalf("AddLike() error = %v", err)
		}
		c := &model.Comment{ID: "c1", PostID: "p1", AuthorID: "a", Text: "hi", CreatedAt: base}
		if err := s.CreateComment(ctx, c); err != nil {
			t.Fatalf("CreateComment() error = %v", err)
		}

		deleted, err := s.DeletePost(ctx, "p1")
		if err != nil {
			t.Fatalf("DeletePost() error = %v", err)
		}
		if deleted == nil || deleted.ID != "p1" {
			t.Fatalf("DeletePost() = %+v, want p1", deleted)
		}
		if got, _ := s.FindPostByID(ctx, "p1"); got != nil {
			t.Error("post still present")
		}
		if got, _ := s.FindCommentByID(ctx, "c1"); got == nil {
			t.Error("comment removed with post; the service owns the cascade")
		}
		if again, err := s.DeletePost(ctx, "p1"); err != nil || again != nil {
			t.Errorf("second DeletePost() = %v, %v, want nil, nil", again, err)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		s := open(t)
		if err := s.Ping(ctx); err != nil {
			t.Errorf("Ping() error = %v", err)
		}
	})
}

func ptr[T any](v T) *T { return &v }
