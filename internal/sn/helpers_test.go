package sn_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"sn-go/internal/model"
	"sn-go/internal/sn"
	"sn-go/internal/testutil"
)

// harness wires a service over an in-memory store and fake media.
type harness struct {
	svc   *sn.SNService
	store *testutil.FaultyStore
	media *testutil.FaultyMediaStore
	sink  *testutil.RecordingSink
	clock *testutil.StubClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessOn(t, testutil.NewTestStore(t))
}

func newHarnessOn(t *testing.T, inner sn.Store) *harness {
	t.Helper()
	store := testutil.NewFaultyStore(inner)
	media := testutil.NewFaultyMediaStore()
	sink := &testutil.RecordingSink{}
	clock := testutil.FixedClock()
	svc := sn.NewSNService(store, media, testutil.StubHasher{}, sink, sn.NewNopLogger(), clock, testutil.NewStubIDGenerator())
	return &harness{svc: svc, store: store, media: media, sink: sink, clock: clock}
}

func (h *harness) user(t *testing.T, username string) *model.User {
	t.Helper()
	u, err := h.svc.RegisterUser(context.Background(), sn.NewUser{
		Name:     strings.ToUpper(username[:1]) + username[1:],
		Username: username,
		Email:    username + "@example.com",
		Password: "secret",
	})
	if err != nil {
		t.Fatalf("RegisterUser(%q) error = %v", username, err)
	}
	return u
}

// post publishes a text post one second after the previous one.
func (h *harness) post(t *testing.T, authorID, text string) *model.Post {
	t.Helper()
	h.clock.Advance(time.Second)
	v, err := h.svc.CreatePost(context.Background(), sn.NewPost{AuthorID: authorID, Text: text})
	if err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}
	return v.Post
}

func (h *harness) follow(t *testing.T, followerID, targetID string) {
	t.Helper()
	if err := h.svc.Follow(context.Background(), followerID, targetID); err != nil {
		t.Fatalf("Follow() error = %v", err)
	}
}

func upload(data string) *sn.Upload {
	return &sn.Upload{Body: strings.NewReader(data), Size: int64(len(data)), Kind: model.MediaImage}
}

func video(data string) *sn.Upload {
	return &sn.Upload{Body: strings.NewReader(data), Size: int64(len(data)), Kind: model.MediaVideo}
}

func ptr[T any](v T) *T { return &v }
