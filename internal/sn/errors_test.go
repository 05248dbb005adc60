package sn_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"sn-go/internal/model"
	"sn-go/internal/sn"
	"sn-go/internal/testutil"
)

func TestExternalError(t *testing.T) {
	cause := errors.New("503 slow down")

	tests := []struct {
		name          string
		err           error
		wantTransient bool
	}{
		{"permanent", sn.NewExternalError("media", "upload", false, cause), false},
		{"transient", sn.NewExternalError("media", "upload", true, cause), true},
		{"deadline forced transient", sn.NewExternalError("store", "find", false, context.DeadlineExceeded), true},
		{"cancel forced transient", sn.NewExternalError("store", "find", false, context.Canceled), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, sn.ErrExternalService) {
				t.Errorf("errors.Is(err, ErrExternalService) = false")
			}
			if got := sn.IsTransient(tt.err); got != tt.wantTransient {
				t.Errorf("IsTransient() = %v, want %v", got, tt.wantTransient)
			}
		})
	}

	if !errors.Is(sn.NewExternalError("media", "upload", false, cause), cause) {
		t.Error("ExternalError does not unwrap to its cause")
	}
	if sn.IsTransient(sn.ErrNotFound) {
		t.Error("IsTransient(ErrNotFound) = true")
	}
	if !errors.Is(sn.ErrNoUpdate, sn.ErrInvalidInput) {
		t.Error("ErrNoUpdate is not an ErrInvalidInput")
	}
}

// stallingMedia blocks every upload until the context ends.
type stallingMedia struct{}

func (stallingMedia) Upload(ctx context.Context, r io.Reader, _ int64, _ model.MediaKind) (model.MediaRef, error) {
	<-ctx.Done()
	return model.MediaRef{}, ctx.Err()
}

func (stallingMedia) Delete(context.Context, string, model.MediaKind) error { return nil }
func (stallingMedia) ValidateSetup(context.Context) error                   { return nil }

func TestSNService_OperationTimeout(t *testing.T) {
	store := testutil.NewTestStore(t)
	svc := sn.NewSNService(store, stallingMedia{}, testutil.StubHasher{}, &testutil.RecordingSink{}, nil, testutil.FixedClock(), testutil.NewStubIDGenerator())
	svc.SetOperationTimeout(50 * time.Millisecond)

	ctx := context.Background()
	u, err := svc.RegisterUser(ctx, sn.NewUser{Username: "alice", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("RegisterUser() error = %v", err)
	}

	start := time.Now()
	_, err = svc.CreatePost(ctx, sn.NewPost{AuthorID: u.ID, Media: upload("slow")})
	if !errors.Is(err, sn.ErrExternalService) || !sn.IsTransient(err) {
		t.Fatalf("CreatePost() error = %v, want transient external error", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("CreatePost() took %v, deadline not applied", elapsed)
	}

	fp, err := svc.ProfileFeed(ctx, u.ID, 1)
	if err != nil {
		t.Fatalf("ProfileFeed() error = %v", err)
	}
	if len(fp.Posts) != 0 {
		t.Errorf("ProfileFeed() = %d posts, want none after timed-out create", len(fp.Posts))
	}
}
