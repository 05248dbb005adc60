package model

import "testing"

func TestMediaRef_Valid(t *testing.T) {
	tests := []struct {
		name      string
		ref       MediaRef
		wantValid bool
		wantEmpty bool
	}{
		{name: "empty", ref: MediaRef{}, wantValid: true, wantEmpty: true},
		{name: "both set", ref: MediaRef{URL: "https://cdn/x.png", Handle: "x"}, wantValid: true},
		{name: "url only", ref: MediaRef{URL: "https://cdn/x.png"}},
		{name: "handle only", ref: MediaRef{Handle: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ref.Valid(); got != tt.wantValid {
				t.Errorf("Valid() = %v, want %v", got, tt.wantValid)
			}
			if got := tt.ref.IsEmpty(); got != tt.wantEmpty {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.wantEmpty)
			}
		})
	}
}

func TestMediaKindFromFilename(t *testing.T) {
	tests := []struct {
		name string
		want MediaKind
	}{
		{"holiday.JPG", MediaImage},
		{"clip.mp4", MediaVideo},
		{"clip.MOV", MediaVideo},
		{"noext", MediaImage},
	}

	for _, tt := range tests {
		if got := MediaKindFromFilename(tt.name); got != tt.want {
			t.Errorf("MediaKindFromFilename(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestLikeable(t *testing.T) {
	var targets = []struct {
		target   Likeable
		wantKind EntityKind
		wantKey  string
	}{
		{PostRef("p1"), PostEntity, "p1"},
		{CommentRef("c1"), CommentEntity, "c1"},
		{&Post{ID: "p2"}, PostEntity, "p2"},
		{&Comment{ID: "c2"}, CommentEntity, "c2"},
		{(*Post)(nil), PostEntity, ""},
		{(*Comment)(nil), CommentEntity, ""},
	}

	for _, tt := range targets {
		if got := tt.target.LikeKind(); got != tt.wantKind {
			t.Errorf("LikeKind() = %q, want %q", got, tt.wantKind)
		}
		if got := tt.target.LikeKey(); got != tt.wantKey {
			t.Errorf("LikeKey() = %q, want %q", got, tt.wantKey)
		}
	}
}

func TestUser_Image(t *testing.T) {
	u := &User{
		ProfileImage: MediaRef{URL: "p", Handle: "ph"},
		CoverImage:   MediaRef{URL: "c", Handle: "ch"},
	}
	if got := u.Image(ProfileImageSlot); got.Handle != "ph" {
		t.Errorf("Image(profile).Handle = %q, want %q", got.Handle, "ph")
	}
	if got := u.Image(CoverImageSlot); got.Handle != "ch" {
		t.Errorf("Image(cover).Handle = %q, want %q", got.Handle, "ch")
	}
}
