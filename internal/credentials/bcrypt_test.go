package credentials

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h, err := NewBcryptHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcryptHasher() error = %v", err)
	}

	hash, err := h.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if strings.Contains(hash, "correct horse") {
		t.Error("Hash() leaks the plaintext")
	}

	if err := h.Compare(hash, "correct horse"); err != nil {
		t.Errorf("Compare(correct) error = %v", err)
	}
	if err := h.Compare(hash, "wrong"); !errors.Is(err, ErrMismatch) {
		t.Errorf("Compare(wrong) error = %v, want ErrMismatch", err)
	}

	again, _ := h.Hash("correct horse")
	if again == hash {
		t.Error("Hash() is not salted")
	}
}

func TestNewBcryptHasher(t *testing.T) {
	tests := []struct {
		name    string
		cost    int
		wantErr bool
	}{
		{"default", 0, false},
		{"min", bcrypt.MinCost, false},
		{"too low", bcrypt.MinCost - 1, true},
		{"too high", bcrypt.MaxCost + 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBcryptHasher(tt.cost)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewBcryptHasher(%d) error = %v, wantErr %v", tt.cost, err, tt.wantErr)
			}
		})
	}
}
