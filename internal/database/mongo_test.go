package database

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"sn-go/internal/sn"
)

// TestMongoStore runs the shared store suite against a live MongoDB.
// Set SN_TEST_MONGO_URI (e.g. mongodb://localhost:27017) to enable it.
func TestMongoStore(t *testing.T) {
	uri := os.Getenv("SN_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("SN_TEST_MONGO_URI not set")
	}

	n := 0
	storeSuite(t, func(t *testing.T) sn.Store {
		t.Helper()
		n++
		name := fmt.Sprintf("sn_test_%d_%d", time.Now().UnixNano(), n)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := NewMongoStore(ctx, uri, name)
		if err != nil {
			t.Fatalf("NewMongoStore() error = %v", err)
		}
		t.Cleanup(func() {
			s.users.Database().Drop(context.Background())
			s.Close()
		})
		return s
	})
}
