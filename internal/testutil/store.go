package testutil

import (
	"context"
	"sync"

	"sn-go/internal/model"
	"sn-go/internal/sn"
)

// FaultyStore wraps a Store and fails selected methods on demand.
// Methods not listed here pass straight through.
type FaultyStore struct {
	sn.Store

	mu   sync.Mutex
	fail map[string]error
}

func NewFaultyStore(inner sn.Store) *FaultyStore {
	return &FaultyStore{Store: inner, fail: make(map[string]error)}
}

// FailOn makes the named method return err until cleared with a nil err.
func (f *FaultyStore) FailOn(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, method)
		return
	}
	f.fail[method] = err
}

func (f *FaultyStore) err(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail[method]
}

func (f *FaultyStore) AddFollower(ctx context.Context, userID, followerID string) error {
	if err := f.err("AddFollower"); err != nil {
		return err
	}
	return f.Store.AddFollower(ctx, userID, followerID)
}

func (f *FaultyStore) AddFollowing(ctx context.Context, userID, targetID string) error {
	if err := f.err("AddFollowing"); err != nil {
		return err
	}
	return f.Store.AddFollowing(ctx, userID, targetID)
}

func (f *FaultyStore) RemoveFollowing(ctx context.Context, userID, targetID string) error {
	if err := f.err("RemoveFollowing"); err != nil {
		return err
	}
	return f.Store.RemoveFollowing(ctx, userID, targetID)
}

func (f *FaultyStore) UpdateUser(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	if err := f.err("UpdateUser"); err != nil {
		return nil, err
	}
	return f.Store.UpdateUser(ctx, id, upd)
}

func (f *FaultyStore) CreatePost(ctx context.Context, p *model.Post) error {
	if err := f.err("CreatePost"); err != nil {
		return err
	}
	return f.Store.CreatePost(ctx, p)
}

func (f *FaultyStore) DeletePost(ctx context.Context, id string) (*model.Post, error) {
	if err := f.err("DeletePost"); err != nil {
		return nil, err
	}
	return f.Store.DeletePost(ctx, id)
}

func (f *FaultyStore) DeleteComment(ctx context.Context, id string) (*model.Comment, error) {
	if err := f.err("DeleteComment"); err != nil {
		return nil, err
	}
	return f.Store.DeleteComment(ctx, id)
}
