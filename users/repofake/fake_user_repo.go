// Package repofake provides an in-memory users.Repo for tests.
package repofake

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-identity-core/users"
)

// FakeUserRepo is an in-memory users.Repo.
type FakeUserRepo struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*users.User
}

// NewFakeUserRepo creates an empty in-memory user repo.
func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		nextID: 1,
		byID:   make(map[int64]*users.User),
	}
}

func (r *FakeUserRepo) GetByID(_ context.Context, id int64) (*users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *FakeUserRepo) GetByLogin(_ context.Context, login string) (*users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.byID {
		if u.Username == login || u.Email == login {
			cp := *u
			return &cp, nil
		}
	}
	return nil, users.ErrNotFound
}

func (r *FakeUserRepo) Create(_ context.Context, user *users.User) (*users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Username == user.Username || u.Email == user.Email {
			return nil, users.ErrAlreadyExists
		}
	}
	cp := *user
	cp.ID = r.nextID
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.nextID++
	r.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *FakeUserRepo) UpdateLastSeen(_ context.Context, id int64, seenAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return users.ErrNotFound
	}
	u.LastSeenAt = seenAt
	return nil
}

func (r *FakeUserRepo) SetEmailVerified(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return users.ErrNotFound
	}
	u.EmailVerified = true
	return nil
}

// Upsert stores a user as-is, assigning an id when missing. Test helper.
func (r *FakeUserRepo) Upsert(user *users.User) *users.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *user
	if cp.ID == 0 {
		cp.ID = r.nextID
		r.nextID++
	} else if cp.ID >= r.nextID {
		r.nextID = cp.ID + 1
	}
	r.byID[cp.ID] = &cp
	out := cp
	return &out
}
