// Package fakerepo provides an in-memory clients.Repo for tests.
package fakerepo

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-identity-core/clients"
)

// FakeClientRepo is an in-memory clients.Repo.
type FakeClientRepo struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*clients.Client
}

// NewFakeClientRepo creates an empty in-memory client repo.
func NewFakeClientRepo() *FakeClientRepo {
	return &FakeClientRepo{
		nextID: 1,
		byID:   make(map[int64]*clients.Client),
	}
}

func (r *FakeClientRepo) GetByID(_ context.Context, id int64) (*clients.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, clients.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *FakeClientRepo) Create(_ context.Context, ownerID int64, displayName, redirectURI string) (*clients.Client, error) {
	secret, err := clients.GenerateSecret()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	c := &clients.Client{
		ID:          r.nextID,
		Secret:      secret,
		OwnerID:     ownerID,
		Active:      true,
		RedirectURI: redirectURI,
		DisplayName: displayName,
		CreatedAt:   time.Now(),
	}
	r.nextID++
	r.byID[c.ID] = c
	cp := *c
	return &cp, nil
}

func (r *FakeClientRepo) RegenerateSecret(_ context.Context, id int64) (string, error) {
	secret, err := clients.GenerateSecret()
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return "", clients.ErrNotFound
	}
	c.Secret = secret
	return secret, nil
}

// Upsert stores a client as-is, assigning an id when missing. Test helper.
func (r *FakeClientRepo) Upsert(client *clients.Client) *clients.Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *client
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
