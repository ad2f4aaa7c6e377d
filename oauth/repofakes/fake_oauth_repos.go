// Package repofakes provides in-memory implementations of the oauth
// repositories for tests.
package repofakes

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-identity-core/oauth"
)

// FakeCodeRepo is an in-memory oauth.CodeRepo.
type FakeCodeRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*oauth.Code
}

// NewFakeCodeRepo creates an empty in-memory code repo.
func NewFakeCodeRepo() *FakeCodeRepo {
	return &FakeCodeRepo{
		nextID: 1,
		byID:   make(map[int64]*oauth.Code),
	}
}

func (r *FakeCodeRepo) Create(_ context.Context, ownerID, clientID, sessionID int64) (*oauth.Code, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &oauth.Code{
		ID:        r.nextID,
		OwnerID:   ownerID,
		ClientID:  clientID,
		SessionID: sessionID,
		CreatedAt: time.Now(),
	}
	r.nextID++
	r.byID[c.ID] = c
	cp := *c
	return &cp, nil
}

func (r *FakeCodeRepo) GetByID(_ context.Context, id int64) (*oauth.Code, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, oauth.ErrCodeNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *FakeCodeRepo) Consume(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return oauth.ErrCodeNotFound
	}
	if c.WasUsed {
		return oauth.ErrCodeUsed
	}
	c.WasUsed = true
	return nil
}

// Use is one recorded (user, client) usage fact.
type Use struct {
	UserID   int64
	ClientID int64
}

// Link is the durable user-client link with its granted scope.
type Link struct {
	UserID   int64
	ClientID int64
	Scope    string
}

// FakeClientUseRepo is an in-memory oauth.ClientUseRepo. Uses and Links are
// exported so tests can assert the bookkeeping writes happened.
type FakeClientUseRepo struct {
	mu    sync.Mutex
	uses  []Use
	links []Link
}

// NewFakeClientUseRepo creates an empty in-memory client-use repo.
func NewFakeClientUseRepo() *FakeClientUseRepo {
	return &FakeClientUseRepo{}
}

func (r *FakeClientUseRepo) RecordUse(_ context.Context, userID, clientID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uses = append(r.uses, Use{UserID: userID, ClientID: clientID})
	return nil
}

func (r *FakeClientUseRepo) LinkIfAbsent(_ context.Context, userID, clientID int64, scope string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.UserID == userID && l.ClientID == clientID {
			return nil
		}
	}
	r.links = append(r.links, Link{UserID: userID, ClientID: clientID, Scope: scope})
	return nil
}

// Uses returns a copy of the recorded usage facts.
func (r *FakeClientUseRepo) Uses() []Use {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Use, len(r.uses))
	copy(out, r.uses)
	return out
}

// Links returns a copy of the recorded user-client links.
func (r *FakeClientUseRepo) Links() []Link {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Link, len(r.links))
	copy(out, r.links)
	return out
}
