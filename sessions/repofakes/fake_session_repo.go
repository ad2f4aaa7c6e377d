// Package repofakes provides in-memory implementations of the sessions
// repositories for tests and local development.
package repofakes

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-identity-core/sessions"
)

// FakeSessionRepo is an in-memory sessions.Repo.
type FakeSessionRepo struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*sessions.Session
}

// NewFakeSessionRepo creates an empty in-memory session repo.
func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		nextID: 1,
		byID:   make(map[int64]*sessions.Session),
	}
}

func (r *FakeSessionRepo) GetByID(_ context.Context, id int64) (*sessions.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, sessions.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *FakeSessionRepo) Create(_ context.Context, ownerID int64, ipAddress string, fingerprintID int64) (*sessions.Session, error) {
	secret, err := sessions.GenerateSecret()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s := &sessions.Session{
		ID:            r.nextID,
		OwnerID:       ownerID,
		TokenSecret:   secret,
		IPAddress:     ipAddress,
		FingerprintID: fingerprintID,
		Active:        true,
		CreatedAt:     time.Now(),
	}
	r.nextID++
	r.byID[s.ID] = s
	cp := *s
	return &cp, nil
}

func (r *FakeSessionRepo) Deactivate(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return sessions.ErrNotFound
	}
	s.Active = false
	return nil
}

func (r *FakeSessionRepo) FindActive(_ context.Context, ownerID int64, ipAddress string, fingerprintID int64) (*sessions.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.byID {
		if s.Active && s.OwnerID == ownerID && s.IPAddress == ipAddress && s.FingerprintID == fingerprintID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, sessions.ErrNotFound
}

// FakeFingerprintRepo is an in-memory sessions.FingerprintRepo.
type FakeFingerprintRepo struct {
	mu          sync.Mutex
	nextID      int64
	byUserAgent map[string]*sessions.Fingerprint
}

// NewFakeFingerprintRepo creates an empty in-memory fingerprint repo.
func NewFakeFingerprintRepo() *FakeFingerprintRepo {
	return &FakeFingerprintRepo{
		nextID:      1,
		byUserAgent: make(map[string]*sessions.Fingerprint),
	}
}

func (r *FakeFingerprintRepo) GetByUserAgent(_ context.Context, userAgent string) (*sessions.Fingerprint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fp, ok := r.byUserAgent[userAgent]
	if !ok {
		return nil, sessions.ErrNotFound
	}
	cp := *fp
	return &cp, nil
}

func (r *FakeFingerprintRepo) GetOrCreate(_ context.Context, userAgent string) (*sessions.Fingerprint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fp, ok := r.byUserAgent[userAgent]; ok {
		cp := *fp
		return &cp, nil
	}
	fp := &sessions.Fingerprint{ID: r.nextID, UserAgent: userAgent}
	r.nextID++
	r.byUserAgent[userAgent] = fp
	cp := *fp
	return &cp, nil
}
