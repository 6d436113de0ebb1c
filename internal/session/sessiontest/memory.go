// Package sessiontest provides in-memory stores satisfying the session
// service interfaces, for tests that need a working service without MySQL.
package sessiontest

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/meatshop-backoffice/internal/model"
	"github.com/iliyamo/meatshop-backoffice/internal/queue"
	"github.com/iliyamo/meatshop-backoffice/internal/repository"
)

// Users is a map-backed UserStore enforcing the same unique keys as MySQL.
type Users struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]model.User
}

func NewUsers() *Users { return &Users{byID: map[uint64]model.User{}} }

func (m *Users) Exists(_ context.Context, usuario, email, cnpj string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Usuario == usuario || u.Email == email || u.CNPJ == cnpj {
			return true, nil
		}
	}
	return false, nil
}

func (m *Users) Create(_ context.Context, u *model.User) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.byID {
		if x.Usuario == u.Usuario || x.Email == u.Email || x.CNPJ == u.CNPJ {
			return 0, repository.ErrConflict
		}
	}
	m.nextID++
	u.ID = m.nextID
	m.byID[u.ID] = *u
	return u.ID, nil
}

func (m *Users) FindByLogin(_ context.Context, identifier string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Usuario == identifier || u.Email == identifier {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *Users) GetByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *Users) UpdatePasswordHash(_ context.Context, id uint64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.byID[id]
	u.SenhaHash = hash
	m.byID[id] = u
	return nil
}

func (m *Users) UpdateLogoURL(_ context.Context, id uint64, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.byID[id]
	u.LogoURL = url
	m.byID[id] = u
	return nil
}

func (m *Users) Delete(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
}

// Ledger mirrors TokenRepo: rows keyed by the raw token, revocation is
// conditional, rows are never removed.
type Ledger struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[string]*model.RefreshToken
}

func NewLedger() *Ledger { return &Ledger{rows: map[string]*model.RefreshToken{}} }

func (l *Ledger) Store(_ context.Context, userID uint64, token, jti string, exp time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.insert(userID, token, jti, exp)
	return nil
}

func (l *Ledger) insert(userID uint64, token, jti string, exp time.Time) {
	l.nextID++
	l.rows[token] = &model.RefreshToken{ID: l.nextID, UserID: userID, JTI: jti, ExpiresAt: exp, CreatedAt: time.Now()}
}

func (l *Ledger) FindByToken(_ context.Context, token string) (*model.RefreshToken, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.rows[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (l *Ledger) byID(id uint64) *model.RefreshToken {
	for _, r := range l.rows {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (l *Ledger) Revoke(_ context.Context, rec *model.RefreshToken) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r := l.byID(rec.ID); r != nil && r.RevokedAt == nil {
		now := time.Now()
		r.RevokedAt = &now
	}
	return nil
}

func (l *Ledger) Rotate(_ context.Context, old *model.RefreshToken, token, jti string, exp time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.byID(old.ID)
	if r == nil || r.RevokedAt != nil {
		return repository.ErrAlreadyRevoked
	}
	now := time.Now()
	r.RevokedAt = &now
	l.insert(old.UserID, token, jti, exp)
	return nil
}

func (l *Ledger) RevokeAllForUser(_ context.Context, userID uint64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	now := time.Now()
	for _, r := range l.rows {
		if r.UserID == userID && r.RevokedAt == nil {
			r.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (l *Ledger) Active(userID uint64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, r := range l.rows {
		if r.UserID == userID && r.RevokedAt == nil {
			n++
		}
	}
	return n
}

// Events records every published event. Publish returns Err.
type Events struct {
	mu     sync.Mutex
	events []queue.AuthEvent
	Err    error
}

func (r *Events) Publish(_ context.Context, ev queue.AuthEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.Err
}

func (r *Events) OfType(t string) []queue.AuthEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []queue.AuthEvent
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
