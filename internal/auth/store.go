package auth

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"
)

// TokenStore persists the bearer token per profile. Load returns "" when
// nothing is stored.
type TokenStore interface {
	Load(ctx context.Context, profile string) (string, error)
	Save(ctx context.Context, profile, token string) error
	Clear(ctx context.Context, profile string) error
}

type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: map[string]string{}}
}

func (m *MemoryTokenStore) Load(_ context.Context, profile string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokens[profile], nil
}

func (m *MemoryTokenStore) Save(_ context.Context, profile, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[profile] = token
	return nil
}

func (m *MemoryTokenStore) Clear(_ context.Context, profile string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, profile)
	return nil
}

// SQLTokenStore keeps tokens in the auth_tokens table. With a Sealer the
// stored value is encrypted.
type SQLTokenStore struct {
	db     *sql.DB
	sealer *Sealer
}

func NewSQLTokenStore(db *sql.DB, sealer *Sealer) *SQLTokenStore {
	return &SQLTokenStore{db: db, sealer: sealer}
}

func (s *SQLTokenStore) Load(ctx context.Context, profile string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT token FROM auth_tokens WHERE profile=$1`, profile).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if s.sealer == nil {
		if IsSealed(v) {
			return "", ErrSealed
		}
		return v, nil
	}
	return s.sealer.Open(v)
}

func (s *SQLTokenStore) Save(ctx context.Context, profile, token string) error {
	v := token
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(token)
		if err != nil {
			return err
		}
		v = sealed
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO auth_tokens (profile, token, updated_at) VALUES ($1,$2,$3)
		ON CONFLICT (profile) DO UPDATE SET token=EXCLUDED.token, updated_at=EXCLUDED.updated_at`,
		profile, v, time.Now().Unix())
	return err
}

func (s *SQLTokenStore) Clear(ctx context.Context, profile string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM auth_tokens WHERE profile=$1`, profile)
	return err
}
