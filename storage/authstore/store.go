package authstore

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/trezcool/practicehub/core/session"
)

// ErrNotFound is returned by a Backend when the key holds nothing.
var ErrNotFound = errors.New("blob not found")

type (
	// Backend stores raw blobs by key.
	Backend interface {
		Get(ctx context.Context, key string) ([]byte, error)
		Set(ctx context.Context, key string, data []byte) error
		Del(ctx context.Context, key string) error
	}

	// Store keeps the persisted session as a single named blob: {"state": {token, user, role}}.
	Store struct {
		backend Backend
		key     string
	}

	blob struct {
		State   session.Persisted `json:"state"`
		Version int               `json:"version"`
	}
)

var _ session.CredentialStore = (*Store)(nil)

func New(backend Backend, key string) *Store {
	return &Store{backend: backend, key: key}
}

func (s *Store) Load(ctx context.Context) (session.Persisted, error) {
	data, err := s.backend.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return session.Persisted{}, session.ErrNoCredentials
		}
		return session.Persisted{}, errors.Wrapf(err, "reading %q", s.key)
	}
	var b blob
	if err := json.Unmarshal(data, &b); err != nil {
		return session.Persisted{}, errors.Wrapf(err, "decoding %q", s.key)
	}
	return b.State, nil
}

func (s *Store) Save(ctx context.Context, p session.Persisted) error {
	data, err := json.Marshal(blob{State: p})
	if err != nil {
		return errors.Wrap(err, "encoding session")
	}
	return errors.Wrapf(s.backend.Set(ctx, s.key, data), "writing %q", s.key)
}

func (s *Store) Clear(ctx context.Context) error {
	err := s.backend.Del(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return errors.Wrapf(err, "deleting %q", s.key)
}

// Token returns the persisted token. A missing or corrupt blob means no token.
func (s *Store) Token(ctx context.Context) string {
	p, err := s.Load(ctx)
	if err != nil {
		return ""
	}
	return p.Token
}
