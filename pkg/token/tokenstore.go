package tokenstore

import (
	"time"

	"DiaBot/pkg/cache"
)

// Store remembers revoked token ids until the token would have expired anyway.
type Store struct {
	revoked *cache.Cache
}

func New() *Store {
	return &Store{revoked: cache.New(0)}
}

// Revoke marks jti as revoked. exp is the token's expiry; a zero exp keeps the
// entry for the life of the process.
func (s *Store) Revoke(jti string, exp time.Time) {
	if jti == "" {
		return
	}
	var ttl time.Duration
	if !exp.IsZero() {
		ttl = time.Until(exp)
		if ttl <= 0 {
			return
		}
	}
	s.revoked.Set(jti, struct{}{}, ttl)
}

func (s *Store) IsRevoked(jti string) bool {
	if jti == "" {
		return false
	}
	_, ok := s.revoked.Get(jti)
	return ok
}

// Cache exposes the backing cache so the janitor can sweep it.
func (s *Store) Cache() *cache.Cache { return s.revoked }
