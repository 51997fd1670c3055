package session

import (
	"context"
	"time"

	"taskboard/api/internal/store"
)

// PostgresStore adapts the relational store's refresh-session tables to the
// same shape as RedisStore. Used when Redis is not configured.
type PostgresStore struct {
	inner *store.PostgresStore
}

func NewPostgresStore(inner *store.PostgresStore) *PostgresStore {
	return &PostgresStore{inner: inner}
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	return s.inner.SaveRefreshSession(ctx, tokenHash, user.ID, expiresAt)
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	return s.inner.LookupRefreshSession(ctx, tokenHash)
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	return s.inner.RevokeRefreshSession(ctx, tokenHash)
}
