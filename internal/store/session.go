// Package store holds the Redis-backed persistence for wizard session
// snapshots.
package store

import (
	"context"
	"time"

	"hpcredit/internal/wizard"
	"hpcredit/pkg/cache"
	"hpcredit/pkg/errors"

	"github.com/google/uuid"
)

const sessionKeyPrefix = "wizard:session:"

// SessionStore keeps session snapshots in Redis with a sliding TTL: every
// save renews the expiry, so a session only disappears after the configured
// idle period.
type SessionStore struct {
	cache *cache.RedisCache
	ttl   time.Duration
}

func NewSessionStore(c *cache.RedisCache, ttl time.Duration) *SessionStore {
	return &SessionStore{cache: c, ttl: ttl}
}

func (s *SessionStore) Save(ctx context.Context, snap *wizard.Snapshot) error {
	if err := s.cache.Set(ctx, sessionKeyPrefix+snap.ID.String(), snap, s.ttl); err != nil {
		return errors.Wrap(err, "failed to save session snapshot")
	}
	return nil
}

func (s *SessionStore) Load(ctx context.Context, id uuid.UUID) (*wizard.Snapshot, error) {
	var snap wizard.Snapshot
	err := s.cache.Get(ctx, sessionKeyPrefix+id.String(), &snap)
	if err == cache.ErrMiss {
		return nil, errors.ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load session snapshot")
	}
	return &snap, nil
}

func (s *SessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.cache.Delete(ctx, sessionKeyPrefix+id.String())
}
