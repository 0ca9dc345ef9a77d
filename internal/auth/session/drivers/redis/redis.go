// Package redis backs the session store with Redis so session state survives
// process restarts and can be shared across replicas.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/inkwellhq/inkwell/internal/auth/domain"
	"github.com/inkwellhq/inkwell/internal/auth/session"
)

const (
	keyPrefix = "inkwell:session:"

	// userPrefix keys a SET of session IDs per user so DeleteByUser does not
	// have to scan the keyspace. The set may hold IDs whose sessions already
	// expired; deleting those is a no-op.
	userPrefix = "inkwell:user_sessions:"
)

type Store struct {
	client *goredis.Client
}

func NewStore(ctx context.Context, addr, password string, db int) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{client: client}, nil
}

func key(id string) string      { return keyPrefix + id }
func userKey(uid string) string { return userPrefix + uid }

func (s *Store) Get(ctx context.Context, id string) (domain.SessionContext, error) {
	raw, err := s.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.SessionContext{}, session.ErrNotFound
	}
	if err != nil {
		return domain.SessionContext{}, err
	}

	var sc domain.SessionContext
	if err := json.Unmarshal(raw, &sc); err != nil {
		return domain.SessionContext{}, fmt.Errorf("decode session: %w", err)
	}
	return sc, nil
}

func (s *Store) Put(ctx context.Context, id string, sc domain.SessionContext, ttl time.Duration) error {
	raw, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, key(id), raw, ttl)
		pipe.SAdd(ctx, userKey(sc.UserID), id)
		// The index outlives the user's most recently touched session by at
		// most one TTL.
		pipe.Expire(ctx, userKey(sc.UserID), ttl)
		return nil
	})
	return err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	sc, err := s.Get(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return s.client.Del(ctx, key(id)).Err()
	}
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key(id))
		pipe.SRem(ctx, userKey(sc.UserID), id)
		return nil
	})
	return err
}

// Rename moves the session to a new key under WATCH so that of two
// concurrent rotations only one lands; the loser sees ErrNotFound and
// should re-read the session under its new ID.
func (s *Store) Rename(ctx context.Context, oldID, newID string, ttl time.Duration) error {
	txn := func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, key(oldID)).Bytes()
		if errors.Is(err, goredis.Nil) {
			return session.ErrNotFound
		}
		if err != nil {
			return err
		}

		var sc domain.SessionContext
		if err := json.Unmarshal(raw, &sc); err != nil {
			return fmt.Errorf("decode session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, key(oldID))
			pipe.Set(ctx, key(newID), raw, ttl)
			pipe.SRem(ctx, userKey(sc.UserID), oldID)
			pipe.SAdd(ctx, userKey(sc.UserID), newID)
			pipe.Expire(ctx, userKey(sc.UserID), ttl)
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txn, key(oldID))
	if errors.Is(err, goredis.TxFailedErr) {
		return session.ErrNotFound
	}
	return err
}

// DeleteByUser removes every session in the user's index except keepID.
func (s *Store) DeleteByUser(ctx context.Context, userID, keepID string) error {
	ids, err := s.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, id := range ids {
			if id == keepID {
				continue
			}
			pipe.Del(ctx, key(id))
			pipe.SRem(ctx, userKey(userID), id)
		}
		return nil
	})
	return err
}

func (s *Store) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *Store) Close() error { return s.client.Close() }
