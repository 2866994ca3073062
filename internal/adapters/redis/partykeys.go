package redisad

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/HugoFernandezz/Jaleo/internal/adapters/observability"
	"github.com/HugoFernandezz/Jaleo/internal/domain"
)

const seenKey = "jaleo:parties:seen"

// Store persists the party fingerprints from the previous snapshot so the
// notification detector can diff runs across restarts.
type Store struct{ c *redis.Client }

func New(addr, pass string, db int) *Store {
	return &Store{c: redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})}
}

func (s *Store) Load(ctx context.Context) ([]domain.PartyKey, error) {
	v, err := s.c.Get(ctx, seenKey).Bytes()
	if err == redis.Nil {
		observability.ObserveCache("redis", "miss")
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	observability.ObserveCache("redis", "hit")
	var keys []domain.PartyKey
	if err := json.Unmarshal(v, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Store) Save(ctx context.Context, keys []domain.PartyKey) error {
	b, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	observability.ObserveCache("redis", "set")
	// No TTL: the set stays valid until the next run replaces it.
	return s.c.Set(ctx, seenKey, b, 0).Err()
}
