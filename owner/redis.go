// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

package owner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	dispatch "github.com/wneessen/go-mail-dispatch"
)

// Hash fields of an owner record in Redis
const (
	FieldEmail     = "email"
	FieldFirstName = "first_name"
	FieldLastName  = "last_name"
	FieldSignature = "signature"
)

// RedisStore reads owner records from Redis hashes stored under owner:<id>.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore returns a new RedisStore using the given client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func ownerKey(id string) string {
	return fmt.Sprintf("owner:%s", id)
}

// Owner satisfies the dispatch.OwnerLookup interface.
func (s *RedisStore) Owner(ctx context.Context, id string) (*dispatch.Owner, error) {
	fields, err := s.client.HGetAll(ctx, ownerKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch owner %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", dispatch.ErrOwnerNotFound, id)
	}
	return &dispatch.Owner{
		ID:        id,
		Email:     fields[FieldEmail],
		FirstName: fields[FieldFirstName],
		LastName:  fields[FieldLastName],
		Signature: fields[FieldSignature],
	}, nil
}

// Save stores the owner record, replacing an existing record with the same ID.
func (s *RedisStore) Save(ctx context.Context, o dispatch.Owner) error {
	if o.ID == "" {
		return errors.New("owner ID must not be empty")
	}
	key := ownerKey(o.ID)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		FieldEmail, o.Email,
		FieldFirstName, o.FirstName,
		FieldLastName, o.LastName,
		FieldSignature, o.Signature,
	)
	_, err := pipe.Exec(ctx)
	return err
}

// Delete removes the owner record.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, ownerKey(id)).Err()
}

// notFoundMarker is cached for owners that do not exist
const notFoundMarker = "-"

// Cache is a read-through cache in Redis in front of a slower OwnerLookup. Found and
// not found results are cached for the TTL; lookup errors are not cached.
type Cache struct {
	client *redis.Client
	next   dispatch.OwnerLookup
	ttl    time.Duration
}

// NewCache returns a new Cache in front of the given OwnerLookup.
func NewCache(client *redis.Client, next dispatch.OwnerLookup, ttl time.Duration) *Cache {
	return &Cache{client: client, next: next, ttl: ttl}
}

func cacheKey(id string) string {
	return fmt.Sprintf("owner-cache:%s", id)
}

// Owner satisfies the dispatch.OwnerLookup interface.
func (c *Cache) Owner(ctx context.Context, id string) (*dispatch.Owner, error) {
	val, err := c.client.Get(ctx, cacheKey(id)).Result()
	switch {
	case err == nil && val == notFoundMarker:
		return nil, fmt.Errorf("%w: %s", dispatch.ErrOwnerNotFound, id)
	case err == nil:
		var o dispatch.Owner
		if jerr := json.Unmarshal([]byte(val), &o); jerr == nil {
			return &o, nil
		}
	case !errors.Is(err, redis.Nil):
		return nil, fmt.Errorf("failed to read owner cache: %w", err)
	}

	o, err := c.next.Owner(ctx, id)
	switch {
	case errors.Is(err, dispatch.ErrOwnerNotFound):
		_ = c.client.Set(ctx, cacheKey(id), notFoundMarker, c.ttl).Err()
		return nil, err
	case err != nil:
		return nil, err
	}
	if data, jerr := json.Marshal(o); jerr == nil {
		_ = c.client.Set(ctx, cacheKey(id), data, c.ttl).Err()
	}
	return o, nil
}

// Invalidate drops the cached record of the owner.
func (c *Cache) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, cacheKey(id)).Err()
}
