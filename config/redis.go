// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	dispatch "github.com/wneessen/go-mail-dispatch"
)

// RedisKeyPrefix is prepended to the dispatch configuration keys in Redis
const RedisKeyPrefix = "config:"

// scalarKeys are the dispatch configuration keys stored as Redis strings. KeyCustomHeaders
// is stored as a Redis hash.
var scalarKeys = []string{
	dispatch.KeyFromEmail,
	dispatch.KeyFromName,
	dispatch.KeyReplyToEmail,
	dispatch.KeyMinifyHTML,
	dispatch.KeyAppendTrackingPixel,
	dispatch.KeyIdentityLimit,
	dispatch.KeyGroupSize,
	dispatch.KeyDefaultSignature,
}

// Overlay is a dispatch.Config that serves values stored in Redis under config:<key> and falls
// back to a base Config for keys that are not set in Redis. The Redis values are fetched with
// Refresh, so reads never block on Redis. An Overlay is safe for concurrent use.
type Overlay struct {
	client *redis.Client
	base   dispatch.Config

	mu     sync.RWMutex
	values dispatch.StaticConfig
}

// NewOverlay returns a new Overlay over the given base Config. Call Refresh to load the
// Redis values.
func NewOverlay(client *redis.Client, base dispatch.Config) *Overlay {
	if base == nil {
		base = dispatch.StaticConfig{}
	}
	return &Overlay{client: client, base: base, values: dispatch.StaticConfig{}}
}

// Refresh fetches all configuration keys from Redis in a single pipeline.
func (o *Overlay) Refresh(ctx context.Context) error {
	pipe := o.client.Pipeline()
	cmds := make(map[string]*redis.StringCmd, len(scalarKeys))
	for _, key := range scalarKeys {
		cmds[key] = pipe.Get(ctx, RedisKeyPrefix+key)
	}
	headersCmd := pipe.HGetAll(ctx, RedisKeyPrefix+dispatch.KeyCustomHeaders)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to fetch configuration from redis: %w", err)
	}

	values := dispatch.StaticConfig{}
	for key, cmd := range cmds {
		val, err := cmd.Result()
		if err != nil {
			continue
		}
		values[key] = val
	}
	if headers, err := headersCmd.Result(); err == nil && len(headers) > 0 {
		values[dispatch.KeyCustomHeaders] = headers
	}

	o.mu.Lock()
	o.values = values
	o.mu.Unlock()
	return nil
}

// Set stores the value for the given configuration key in Redis. The value is served after
// the next Refresh.
func (o *Overlay) Set(ctx context.Context, key, value string) error {
	return o.client.Set(ctx, RedisKeyPrefix+key, value, 0).Err()
}

// SetCustomHeaders replaces the custom headers stored in Redis.
func (o *Overlay) SetCustomHeaders(ctx context.Context, headers map[string]string) error {
	key := RedisKeyPrefix + dispatch.KeyCustomHeaders
	pipe := o.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(headers) > 0 {
		args := make([]interface{}, 0, len(headers)*2)
		for name, value := range headers {
			args = append(args, name, value)
		}
		pipe.HSet(ctx, key, args...)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (o *Overlay) lookup(key string) (dispatch.StaticConfig, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.values[key]
	return o.values, ok
}

// String satisfies the dispatch.Config interface.
func (o *Overlay) String(key, def string) string {
	if values, ok := o.lookup(key); ok {
		return values.String(key, def)
	}
	return o.base.String(key, def)
}

// Bool satisfies the dispatch.Config interface.
func (o *Overlay) Bool(key string, def bool) bool {
	if values, ok := o.lookup(key); ok {
		return values.Bool(key, o.base.Bool(key, def))
	}
	return o.base.Bool(key, def)
}

// Int satisfies the dispatch.Config interface.
func (o *Overlay) Int(key string, def int) int {
	if values, ok := o.lookup(key); ok {
		return values.Int(key, o.base.Int(key, def))
	}
	return o.base.Int(key, def)
}

// StringMap satisfies the dispatch.Config interface.
func (o *Overlay) StringMap(key string) map[string]string {
	if values, ok := o.lookup(key); ok {
		return values.StringMap(key)
	}
	return o.base.StringMap(key)
}
