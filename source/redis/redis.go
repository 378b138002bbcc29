// Package redis backs the configuration Store with Redis: one hash per
// namespace, values serialized through a codec so environment-reference
// markers survive the round-trip.
package redis

import (
	"context"
	"errors"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/confcache"
	c "github.com/unkn0wn-root/confcache/codec"
)

var ErrNilClient = errors.New("redis source: nil client")

const defaultPrefix = "cfgsrc"

type Store struct {
	rdb    goredis.UniversalClient
	codec  c.Codec
	prefix string
}

var _ confcache.Store = (*Store)(nil)

type Config struct {
	Client goredis.UniversalClient
	Codec  c.Codec // nil => CBOR
	Prefix string  // hash key prefix; "" => "cfgsrc"
}

func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	s := &Store{rdb: cfg.Client, codec: cfg.Codec, prefix: cfg.Prefix}
	if s.codec == nil {
		cb, err := c.NewCBOR(false)
		if err != nil {
			return nil, err
		}
		s.codec = cb
	}
	if s.prefix == "" {
		s.prefix = defaultPrefix
	}
	return s, nil
}

func (s *Store) Read(ctx context.Context, namespace, key string) (any, bool, error) {
	b, err := s.rdb.HGet(ctx, s.nsKey(namespace), key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	n, err := s.codec.Decode(b)
	if err != nil {
		return nil, false, err
	}
	return confcache.FromNode(n), true, nil
}

func (s *Store) Write(ctx context.Context, namespace, key string, value any) error {
	b, err := s.codec.Encode(confcache.ToNode(value))
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, s.nsKey(namespace), key, b).Err()
}

// Delete removes one key from a namespace hash. Not part of the Store
// contract.
func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	return s.rdb.HDel(ctx, s.nsKey(namespace), key).Err()
}

func (s *Store) nsKey(namespace string) string {
	return s.prefix + ":" + namespace
}
