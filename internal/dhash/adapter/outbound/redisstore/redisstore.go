package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/anthanhphan/go-dhash-replication/internal/dhash/domain"
	"github.com/anthanhphan/go-dhash-replication/internal/dhash/port"
	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
)

const scanPage = 512

// Store implements port.BlockStore on Redis.
//
// Each block lives under prefix+<16 hex id>. A sorted set at prefix+"ids"
// lists every stored id with score 0, so lexicographic member order is ring
// order.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// Ensure Store implements BlockStore
var _ port.BlockStore = (*Store)(nil)

func New(client redis.UniversalClient, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) blockKey(id ring.ID) string {
	return s.prefix + id.String()
}

func (s *Store) idsKey() string {
	return s.prefix + "ids"
}

func (s *Store) Get(ctx context.Context, id ring.ID) (domain.Block, error) {
	val, err := s.client.Get(ctx, s.blockKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrBlockNotFound
	}
	if err != nil {
		return nil, err
	}
	return domain.Block(val), nil
}

func (s *Store) Put(ctx context.Context, id ring.ID, block domain.Block) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.blockKey(id), []byte(block), 0)
		pipe.ZAdd(ctx, s.idsKey(), redis.Z{Score: 0, Member: id.String()})
		return nil
	})
	return err
}

func (s *Store) Delete(ctx context.Context, id ring.ID) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.blockKey(id))
		pipe.ZRem(ctx, s.idsKey(), id.String())
		return nil
	})
	return err
}

// Scan pages through the id set. Blocks removed while the scan runs are skipped.
func (s *Store) Scan(ctx context.Context, fn func(id ring.ID, block domain.Block) error) error {
	for start := int64(0); ; start += scanPage {
		members, err := s.client.ZRange(ctx, s.idsKey(), start, start+scanPage-1).Result()
		if err != nil {
			return err
		}
		if len(members) == 0 {
			return nil
		}

		keys := make([]string, len(members))
		ids := make([]ring.ID, len(members))
		for i, m := range members {
			id, err := ring.ParseID(m)
			if err != nil {
				return fmt.Errorf("corrupt id set member: %w", err)
			}
			ids[i] = id
			keys[i] = s.blockKey(id)
		}

		vals, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return err
		}
		for i, v := range vals {
			str, ok := v.(string)
			if !ok {
				continue
			}
			if err := fn(ids[i], domain.Block(str)); err != nil {
				return err
			}
		}

		if len(members) < scanPage {
			return nil
		}
	}
}

// Close does not close the client, which the caller owns.
func (s *Store) Close() error {
	return nil
}
