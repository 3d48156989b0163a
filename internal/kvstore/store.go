// Package kvstore holds the durable key/value backends used for learner
// state: an unbounded store of record plus a size-limited suspend buffer.
package kvstore

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("kvstore: key not found")
	ErrOverCapacity = errors.New("kvstore: value exceeds capacity")
)

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
