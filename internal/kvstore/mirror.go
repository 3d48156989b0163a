package kvstore

import (
	"context"
	"errors"
	"log"
)

// Mirror writes every value to a bounded store and to an unbounded
// fallback. The fallback is the store of record: it is read first, and a
// value rejected by the bounded store is never lost.
type Mirror struct {
	Bounded  *Bounded
	Fallback Store
}

func NewMirror(bounded *Bounded, fallback Store) *Mirror {
	return &Mirror{Bounded: bounded, Fallback: fallback}
}

func (m *Mirror) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := m.Fallback.Get(ctx, key)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrNotFound) {
		log.Printf("fallback store read failed, trying suspend buffer: key=%s err=%v", key, err)
	}
	return m.Bounded.Get(ctx, key)
}

// Set fails only when neither store accepted the value.
func (m *Mirror) Set(ctx context.Context, key string, value []byte) error {
	errB := m.Bounded.Set(ctx, key, value)
	switch {
	case errors.Is(errB, ErrOverCapacity):
		log.Printf("suspend buffer full, kept in fallback only: %v", errB)
	case errB != nil:
		log.Printf("suspend buffer write failed: key=%s err=%v", key, errB)
	}
	errF := m.Fallback.Set(ctx, key, value)
	if errF == nil {
		if errB != nil {
			// the buffer still holds an older value; it must not be read back
			if err := m.Bounded.Delete(ctx, key); err != nil {
				log.Printf("suspend buffer stale value not cleared: key=%s err=%v", key, err)
			}
		}
		return nil
	}
	if errB == nil {
		log.Printf("fallback store write failed, suspend buffer holds the value: key=%s err=%v", key, errF)
		return nil
	}
	return errors.Join(errB, errF)
}

func (m *Mirror) Delete(ctx context.Context, key string) error {
	return errors.Join(m.Bounded.Delete(ctx, key), m.Fallback.Delete(ctx, key))
}
