// internal/store/retry.go
//
// Retrying Store wrapper.
// Responsibilities:
//   - Retry Save and Delete with a linear backoff.
//   - Report writes that exhausted their retries through a FailureFunc.
//
// Notes:
//   - The backoff runs on the caller's goroutine. Games persist under their
//     own lock, so a failing backend delays that game until the retries end.

package store

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// FailureFunc is called once a write has exhausted its retries.
type FailureFunc func(key string, err error)

type retrying struct {
	Store
	attempts  int
	backoff   time.Duration
	onFailure FailureFunc
}

// WithRetry wraps s so that Save and Delete are retried with a linear
// backoff. Reads are passed through untouched.
func WithRetry(s Store, attempts int, backoff time.Duration, onFailure FailureFunc) Store {
	if attempts < 1 {
		attempts = 1
	}
	return &retrying{Store: s, attempts: attempts, backoff: backoff, onFailure: onFailure}
}

func (r *retrying) Save(ctx context.Context, key string, rec *Record) error {
	return r.do(ctx, key, "save", func() error { return r.Store.Save(ctx, key, rec) })
}

func (r *retrying) Delete(ctx context.Context, key string) error {
	return r.do(ctx, key, "delete", func() error { return r.Store.Delete(ctx, key) })
}

func (r *retrying) do(ctx context.Context, key, op string, fn func() error) error {
	var err error
	for i := 1; ; i++ {
		if err = fn(); err == nil {
			return nil
		}
		log.Warn().Err(err).Str("chat", key).Str("op", op).Int("attempt", i).Msg("store write failed")
		if i >= r.attempts || ctx.Err() != nil {
			break
		}
		t := time.NewTimer(r.backoff * time.Duration(i))
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.C:
		}
	}
	if r.onFailure != nil {
		r.onFailure(key, err)
	}
	return err
}
