package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// FailoverStore routes to a primary backend and falls back to a secondary one
// when the primary errors, re-probing the primary after a cooldown. A size
// limit violation is a quota condition, not an outage, and is never failed
// over.
type FailoverStore struct {
	primary   Store
	fallback  Store
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	cooldown  time.Duration
}

func NewFailoverStore(primary, fallback Store, logger *zerolog.Logger) *FailoverStore {
	return &FailoverStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		cooldown: time.Minute,
	}
}

func (s *FailoverStore) markDown(err error) {
	s.logger.Error().Err(err).Msg("Primary storage failed, falling back")
	s.isDown.Store(true)
	s.lastCheck.Store(time.Now().UnixNano())
}

func (s *FailoverStore) shouldProbe() bool {
	return time.Since(time.Unix(0, s.lastCheck.Load())) > s.cooldown
}

func (s *FailoverStore) Get(ctx context.Context, key string) ([]byte, error) {
	if !s.isDown.Load() || s.shouldProbe() {
		data, err := s.primary.Get(ctx, key)
		if err == nil {
			s.isDown.Store(false)
			return data, nil
		}
		s.markDown(err)
	}
	return s.fallback.Get(ctx, key)
}

func (s *FailoverStore) Set(ctx context.Context, key string, data []byte) error {
	if !s.isDown.Load() || s.shouldProbe() {
		err := s.primary.Set(ctx, key, data)
		if err == nil {
			s.isDown.Store(false)
			return nil
		}
		if errors.Is(err, ErrTooLarge) {
			return err
		}
		s.markDown(err)
	}
	return s.fallback.Set(ctx, key, data)
}

func (s *FailoverStore) Delete(ctx context.Context, key string) error {
	if !s.isDown.Load() || s.shouldProbe() {
		err := s.primary.Delete(ctx, key)
		if err == nil {
			s.isDown.Store(false)
			return nil
		}
		s.markDown(err)
	}
	return s.fallback.Delete(ctx, key)
}

func (s *FailoverStore) Close() error {
	err := s.primary.Close()
	if ferr := s.fallback.Close(); ferr != nil && err == nil {
		err = ferr
	}
	return err
}
