package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// errorRecorder is the slice of metrics.Metrics that StaleTolerant needs,
// kept narrow so pkg/cache doesn't import pkg/metrics directly.
type errorRecorder interface {
	RecordCacheError(op string)
}

// StaleTolerant wraps a Cache so that backend failures never propagate to
// the caller: a failed Get is treated as a miss, a failed Set is logged and
// swallowed. Callers that would otherwise fail a whole aggregation because
// Redis is unreachable instead fall through to fetching fresh data.
type StaleTolerant struct {
	backend Cache
	log     *slog.Logger
	metrics errorRecorder
}

// NewStaleTolerant wraps backend. If log is nil, slog.Default() is used.
func NewStaleTolerant(backend Cache, log *slog.Logger) *StaleTolerant {
	if log == nil {
		log = slog.Default()
	}
	return &StaleTolerant{backend: backend, log: log}
}

// WithMetrics attaches a metrics recorder so every swallowed backend error
// is also counted, not just logged. Returns s for chaining.
func (s *StaleTolerant) WithMetrics(m errorRecorder) *StaleTolerant {
	s.metrics = m
	return s
}

// Get returns the cached value, or (nil, false) on miss or backend failure.
// It never returns an error.
func (s *StaleTolerant) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := s.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			s.log.Warn("cache get failed, treating as miss", "key", key, "error", err)
			s.recordError("get")
		}
		return nil, false
	}
	return val, true
}

// Set stores value with the given TTL. Failures are logged, not returned.
func (s *StaleTolerant) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := s.backend.Set(ctx, key, value, ttl); err != nil {
		s.log.Warn("cache set failed", "key", key, "error", err)
		s.recordError("set")
	}
}

// GetWithTTL returns the cached value plus its remaining TTL, or ok=false on
// miss or backend failure.
func (s *StaleTolerant) GetWithTTL(ctx context.Context, key string) (value []byte, ttl time.Duration, ok bool) {
	value, ttl, err := s.backend.GetWithTTL(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			s.log.Warn("cache get-with-ttl failed, treating as miss", "key", key, "error", err)
			s.recordError("get_with_ttl")
		}
		return nil, 0, false
	}
	return value, ttl, true
}

func (s *StaleTolerant) recordError(op string) {
	if s.metrics != nil {
		s.metrics.RecordCacheError(op)
	}
}
