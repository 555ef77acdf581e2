package service

import (
	"context"
	"time"

	"studiobook/internal/domain"

	"github.com/rs/zerolog"
)

// SubmissionLimiter caps how many bookings one client may submit per window.
type SubmissionLimiter struct {
	limiter domain.RateLimiter
	limit   int
	window  time.Duration
	logger  *zerolog.Logger
}

func NewSubmissionLimiter(limiter domain.RateLimiter, limit int, window time.Duration, logger *zerolog.Logger) *SubmissionLimiter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &SubmissionLimiter{limiter: limiter, limit: limit, window: window, logger: logger}
}

// Allow reports whether clientKey may submit another booking. Limiter errors
// let the request through.
func (s *SubmissionLimiter) Allow(ctx context.Context, clientKey string) bool {
	if s == nil || s.limiter == nil || s.limit <= 0 {
		return true
	}
	ok, err := s.limiter.CheckRateLimit(ctx, "submit:"+clientKey, s.limit, s.window)
	if err != nil {
		s.logger.Error().Err(err).Str("client", clientKey).Msg("failed to check submission limit")
		return true
	}
	if !ok {
		s.logger.Warn().Str("client", clientKey).Int("limit", s.limit).Dur("window", s.window).Msg("submission limit reached")
	}
	return ok
}
