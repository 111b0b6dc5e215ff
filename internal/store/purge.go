package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/adriatica/firewatch/internal/metrics"
)

// DefaultPurgeInterval is how often expired live tracks are purged when
// no interval is configured.
const DefaultPurgeInterval = time.Minute

// PurgeLoop runs PurgeExpired on a ticker until the context is cancelled.
// It is decoupled from read traffic; each pass holds the write lock only
// for the duration of one delete statement.
func (s *Store) PurgeLoop(ctx context.Context, interval time.Duration, log *zap.Logger) {
	if interval <= 0 {
		interval = DefaultPurgeInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := s.PurgeExpired(ctx, now)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn("live track purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				metrics.LiveTracksPurged.Add(float64(n))
				log.Info("purged expired live tracks", zap.Int64("removed", n))
			}
		}
	}
}
