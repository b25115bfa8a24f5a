package sessions

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"codeberg.org/storefront/server/internal/logger"
)

// DeleteBatchSize bounds each delete statement so a sweep never holds a
// long lock over the sessions table.
const DeleteBatchSize = 100

// Sweeper periodically removes expired session records, evicting each one
// from the cache individually so live sessions keep their entries.
type Sweeper struct {
	store         Store
	cache         Cache
	checkInterval time.Duration
	batchSize     int
	limiter       *rate.Limiter

	// gates sweeping until the schema is in place
	ready func() bool

	now func() time.Time
}

// SweeperOptions configures a Sweeper; zero values get defaults.
type SweeperOptions struct {
	// how often a sweep runs
	CheckInterval time.Duration

	// rows per delete statement
	BatchSize int

	// max delete batches per second, 0 for unpaced
	BatchesPerSecond float64

	// sweep runs are skipped while this returns false
	Ready func() bool

	// test hook, defaults to time.Now
	Now func() time.Time
}

func NewSweeper(store Store, cache Cache, opts SweeperOptions) *Sweeper {
	s := &Sweeper{
		store:         store,
		cache:         cache,
		checkInterval: opts.CheckInterval,
		batchSize:     opts.BatchSize,
		ready:         opts.Ready,
		now:           opts.Now,
	}

	if s.cache == nil {
		s.cache = NoopCache{}
	}

	if s.checkInterval <= 0 {
		s.checkInterval = time.Hour
	}

	if s.batchSize <= 0 {
		s.batchSize = DeleteBatchSize
	}

	if s.now == nil {
		s.now = time.Now
	}

	if opts.BatchesPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.BatchesPerSecond), 1)
	}

	return s
}

// Start runs the sweep loop until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	logger.Info("starting session sweeper",
		"check_interval", s.checkInterval,
		"batch_size", s.batchSize,
	)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("session sweeper stopped")
			return
		case <-ticker.C:
			if err := s.Run(ctx); err != nil {
				logger.ErrorErr(err, "session sweep failed")
			}
		}
	}
}

// Run performs a single sweep. A failed batch is logged and skipped; the
// rows it left behind are still expired and the next run picks them up.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.ready != nil && !s.ready() {
		return nil
	}

	expired, err := s.store.ListExpired(ctx, s.now().Unix())
	if err != nil {
		return err
	}

	if len(expired) == 0 {
		return nil
	}

	logger.Info("found expired sessions", "count", len(expired))

	ids := make([]int64, 0, len(expired))

	for _, session := range expired {
		// evict individually rather than flushing, other live sessions
		// must keep their cache entries
		if err := s.cache.Delete(ctx, session.Key); err != nil {
			logger.ErrorErr(err, "failed to evict expired session from cache",
				"session_key", session.Key,
			)
		}

		ids = append(ids, session.ID)
	}

	deleted := 0

	for start := 0; start < len(ids); start += s.batchSize {
		end := min(start+s.batchSize, len(ids))

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		if err := s.store.DeleteBatch(ctx, ids[start:end]); err != nil {
			logger.ErrorErr(err, "failed to delete expired session batch",
				"batch_start", start,
				"batch_size", end-start,
			)
			continue
		}

		deleted += end - start
	}

	logger.Info("session sweep complete", "deleted", deleted, "expired", len(ids))
	return nil
}
