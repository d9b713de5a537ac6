package chat

import (
	"context"
	"time"

	domainchat "github.com/tracefold/anonymizer/internal/domain/chat"
	"github.com/tracefold/anonymizer/internal/infrastructure/monitoring/logging"
	"github.com/tracefold/anonymizer/pkg/errors"
)

const (
	defaultRetention     = 90 * 24 * time.Hour
	defaultPurgeInterval = time.Hour
)

// Locker serializes purge runs across service replicas. Satisfied by
// *redis.Mutex; a nil Locker means single-instance operation.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// Purger deletes chat logs older than the retention window on a fixed
// interval. Only one replica purges at a time; the others skip the round
// when the lock is taken.
type Purger struct {
	repo      domainchat.Repository
	locker    Locker
	retention time.Duration
	interval  time.Duration
	logger    logging.Logger
}

// PurgerOption customizes a Purger.
type PurgerOption func(*Purger)

// WithRetention sets how long chat logs are kept.
func WithRetention(d time.Duration) PurgerOption {
	return func(p *Purger) {
		if d > 0 {
			p.retention = d
		}
	}
}

// WithPurgeInterval sets how often a purge round runs.
func WithPurgeInterval(d time.Duration) PurgerOption {
	return func(p *Purger) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLocker sets the cross-replica lock.
func WithLocker(locker Locker) PurgerOption {
	return func(p *Purger) { p.locker = locker }
}

// NewPurger builds a retention purger over the chat repository.
func NewPurger(repo domainchat.Repository, logger logging.Logger, opts ...PurgerOption) *Purger {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	p := &Purger{
		repo:      repo,
		retention: defaultRetention,
		interval:  defaultPurgeInterval,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run purges on the configured interval until ctx is cancelled.
func (p *Purger) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := p.PurgeOnce(ctx); err != nil {
				p.logger.Warn("retention purge round failed", logging.Err(err))
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// PurgeOnce runs a single purge round and returns the number of rows
// removed. A round skipped because another replica holds the lock returns
// (0, nil).
func (p *Purger) PurgeOnce(ctx context.Context) (int64, error) {
	if p.locker != nil {
		acquired, err := p.locker.TryLock(ctx)
		if err != nil {
			return 0, errors.Wrap(err, errors.ErrCodeExternalService, "retention lock")
		}
		if !acquired {
			p.logger.Debug("retention purge skipped, lock held elsewhere")
			return 0, nil
		}
		defer func() {
			if err := p.locker.Unlock(ctx); err != nil {
				p.logger.Warn("failed to release retention lock", logging.Err(err))
			}
		}()
	}

	cutoff := time.Now().UTC().Add(-p.retention)
	removed, err := p.repo.PurgeChatLogs(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		p.logger.Info("retention purge complete",
			logging.Int64("removed", removed),
			logging.String("cutoff", cutoff.Format(time.RFC3339)))
	}
	return removed, nil
}
