// Package scheduler drives the clock-based side of the notification engine.
// A cron job fires every minute; the tick is serialized across instances with
// a Postgres advisory lock, and the per-period claim in the automation store
// keeps a rule from firing twice even if the lease flaps.
package scheduler

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/tallpines/campreg/internal/pkg/logger"
)

// Ticker is the notification engine's clock-driven entry point.
type Ticker interface {
	OnTick(ctx context.Context, now time.Time) error
}

// advisoryLockKey identifies the scheduler lease across instances.
const advisoryLockKey = 742031

// Scheduler runs the minute tick.
type Scheduler struct {
	cron        *cron.Cron
	job         cron.Job
	pool        *pgxpool.Pool
	ticker      Ticker
	logger      zerolog.Logger
	tickTimeout time.Duration

	// acquireLease takes the cross-instance lease for one tick. When ok is
	// false another instance holds it and the tick is skipped. release must be
	// called once the tick is done.
	acquireLease func(ctx context.Context) (release func(), ok bool, err error)
}

// New creates a scheduler. Ticks that are still running when the next minute
// fires are skipped rather than stacked.
func New(pool *pgxpool.Pool, ticker Ticker) *Scheduler {
	s := &Scheduler{
		pool:        pool,
		ticker:      ticker,
		logger:      logger.With("scheduler"),
		tickTimeout: 5 * time.Minute,
	}
	s.acquireLease = s.advisoryLease
	cronLog := newCronLogger(s.logger)
	s.cron = cron.New()
	s.job = cron.NewChain(
		cron.SkipIfStillRunning(cronLog),
		cron.Recover(cronLog),
	).Then(cron.FuncJob(s.tick))
	return s
}

// Start begins ticking. It returns after the job is registered; ticks run on
// the cron goroutine.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddJob("@every 1m", s.job); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info().Msg("Scheduler started")
	return nil
}

// Stop halts the cron loop and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.tickTimeout)
	defer cancel()

	release, ok, err := s.acquireLease(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to take scheduler lease")
		return
	}
	if !ok {
		s.logger.Debug().Msg("Another instance holds the scheduler lease")
		return
	}
	defer release()

	if err := s.ticker.OnTick(ctx, time.Now()); err != nil {
		s.logger.Error().Err(err).Msg("Scheduled dispatch tick failed")
	}
}

// advisoryLease takes pg_try_advisory_lock on a dedicated connection. The lock
// is session-scoped, so it must be released on the same connection it was
// taken on; release holds the connection until then.
func (s *Scheduler) advisoryLease(ctx context.Context) (func(), bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, false, err
	}

	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, advisoryLockKey).Scan(&locked); err != nil {
		conn.Release()
		return nil, false, err
	}
	if !locked {
		conn.Release()
		return nil, false, nil
	}

	release := func() {
		defer conn.Release()
		if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, advisoryLockKey); err != nil {
			s.logger.Error().Err(err).Msg("Failed to release scheduler lease")
		}
	}
	return release, true, nil
}

// cronLogger adapts zerolog to the cron.Logger interface.
type cronLogger struct {
	logger zerolog.Logger
}

func newCronLogger(l zerolog.Logger) cron.Logger {
	return &cronLogger{logger: l}
}

func (c *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.Debug().Fields(fieldsFrom(keysAndValues)).Msg(msg)
}

func (c *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.Error().Err(err).Fields(fieldsFrom(keysAndValues)).Msg(msg)
}

func fieldsFrom(kvs []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i+1 < len(kvs); i += 2 {
		key, ok := kvs[i].(string)
		if !ok {
			continue
		}
		fields[key] = kvs[i+1]
	}
	return fields
}
