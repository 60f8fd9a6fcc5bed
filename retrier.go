package vxdash

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DelayPolicy maps the number of consecutive failures (starting at 0) to
// the pause before the next attempt.
type DelayPolicy func(attempt int) time.Duration

// FixedDelay waits d after every failure, forever.
func FixedDelay(d time.Duration) DelayPolicy {
	return func(int) time.Duration { return d }
}

// Tier is a run of Cycles attempts that share one Delay. Cycles <= 0 means
// the tier never ends.
type Tier struct {
	Cycles int
	Delay  time.Duration
}

// TieredDelay walks the tiers in order; past the last tier its delay repeats.
func TieredDelay(tiers ...Tier) DelayPolicy {
	return func(attempt int) time.Duration {
		if len(tiers) == 0 {
			return 0
		}
		for _, t := range tiers {
			if t.Cycles <= 0 || attempt < t.Cycles {
				return t.Delay
			}
			attempt -= t.Cycles
		}
		return tiers[len(tiers)-1].Delay
	}
}

type Retryable interface {
	Open() error
	Close() error
	Start(ctx context.Context) error
	Name() string
}

// errorReporter is implemented by retryables that surface failures beyond
// the log.
type errorReporter interface {
	reportError(err error)
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retry keeps r running until ctx is done: open, start, and on any error
// close, wait per policy and open again.
func retry(ctx context.Context, r Retryable, policy DelayPolicy) error {
	errStarting := errors.New("starting")
	err := errStarting
	failures := 0
	for {
		select {
		case <-ctx.Done():
			if cerr := r.Close(); cerr != nil {
				log.WithField("err", cerr).Warnf("%s: unable to close", r.Name())
			}
			return ctx.Err()
		default:
		}
		if err != nil {
			if err != errStarting {
				if ctx.Err() != nil {
					continue
				}
				log.WithField("err", err).Errorf("%s: reconnecting due to error", r.Name())
				if rep, ok := r.(errorReporter); ok {
					rep.reportError(err)
				}
				if cerr := r.Close(); cerr != nil {
					log.WithField("err", cerr).Warnf("%s: unable to close", r.Name())
				}
				if serr := sleep(ctx, policy(failures)); serr != nil {
					continue
				}
				failures++
			}
			err = r.Open()
			if err != nil {
				continue
			}
			failures = 0
		}
		err = r.Start(ctx)
	}
}
