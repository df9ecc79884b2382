package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

// Config bounds the exponential backoff applied at adapter boundaries.
type Config struct {
	MaxAttempts     uint          `envconfig:"MAX_ATTEMPTS" split_words:"true" default:"3"`
	InitialInterval time.Duration `envconfig:"INITIAL_INTERVAL" split_words:"true" default:"200ms"`
	MaxInterval     time.Duration `envconfig:"MAX_INTERVAL" split_words:"true" default:"2s"`
	Multiplier      float64       `envconfig:"MULTIPLIER" split_words:"true" default:"2"`
}

var DefaultConfig = Config{
	MaxAttempts:     3,
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     2 * time.Second,
	Multiplier:      2,
}

// Disabled runs the operation exactly once.
var Disabled = Config{MaxAttempts: 1}

func (c Config) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if c.InitialInterval > 0 {
		b.InitialInterval = c.InitialInterval
	}
	if c.MaxInterval > 0 {
		b.MaxInterval = c.MaxInterval
	}
	if c.Multiplier > 1 {
		b.Multiplier = c.Multiplier
	}
	return b
}

func (c Config) attempts() uint {
	if c.MaxAttempts == 0 {
		return 1
	}
	return c.MaxAttempts
}

// Do runs op until it succeeds, returns an error retryable rejects, the attempt
// budget is spent, or ctx is done. The last error is returned unchanged.
func Do[T any](ctx context.Context, cfg Config, name string, retryable func(error) bool, op func(context.Context) (T, error)) (T, error) {
	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		if retryable == nil || !retryable(err) {
			return out, backoff.Permanent(err)
		}
		return out, err
	},
		backoff.WithBackOff(cfg.backOff()),
		backoff.WithMaxTries(cfg.attempts()),
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.Warn().
				Err(err).
				Str("operation", name).
				Int("attempt", attempt).
				Dur("retry_in", wait).
				Msg("retrying after transient failure")
		}),
	)
}
