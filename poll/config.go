package poll

import (
	"errors"
	"time"

	"github.com/arloliu/go-cat/logger"
)

// DefaultInterval is the delay between the end of one poll and the start of the next.
const DefaultInterval = 500 * time.Millisecond

type config struct {
	interval   time.Duration
	bufferSize int
	logger     logger.Logger
}

// Option is a functional option for a Source.
type Option interface {
	apply(*config) error
}

type optFunc func(*config) error

func (f optFunc) apply(cfg *config) error { return f(cfg) }

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if d <= 0 {
			return errors.New("poll: interval must be positive")
		}
		cfg.interval = d

		return nil
	})
}

// WithBufferSize sets the per-subscriber event buffer.
func WithBufferSize(n int) Option {
	return optFunc(func(cfg *config) error {
		if n < 1 {
			return errors.New("poll: buffer size must be >= 1")
		}
		cfg.bufferSize = n

		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *config) error {
		if l == nil {
			return errors.New("poll: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
