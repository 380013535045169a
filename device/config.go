package device

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-cat/logger"
)

const (
	DefaultResponseTimeout = time.Second
	MinResponseTimeout     = 10 * time.Millisecond
	MaxResponseTimeout     = 60 * time.Second
	DefaultLogBufferSize   = 256
	DefaultFrameBufferSize = 64
)

// Config holds per-device settings.
type Config struct {
	responseTimeout time.Duration
	logBufferSize   int
	frameBufferSize int
	logger          logger.Logger
}

// NewConfig applies opts over the defaults.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		responseTimeout: DefaultResponseTimeout,
		logBufferSize:   DefaultLogBufferSize,
		frameBufferSize: DefaultFrameBufferSize,
		logger:          logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// ResponseTimeout returns the default deadline of get-commands.
func (cfg *Config) ResponseTimeout() time.Duration { return cfg.responseTimeout }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithResponseTimeout sets how long a get-command waits for its response frame.
func WithResponseTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinResponseTimeout || d > MaxResponseTimeout {
			return fmt.Errorf("device: response timeout %v out of range [%v, %v]",
				d, MinResponseTimeout, MaxResponseTimeout)
		}
		cfg.responseTimeout = d

		return nil
	})
}

// WithLogBufferSize sets the per-subscriber buffer of the device and transport logs.
// Entries that do not fit are dropped for that subscriber.
func WithLogBufferSize(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 1 {
			return errors.New("device: log buffer size must be >= 1")
		}
		cfg.logBufferSize = n

		return nil
	})
}

// WithFrameBufferSize sets the per-subscriber buffer of the frame stream.
func WithFrameBufferSize(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 1 {
			return errors.New("device: frame buffer size must be >= 1")
		}
		cfg.frameBufferSize = n

		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("device: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}

// CallOption adjusts a single Invoke.
type CallOption func(*callConfig)

type callConfig struct {
	timeout time.Duration
}

// CallTimeout overrides the response timeout for one call.
func CallTimeout(d time.Duration) CallOption {
	return func(c *callConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}
