package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-cat/logger"
	"go.bug.st/serial"
)

// Default transport settings.
const (
	DefaultBaudRate     = 9600
	DefaultDataBits     = 8
	DefaultReadTimeout  = 100 * time.Millisecond
	DefaultWriteTimeout = 2 * time.Second
	DefaultDialTimeout  = 3 * time.Second
	DefaultBufferSize   = 64
	DefaultReadSize     = 256
)

// Config holds link settings shared by the transports. Serial-only fields are ignored
// by the network transports.
type Config struct {
	baudRate     int
	dataBits     int
	parity       serial.Parity
	stopBits     serial.StopBits
	readTimeout  time.Duration
	writeTimeout time.Duration
	dialTimeout  time.Duration
	bufferSize   int
	logger       logger.Logger
}

// NewConfig applies opts over the defaults.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		baudRate:     DefaultBaudRate,
		dataBits:     DefaultDataBits,
		parity:       serial.NoParity,
		stopBits:     serial.OneStopBit,
		readTimeout:  DefaultReadTimeout,
		writeTimeout: DefaultWriteTimeout,
		dialTimeout:  DefaultDialTimeout,
		bufferSize:   DefaultBufferSize,
		logger:       logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// BaudRate returns the serial baud rate.
func (cfg *Config) BaudRate() int { return cfg.baudRate }

// WriteTimeout returns the write timeout.
func (cfg *Config) WriteTimeout() time.Duration { return cfg.writeTimeout }

// DialTimeout returns the dial timeout for network transports.
func (cfg *Config) DialTimeout() time.Duration { return cfg.dialTimeout }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithBaudRate sets the serial baud rate.
func WithBaudRate(baud int) Option {
	return optFunc(func(cfg *Config) error {
		if baud <= 0 {
			return fmt.Errorf("transport: invalid baud rate %d", baud)
		}
		cfg.baudRate = baud

		return nil
	})
}

// WithDataBits sets the serial data bits, 5 to 8.
func WithDataBits(bits int) Option {
	return optFunc(func(cfg *Config) error {
		if bits < 5 || bits > 8 {
			return fmt.Errorf("transport: data bits %d out of range [5, 8]", bits)
		}
		cfg.dataBits = bits

		return nil
	})
}

// WithParity sets the serial parity.
func WithParity(p serial.Parity) Option {
	return optFunc(func(cfg *Config) error {
		cfg.parity = p
		return nil
	})
}

// WithStopBits sets the serial stop bits.
func WithStopBits(s serial.StopBits) Option {
	return optFunc(func(cfg *Config) error {
		cfg.stopBits = s
		return nil
	})
}

// WithReadTimeout sets how long a single serial read waits before the reader loop re-checks for shutdown.
func WithReadTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("transport: read timeout must be positive")
		}
		cfg.readTimeout = d

		return nil
	})
}

// WithWriteTimeout sets the maximum duration of one write, including drain.
func WithWriteTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("transport: write timeout must be positive")
		}
		cfg.writeTimeout = d

		return nil
	})
}

// WithDialTimeout sets the connect timeout of network transports.
func WithDialTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("transport: dial timeout must be positive")
		}
		cfg.dialTimeout = d

		return nil
	})
}

// WithBufferSize sets the per-subscriber chunk buffer.
func WithBufferSize(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 1 {
			return errors.New("transport: buffer size must be >= 1")
		}
		cfg.bufferSize = n

		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("transport: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
