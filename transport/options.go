package transport

import (
	"time"

	"github.com/rs/zerolog"
)

// Config holds the transport configuration.
type Config struct {
	// Logger is used for port level events
	Logger zerolog.Logger

	// FIFOSize is the capacity of the receive FIFO in bytes
	FIFOSize int

	// ReadChunk is the size of each read from the port
	ReadChunk int

	// ReadTimeout is applied to ports that support SetReadTimeout, so that
	// cancellation is noticed while the line is idle
	ReadTimeout time.Duration
}

func defaultConfig() Config {
	return Config{
		Logger:      zerolog.Nop(),
		FIFOSize:    4096,
		ReadChunk:   256,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// Option is a functional option for Serve.
type Option func(*Config)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithFIFOSize sets the receive FIFO capacity. The queue may round it up.
func WithFIFOSize(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.FIFOSize = n
		}
	}
}

// WithReadChunk sets how many bytes are requested per port read.
func WithReadChunk(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.ReadChunk = n
		}
	}
}

// WithReadTimeout sets the port read timeout. Zero leaves the port as is.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.ReadTimeout = d
		}
	}
}
