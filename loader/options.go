package loader

import (
	"github.com/moffa90/go-flashloader/protocol"
	"github.com/rs/zerolog"
)

// Config holds the protocol engine configuration.
type Config struct {
	// Logger receives one debug event per dispatched line
	Logger zerolog.Logger

	// OnLine is called after every completed or overflowed line (optional)
	OnLine LineCallback

	// RxCapacity is the receive line buffer size in bytes
	RxCapacity int

	// StageCapacity is the staging buffer size in bytes
	StageCapacity int
}

func defaultConfig() Config {
	return Config{
		Logger:        zerolog.Nop(),
		RxCapacity:    protocol.DefaultRxCapacity,
		StageCapacity: protocol.DefaultStageCapacity,
	}
}

// Option is a functional option for configuring a Session or Controller.
type Option func(*Config)

// WithLogger sets the logger.
//
// Example:
//
//	ctrl := loader.New(dev, loader.WithLogger(zerolog.New(os.Stderr)))
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithRxCapacity sets the receive buffer size. Values below
// protocol.MinRxCapacity are ignored.
func WithRxCapacity(n int) Option {
	return func(c *Config) {
		if n >= protocol.MinRxCapacity {
			c.RxCapacity = n
		}
	}
}

// WithStageCapacity sets the staging buffer size. Non-positive values are
// ignored.
func WithStageCapacity(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.StageCapacity = n
		}
	}
}

// WithLineCallback registers a callback for per-line results.
//
// Example:
//
//	ctrl := loader.New(dev,
//	    loader.WithLineCallback(func(ev loader.LineEvent) {
//	        if ev.Result.Err != nil {
//	            fmt.Printf("%c: %v\n", ev.Result.Opcode, ev.Result.Err)
//	        }
//	    }),
//	)
func WithLineCallback(cb LineCallback) Option {
	return func(c *Config) {
		c.OnLine = cb
	}
}
