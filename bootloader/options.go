package bootloader

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/moffa90/go-flashloader/flashdev"
	"github.com/moffa90/go-flashloader/protocol"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Config holds the programmer configuration.
type Config struct {
	// ProgressCallback is called during programming to report progress (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations
	Logger zerolog.Logger

	// Geometry is the layout of the target flash device
	Geometry flashdev.Geometry

	// StageCapacity is the size of the device staging buffer, the largest
	// block committed by one program command
	StageCapacity int

	// RxCapacity is the size of the device receive buffer, which bounds the
	// length of every command line
	RxCapacity int

	// Retries is the number of times a NACKed line is resent
	Retries int

	// CommandDelay is a pause after each line is written
	CommandDelay time.Duration

	// LineRate caps how many lines per second are sent; zero means no cap
	LineRate rate.Limit

	// Clock times progress reports, command delays and line pacing
	Clock clockwork.Clock
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Logger:        zerolog.Nop(),
		Geometry:      flashdev.W25Q128,
		StageCapacity: protocol.DefaultStageCapacity,
		RxCapacity:    protocol.DefaultRxCapacity,
		Retries:       3,
		Clock:         clockwork.NewRealClock(),
	}
}

// Option is a functional option for configuring the Programmer.
type Option func(*Config)

// WithProgressCallback sets a callback function to track programming progress.
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for the programmer operations.
//
// Example:
//
//	prog := bootloader.New(port, bootloader.WithLogger(zerolog.New(os.Stderr)))
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithGeometry sets the target flash geometry. Invalid geometries are ignored.
func WithGeometry(geo flashdev.Geometry) Option {
	return func(c *Config) {
		if geo.Validate() == nil {
			c.Geometry = geo
		}
	}
}

// WithStageCapacity sets the device staging buffer size.
// Default is 1024 bytes.
func WithStageCapacity(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.StageCapacity = n
		}
	}
}

// WithRxCapacity sets the device receive buffer size.
// Default is 4096 bytes.
func WithRxCapacity(n int) Option {
	return func(c *Config) {
		if n >= protocol.MinRxCapacity {
			c.RxCapacity = n
		}
	}
}

// WithRetries sets the number of retry attempts for NACKed lines.
//
// Example:
//
//	prog := bootloader.New(port, bootloader.WithRetries(5))
func WithRetries(retries int) Option {
	return func(c *Config) {
		if retries >= 0 {
			c.Retries = retries
		}
	}
}

// WithCommandDelay sets a pause after every command line. Slow links
// without flow control may need it.
func WithCommandDelay(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.CommandDelay = d
		}
	}
}

// WithClock replaces the wall clock used for delays, line pacing and
// elapsed time.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Config) {
		if clock != nil {
			c.Clock = clock
		}
	}
}

// WithLineRate caps the number of command lines sent per second, retries
// included. Zero or less removes the cap.
func WithLineRate(linesPerSecond float64) Option {
	return func(c *Config) {
		c.LineRate = rate.Limit(max(linesPerSecond, 0))
	}
}
