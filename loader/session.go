package loader

import (
	"code.hybscloud.com/atomix"
	"github.com/moffa90/go-flashloader/flashdev"
	"github.com/rs/zerolog"
)

// State is the lifecycle state of a Session.
type State uint8

const (
	// StateIdle means listening has never been enabled
	StateIdle State = iota

	// StateListening means bytes are being assembled into lines
	StateListening

	// StateDone means the session ended with Z; bytes are ignored until
	// the next Reset
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// serials numbers sessions across the process for log correlation.
var serials atomix.Uint32

// Session is the protocol engine state: the receive line buffer with its
// overflow flag, the staging buffer and the flash working address.
//
// A Session is not safe for concurrent use. Controller provides the locking
// needed when bytes arrive on one goroutine and results are read on another.
type Session struct {
	rx       []byte
	rxCursor int
	overflow bool

	stage *Staging
	flash *Flash

	state  State
	serial uint32

	log    zerolog.Logger
	onLine LineCallback
}

// NewSession creates an idle session over dev.
func NewSession(dev flashdev.Device, opts ...Option) *Session {
	if dev == nil {
		panic("device cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return newSession(dev, cfg)
}

func newSession(dev flashdev.Device, cfg Config) *Session {
	return &Session{
		rx:     make([]byte, cfg.RxCapacity),
		stage:  newStaging(cfg.StageCapacity),
		flash:  newFlash(dev),
		log:    cfg.Logger,
		onLine: cfg.OnLine,
	}
}

// Reset starts a new session. Any partially received line is discarded and
// the staging working address returns to 0. Staging contents and the flash
// working address are kept.
func (s *Session) Reset() {
	s.rxCursor = 0
	s.overflow = false
	s.stage.Seek(0)
	s.state = StateListening
	s.serial = serials.Add(1)
}

// State returns the lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Serial returns the number assigned by the last Reset, 0 before it.
func (s *Session) Serial() uint32 {
	return s.serial
}

// Staging returns the staging buffer.
func (s *Session) Staging() *Staging {
	return s.stage
}

// Flash returns the flash orchestrator.
func (s *Session) Flash() *Flash {
	return s.flash
}
