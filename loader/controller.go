package loader

import (
	"context"
	"fmt"
	"io"

	"github.com/moffa90/go-flashloader/flashdev"
	"github.com/moffa90/go-flashloader/internal/syncutil"
	"github.com/rs/zerolog"
)

// Controller owns a Session and coordinates the goroutine that delivers
// bytes with the foreground caller waiting for the session to end.
//
// HandleByte and OnByte serialize on an internal lock, so exactly one line
// is in flight at a time. Waiters park on a channel that is closed after the
// reply to Z has been written.
//
// Controller is safe for concurrent use.
type Controller struct {
	mu   syncutil.Mutex
	sess *Session
	cur  *completion
	log  zerolog.Logger
}

// completion is the signal for one session.
type completion struct {
	ch       chan struct{}
	released bool
	reset    bool
}

func newCompletion() *completion {
	return &completion{ch: make(chan struct{})}
}

func (c *completion) release() {
	if !c.released {
		close(c.ch)
		c.released = true
	}
}

// New creates a Controller for dev. The session starts idle; bytes are
// ignored until BeginListening or RunUntilDone.
//
// Example:
//
//	dev := flashdev.NewMemory(flashdev.Geometry{SectorSize: 4096, Capacity: 1 << 20})
//	ctrl := loader.New(dev, loader.WithStageCapacity(2048))
func New(dev flashdev.Device, opts ...Option) *Controller {
	if dev == nil {
		panic("device cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Controller{
		sess: newSession(dev, cfg),
		cur:  newCompletion(),
		log:  cfg.Logger,
	}
}

// BeginListening resets the session and starts accepting bytes. A caller
// still waiting on the previous session is released with ErrSessionReset.
func (c *Controller) BeginListening() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess.state != StateIdle {
		if !c.cur.released {
			c.cur.reset = true
			c.cur.release()
		}
		c.cur = newCompletion()
	}

	c.sess.Reset()
	c.log.Info().Uint32("session", c.sess.serial).Msg("listening")
}

// HandleByte feeds b to the session and writes the resulting reply token to
// w as a single write. If b completed the Z line, waiters are released after
// the token has been written, even if the write failed.
func (c *Controller) HandleByte(b byte, w io.Writer) (Action, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	act := c.sess.OnByte(b)

	var err error
	if frame := act.Frame(); frame != nil && w != nil {
		if _, werr := w.Write(frame); werr != nil {
			err = fmt.Errorf("write %s: %w", act, werr)
		}
	}

	if c.sess.state == StateDone && !c.cur.released {
		c.cur.release()
		c.log.Info().Uint32("session", c.sess.serial).Msg("session done")
	}

	return act, err
}

// OnByte feeds b to the session without transmitting anything and returns
// the reply the caller is expected to send.
func (c *Controller) OnByte(b byte) Action {
	act, _ := c.HandleByte(b, nil)
	return act
}

// RunUntilDone starts a new session and blocks until it ends with Z or ctx
// is cancelled.
func (c *Controller) RunUntilDone(ctx context.Context) error {
	c.BeginListening()
	return c.Wait(ctx)
}

// Wait blocks until the current session ends without resetting it first.
// If the session has already ended, Wait reports that even when ctx is
// cancelled too.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	if c.sess.state == StateIdle {
		c.mu.Unlock()
		return ErrNotListening
	}
	cur := c.cur
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		// A session that ended before cancellation still counts.
		select {
		case <-cur.ch:
		default:
			return ctx.Err()
		}
	case <-cur.ch:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cur.reset {
		return ErrSessionReset
	}
	return nil
}

// Done returns a channel closed when the current session ends.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur.ch
}

// State returns the session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.state
}

// Buffer returns a copy of the staging buffer.
func (c *Controller) Buffer() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.stage.Snapshot()
}

// ReadFlash reads n bytes of device memory starting at addr.
func (c *Controller) ReadFlash(addr, n int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.flash.ReadAt(addr, n)
}
