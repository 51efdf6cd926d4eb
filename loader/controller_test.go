package loader

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/moffa90/go-flashloader/flashdev"
	"github.com/moffa90/go-flashloader/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("port closed")
}

func newTestController(opts ...Option) *Controller {
	return New(flashdev.NewMemory(testGeometry), opts...)
}

func handle(t *testing.T, c *Controller, input string, w *bytes.Buffer) {
	t.Helper()
	for i := 0; i < len(input); i++ {
		_, err := c.HandleByte(input[i], w)
		require.NoError(t, err)
	}
}

func TestNew_NilDevicePanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { New(nil) })
	assert.Panics(t, func() { NewSession(nil) })
}

func TestController_RunUntilDone(t *testing.T) {
	t.Parallel()

	c := newTestController()
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.RunUntilDone(context.Background())
	}()

	require.Eventually(t, func() bool {
		return c.State() == StateListening
	}, time.Second, time.Millisecond)

	var out bytes.Buffer
	handle(t, c, "s0\nw7B\nS0\nM1\n", &out)

	select {
	case err := <-errCh:
		t.Fatalf("returned before Z: %v", err)
	default:
	}

	handle(t, c, "Z\n", &out)

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("RunUntilDone did not return after Z")
	}

	assert.Equal(t, bytes.Repeat([]byte(protocol.AckFrame), 5), out.Bytes())
	assert.Equal(t, StateDone, c.State())

	got, err := c.ReadFlash(0, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7B}, got)
}

func TestController_CommandsAfterDoneAreIgnored(t *testing.T) {
	t.Parallel()

	c := newTestController()
	c.BeginListening()

	var out bytes.Buffer
	handle(t, c, "s1\nZ\n", &out)
	out.Reset()

	handle(t, c, "w7B\nZ\n", &out)
	assert.Empty(t, out.Bytes())
	assert.Equal(t, byte(0), c.Buffer()[1])

	select {
	case <-c.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestController_BeginListeningResets(t *testing.T) {
	t.Parallel()

	c := newTestController(WithRxCapacity(8))
	c.BeginListening()

	var out bytes.Buffer
	handle(t, c, "s9\nw01\nS40\ns12", &out)
	assert.Equal(t, 3, c.sess.rxCursor)

	c.BeginListening()
	assert.Equal(t, 0, c.sess.rxCursor)
	assert.False(t, c.sess.overflow)
	assert.Equal(t, 0, c.sess.stage.Cursor())
	assert.Equal(t, 40, c.sess.flash.Cursor(), "flash address survives a reset")
	assert.Equal(t, byte(0x01), c.Buffer()[9], "staging contents survive a reset")

	handle(t, c, "123456789", &out)
	assert.True(t, c.sess.overflow)
	c.BeginListening()
	assert.False(t, c.sess.overflow)
	assert.Equal(t, 0, c.sess.rxCursor)

	handle(t, c, "Z\n", &out)
	assert.Equal(t, StateDone, c.State())
	c.BeginListening()
	assert.Equal(t, StateListening, c.State())
}

func TestController_SessionSerialsIncrease(t *testing.T) {
	t.Parallel()

	c := newTestController()
	c.BeginListening()
	first := c.sess.Serial()
	c.BeginListening()
	assert.Greater(t, c.sess.Serial(), first)
}

func TestController_Wait(t *testing.T) {
	t.Parallel()

	t.Run("not listening", func(t *testing.T) {
		t.Parallel()

		c := newTestController()
		assert.ErrorIs(t, c.Wait(context.Background()), ErrNotListening)
	})

	t.Run("context cancelled", func(t *testing.T) {
		t.Parallel()

		c := newTestController()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, c.RunUntilDone(ctx), context.Canceled)
		assert.Equal(t, StateListening, c.State())
	})

	t.Run("already done", func(t *testing.T) {
		t.Parallel()

		c := newTestController()
		c.BeginListening()
		assert.Equal(t, ActionAck, feedController(c, "Z\n"))
		require.NoError(t, c.Wait(context.Background()))
	})

	t.Run("done wins over cancellation", func(t *testing.T) {
		t.Parallel()

		c := newTestController()
		c.BeginListening()
		assert.Equal(t, ActionAck, feedController(c, "Z\n"))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		for i := 0; i < 20; i++ {
			require.NoError(t, c.Wait(ctx))
		}
	})

	t.Run("superseded", func(t *testing.T) {
		t.Parallel()

		c := newTestController()
		c.BeginListening()
		first := c.cur
		old := c.Done()

		c.BeginListening()

		select {
		case <-old:
		default:
			t.Fatal("previous session not released")
		}
		assert.True(t, first.reset)
		assert.NotEqual(t, old, c.Done())
	})

	t.Run("finished session is not marked reset", func(t *testing.T) {
		t.Parallel()

		c := newTestController()
		c.BeginListening()
		feedController(c, "Z\n")
		first := c.cur

		c.BeginListening()
		assert.False(t, first.reset)
	})
}

func feedController(c *Controller, input string) Action {
	var last Action
	for i := 0; i < len(input); i++ {
		last = c.OnByte(input[i])
	}
	return last
}

func TestController_WriteFailureStillCompletes(t *testing.T) {
	t.Parallel()

	c := newTestController()
	c.BeginListening()

	_, err := c.HandleByte('Z', failingWriter{})
	require.NoError(t, err)

	act, err := c.HandleByte('\n', failingWriter{})
	assert.Equal(t, ActionAck, act)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write ACK")

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("session not released")
	}
}

func TestController_LineCallback(t *testing.T) {
	t.Parallel()

	var events []LineEvent
	c := newTestController(WithLineCallback(func(ev LineEvent) {
		ev.Line = append([]byte(nil), ev.Line...)
		events = append(events, ev)
	}))
	c.BeginListening()

	feedController(c, "X99\nw7b\nZ\n")

	require.Len(t, events, 3)
	assert.Equal(t, StatusFailed, events[0].Result.Status)
	assert.Equal(t, ActionAck, events[0].Action)
	assert.Equal(t, []byte("X99"), events[0].Line)
	assert.Equal(t, StatusMalformed, events[1].Result.Status)
	assert.Equal(t, ActionNack, events[1].Action)
	assert.Equal(t, StatusDone, events[2].Result.Status)
	assert.Equal(t, c.sess.Serial(), events[2].Session)
}
