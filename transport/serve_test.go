package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/moffa90/go-flashloader/flashdev"
	"github.com/moffa90/go-flashloader/loader"
	"github.com/moffa90/go-flashloader/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testGeometry = flashdev.Geometry{SectorSize: 256, Capacity: 4096}

type stream struct {
	io.Reader
	io.Writer
}

type errReader struct {
	err error
}

func (r errReader) Read([]byte) (int, error) {
	return 0, r.err
}

type errWriter struct{}

func (errWriter) Write([]byte) (int, error) {
	return 0, errors.New("tx fifo stalled")
}

func listeningController() *loader.Controller {
	ctrl := loader.New(flashdev.NewMemory(testGeometry))
	ctrl.BeginListening()
	return ctrl
}

func TestServe_LockStepOverPipe(t *testing.T) {
	skipRace(t)
	t.Parallel()

	host, dev := net.Pipe()
	defer func() { _ = host.Close() }()

	ctrl := listeningController()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- Serve(ctx, dev, ctrl)
	}()

	r := bufio.NewReader(host)
	for _, line := range []string{"s0\n", "w7B\n", "S0\n", "M1\n", "w7b\n", "Z\n"} {
		_, err := host.Write([]byte(line))
		require.NoError(t, err)

		resp, err := protocol.ReadResponse(r)
		require.NoError(t, err)
		if line == "w7b\n" {
			assert.Equal(t, protocol.ResponseNack, resp, line)
		} else {
			assert.Equal(t, protocol.ResponseAck, resp, line)
		}
	}

	select {
	case <-ctrl.Done():
	case <-time.After(time.Second):
		t.Fatal("session not done")
	}

	got, err := ctrl.ReadFlash(0, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7B}, got)

	cancel()
	require.NoError(t, <-errCh)
}

func TestServe_DrainsOnEOF(t *testing.T) {
	skipRace(t)
	t.Parallel()

	var out bytes.Buffer
	ctrl := listeningController()

	err := Serve(context.Background(), stream{strings.NewReader("s1\nw0A\nZ\n"), &out}, ctrl)
	require.NoError(t, err)

	assert.Equal(t, strings.Repeat(protocol.AckFrame, 3), out.String())
	assert.Equal(t, loader.StateDone, ctrl.State())
	assert.Equal(t, byte(0x0A), ctrl.Buffer()[1])
}

// cancellingPort returns its input in one read, then cancels ctx on the
// next. The first reply blocks until ctx is done, so the queued bytes are
// still waiting when cancellation arrives.
type cancellingPort struct {
	ctx    context.Context
	cancel context.CancelFunc
	input  []byte

	mu      sync.Mutex
	reads   int
	replies []string
}

func (p *cancellingPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	p.reads++
	first := p.reads == 1
	p.mu.Unlock()

	if first {
		return copy(b, p.input), nil
	}
	p.cancel()
	return 0, nil
}

func (p *cancellingPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	first := len(p.replies) == 0
	p.replies = append(p.replies, string(b))
	p.mu.Unlock()

	if first {
		<-p.ctx.Done()
	}
	return len(b), nil
}

func TestServe_DrainsOnCancel(t *testing.T) {
	skipRace(t)
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	port := &cancellingPort{ctx: ctx, cancel: cancel, input: []byte("s1\nw0A\nZ\n")}
	ctrl := listeningController()

	require.NoError(t, Serve(ctx, port, ctrl))

	port.mu.Lock()
	defer port.mu.Unlock()
	assert.Equal(t, []string{protocol.AckFrame, protocol.AckFrame, protocol.AckFrame}, port.replies)
	assert.Equal(t, loader.StateDone, ctrl.State())
	assert.Equal(t, byte(0x0A), ctrl.Buffer()[1])
}

func TestServe_BackpressureKeepsOrder(t *testing.T) {
	skipRace(t)
	t.Parallel()

	var input strings.Builder
	for i := 0; i < 50; i++ {
		input.WriteString("s1\n")
	}
	input.WriteString("s2")
	input.WriteString(strings.Repeat("9", 40))
	input.WriteString("\n")

	var out bytes.Buffer
	ctrl := listeningController()

	err := Serve(context.Background(), stream{strings.NewReader(input.String()), &out}, ctrl,
		WithFIFOSize(4), WithReadChunk(7))
	require.NoError(t, err)

	// The last line overflows a 32-bit operand and is ignored but framed.
	assert.Equal(t, strings.Repeat(protocol.AckFrame, 51), out.String())
}

func TestServe_ReadErrorIsReturned(t *testing.T) {
	skipRace(t)
	t.Parallel()

	errUnplugged := errors.New("usb unplugged")
	err := Serve(context.Background(), stream{errReader{errUnplugged}, io.Discard}, listeningController())
	require.ErrorIs(t, err, errUnplugged)
	assert.Contains(t, err.Error(), "read port")
}

func TestServe_WriteErrorIsReturned(t *testing.T) {
	skipRace(t)
	t.Parallel()

	err := Serve(context.Background(), stream{strings.NewReader("s1\n"), errWriter{}}, listeningController())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tx fifo stalled")
}

func TestServe_NilArguments(t *testing.T) {
	t.Parallel()

	require.Error(t, Serve(context.Background(), nil, listeningController()))
	require.Error(t, Serve(context.Background(), stream{strings.NewReader(""), io.Discard}, nil))
}

// fakePort times out every read, like a quiet serial line.
type fakePort struct {
	mu      sync.Mutex
	timeout time.Duration
	closed  bool
}

func (p *fakePort) Read([]byte) (int, error) {
	p.mu.Lock()
	d := p.timeout
	p.mu.Unlock()
	time.Sleep(d)
	return 0, nil
}

func (*fakePort) Write(b []byte) (int, error) {
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = t
	return nil
}

func TestServe_UsesReadTimeout(t *testing.T) {
	skipRace(t)
	t.Parallel()

	port := &fakePort{}
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- Serve(ctx, port, listeningController(), WithReadTimeout(5*time.Millisecond))
	}()

	require.Eventually(t, func() bool {
		port.mu.Lock()
		defer port.mu.Unlock()
		return port.timeout == 5*time.Millisecond
	}, time.Second, time.Millisecond)

	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not stop")
	}

	port.mu.Lock()
	defer port.mu.Unlock()
	assert.False(t, port.closed, "ports with a read timeout are left open")
}
