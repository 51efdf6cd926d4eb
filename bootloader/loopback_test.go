package bootloader

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/moffa90/go-flashloader/flashdev"
	"github.com/moffa90/go-flashloader/image"
	"github.com/moffa90/go-flashloader/loader"
	"github.com/moffa90/go-flashloader/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestProgram_AgainstLoader(t *testing.T) {
	skipRace(t)
	t.Parallel()

	geo := flashdev.Geometry{SectorSize: 256, Capacity: 4096}
	mem := flashdev.NewMemory(geo)
	require.NoError(t, mem.Program(make([]byte, 512), 0))

	var (
		mu      sync.Mutex
		opcodes = map[byte]int{}
	)
	ctrl := loader.New(mem,
		loader.WithRxCapacity(32),
		loader.WithStageCapacity(64),
		loader.WithLineCallback(func(ev loader.LineEvent) {
			mu.Lock()
			defer mu.Unlock()
			opcodes[ev.Result.Opcode]++
			assert.NoError(t, ev.Result.Err)
		}),
	)

	host, dev := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- transport.Serve(ctx, dev, ctrl)
	}()

	first := make([]byte, 100)
	for i := range first {
		first[i] = byte(i%200) + 1
	}
	img := &image.Image{Segments: []image.Segment{
		{Addr: 300, Data: first},
		{Addr: 1000, Data: []byte{0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5, 0xA6, 0xA7, 0xA8, 0xA9}},
	}}

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- ctrl.RunUntilDone(ctx)
	}()
	require.Eventually(t, func() bool {
		return ctrl.State() == loader.StateListening
	}, time.Second, time.Millisecond)

	prog := New(host,
		WithGeometry(geo),
		WithRxCapacity(32),
		WithStageCapacity(64),
	)
	require.NoError(t, prog.Program(ctx, img))

	select {
	case err := <-waitCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("device session did not end")
	}

	cancel()
	require.NoError(t, <-errCh)
	_ = host.Close()

	got := make([]byte, geo.Capacity)
	require.NoError(t, mem.Read(got, 0))

	assert.Equal(t, make([]byte, 256), got[:256], "sector 0 is outside the image and untouched")
	for i := 256; i < 300; i++ {
		require.Equal(t, byte(0xFF), got[i], "byte %d shares an erased sector", i)
	}
	assert.Equal(t, first, got[300:400])
	assert.Equal(t, img.Segments[1].Data, got[1000:1010])

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, opcodes['X'], "sectors 1 to 3 erased")
	assert.Equal(t, 4, opcodes['M'], "erased blocks skipped")
	assert.Equal(t, 1, opcodes['Z'])
}
