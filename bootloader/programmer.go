package bootloader

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/moffa90/go-flashloader/flashdev"
	"github.com/moffa90/go-flashloader/image"
	"github.com/moffa90/go-flashloader/internal/syncutil"
	"github.com/moffa90/go-flashloader/protocol"
	"golang.org/x/time/rate"
)

// Programmer sends loader commands over a byte stream and waits for the
// reply to each before sending the next.
//
// Programmer is safe for concurrent use; commands from different goroutines
// are serialized.
type Programmer struct {
	mu     syncutil.Mutex
	device io.ReadWriter
	reader *bufio.Reader
	pacer  *rate.Limiter
	config Config
}

// New creates a new Programmer with the given device and options.
//
// Example:
//
//	prog := bootloader.New(port,
//	    bootloader.WithGeometry(flashdev.Geometry{SectorSize: 4096, Capacity: 1 << 20}),
//	    bootloader.WithRetries(5),
//	)
func New(device io.ReadWriter, opts ...Option) *Programmer {
	if device == nil {
		panic("device cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &Programmer{
		device: device,
		reader: bufio.NewReader(device),
		config: cfg,
	}
	if cfg.LineRate > 0 {
		p.pacer = rate.NewLimiter(cfg.LineRate, 1)
	}
	return p
}

// Program writes img to the device and ends the session:
//  1. Validate that the image fits the device
//  2. Erase every sector the image touches
//  3. For each staging-buffer sized block: stage it, then program it
//  4. Send Z
//
// Blocks that are entirely 0xFF are skipped, since the erase already left
// them in that state. Bytes outside the image that share a sector with it
// are erased too.
func (p *Programmer) Program(ctx context.Context, img *image.Image) error {
	if img == nil {
		return fmt.Errorf("image cannot be nil")
	}
	if img.Size() == 0 {
		return ErrEmptyImage
	}

	geo := p.config.Geometry
	base, data := img.Flatten(flashdev.Erased)
	if !geo.Contains(base, len(data)) {
		return &ImageRangeError{Start: base, End: base + len(data), Capacity: geo.Capacity}
	}

	clock := p.config.Clock
	startTime := clock.Now()
	firstSector := base / geo.SectorSize
	lastSector := (base + len(data) - 1) / geo.SectorSize
	sectors := lastSector - firstSector + 1

	// Phase 1: erase
	for i := 0; i < sectors; i++ {
		if err := p.EraseSector(ctx, firstSector+i); err != nil {
			return fmt.Errorf("erase sector %d: %w", firstSector+i, err)
		}
		p.reportProgress(Progress{
			Phase:       PhaseErasing,
			Current:     i + 1,
			Total:       sectors,
			Percentage:  10 * float64(i+1) / float64(sectors),
			ElapsedTime: clock.Since(startTime),
		})
	}

	p.config.Logger.Debug().
		Int("first_sector", firstSector).
		Int("sectors", sectors).
		Msg("erase complete")

	// Phase 2: stage and program
	block := p.config.StageCapacity
	blocks := (len(data) + block - 1) / block
	bytesWritten := 0

	for i := 0; i < blocks; i++ {
		off := i * block
		chunk := data[off:min(off+block, len(data))]

		if !isErased(chunk) {
			if err := p.programBlock(ctx, base+off, chunk); err != nil {
				return fmt.Errorf("program block %d at 0x%X: %w", i, base+off, err)
			}
		} else {
			p.config.Logger.Debug().Int("addr", base+off).Msg("skipping erased block")
		}

		bytesWritten += len(chunk)
		p.reportProgress(Progress{
			Phase:        PhaseProgramming,
			Current:      i + 1,
			Total:        blocks,
			Percentage:   10 + 85*float64(i+1)/float64(blocks),
			BytesWritten: bytesWritten,
			ElapsedTime:  clock.Since(startTime),
		})
	}

	// Phase 3: end the session
	p.reportProgress(Progress{
		Phase:        PhaseFinishing,
		Current:      blocks,
		Total:        blocks,
		Percentage:   95,
		BytesWritten: bytesWritten,
		ElapsedTime:  clock.Since(startTime),
	})

	if err := p.Finish(ctx); err != nil {
		return fmt.Errorf("finish: %w", err)
	}

	p.reportProgress(Progress{
		Phase:        PhaseComplete,
		Current:      blocks,
		Total:        blocks,
		Percentage:   100,
		BytesWritten: bytesWritten,
		ElapsedTime:  clock.Since(startTime),
	})

	p.config.Logger.Info().
		Int("bytes", bytesWritten).
		Int("sectors", sectors).
		Str("elapsed", clock.Since(startTime).String()).
		Msg("programming complete")

	return nil
}

// programBlock stages chunk from offset 0 and commits it at addr.
func (p *Programmer) programBlock(ctx context.Context, addr int, chunk []byte) error {
	if err := p.Stage(ctx, chunk); err != nil {
		return err
	}
	if err := p.SetFlashAddr(ctx, addr); err != nil {
		return err
	}
	return p.ProgramFlash(ctx, len(chunk))
}

// Stage writes data to the device staging buffer starting at offset 0,
// split into lines that fit the receive buffer.
func (p *Programmer) Stage(ctx context.Context, data []byte) error {
	if len(data) > p.config.StageCapacity {
		return fmt.Errorf("data length %d exceeds staging capacity %d", len(data), p.config.StageCapacity)
	}

	step := protocol.MaxWritePayload(p.config.RxCapacity)
	for off := 0; off < len(data); off += step {
		if err := p.SetStageAddr(ctx, off); err != nil {
			return err
		}
		if err := p.WriteStage(ctx, data[off:min(off+step, len(data))]); err != nil {
			return err
		}
	}
	return nil
}

// SetStageAddr sends s<addr>.
func (p *Programmer) SetStageAddr(ctx context.Context, addr int) error {
	cmd, err := protocol.BuildSetStageAddrCmd(addr)
	if err != nil {
		return err
	}
	return p.sendCommand(ctx, "set stage address", cmd)
}

// WriteStage sends w<hex> for data, which must fit in one line.
func (p *Programmer) WriteStage(ctx context.Context, data []byte) error {
	cmd, err := protocol.BuildWriteStageCmd(data, p.config.RxCapacity)
	if err != nil {
		return err
	}
	return p.sendCommand(ctx, "write stage", cmd)
}

// SetFlashAddr sends S<addr>.
func (p *Programmer) SetFlashAddr(ctx context.Context, addr int) error {
	cmd, err := protocol.BuildSetFlashAddrCmd(addr)
	if err != nil {
		return err
	}
	return p.sendCommand(ctx, "set flash address", cmd)
}

// EraseSector sends X<sector>.
func (p *Programmer) EraseSector(ctx context.Context, sector int) error {
	cmd, err := protocol.BuildEraseSectorCmd(sector)
	if err != nil {
		return err
	}
	return p.sendCommand(ctx, "erase sector", cmd)
}

// ProgramFlash sends M<length>.
func (p *Programmer) ProgramFlash(ctx context.Context, length int) error {
	cmd, err := protocol.BuildProgramCmd(length)
	if err != nil {
		return err
	}
	return p.sendCommand(ctx, "program", cmd)
}

// Finish sends Z, ending the device session.
func (p *Programmer) Finish(ctx context.Context) error {
	cmd, err := protocol.BuildDoneCmd()
	if err != nil {
		return err
	}
	return p.sendCommand(ctx, "finish", cmd)
}

// sendCommand writes one line and waits for its reply, resending on NACK.
//
// Cancelling ctx while the reply is outstanding closes the device if it is
// an io.Closer, since that is the only way to unblock its Read.
func (p *Programmer) sendCommand(ctx context.Context, op string, cmd []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for attempt := 0; attempt <= p.config.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}
		if err := p.pace(ctx); err != nil {
			return fmt.Errorf("pace line: %w", err)
		}

		if _, err := p.device.Write(cmd); err != nil {
			return fmt.Errorf("write command: %w", err)
		}

		// Apply inter-command delay if configured
		if err := p.sleep(ctx, p.config.CommandDelay); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}

		resp, err := p.readResponse(ctx)
		if err != nil {
			return err
		}
		if resp == protocol.ResponseAck {
			return nil
		}

		p.config.Logger.Warn().
			Str("op", op).
			Int("attempt", attempt+1).
			Msg("device rejected line")
	}

	return &protocol.ProtocolError{Operation: op, Line: cmd}
}

func (p *Programmer) readResponse(ctx context.Context) (protocol.Response, error) {
	if closer, ok := p.device.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() {
			_ = closer.Close()
		})
		defer stop()
	}

	resp, err := protocol.ReadResponse(p.reader)
	if err != nil && ctx.Err() != nil {
		return 0, fmt.Errorf("cancelled: %w", ctx.Err())
	}
	return resp, err
}

// pace holds the next line back until the line rate allows it. The limiter
// is driven by the configured clock.
func (p *Programmer) pace(ctx context.Context) error {
	if p.pacer == nil {
		return nil
	}

	clock := p.config.Clock
	r := p.pacer.ReserveN(clock.Now(), 1)
	delay := r.DelayFrom(clock.Now())
	if delay <= 0 {
		return nil
	}

	if err := p.sleep(ctx, delay); err != nil {
		r.CancelAt(clock.Now())
		return err
	}
	return nil
}

func (p *Programmer) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-p.config.Clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reportProgress calls the progress callback if configured.
func (p *Programmer) reportProgress(progress Progress) {
	if p.config.ProgressCallback != nil {
		p.config.ProgressCallback(progress)
	}
}

func isErased(b []byte) bool {
	for _, v := range b {
		if v != flashdev.Erased {
			return false
		}
	}
	return true
}
