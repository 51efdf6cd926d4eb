package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
	"github.com/moffa90/go-flashloader/loader"
	"golang.org/x/sync/errgroup"
)

// readTimeouter is implemented by serial ports.
type readTimeouter interface {
	SetReadTimeout(t time.Duration) error
}

// Serve feeds bytes read from port into ctrl and writes the replies back.
//
// Bytes reach the controller strictly in the order they were read, and the
// reply to a line is written before the next byte is handled. Serve returns
// nil when ctx is cancelled or the port reports io.EOF, in both cases after
// every byte already read has been handled, and the first read or write
// error otherwise. Replies written after cancellation may fail silently if
// the port was closed to unblock the reader.
//
// If the port supports SetReadTimeout it is given Config.ReadTimeout so the
// reader notices cancellation. Otherwise, if it implements io.Closer, it is
// closed on cancellation to unblock the pending read.
func Serve(ctx context.Context, port io.ReadWriter, ctrl *loader.Controller, opts ...Option) error {
	if port == nil {
		return errors.New("port cannot be nil")
	}
	if ctrl == nil {
		return errors.New("controller cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &server{
		port:       port,
		ctrl:       ctrl,
		cfg:        cfg,
		readerDone: make(chan struct{}),
	}
	s.fifo.Init(cfg.FIFOSize)

	if rt, ok := port.(readTimeouter); ok && cfg.ReadTimeout > 0 {
		if err := rt.SetReadTimeout(cfg.ReadTimeout); err != nil {
			return fmt.Errorf("set read timeout: %w", err)
		}
	} else if closer, ok := port.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() {
			_ = closer.Close()
		})
		defer stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(s.readerDone)
		return s.read(gctx)
	})
	g.Go(func() error {
		return s.pump(gctx)
	})

	err := g.Wait()
	if ctx.Err() != nil {
		cfg.Logger.Debug().Msg("transport stopped")
		return nil
	}
	return err
}

type server struct {
	port       io.ReadWriter
	ctrl       *loader.Controller
	cfg        Config
	fifo       lfq.SPSC[byte]
	readerDone chan struct{}
}

// read copies bytes from the port into the FIFO. It waits while the FIFO
// is full; nothing read is ever dropped.
func (s *server) read(ctx context.Context) error {
	buf := make([]byte, s.cfg.ReadChunk)
	var bo iox.Backoff

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := s.port.Read(buf)
		for i := 0; i < n; i++ {
			for s.fifo.Enqueue(&buf[i]) != nil {
				if ctx.Err() != nil {
					return nil
				}
				bo.Wait()
			}
			bo.Reset()
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				s.cfg.Logger.Debug().Msg("port reached end of stream")
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read port: %w", err)
		}
	}
}

// pump hands FIFO bytes to the controller one at a time.
func (s *server) pump(ctx context.Context) error {
	var bo iox.Backoff

	for {
		b, err := s.fifo.Dequeue()
		if err == nil {
			bo.Reset()
			if err := s.handle(b); err != nil {
				return err
			}
			continue
		}
		if !iox.IsWouldBlock(err) {
			return fmt.Errorf("receive fifo: %w", err)
		}

		select {
		case <-ctx.Done():
			// The reader stops at its next check of ctx; whatever it
			// queued before that is still answered.
			<-s.readerDone
			return s.drain()
		case <-s.readerDone:
			return s.drain()
		default:
			bo.Wait()
		}
	}
}

// drain hands every queued byte to the controller. The reader must have
// exited.
func (s *server) drain() error {
	for {
		b, err := s.fifo.Dequeue()
		if err != nil {
			return nil
		}
		if err := s.handle(b); err != nil {
			return err
		}
	}
}

func (s *server) handle(b byte) error {
	_, err := s.ctrl.HandleByte(b, s.port)
	return err
}
