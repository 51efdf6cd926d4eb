// Command flashloader runs the device side of the line protocol on a
// serial port, with an image file standing in for the flash chip.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/moffa90/go-flashloader/flashdev"
	"github.com/moffa90/go-flashloader/internal/config"
	"github.com/moffa90/go-flashloader/internal/logging"
	"github.com/moffa90/go-flashloader/loader"
	"github.com/moffa90/go-flashloader/transport"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "", "path to a YAML or TOML config file")
	portPath := flag.String("port", "", "serial port (overrides config)")
	baud := flag.Int("baud", 0, "baud rate (overrides config)")
	backing := flag.String("backing", "", "flash image file (overrides config)")
	once := flag.Bool("once", false, "exit after one session")
	asDaemon := flag.Bool("daemon", false, "log JSON lines instead of console output")
	flag.Parse()

	fs := afero.NewOsFs()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(fs, *cfgPath); err != nil {
			return err
		}
	}
	if *portPath != "" {
		cfg.Serial.Path = *portPath
	}
	if *baud != 0 {
		cfg.Serial.Baud = *baud
	}
	if *backing != "" {
		cfg.Flash.Backing = *backing
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	var logFiles []io.Writer
	if cfg.Log.File != "" {
		f := logging.RotatingFile(cfg.Log.File)
		defer func() { _ = f.Close() }()
		logFiles = append(logFiles, f)
	}
	log, err := logging.New(os.Stderr, cfg.Log.Level, !*asDaemon, logFiles...)
	if err != nil {
		return err
	}

	dev, err := flashdev.OpenFile(fs, cfg.Flash.Backing, cfg.Geometry())
	if err != nil {
		return err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			log.Error().Err(err).Msg("error closing flash image")
		}
	}()

	port, err := transport.OpenSerial(cfg.Serial.Path, cfg.Serial.Baud, nil)
	if err != nil {
		return err
	}
	defer func() { _ = port.Close() }()

	ctrl := loader.New(dev,
		loader.WithLogger(log.With().Str("component", "loader").Logger()),
		loader.WithRxCapacity(cfg.Loader.RxCapacity),
		loader.WithStageCapacity(cfg.Loader.StageCapacity),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("port", cfg.Serial.Path).
		Int("baud", cfg.Serial.Baud).
		Str("backing", cfg.Flash.Backing).
		Int("capacity", cfg.Flash.Capacity).
		Msg("flashloader started")

	err = serveSessions(ctx, port, ctrl, dev, *once,
		transport.WithLogger(log),
		transport.WithReadTimeout(cfg.ReadTimeout()),
	)
	if err != nil {
		return err
	}

	log.Info().Msg("flashloader stopped")
	return nil
}

// syncer flushes the flash image after each session.
type syncer interface {
	Sync() error
}

// serveSessions runs the transport and one session after another until
// ctx is cancelled, the port ends, or once is set and a session completes.
func serveSessions(ctx context.Context, port io.ReadWriter, ctrl *loader.Controller,
	flash syncer, once bool, opts ...transport.Option,
) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// A port that reached EOF will never finish another session.
		defer cancel()
		return transport.Serve(gctx, port, ctrl, opts...)
	})
	g.Go(func() error {
		for {
			if err := ctrl.RunUntilDone(gctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
			if err := flash.Sync(); err != nil {
				return fmt.Errorf("sync flash image: %w", err)
			}
			if once {
				cancel()
				return nil
			}
		}
	})

	return g.Wait()
}
