// Command flashprog writes a firmware image to a device running the
// flashloader protocol.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/moffa90/go-flashloader/bootloader"
	"github.com/moffa90/go-flashloader/image"
	"github.com/moffa90/go-flashloader/internal/config"
	"github.com/moffa90/go-flashloader/internal/logging"
	"github.com/moffa90/go-flashloader/transport"
	"github.com/spf13/afero"
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
	imagePath := flag.String("image", "", "firmware image, Intel HEX or raw binary (overrides config)")
	base := flag.Int("base", -1, "load address for raw binary images (overrides config)")
	list := flag.Bool("list", false, "list serial ports and exit")
	quiet := flag.Bool("quiet", false, "do not print progress")
	flag.Parse()

	if *list {
		ports, err := transport.ListPorts()
		if err != nil {
			return err
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return nil
	}

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
	if *imagePath != "" {
		cfg.Program.Image = *imagePath
	}
	if *base >= 0 {
		cfg.Program.Base = *base
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if cfg.Program.Image == "" {
		return fmt.Errorf("no image given, use -image or program.image")
	}

	log, err := logging.New(os.Stderr, cfg.Log.Level, true)
	if err != nil {
		return err
	}

	img, err := image.Load(fs, cfg.Program.Image, cfg.Program.Base)
	if err != nil {
		return fmt.Errorf("load image: %w", err)
	}
	start, end := img.Bounds()
	log.Info().
		Str("image", cfg.Program.Image).
		Int("segments", len(img.Segments)).
		Str("range", fmt.Sprintf("0x%X-0x%X", start, end)).
		Msg("image loaded")

	port, err := transport.OpenSerial(cfg.Serial.Path, cfg.Serial.Baud, nil)
	if err != nil {
		return err
	}
	defer func() { _ = port.Close() }()

	opts := []bootloader.Option{
		bootloader.WithLogger(log),
		bootloader.WithGeometry(cfg.Geometry()),
		bootloader.WithRxCapacity(cfg.Loader.RxCapacity),
		bootloader.WithStageCapacity(cfg.Loader.StageCapacity),
		bootloader.WithRetries(cfg.Program.Retries),
		bootloader.WithCommandDelay(cfg.CommandDelay()),
		bootloader.WithLineRate(cfg.Program.LineRate),
	}
	if !*quiet {
		opts = append(opts, bootloader.WithProgressCallback(func(p bootloader.Progress) {
			fmt.Printf("\r[%-11s] %5.1f%% %d/%d", p.Phase, p.Percentage, p.Current, p.Total)
			if p.Phase == bootloader.PhaseComplete {
				fmt.Println()
			}
		}))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := bootloader.New(port, opts...).Program(ctx, img); err != nil {
		return fmt.Errorf("program: %w", err)
	}
	return nil
}
