// Package config loads the YAML or TOML configuration shared by the
// flashloader daemon and the flashprog CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/moffa90/go-flashloader/flashdev"
	"github.com/moffa90/go-flashloader/protocol"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Serial  SerialConfig  `yaml:"serial" toml:"serial"`
	Loader  LoaderConfig  `yaml:"loader" toml:"loader"`
	Flash   FlashConfig   `yaml:"flash" toml:"flash"`
	Program ProgramConfig `yaml:"program" toml:"program"`
	Log     LogConfig     `yaml:"log" toml:"log"`
}

// ---- SERIAL ----

type SerialConfig struct {
	Path          string `yaml:"path" toml:"path" validate:"required"`
	Baud          int    `yaml:"baud" toml:"baud" validate:"gt=0"`
	ReadTimeoutMs int    `yaml:"read_timeout_ms" toml:"read_timeout_ms" validate:"gte=0"`
}

// ---- LOADER (device buffers, must match on both ends) ----

type LoaderConfig struct {
	RxCapacity    int `yaml:"rx_capacity" toml:"rx_capacity" validate:"gte=4"`
	StageCapacity int `yaml:"stage_capacity" toml:"stage_capacity" validate:"gt=0"`
}

// ---- FLASH ----

type FlashConfig struct {
	// Backing is the image file that stands in for the flash chip (daemon only)
	Backing    string `yaml:"backing" toml:"backing"`
	SectorSize int    `yaml:"sector_size" toml:"sector_size"`
	Capacity   int    `yaml:"capacity" toml:"capacity"`
}

// ---- PROGRAM (host only) ----

type ProgramConfig struct {
	Image          string `yaml:"image" toml:"image"`
	Base           int    `yaml:"base" toml:"base" validate:"gte=0"`
	Retries        int    `yaml:"retries" toml:"retries" validate:"gte=0"`
	CommandDelayMs int    `yaml:"command_delay_ms" toml:"command_delay_ms" validate:"gte=0"`

	// LineRate caps command lines per second; 0 disables pacing
	LineRate float64 `yaml:"line_rate" toml:"line_rate" validate:"gte=0"`
}

// ---- LOG ----

type LogConfig struct {
	Level string `yaml:"level" toml:"level" validate:"loglevel"`

	// File, when set, receives JSON lines with size-based rotation
	File string `yaml:"file" toml:"file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Path:          "/dev/ttyUSB0",
			Baud:          115200,
			ReadTimeoutMs: 100,
		},
		Loader: LoaderConfig{
			RxCapacity:    protocol.DefaultRxCapacity,
			StageCapacity: protocol.DefaultStageCapacity,
		},
		Flash: FlashConfig{
			Backing:    "flash.bin",
			SectorSize: flashdev.W25Q128.SectorSize,
			Capacity:   flashdev.W25Q128.Capacity,
		},
		Program: ProgramConfig{
			Retries: 3,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path from fs over the defaults. Files ending in .toml are
// parsed as TOML, anything else as YAML. Unknown keys are rejected.
func Load(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = decodeTOML(data, cfg)
	} else {
		err = decodeYAML(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func decodeTOML(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return errors.New(strict.String())
		}
		return err
	}
	return nil
}

// Geometry returns the flash geometry.
func (c *Config) Geometry() flashdev.Geometry {
	return flashdev.Geometry{SectorSize: c.Flash.SectorSize, Capacity: c.Flash.Capacity}
}

// ReadTimeout returns the serial read timeout.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Serial.ReadTimeoutMs) * time.Millisecond
}

// CommandDelay returns the pause after each host command line.
func (c *Config) CommandDelay() time.Duration {
	return time.Duration(c.Program.CommandDelayMs) * time.Millisecond
}
