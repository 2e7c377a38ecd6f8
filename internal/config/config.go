// Package config holds the droidboot settings that used to be compile-time
// constants: device paths, on-disk offsets and the autoboot defaults.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/gokrazy/droidboot/internal/osip"
)

const (
	// DefaultGeometryPath is the sysfs attribute reporting the erase size of
	// the internal eMMC in bytes.
	DefaultGeometryPath = "/sys/devices/pci0000:00/0000:00:01.0/mmc_host/mmc0/mmc0:0001/erase_size"

	DefaultLayoutPath = "/etc/droidboot/layout.json"
	DefaultInputDir   = "/dev/input"

	DefaultAutobootDelaySecs = 8
	DefaultScratchSize       = 128 << 20
)

// Struct is the droidboot configuration. The zero value of each field means
// "use the default", see Default.
type Struct struct {
	DevicePath   string `json:",omitempty"`
	BackupOffset int64  `json:",omitempty"`
	GeometryPath string `json:",omitempty"`

	PagesPerBlock     int `json:",omitempty"`
	StitchedPageSize  int `json:",omitempty"`
	StitchedBlockSize int `json:",omitempty"`
	// Slots is the number of OSIP slots which may be flashed. It cannot
	// exceed the on-disk capacity of 7.
	Slots int `json:",omitempty"`

	AutobootEnabled *bool `json:",omitempty"`
	// AutobootDelaySecs may be 0 to boot without a countdown.
	AutobootDelaySecs *int   `json:",omitempty"`
	InputDir          string `json:",omitempty"`

	LayoutPath  string `json:",omitempty"`
	ScratchSize int    `json:",omitempty"`
}

// Default returns the compiled-in configuration.
func Default() *Struct {
	enabled := true
	delay := DefaultAutobootDelaySecs
	return &Struct{
		DevicePath:        defaultDevicePath,
		BackupOffset:      0xE0,
		GeometryPath:      DefaultGeometryPath,
		PagesPerBlock:     1,
		StitchedPageSize:  512,
		StitchedBlockSize: 512,
		Slots:             7,
		AutobootEnabled:   &enabled,
		AutobootDelaySecs: &delay,
		InputDir:          DefaultInputDir,
		LayoutPath:        DefaultLayoutPath,
		ScratchSize:       DefaultScratchSize,
	}
}

// Autoboot reports whether autoboot starts out enabled.
func (s *Struct) Autoboot() bool {
	return s.AutobootEnabled == nil || *s.AutobootEnabled
}

// AutobootDelay returns the countdown length in seconds.
func (s *Struct) AutobootDelay() int {
	if s.AutobootDelaySecs == nil {
		return DefaultAutobootDelaySecs
	}
	return *s.AutobootDelaySecs
}

// merge copies all non-zero fields of o into s. Pointer fields are copied
// when set, so they can override a default with false or 0.
func (s *Struct) merge(o *Struct) {
	if o.DevicePath != "" {
		s.DevicePath = o.DevicePath
	}
	if o.BackupOffset != 0 {
		s.BackupOffset = o.BackupOffset
	}
	if o.GeometryPath != "" {
		s.GeometryPath = o.GeometryPath
	}
	if o.PagesPerBlock != 0 {
		s.PagesPerBlock = o.PagesPerBlock
	}
	if o.StitchedPageSize != 0 {
		s.StitchedPageSize = o.StitchedPageSize
	}
	if o.StitchedBlockSize != 0 {
		s.StitchedBlockSize = o.StitchedBlockSize
	}
	if o.Slots != 0 {
		s.Slots = o.Slots
	}
	if o.AutobootEnabled != nil {
		s.AutobootEnabled = o.AutobootEnabled
	}
	if o.AutobootDelaySecs != nil {
		s.AutobootDelaySecs = o.AutobootDelaySecs
	}
	if o.InputDir != "" {
		s.InputDir = o.InputDir
	}
	if o.LayoutPath != "" {
		s.LayoutPath = o.LayoutPath
	}
	if o.ScratchSize != 0 {
		s.ScratchSize = o.ScratchSize
	}
}

// Validate rejects configurations which would corrupt the device.
func (s *Struct) Validate() error {
	if s.DevicePath == "" {
		return fmt.Errorf("DevicePath must not be empty")
	}
	if s.Slots < 1 || s.Slots > 7 {
		return fmt.Errorf("Slots: got %d, want 1..7", s.Slots)
	}
	if s.PagesPerBlock < 1 {
		return fmt.Errorf("PagesPerBlock: got %d, want >= 1", s.PagesPerBlock)
	}
	if s.StitchedPageSize < 1 {
		return fmt.Errorf("StitchedPageSize: got %d, want >= 1", s.StitchedPageSize)
	}
	if s.StitchedBlockSize < osip.HeaderSize {
		return fmt.Errorf("StitchedBlockSize: got %d, want >= %d (OSIP header size)", s.StitchedBlockSize, osip.HeaderSize)
	}
	if d := s.AutobootDelay(); d < 0 {
		return fmt.Errorf("AutobootDelaySecs: got %d, want >= 0", d)
	}
	if s.ScratchSize < 1 {
		return fmt.Errorf("ScratchSize: got %d, want >= 1", s.ScratchSize)
	}
	return nil
}

// ReadFromFile returns the default configuration, overridden by the
// settings in the JSON file at path. An empty path or a non-existing file
// yields the defaults.
func ReadFromFile(path string) (*Struct, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	log.Printf("reading droidboot config from %s", path)
	var fileCfg Struct
	if err := json.Unmarshal(b, &fileCfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.merge(&fileCfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
