// Package configflag registers the flags shared by all droidboot commands
// and turns them into a config.Struct.
package configflag

import (
	"os"

	"github.com/gokrazy/droidboot/internal/config"
	"github.com/spf13/pflag"
)

var (
	configPath string
	devicePath string
	noAutoboot bool
)

func RegisterPflags(fs *pflag.FlagSet) {
	def := os.Getenv("DROIDBOOT_CONFIG")
	if def == "" {
		def = "/etc/droidboot/config.json"
	}
	fs.StringVar(&configPath,
		"config",
		def,
		`path to a JSON file overriding the compiled-in defaults (ignored if missing)`)

	fs.StringVar(&devicePath,
		"device",
		"",
		`block device holding the OSIP header, e.g. /dev/mmcblk0 (default from config)`)

	fs.BoolVar(&noAutoboot,
		"no_autoboot",
		false,
		`start with autoboot disabled`)
}

// Config reads the configuration file named by -config and applies the
// remaining flag overrides.
func Config() (*config.Struct, error) {
	cfg, err := config.ReadFromFile(configPath)
	if err != nil {
		return nil, err
	}
	if devicePath != "" {
		cfg.DevicePath = devicePath
	}
	if noAutoboot {
		disabled := false
		cfg.AutobootEnabled = &disabled
	}
	return cfg, nil
}
