package droidboot

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/gokrazy/droidboot/internal/autoboot"
	"github.com/gokrazy/droidboot/internal/boot"
	"github.com/gokrazy/droidboot/internal/config"
	"github.com/gokrazy/droidboot/internal/console"
	"github.com/gokrazy/droidboot/internal/input"
	"github.com/gokrazy/droidboot/internal/kexec"
	"github.com/gokrazy/droidboot/internal/osip"
	"github.com/gokrazy/droidboot/internal/updater"
	"github.com/gokrazy/droidboot/internal/version"
	"github.com/gokrazy/internal/humanize"
)

// bootloader ties the autoboot flag to its writers (input listener,
// flashing commands) and its reader (the timer).
type bootloader struct {
	cfg      *config.Struct
	autoboot *autoboot.Flag
	updater  *updater.Updater
	launcher *boot.Launcher
	scratch  []byte
}

func newBootloader(cfg *config.Struct, lay boot.Layout) *bootloader {
	return &bootloader{
		cfg:      cfg,
		autoboot: autoboot.NewFlag(cfg.Autoboot()),
		updater:  updater.New(cfg),
		launcher: &boot.Launcher{
			Layout:  lay,
			Handoff: kexec.Kexec{},
		},
		scratch: make([]byte, cfg.ScratchSize),
	}
}

func (b *bootloader) timer() *autoboot.Timer {
	return &autoboot.Timer{
		Flag:  b.autoboot,
		Delay: b.cfg.AutobootDelay(),
		Boot: func() {
			if err := b.launcher.BootDefault(); err != nil {
				log.Printf("autoboot: %v", err)
			}
		},
	}
}

func (b *bootloader) listener() *input.Listener {
	return &input.Listener{
		Dir:    b.cfg.InputDir,
		Cancel: func() { b.autoboot.Disable() },
	}
}

func (b *bootloader) server() *console.Server {
	srv := console.NewServer()
	// Any operator command means the operator wants to stay.
	srv.OnCommand = func() { b.autoboot.Disable() }
	srv.Register("flash", "flash <slot> <stitched image file>", b.flash)
	srv.Register("boot", "boot (boot the kernel on the boot partition)", b.boot)
	srv.Register("continue", "continue (same as boot)", b.boot)
	srv.Register("getvar", "getvar version|device|slots|page-size|block-size", b.getvar)
	srv.Register("dump", "dump [backup] (print the OSIP header)", b.dump)
	return srv
}

func (b *bootloader) flash(ctx context.Context, args []string, w io.Writer) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("usage: flash <slot> <file>")
	}
	slot, err := strconv.Atoi(args[0])
	if err != nil {
		return "", fmt.Errorf("invalid slot %q: %v", args[0], err)
	}
	f, err := os.Open(args[1])
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := console.Stage(b.scratch, f)
	if err != nil {
		return "", err
	}
	if err := b.updater.Apply(data, slot); err != nil {
		return "", err
	}
	return fmt.Sprintf("wrote %s to slot %d", humanize.Bytes(uint64(len(data))), slot), nil
}

func (b *bootloader) boot(ctx context.Context, args []string, w io.Writer) (string, error) {
	if err := b.launcher.BootDefault(); err != nil {
		return "", err
	}
	return "", nil
}

func (b *bootloader) getvar(ctx context.Context, args []string, w io.Writer) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: getvar <name>")
	}
	switch args[0] {
	case "version":
		return version.ReadBrief(), nil
	case "device":
		return b.cfg.DevicePath, nil
	case "slots":
		return strconv.Itoa(b.cfg.Slots), nil
	case "page-size":
		kb, err := b.updater.Geometry.PageSizeKB()
		if err != nil {
			return "", err
		}
		return strconv.Itoa(kb), nil
	case "block-size":
		kb, err := b.updater.Geometry.BlockSizeKB()
		if err != nil {
			return "", err
		}
		return strconv.Itoa(kb), nil
	}
	return "", fmt.Errorf("unknown variable %q", args[0])
}

func (b *bootloader) dump(ctx context.Context, args []string, w io.Writer) (string, error) {
	loc := osip.Primary
	if len(args) > 0 && args[0] == "backup" {
		loc = osip.Backup
	}
	hdr, err := b.updater.Store.ReadHeader(loc)
	if err != nil {
		return "", err
	}
	hdr.Dump(w)
	return "", nil
}
