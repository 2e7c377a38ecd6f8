// Package boot hands the device over to the default OS image.
package boot

import (
	"log"
	"path/filepath"

	"github.com/gokrazy/droidboot/internal/layout"
)

// PartitionName is the partition holding the default kernel.
const PartitionName = "boot"

// File names on the boot partition.
const (
	KernelName  = "kernel"
	RamdiskName = "ramdisk.img"
	CmdlineName = "cmdline"
)

type Layout interface {
	FindPartition(name string) (*layout.Partition, error)
	Mount(p *layout.Partition) (string, error)
}

// Handoff replaces the running system with the kernel. It does not return
// on success.
type Handoff interface {
	Kexec(kernelPath, ramdiskPath, cmdlinePath string) error
}

type Launcher struct {
	Layout  Layout
	Handoff Handoff

	// Fatalf defaults to log.Fatalf.
	Fatalf func(format string, v ...interface{})
}

// BootDefault boots the kernel from the boot partition. If the partition
// cannot be mounted, the error is logged and returned so that the caller
// can keep serving flashing commands. A failed handoff is fatal.
func (l *Launcher) BootDefault() error {
	ptn, err := l.Layout.FindPartition(PartitionName)
	if err != nil {
		log.Printf("Can't find boot partition: %v", err)
		return err
	}
	mountpoint, err := l.Layout.Mount(ptn)
	if err != nil {
		log.Printf("Can't mount boot partition: %v", err)
		return err
	}

	var (
		kernelPath  = filepath.Join(mountpoint, KernelName)
		ramdiskPath = filepath.Join(mountpoint, RamdiskName)
		cmdlinePath = filepath.Join(mountpoint, CmdlineName)
	)
	log.Printf("booting %s (ramdisk %s, cmdline %s)", kernelPath, ramdiskPath, cmdlinePath)
	if err := l.Handoff.Kexec(kernelPath, ramdiskPath, cmdlinePath); err != nil {
		fatalf := l.Fatalf
		if fatalf == nil {
			fatalf = log.Fatalf
		}
		fatalf("kernel handoff failed: %v", err)
		return err
	}
	return nil
}
