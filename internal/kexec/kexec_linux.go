// Package kexec replaces the running kernel with a new one.
package kexec

import (
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// Kexec implements boot.Handoff.
type Kexec struct{}

// ReadCmdline returns the kernel command line stored in path, with newlines
// folded into spaces.
func ReadCmdline(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(string(b)), " "), nil
}

// Kexec loads the kernel and ramdisk and reboots into them. It only returns
// on failure.
func (Kexec) Kexec(kernelPath, ramdiskPath, cmdlinePath string) error {
	cmdline, err := ReadCmdline(cmdlinePath)
	if err != nil {
		return err
	}
	log.Printf("kexec %s, initrd %s, cmdline %q", kernelPath, ramdiskPath, cmdline)
	if err := load(kernelPath, ramdiskPath, cmdline); err != nil {
		return fmt.Errorf("loading %s: %w", kernelPath, err)
	}
	unix.Sync()
	if err := unix.Reboot(unix.LINUX_REBOOT_CMD_KEXEC); err != nil {
		return fmt.Errorf("reboot(LINUX_REBOOT_CMD_KEXEC): %w", err)
	}
	return fmt.Errorf("BUG: reboot returned")
}
