//go:build linux && (amd64 || arm64 || riscv64 || ppc64 || ppc64le || s390x)

package kexec

import (
	"os"

	"golang.org/x/sys/unix"
)

func load(kernelPath, ramdiskPath, cmdline string) error {
	kernel, err := os.Open(kernelPath)
	if err != nil {
		return err
	}
	defer kernel.Close()
	ramdisk, err := os.Open(ramdiskPath)
	if err != nil {
		return err
	}
	defer ramdisk.Close()
	return unix.KexecFileLoad(int(kernel.Fd()), int(ramdisk.Fd()), cmdline, 0)
}
