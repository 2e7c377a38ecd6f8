//go:build linux && !(amd64 || arm64 || riscv64 || ppc64 || ppc64le || s390x)

package kexec

import (
	"fmt"
	"os"
	"os/exec"
)

// kexec_file_load(2) is not wired up on this architecture, so fall back to
// the kexec-tools binary, which uses kexec_load(2).
func load(kernelPath, ramdiskPath, cmdline string) error {
	cmd := exec.Command("kexec",
		"--load", kernelPath,
		"--initrd", ramdiskPath,
		"--command-line", cmdline)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%v: %w", cmd.Args, err)
	}
	return nil
}
