package droidboot

import (
	"context"
	"io"

	"github.com/gokrazy/droidboot/internal/boot"
	"github.com/gokrazy/droidboot/internal/configflag"
	"github.com/gokrazy/droidboot/internal/kexec"
	"github.com/gokrazy/droidboot/internal/layout"
	"github.com/spf13/cobra"
)

// bootCmd is droidboot boot.
var bootCmd = &cobra.Command{
	GroupID: "boot",
	Use:     "boot [layout]",
	Short:   "Boot the kernel on the boot partition immediately",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return bootImpl.run(cmd.Context(), args, cmd.OutOrStdout())
	},
}

type bootImplConfig struct{}

var bootImpl bootImplConfig

func (r *bootImplConfig) run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg, err := configflag.Config()
	if err != nil {
		return err
	}
	layoutPath := cfg.LayoutPath
	if len(args) > 0 {
		layoutPath = args[0]
	}
	lay, err := layout.Load(layoutPath)
	if err != nil {
		return err
	}
	launcher := &boot.Launcher{
		Layout:  lay,
		Handoff: kexec.Kexec{},
	}
	return launcher.BootDefault()
}
