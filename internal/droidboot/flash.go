package droidboot

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gokrazy/droidboot/internal/configflag"
	"github.com/gokrazy/droidboot/internal/updater"
	"github.com/gokrazy/internal/humanize"
	"github.com/spf13/cobra"
)

// flashCmd is droidboot flash.
var flashCmd = &cobra.Command{
	GroupID: "flash",
	Use:     "flash --slot=<n> <stitched image>",
	Short:   "Write a stitched image into an OSIP slot",
	Long: `Write a stitched image into an OSIP slot.

The image is written to the start block the OSIP table already records for
the slot. Note that every update sets the number of images in the table
to 1.

Examples:
  # Flash the boot image into slot 0:
  % droidboot flash --slot=0 boot.bin
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return flashImpl.run(cmd.Context(), args, cmd.OutOrStdout(), cmd.OutOrStderr())
	},
}

type flashImplConfig struct {
	slot int
}

var flashImpl flashImplConfig

func init() {
	flashCmd.Flags().IntVarP(&flashImpl.slot, "slot", "", 0, "OSIP slot (0-6) to write the image to")
}

func (r *flashImplConfig) run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := configflag.Config()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	if len(data) > cfg.ScratchSize {
		return fmt.Errorf("%s: image of %s exceeds scratch size of %s",
			args[0],
			humanize.Bytes(uint64(len(data))),
			humanize.Bytes(uint64(cfg.ScratchSize)))
	}
	if err := updater.New(cfg).Apply(data, r.slot); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s to slot %d of %s\n", args[0], r.slot, cfg.DevicePath)
	return nil
}
