package droidboot

import (
	"fmt"

	"github.com/gokrazy/droidboot/internal/configflag"
	"github.com/gokrazy/droidboot/internal/version"
	"github.com/spf13/cobra"
)

// RootCmd is droidboot. Without a subcommand, it runs the bootloader.
func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "droidboot [layout]",
		Short: "secondary bootloader: flash OS images, then boot the default kernel",
		Long: `droidboot runs as the first user space program on devices without
removable media. It:

1. Counts down to booting the kernel on the boot partition (autoboot),
2. Cancels the countdown as soon as a key, mouse or touchscreen is used,
3. Serves flashing commands on the console, writing stitched images into
   the OSIP table of the internal eMMC.

The optional layout argument names the partition layout file
(default /etc/droidboot/layout.json).
`,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			versionVal, err := cmd.Flags().GetBool("version")
			if err != nil {
				return fmt.Errorf("BUG: version flag declared as non-bool")
			}
			if versionVal {
				fmt.Fprintln(cmd.OutOrStdout(), version.Read())
				return nil
			}
			return runImpl.run(cmd.Context(), args, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	rootCmd.AddGroup(&cobra.Group{
		ID:    "flash",
		Title: "Commands to inspect and modify the OSIP table:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "boot",
		Title: "Commands to boot the device:",
	})
	rootCmd.Flags().Bool("version", false, "print droidboot version")
	rootCmd.Flags().StringVar(&runImpl.console, "console", "", "tty to serve flashing commands on (default: stdin/stdout)")
	configflag.RegisterPflags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(flashCmd)
	rootCmd.AddCommand(osipCmd())
	rootCmd.AddCommand(geometryCmd)
	rootCmd.AddCommand(bootCmd)
	rootCmd.AddCommand(versionCmd)
	return rootCmd
}
