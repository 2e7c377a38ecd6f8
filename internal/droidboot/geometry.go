package droidboot

import (
	"context"
	"fmt"
	"io"

	"github.com/gokrazy/droidboot/internal/configflag"
	"github.com/gokrazy/droidboot/internal/geometry"
	"github.com/spf13/cobra"
)

// geometryCmd is droidboot geometry.
var geometryCmd = &cobra.Command{
	GroupID: "flash",
	Use:     "geometry",
	Short:   "Print the eMMC page and block size",
	RunE: func(cmd *cobra.Command, args []string) error {
		return geometryImpl.run(cmd.Context(), args, cmd.OutOrStdout())
	},
}

type geometryImplConfig struct{}

var geometryImpl geometryImplConfig

func (r *geometryImplConfig) run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg, err := configflag.Config()
	if err != nil {
		return err
	}
	res := &geometry.Resolver{
		Path:          cfg.GeometryPath,
		PagesPerBlock: cfg.PagesPerBlock,
	}
	page, err := res.PageSizeKB()
	if err != nil {
		return err
	}
	block, err := res.BlockSizeKB()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "page size:  %d KB\nblock size: %d KB\n", page, block)
	return nil
}
