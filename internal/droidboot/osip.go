package droidboot

import (
	"context"
	"fmt"
	"io"

	"github.com/gokrazy/droidboot/internal/config"
	"github.com/gokrazy/droidboot/internal/configflag"
	"github.com/gokrazy/droidboot/internal/osip"
	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"
)

func osipCmd() *cobra.Command {
	cmd := &cobra.Command{
		GroupID: "flash",
		Use:     "osip",
		Short:   "Inspect the OSIP header",
	}
	cmd.AddCommand(osipDumpCmd)
	cmd.AddCommand(osipBackupCmd)
	return cmd
}

// osipDumpCmd is droidboot osip dump.
var osipDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the OSIP header",
	RunE: func(cmd *cobra.Command, args []string) error {
		return osipImpl.dump(cmd.Context(), args, cmd.OutOrStdout())
	},
}

// osipBackupCmd is droidboot osip backup.
var osipBackupCmd = &cobra.Command{
	Use:   "backup --out=<file>",
	Short: "Save a copy of the raw OSIP header to a file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return osipImpl.backup(cmd.Context(), args, cmd.OutOrStdout())
	},
}

type osipImplConfig struct {
	backupLocation bool
	out            string
}

var osipImpl osipImplConfig

func init() {
	osipDumpCmd.Flags().BoolVarP(&osipImpl.backupLocation, "backup", "", false, "read the backup copy instead of the primary header")
	osipBackupCmd.Flags().BoolVarP(&osipImpl.backupLocation, "backup", "", false, "read the backup copy instead of the primary header")
	osipBackupCmd.Flags().StringVarP(&osipImpl.out, "out", "o", "", "file to write the raw header to")
}

func (r *osipImplConfig) location() osip.Location {
	if r.backupLocation {
		return osip.Backup
	}
	return osip.Primary
}

func store(cfg *config.Struct) *osip.Store {
	return &osip.Store{
		DevicePath:   cfg.DevicePath,
		BackupOffset: cfg.BackupOffset,
	}
}

func (r *osipImplConfig) dump(ctx context.Context, args []string, stdout io.Writer) error {
	cfg, err := configflag.Config()
	if err != nil {
		return err
	}
	hdr, err := store(cfg).ReadHeader(r.location())
	if err != nil {
		return err
	}
	hdr.Dump(stdout)
	return nil
}

func (r *osipImplConfig) backup(ctx context.Context, args []string, stdout io.Writer) error {
	if r.out == "" {
		return fmt.Errorf("--out is required")
	}
	cfg, err := configflag.Config()
	if err != nil {
		return err
	}
	hdr, err := store(cfg).ReadHeader(r.location())
	if err != nil {
		return err
	}
	if !hdr.Valid() {
		// A backup of garbage would later be mistaken for a real table.
		return fmt.Errorf("%s: no valid OSIP header at %s location", cfg.DevicePath, r.location())
	}
	return writeBackup(r.out, hdr)
}

func writeBackup(path string, hdr *osip.Header) error {
	b, err := hdr.MarshalBinary()
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, b, 0644)
}
