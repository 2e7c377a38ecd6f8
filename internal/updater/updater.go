// Package updater flashes stitched images: it splices the image descriptor
// into the OSIP header and writes the payload to where the header says the
// slot lives.
package updater

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/gokrazy/droidboot/internal/config"
	"github.com/gokrazy/droidboot/internal/geometry"
	"github.com/gokrazy/droidboot/internal/osip"
	"github.com/gokrazy/droidboot/internal/stitch"
	"github.com/gokrazy/internal/humanize"
)

var (
	// ErrFormat is returned when the descriptor size does not match the
	// stitched image length.
	ErrFormat = errors.New("stitched image format is not correct")

	// ErrSlot is returned for slot numbers outside of the OSIP table.
	ErrSlot = errors.New("invalid OSIP slot")
)

type Updater struct {
	Geometry *geometry.Resolver
	Store    *osip.Store
	Parser   stitch.Parser

	StitchedPageSize  int
	StitchedBlockSize int
	Slots             int

	// Logf defaults to log.Printf.
	Logf func(format string, v ...interface{})
}

// New returns an Updater for the device described by cfg.
func New(cfg *config.Struct) *Updater {
	return &Updater{
		Geometry: &geometry.Resolver{
			Path:          cfg.GeometryPath,
			PagesPerBlock: cfg.PagesPerBlock,
		},
		Store: &osip.Store{
			DevicePath:   cfg.DevicePath,
			BackupOffset: cfg.BackupOffset,
		},
		Parser:            stitch.OSIPFramed{BlockSize: cfg.StitchedBlockSize},
		StitchedPageSize:  cfg.StitchedPageSize,
		StitchedBlockSize: cfg.StitchedBlockSize,
		Slots:             cfg.Slots,
	}
}

func (u *Updater) logf(format string, v ...interface{}) {
	if u.Logf != nil {
		u.Logf(format, v...)
		return
	}
	log.Printf(format, v...)
}

// Apply writes the stitched image data to OSIP slot. The header is
// persisted before the payload; a failure while writing the payload leaves
// the new header in place.
//
// Every update sets NumImages to 1, which hides all slots but the first
// from the firmware.
func (u *Updater) Apply(data []byte, slot int) error {
	slots := u.Slots
	if slots == 0 || slots > osip.MaxImages {
		slots = osip.MaxImages
	}
	if slot < 0 || slot >= slots {
		return fmt.Errorf("%w: %d (want 0..%d)", ErrSlot, slot, slots-1)
	}

	blockSize, err := u.Geometry.BlockSizeKB()
	if err != nil {
		return fmt.Errorf("block size: %w", err)
	}
	pageSize, err := u.Geometry.PageSizeKB()
	if err != nil {
		return fmt.Errorf("page size: %w", err)
	}

	osii, blob, err := u.Parser.Crack(data)
	if err != nil {
		return fmt.Errorf("cracking stitched image: %w", err)
	}
	payloadLen := len(data) - u.StitchedBlockSize
	if payloadLen < 0 ||
		uint64(osii.SizeOfOSImage)*uint64(u.StitchedPageSize) != uint64(payloadLen) {
		return fmt.Errorf("%w: descriptor claims %d pages of %d bytes, image holds %d bytes",
			ErrFormat, osii.SizeOfOSImage, u.StitchedPageSize, payloadLen)
	}
	if len(blob) < payloadLen {
		return fmt.Errorf("%w: payload holds %d bytes, want %d", ErrFormat, len(blob), payloadLen)
	}

	hdr, err := u.Store.ReadHeader(osip.Primary)
	if err != nil {
		return fmt.Errorf("reading OSIP header: %w", err)
	}

	desc := *osii
	hdr.NumImages = 1
	desc.LogicalStartBlock = hdr.Desc[slot].LogicalStartBlock
	desc.SizeOfOSImage = uint32(uint64(osii.SizeOfOSImage)*uint64(u.StitchedPageSize)/uint64(pageSize) + 1)
	hdr.Desc[slot] = desc
	u.logf("slot %d: os_rev %d.%d, ddr_load_address=%#x, entry_point=%#x, size_of_os_image=%#x, attribute=%#x",
		slot,
		desc.OSRevMajor,
		desc.OSRevMinor,
		desc.DDRLoadAddress,
		desc.EntryPoint,
		desc.SizeOfOSImage,
		desc.Attribute)

	// The start block is multiplied by the block size as reported in KB,
	// matching the addressing the firmware uses for OSIP entries.
	off := int64(desc.LogicalStartBlock) * int64(blockSize)
	devsize, isDev, err := geometry.DeviceSize(u.Store.DevicePath)
	if err != nil {
		return err
	}
	if end := uint64(off) + uint64(payloadLen); isDev && end > devsize {
		return fmt.Errorf("slot %d: payload would end at %#x, beyond the end of %s (%#x)", slot, end, u.Store.DevicePath, devsize)
	}

	if err := u.Store.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing OSIP header: %w", err)
	}

	u.logf("writing %s payload to %s at offset %#x", humanize.Bytes(uint64(payloadLen)), u.Store.DevicePath, off)
	return writePayload(u.Store.DevicePath, off, blob[:payloadLen])
}

func writePayload(path string, off int64, payload []byte) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Seek(off, io.SeekStart); err != nil {
		return err
	}
	if _, err := f.Write(payload); err != nil {
		return fmt.Errorf("writing payload to %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return f.Close()
}
