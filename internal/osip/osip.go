// Package osip implements the OS Image Profile (OSIP) header, the table at
// the start of the internal eMMC which tells the platform firmware where
// each bootable OS image is stored.
package osip

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// Signature is "$OS$" read as a little-endian uint32.
	Signature = 0x24534f24

	// MaxImages is the number of OSII slots in the header.
	MaxImages = 7

	// PreambleSize is the size of the header fields preceding the first
	// OSII descriptor.
	PreambleSize = 0x20

	// DefaultBackupOffset is where the platform keeps a second copy.
	DefaultBackupOffset = 0xE0

	osiiSize   = 24
	HeaderSize = PreambleSize + MaxImages*osiiSize
)

// OSII (OS Image Identifier) describes one bootable image.
type OSII struct {
	OSRevMinor        uint16
	OSRevMajor        uint16
	LogicalStartBlock uint32
	DDRLoadAddress    uint32
	EntryPoint        uint32
	// SizeOfOSImage is in units of device pages.
	SizeOfOSImage uint32
	Attribute     uint8
	Reserved      [3]uint8
}

// Header is the on-disk OSIP header, little-endian.
type Header struct {
	Sig            uint32
	IntelReserved  uint8
	HeaderRevMinor uint8
	HeaderRevMajor uint8
	HeaderChecksum uint8
	NumPointers    uint8
	NumImages      uint8
	HeaderSize     uint16
	Reserved       [5]uint32
	Desc           [MaxImages]OSII
}

// Valid reports whether h carries the OSIP signature.
func (h *Header) Valid() bool { return h.Sig == Signature }

func (h *Header) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(HeaderSize)
	if err := binary.Write(&buf, binary.LittleEndian, h); err != nil {
		return nil, err
	}
	if got, want := buf.Len(), HeaderSize; got != want {
		return nil, fmt.Errorf("BUG: header size: got %d, want %d", got, want)
	}
	return buf.Bytes(), nil
}

func (h *Header) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("OSIP header too short: got %d bytes, want %d", len(b), HeaderSize)
	}
	return binary.Read(bytes.NewReader(b[:HeaderSize]), binary.LittleEndian, h)
}

// Dump writes a human-readable description of h to w.
func (h *Header) Dump(w io.Writer) {
	fmt.Fprintf(w, "OSIP signature: %#08x", h.Sig)
	if !h.Valid() {
		fmt.Fprintf(w, " (invalid, want %#08x)", uint32(Signature))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "header revision: %d.%d, size %d, checksum %#02x\n",
		h.HeaderRevMajor, h.HeaderRevMinor, h.HeaderSize, h.HeaderChecksum)
	fmt.Fprintf(w, "pointers: %d, images: %d\n", h.NumPointers, h.NumImages)
	n := int(h.NumImages)
	if n > MaxImages {
		n = MaxImages
	}
	for i, d := range h.Desc[:n] {
		fmt.Fprintf(w, "image %d: rev %d.%d start block %#x load %#08x entry %#08x pages %#x attribute %#02x\n",
			i,
			d.OSRevMajor,
			d.OSRevMinor,
			d.LogicalStartBlock,
			d.DDRLoadAddress,
			d.EntryPoint,
			d.SizeOfOSImage,
			d.Attribute)
	}
}
