// Package stitch splits stitched images, the vendor container which carries
// one OSII descriptor followed by the OS image payload, as received by the
// flashing protocol.
package stitch

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gokrazy/droidboot/internal/osip"
)

// BlockSize is the default size of the framing block at the start of a
// stitched image.
const BlockSize = 512

// Parser splits a stitched image into its descriptor and payload. The
// descriptor is returned as-is; the updater only cross-checks its size.
type Parser interface {
	Crack(data []byte) (*osip.OSII, []byte, error)
}

// OSIPFramed is the stitched image layout produced by the platform's image
// stitching tool: the framing block is an OSIP header whose first
// descriptor describes the payload.
type OSIPFramed struct {
	// BlockSize is the size of the framing block, BlockSize if zero.
	BlockSize int
}

func (p OSIPFramed) blockSize() int {
	if p.BlockSize == 0 {
		return BlockSize
	}
	return p.BlockSize
}

func (p OSIPFramed) Crack(data []byte) (*osip.OSII, []byte, error) {
	bs := p.blockSize()
	if bs < osip.HeaderSize {
		return nil, nil, fmt.Errorf("framing block of %d bytes cannot hold an OSIP header", bs)
	}
	if len(data) < bs {
		return nil, nil, fmt.Errorf("stitched image too short: got %d bytes, want at least %d", len(data), bs)
	}
	var osii osip.OSII
	r := bytes.NewReader(data[osip.PreambleSize:bs])
	if err := binary.Read(r, binary.LittleEndian, &osii); err != nil {
		return nil, nil, err
	}
	return &osii, data[bs:], nil
}

// Stitch is the inverse of Crack, used for producing test images and by
// host-side tooling.
func (p OSIPFramed) Stitch(osii osip.OSII, payload []byte) ([]byte, error) {
	bs := p.blockSize()
	if bs < osip.HeaderSize {
		return nil, fmt.Errorf("framing block of %d bytes cannot hold an OSIP header", bs)
	}
	h := osip.Header{
		Sig:        osip.Signature,
		NumImages:  1,
		HeaderSize: osip.HeaderSize,
	}
	h.Desc[0] = osii
	b, err := h.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out := make([]byte, bs, bs+len(payload))
	copy(out, b)
	return append(out, payload...), nil
}

// Stitch frames payload with the default block size.
func Stitch(osii osip.OSII, payload []byte) ([]byte, error) {
	return OSIPFramed{}.Stitch(osii, payload)
}
