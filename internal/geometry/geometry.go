// Package geometry reads the erase block geometry of the internal eMMC from
// sysfs.
package geometry

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
)

// ErrUnavailable is wrapped by all errors returned from Resolver. Callers
// must not touch the device when geometry is unavailable.
var ErrUnavailable = errors.New("device geometry unavailable")

const kbytes = 1024

// Resolver derives page and block sizes from a sysfs attribute. Values are
// read on every call, never cached.
type Resolver struct {
	// Path of the attribute holding the erase size in bytes.
	Path string

	PagesPerBlock int
}

// PageSizeKB returns the erase size in kilobytes.
func (r *Resolver) PageSizeKB() (int, error) {
	f, err := os.Open(r.Path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer f.Close()
	buf := make([]byte, 16)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("%w: read %s: %v", ErrUnavailable, r.Path, err)
	}
	log.Printf("page size %q", buf[:n])
	var pageSize int
	if _, err := fmt.Sscanf(string(buf[:n]), "%d", &pageSize); err != nil {
		return 0, fmt.Errorf("%w: parsing %s: %v", ErrUnavailable, r.Path, err)
	}
	kb := pageSize / kbytes
	if kb <= 0 {
		return 0, fmt.Errorf("%w: erase size %d is smaller than 1 KB", ErrUnavailable, pageSize)
	}
	return kb, nil
}

// BlockSizeKB returns PageSizeKB multiplied by PagesPerBlock.
func (r *Resolver) BlockSizeKB() (int, error) {
	pageSize, err := r.PageSizeKB()
	if err != nil {
		return 0, err
	}
	ppb := r.PagesPerBlock
	if ppb == 0 {
		ppb = 1
	}
	return pageSize * ppb, nil
}
