package osip

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Location selects which copy of the header to read.
type Location int

const (
	Primary Location = iota
	Backup
)

func (l Location) String() string {
	if l == Backup {
		return "backup"
	}
	return "primary"
}

// Store reads and writes the OSIP header on a block device. Every call
// opens and closes the device.
type Store struct {
	DevicePath   string
	BackupOffset int64

	// Logf defaults to log.Printf.
	Logf func(format string, v ...interface{})
}

func (s *Store) logf(format string, v ...interface{}) {
	if s.Logf != nil {
		s.Logf(format, v...)
		return
	}
	log.Printf(format, v...)
}

func (s *Store) offset(loc Location) int64 {
	if loc != Backup {
		return 0
	}
	if s.BackupOffset == 0 {
		return DefaultBackupOffset
	}
	return s.BackupOffset
}

// ReadHeader reads the header at loc. A header without a valid signature is
// returned as-is with a warning, not an error: the update path overwrites
// the table anyway. Callers which must refuse an invalid table need to
// check Header.Valid themselves.
func (s *Store) ReadHeader(loc Location) (*Header, error) {
	f, err := os.Open(s.DevicePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	off := s.offset(loc)
	if _, err := f.Seek(off, io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, HeaderSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("reading %s OSIP header from %s: %w", loc, s.DevicePath, err)
	}
	if n < HeaderSize {
		s.logf("short read of %s OSIP header: got %d bytes, want %d", loc, n, HeaderSize)
	}
	var h Header
	if err := h.UnmarshalBinary(buf); err != nil {
		return nil, err
	}
	if !h.Valid() {
		s.logf("WARNING: invalid OSIP header detected in %s at offset %#x (signature %#08x)", s.DevicePath, off, h.Sig)
	}
	return &h, nil
}

// WriteHeader writes h to the primary location and syncs the device.
func (s *Store) WriteHeader(h *Header) error {
	b, err := h.MarshalBinary()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(s.DevicePath, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		return fmt.Errorf("writing OSIP header to %s: %w", s.DevicePath, err)
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return f.Close()
}
