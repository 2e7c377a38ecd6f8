package updater

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gokrazy/droidboot/internal/config"
	"github.com/gokrazy/droidboot/internal/geometry"
	"github.com/gokrazy/droidboot/internal/osip"
	"github.com/gokrazy/droidboot/internal/stitch"
	"github.com/google/go-cmp/cmp"
)

const deviceSize = 64 * 1024

type testDevice struct {
	dir      string
	dev      string
	geometry string
}

func newTestDevice(t *testing.T, eraseSize string, hdr *osip.Header) *testDevice {
	t.Helper()
	dir := t.TempDir()
	td := &testDevice{
		dir:      dir,
		dev:      filepath.Join(dir, "mmcblk0"),
		geometry: filepath.Join(dir, "erase_size"),
	}
	if err := os.WriteFile(td.dev, make([]byte, deviceSize), 0644); err != nil {
		t.Fatal(err)
	}
	if eraseSize != "" {
		if err := os.WriteFile(td.geometry, []byte(eraseSize), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if hdr != nil {
		if err := (&osip.Store{DevicePath: td.dev}).WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
	}
	return td
}

func (td *testDevice) updater(t *testing.T) *Updater {
	cfg := config.Default()
	cfg.DevicePath = td.dev
	cfg.GeometryPath = td.geometry
	u := New(cfg)
	u.Logf = t.Logf
	u.Store.Logf = t.Logf
	return u
}

func (td *testDevice) contents(t *testing.T) []byte {
	t.Helper()
	b, err := os.ReadFile(td.dev)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func twoSlotHeader() *osip.Header {
	h := &osip.Header{
		Sig:        osip.Signature,
		NumImages:  2,
		HeaderSize: osip.HeaderSize,
	}
	h.Desc[0] = osip.OSII{LogicalStartBlock: 100, SizeOfOSImage: 0}
	h.Desc[1] = osip.OSII{LogicalStartBlock: 500, SizeOfOSImage: 0}
	return h
}

func stitched(t *testing.T, pages uint32, payloadLen int) []byte {
	t.Helper()
	desc := osip.OSII{
		OSRevMajor:        4,
		OSRevMinor:        2,
		LogicalStartBlock: 0xdead, // must be ignored
		DDRLoadAddress:    0x1100000,
		EntryPoint:        0x1101000,
		SizeOfOSImage:     pages,
		Attribute:         0x0c,
	}
	payload := make([]byte, payloadLen)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	img, err := stitch.Stitch(desc, payload)
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func TestApplyScenario(t *testing.T) {
	td := newTestDevice(t, "4096\n", twoSlotHeader())
	img := stitched(t, 20, 20*512)
	if got, want := len(img), 10752; got != want {
		t.Fatalf("stitched image: got %d bytes, want %d", got, want)
	}
	if err := td.updater(t).Apply(img, 1); err != nil {
		t.Fatal(err)
	}

	got, err := (&osip.Store{DevicePath: td.dev, Logf: t.Logf}).ReadHeader(osip.Primary)
	if err != nil {
		t.Fatal(err)
	}
	want := twoSlotHeader()
	want.NumImages = 1
	want.Desc[1] = osip.OSII{
		OSRevMajor:        4,
		OSRevMinor:        2,
		LogicalStartBlock: 500,
		DDRLoadAddress:    0x1100000,
		EntryPoint:        0x1101000,
		SizeOfOSImage:     2561,
		Attribute:         0x0c,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("OSIP header: unexpected diff (-want +got):\n%s", diff)
	}

	// 500 blocks of 4 (KB-denominated) units.
	const off = 500 * 4
	b := td.contents(t)
	if !bytes.Equal(b[off:off+20*512], img[stitch.BlockSize:]) {
		t.Errorf("payload not found at offset %#x", off)
	}
}

func TestApplyLargeFramingBlock(t *testing.T) {
	td := newTestDevice(t, "4096\n", twoSlotHeader())
	payload := bytes.Repeat([]byte{0x5a}, 4*512)
	img, err := stitch.OSIPFramed{BlockSize: 1024}.Stitch(osip.OSII{SizeOfOSImage: 4}, payload)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.DevicePath = td.dev
	cfg.GeometryPath = td.geometry
	cfg.StitchedBlockSize = 1024
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	u := New(cfg)
	u.Logf = t.Logf
	if err := u.Apply(img, 1); err != nil {
		t.Fatal(err)
	}
	const off = 500 * 4
	b := td.contents(t)
	if !bytes.Equal(b[off:off+len(payload)], payload) {
		t.Errorf("payload not found at offset %#x: got % x...", off, b[off:off+8])
	}
}

func TestApplyCollapsesNumImages(t *testing.T) {
	for _, prior := range []uint8{0, 1, 2, 7} {
		hdr := twoSlotHeader()
		hdr.NumImages = prior
		td := newTestDevice(t, "8192", hdr)
		if err := td.updater(t).Apply(stitched(t, 3, 3*512), 0); err != nil {
			t.Fatal(err)
		}
		got, err := (&osip.Store{DevicePath: td.dev}).ReadHeader(osip.Primary)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := got.NumImages, uint8(1); got != want {
			t.Errorf("prior NumImages %d: got NumImages %d, want %d", prior, got, want)
		}
		if got, want := got.Desc[0].LogicalStartBlock, uint32(100); got != want {
			t.Errorf("LogicalStartBlock: got %d, want %d", got, want)
		}
		// (3*512)/8 + 1
		if got, want := got.Desc[0].SizeOfOSImage, uint32(193); got != want {
			t.Errorf("SizeOfOSImage: got %d, want %d", got, want)
		}
	}
}

func TestApplyInvalidHeaderOverwritten(t *testing.T) {
	stale := &osip.Header{NumImages: 5}
	stale.Desc[2].LogicalStartBlock = 1000
	td := newTestDevice(t, "4096", stale)
	if err := td.updater(t).Apply(stitched(t, 1, 512), 2); err != nil {
		t.Fatal(err)
	}
	got, err := (&osip.Store{DevicePath: td.dev}).ReadHeader(osip.Primary)
	if err != nil {
		t.Fatal(err)
	}
	// The zeroed table is rewritten as-is, including its signature.
	if got.Valid() {
		t.Errorf("header unexpectedly gained a signature")
	}
	if got, want := got.NumImages, uint8(1); got != want {
		t.Errorf("NumImages: got %d, want %d", got, want)
	}
	if got, want := got.Desc[2].LogicalStartBlock, uint32(1000); got != want {
		t.Errorf("LogicalStartBlock: got %d, want %d", got, want)
	}
	if got, want := got.Desc[2].SizeOfOSImage, uint32(129); got != want {
		t.Errorf("SizeOfOSImage: got %d, want %d", got, want)
	}
}

func TestApplyFormatMismatch(t *testing.T) {
	td := newTestDevice(t, "4096", twoSlotHeader())
	before := td.contents(t)
	img := stitched(t, 20, 20*512)
	for name, data := range map[string][]byte{
		"truncated":   img[:len(img)-1],
		"extended":    append(append([]byte{}, img...), 0),
		"header only": img[:stitch.BlockSize],
	} {
		t.Run(name, func(t *testing.T) {
			err := td.updater(t).Apply(data, 1)
			if !errors.Is(err, ErrFormat) {
				t.Fatalf("Apply: got err %v, want ErrFormat", err)
			}
			if !bytes.Equal(td.contents(t), before) {
				t.Errorf("Apply modified the device despite a format error")
			}
		})
	}
}

func TestApplyGeometryUnavailable(t *testing.T) {
	for name, erase := range map[string]string{
		"missing": "",
		"garbage": "n/a\n",
		"zero":    "0\n",
	} {
		t.Run(name, func(t *testing.T) {
			td := newTestDevice(t, erase, twoSlotHeader())
			before := td.contents(t)
			err := td.updater(t).Apply(stitched(t, 20, 20*512), 1)
			if !errors.Is(err, geometry.ErrUnavailable) {
				t.Fatalf("Apply: got err %v, want geometry.ErrUnavailable", err)
			}
			if !bytes.Equal(td.contents(t), before) {
				t.Errorf("Apply modified the device despite unavailable geometry")
			}
		})
	}
}

func TestApplySlotOutOfRange(t *testing.T) {
	td := newTestDevice(t, "4096", twoSlotHeader())
	before := td.contents(t)
	for _, slot := range []int{-1, osip.MaxImages, 100} {
		if err := td.updater(t).Apply(stitched(t, 1, 512), slot); !errors.Is(err, ErrSlot) {
			t.Errorf("Apply(slot %d): got err %v, want ErrSlot", slot, err)
		}
	}
	if !bytes.Equal(td.contents(t), before) {
		t.Errorf("Apply modified the device for an invalid slot")
	}
}

func TestApplyMissingDevice(t *testing.T) {
	td := newTestDevice(t, "4096", nil)
	u := td.updater(t)
	u.Store.DevicePath = filepath.Join(td.dir, "missing")
	if err := u.Apply(stitched(t, 1, 512), 0); err == nil {
		t.Errorf("Apply: expected error for missing device")
	}
}
