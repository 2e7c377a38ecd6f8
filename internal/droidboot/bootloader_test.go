package droidboot

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gokrazy/droidboot/internal/config"
	"github.com/gokrazy/droidboot/internal/layout"
	"github.com/gokrazy/droidboot/internal/osip"
	"github.com/gokrazy/droidboot/internal/stitch"
)

type fakeLayout struct{ mounts int }

func (f *fakeLayout) FindPartition(name string) (*layout.Partition, error) {
	return &layout.Partition{Name: name, Device: "/dev/mmcblk0p1", Type: "ext4"}, nil
}

func (f *fakeLayout) Mount(p *layout.Partition) (string, error) {
	f.mounts++
	return "/mnt/" + p.Name, nil
}

type fakeHandoff struct{ kernels []string }

func (f *fakeHandoff) Kexec(kernel, ramdisk, cmdline string) error {
	f.kernels = append(f.kernels, kernel)
	return nil
}

func newTestBootloader(t *testing.T) (*bootloader, *fakeHandoff) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DevicePath = filepath.Join(dir, "mmcblk0")
	cfg.GeometryPath = filepath.Join(dir, "erase_size")
	cfg.ScratchSize = 64 * 1024
	if err := os.WriteFile(cfg.DevicePath, make([]byte, 64*1024), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.GeometryPath, []byte("4096\n"), 0644); err != nil {
		t.Fatal(err)
	}
	hdr := &osip.Header{Sig: osip.Signature, NumImages: 2, HeaderSize: osip.HeaderSize}
	hdr.Desc[0].LogicalStartBlock = 100
	hdr.Desc[1].LogicalStartBlock = 500
	if err := (&osip.Store{DevicePath: cfg.DevicePath}).WriteHeader(hdr); err != nil {
		t.Fatal(err)
	}
	bl := newBootloader(cfg, &fakeLayout{})
	handoff := &fakeHandoff{}
	bl.launcher.Handoff = handoff
	bl.autoboot.Logf = t.Logf
	bl.updater.Logf = t.Logf
	return bl, handoff
}

func writeImage(t *testing.T, pages uint32) string {
	t.Helper()
	img, err := stitch.Stitch(osip.OSII{OSRevMajor: 1, SizeOfOSImage: pages}, make([]byte, pages*512))
	if err != nil {
		t.Fatal(err)
	}
	fn := filepath.Join(t.TempDir(), "boot.bin")
	if err := os.WriteFile(fn, img, 0644); err != nil {
		t.Fatal(err)
	}
	return fn
}

func serve(t *testing.T, bl *bootloader, input string) string {
	t.Helper()
	var out bytes.Buffer
	srv := bl.server()
	srv.Logf = t.Logf
	if err := srv.Serve(context.Background(), strings.NewReader(input), &out); err != nil {
		t.Fatal(err)
	}
	return out.String()
}

func TestFlashCommand(t *testing.T) {
	bl, _ := newTestBootloader(t)
	if !bl.autoboot.Enabled() {
		t.Fatalf("autoboot not enabled by default")
	}
	out := serve(t, bl, "flash 1 "+writeImage(t, 20)+"\ndump\n")
	if bl.autoboot.Enabled() {
		t.Errorf("autoboot still enabled after a flashing command")
	}
	for _, want := range []string{
		"OKAY wrote ",
		" to slot 1\n",
		"images: 1\n",
		"image 0: rev 0.0 start block 0x64",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}

	hdr, err := bl.updater.Store.ReadHeader(osip.Primary)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := hdr.Desc[1].SizeOfOSImage, uint32(2561); got != want {
		t.Errorf("SizeOfOSImage: got %d, want %d", got, want)
	}
}

func TestFlashCommandErrors(t *testing.T) {
	bl, _ := newTestBootloader(t)
	img := writeImage(t, 1)
	big := writeImage(t, 200) // exceeds the 64 KiB scratch buffer
	out := serve(t, bl, strings.Join([]string{
		"flash",
		"flash x " + img,
		"flash 9 " + img,
		"flash 0 " + filepath.Join(t.TempDir(), "missing.bin"),
		"flash 0 " + big,
	}, "\n"))
	if got, want := strings.Count(out, "FAIL"), 5; got != want {
		t.Errorf("got %d FAIL lines, want %d:\n%s", got, want, out)
	}
	if strings.Contains(out, "OKAY") {
		t.Errorf("unexpected OKAY:\n%s", out)
	}
}

func TestGetvar(t *testing.T) {
	bl, _ := newTestBootloader(t)
	out := serve(t, bl, "getvar page-size\ngetvar block-size\ngetvar slots\ngetvar bogus\n")
	want := "OKAY 4\nOKAY 4\nOKAY 7\nFAIL unknown variable \"bogus\"\n"
	if out != want {
		t.Errorf("getvar output: got %q, want %q", out, want)
	}
}

func TestBootCommand(t *testing.T) {
	bl, handoff := newTestBootloader(t)
	out := serve(t, bl, "boot\ncontinue\n")
	if out != "OKAY\nOKAY\n" {
		t.Errorf("boot output: got %q", out)
	}
	if got, want := len(handoff.kernels), 2; got != want {
		t.Fatalf("Kexec called %d times, want %d", got, want)
	}
	if got, want := handoff.kernels[0], "/mnt/boot/kernel"; got != want {
		t.Errorf("kernel path: got %q, want %q", got, want)
	}
}

func TestWriteBackup(t *testing.T) {
	hdr := &osip.Header{Sig: osip.Signature, NumImages: 1}
	hdr.Desc[0].LogicalStartBlock = 0x42
	fn := filepath.Join(t.TempDir(), "osip.bin")
	if err := writeBackup(fn, hdr); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(fn)
	if err != nil {
		t.Fatal(err)
	}
	var got osip.Header
	if err := got.UnmarshalBinary(b); err != nil {
		t.Fatal(err)
	}
	if got != *hdr {
		t.Errorf("backup round trip: got %+v, want %+v", got, *hdr)
	}
}
