// Package layout describes the partitions of the internal disk and mounts
// them on demand.
package layout

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

// DefaultMountRoot is where partitions without an explicit MountPoint are
// mounted.
const DefaultMountRoot = "/mnt"

type Partition struct {
	Name   string
	Device string
	// Type is the file system type passed to mount(2), e.g. ext4 or vfat.
	Type       string
	MountPoint string `json:",omitempty"`
}

func (p *Partition) mountPoint() string {
	if p.MountPoint != "" {
		return p.MountPoint
	}
	return filepath.Join(DefaultMountRoot, p.Name)
}

type Layout struct {
	Partitions []Partition
}

// Load reads a JSON layout file.
func Load(path string) (*Layout, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var l Layout
	if err := json.Unmarshal(b, &l); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	seen := make(map[string]bool)
	for _, p := range l.Partitions {
		if p.Name == "" || p.Device == "" {
			return nil, fmt.Errorf("%s: partition %+v: Name and Device are required", path, p)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("%s: duplicate partition %q", path, p.Name)
		}
		seen[p.Name] = true
	}
	return &l, nil
}

func (l *Layout) FindPartition(name string) (*Partition, error) {
	for i := range l.Partitions {
		if l.Partitions[i].Name == name {
			return &l.Partitions[i], nil
		}
	}
	return nil, fmt.Errorf("partition %q not found in layout", name)
}

// Mount mounts p read-only and returns the mount point.
func (l *Layout) Mount(p *Partition) (string, error) {
	mp := p.mountPoint()
	if err := os.MkdirAll(mp, 0755); err != nil {
		return "", err
	}
	log.Printf("mounting %s (%s) on %s", p.Device, p.Type, mp)
	if err := mount(p.Device, mp, p.Type); err != nil {
		return "", fmt.Errorf("mount %s on %s: %w", p.Device, mp, err)
	}
	return mp, nil
}

func (l *Layout) Dump(w io.Writer) {
	for _, p := range l.Partitions {
		fmt.Fprintf(w, "%-12s %-24s %-6s %s\n", p.Name, p.Device, p.Type, p.mountPoint())
	}
}
