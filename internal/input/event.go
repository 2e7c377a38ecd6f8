// Package input watches the evdev nodes under /dev/input and cancels
// autoboot as soon as an operator touches a key, mouse or touchscreen.
package input

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// Event types and codes from linux/input-event-codes.h.
const (
	EvSyn = 0x00
	EvKey = 0x01
	EvRel = 0x02
	EvAbs = 0x03

	// KeyDot is reported by the keypad controller of boards which have no
	// keypad attached.
	KeyDot = 52
)

// Event is struct input_event as read from an evdev node.
type Event struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// EventSize is the size of one Event record on the host.
var EventSize = binary.Size(Event{})

func (e Event) String() string {
	return fmt.Sprintf("type %#x, code %#x, value %#x", e.Type, e.Code, e.Value)
}

// ParseEvent decodes one record in host byte order.
func ParseEvent(b []byte) (Event, error) {
	var ev Event
	if len(b) != EventSize {
		return ev, fmt.Errorf("input event: got %d bytes, want %d", len(b), EventSize)
	}
	err := binary.Read(bytes.NewReader(b), binary.NativeEndian, &ev)
	return ev, err
}

// MarshalBinary encodes e in host byte order.
func (e Event) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.NativeEndian, e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Cancels reports whether ev shows operator presence.
func Cancels(ev Event) bool {
	switch ev.Type {
	case EvKey:
		return ev.Code != KeyDot
	case EvRel, EvAbs:
		// mouse or touchscreen
		return true
	default:
		return false
	}
}
