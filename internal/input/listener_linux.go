package input

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// fdSetSize is FD_SETSIZE of select(2).
const fdSetSize = 1024

// Listener waits for the first qualifying input event on any character
// device in Dir, calls Cancel and returns. It is not restarted.
type Listener struct {
	Dir    string
	Cancel func()

	// Logf defaults to log.Printf.
	Logf func(format string, v ...interface{})
}

func (l *Listener) logf(format string, v ...interface{}) {
	if l.Logf != nil {
		l.Logf(format, v...)
		return
	}
	log.Printf(format, v...)
}

// Run returns nil when no input device could be opened, when Cancel was
// called, or when ctx is done.
func (l *Listener) Run(ctx context.Context) error {
	l.logf("begin input listener")
	defer l.logf("exit input listener")

	fds := l.open()
	defer func() {
		for _, fd := range fds {
			unix.Close(fd)
		}
	}()
	if len(fds) == 0 {
		l.logf("Unable to open any input device.")
		return nil
	}
	return l.watch(ctx, fds)
}

// open returns descriptors for all character devices in l.Dir which could
// be opened.
func (l *Listener) open() []int {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		l.logf("%v", err)
		return nil
	}
	var fds []int
	for _, ent := range entries {
		fn := filepath.Join(l.Dir, ent.Name())
		st, err := os.Stat(fn)
		if err != nil {
			l.logf("%v", err)
			continue
		}
		if st.Mode()&os.ModeCharDevice == 0 {
			continue
		}
		fd, err := unix.Open(fn, unix.O_RDONLY|unix.O_CLOEXEC, 0)
		if err != nil {
			l.logf("Unable to open %s: %v", fn, err)
			continue
		}
		if fd >= fdSetSize {
			l.logf("Unable to watch %s: fd=%d exceeds FD_SETSIZE", fn, fd)
			unix.Close(fd)
			continue
		}
		l.logf("Opened %s. fd=%d", fn, fd)
		fds = append(fds, fd)
	}
	return fds
}

// watch does not close fds.
func (l *Listener) watch(ctx context.Context, fds []int) error {
	// ctx cancellation wakes up select(2) through this pipe.
	wake := make([]int, 2)
	if err := unix.Pipe2(wake, unix.O_CLOEXEC); err != nil {
		return err
	}
	defer unix.Close(wake[0])
	defer unix.Close(wake[1])
	stop := context.AfterFunc(ctx, func() {
		unix.Write(wake[1], []byte{0})
	})
	defer stop()

	live := append([]int(nil), fds...)
	buf := make([]byte, EventSize)
	for len(live) > 0 {
		var rfds unix.FdSet
		rfds.Zero()
		rfds.Set(wake[0])
		maxFd := wake[0]
		for _, fd := range live {
			rfds.Set(fd)
			if fd > maxFd {
				maxFd = fd
			}
		}
		n, err := unix.Select(maxFd+1, &rfds, nil, nil, nil)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}
		l.logf("select returns %d", n)
		if rfds.IsSet(wake[0]) {
			return nil
		}

		remaining := live[:0]
		for _, fd := range live {
			if !rfds.IsSet(fd) {
				remaining = append(remaining, fd)
				continue
			}
			n, err := unix.Read(fd, buf)
			if n <= 0 && err != unix.EAGAIN && err != unix.EINTR {
				// Unplugged device or closed writer: readable forever.
				l.logf("Dropping fd=%d: n=%d, err=%v", fd, n, err)
				continue
			}
			remaining = append(remaining, fd)
			if n != len(buf) {
				l.logf("Unable to read event from fd=%d, n=%d, err=%v", fd, n, err)
				continue
			}
			ev, err := ParseEvent(buf)
			if err != nil {
				l.logf("fd=%d: %v", fd, err)
				continue
			}
			l.logf("read from fd=%d. Event %v", fd, ev)
			if Cancels(ev) {
				l.Cancel()
				return nil
			}
		}
		live = remaining
	}
	l.logf("all input devices went away")
	return nil
}
