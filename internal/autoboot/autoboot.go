// Package autoboot implements the countdown after which droidboot boots the
// default kernel unless an operator shows up first.
package autoboot

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// Flag is the process-wide autoboot switch. It only ever goes from enabled
// to disabled; the timer polls it.
type Flag struct {
	disabled atomic.Bool

	// Logf defaults to log.Printf.
	Logf func(format string, v ...interface{})
}

// NewFlag returns a Flag in the given initial state.
func NewFlag(enabled bool) *Flag {
	f := &Flag{}
	f.disabled.Store(!enabled)
	return f
}

func (f *Flag) Enabled() bool { return !f.disabled.Load() }

// Disable turns autoboot off. It returns true for the call which performed
// the transition.
func (f *Flag) Disable() bool {
	if !f.disabled.CompareAndSwap(false, true) {
		return false
	}
	if f.Logf != nil {
		f.Logf("Autoboot disabled.")
	} else {
		log.Printf("Autoboot disabled.")
	}
	return true
}

// Timer counts down Delay ticks and then calls Boot, unless Flag is
// disabled at one of the checks in between.
type Timer struct {
	Flag  *Flag
	Delay int

	// Tick is the interval between checks, one second if zero.
	Tick time.Duration

	// Boot typically does not return.
	Boot func()

	// Logf defaults to log.Printf.
	Logf func(format string, v ...interface{})
}

func (t *Timer) logf(format string, v ...interface{}) {
	if t.Logf != nil {
		t.Logf(format, v...)
		return
	}
	log.Printf(format, v...)
}

// Run blocks until the countdown fired (returns true), was canceled via the
// flag or ctx (returns false).
func (t *Timer) Run(ctx context.Context) bool {
	if !t.Flag.Enabled() {
		return false
	}
	tick := t.Tick
	if tick == 0 {
		tick = time.Second
	}
	for remaining := t.Delay; remaining > 0; remaining-- {
		t.logf("Automatic boot in %d seconds.", remaining)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(tick):
		}
		if !t.Flag.Enabled() {
			return false
		}
	}
	t.Boot()
	return true
}
