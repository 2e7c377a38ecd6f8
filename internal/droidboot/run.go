package droidboot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/gokrazy/droidboot/internal/configflag"
	"github.com/gokrazy/droidboot/internal/layout"
	"github.com/gokrazy/droidboot/internal/version"
	"golang.org/x/sync/errgroup"
)

type runImplConfig struct {
	console string
}

var runImpl runImplConfig

func (r *runImplConfig) run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	cfg, err := configflag.Config()
	if err != nil {
		return err
	}
	log.Printf("DROIDBOOT %s START", version.ReadBrief())

	layoutPath := cfg.LayoutPath
	if len(args) > 0 {
		layoutPath = args[0]
	}
	log.Printf("Reading disk layout from %s", layoutPath)
	lay, err := layout.Load(layoutPath)
	if err != nil {
		return err
	}
	lay.Dump(log.Writer())

	in, out := stdin, stdout
	if r.console != "" {
		tty, err := os.OpenFile(r.console, os.O_RDWR, 0)
		if err != nil {
			return err
		}
		defer tty.Close()
		in, out = tty, tty
	}

	log.Printf("Listening for flashing commands on %s", consoleName(r.console))
	return newBootloader(cfg, lay).run(ctx, in, out)
}

// errNoBoot is returned by run when the console is gone and autoboot is
// either disabled or returned without handing off to a kernel.
var errNoBoot = errors.New("flashing protocol exited and the default kernel did not boot")

// run starts the autoboot timer and the input listener, then serves the
// console until in is exhausted. The timer is only stopped by the
// autoboot flag or by ctx (process shutdown), so run waits for it after
// the console is gone.
func (b *bootloader) run(ctx context.Context, in io.Reader, out io.Writer) error {
	if c, ok := in.(io.Closer); ok {
		// Unblock a console waiting for its next line.
		stop := context.AfterFunc(ctx, func() { c.Close() })
		defer stop()
	}

	var eg errgroup.Group
	booted := make(chan bool, 1)
	eg.Go(func() error {
		booted <- b.timer().Run(ctx)
		return nil
	})
	listenCtx, cancelListen := context.WithCancel(ctx)
	defer cancelListen()
	eg.Go(func() error {
		if err := b.listener().Run(listenCtx); err != nil {
			log.Printf("input listener: %v", err)
		}
		return nil
	})

	serveErr := b.server().Serve(ctx, in, out)
	if err := ctx.Err(); err != nil {
		cancelListen()
		eg.Wait()
		return err
	}
	if serveErr != nil {
		log.Printf("flashing protocol: %v", serveErr)
	}
	if b.autoboot.Enabled() {
		log.Printf("console closed, waiting for autoboot")
	}
	ok := <-booted
	cancelListen()
	eg.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("autoboot: %w", errNoBoot)
	}
	return errNoBoot
}

func consoleName(console string) string {
	if console == "" {
		return "stdin"
	}
	return console
}
