// Binary droidboot is a secondary bootloader for devices without removable
// media: it flashes stitched OS images into the OSIP table of the internal
// eMMC and boots the default kernel unless an operator intervenes.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gokrazy/droidboot/internal/droidboot"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	ctx, canc := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer canc()
	if err := droidboot.RootCmd().ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}
