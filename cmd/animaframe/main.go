// Command animaframe plays and inspects animated GIF/WebP images.
package main

import (
	"log"
	"runtime"

	"animaframe/internal/cli"
)

func main() {
	// SDL2 requires every call to originate from the same OS thread.
	runtime.LockOSThread()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cli.Execute()
}
