//go:build !linux || !amd64

package main

import (
	"fmt"
	"os"
	"runtime"
)

// The translator emits amd64 code and maps it with Linux mmap; there is
// no interpreter to fall back to on other platforms.
func main() {
	fmt.Fprintf(os.Stderr, "chip86: %s/%s is not supported, the dynarec requires linux/amd64\n",
		runtime.GOOS, runtime.GOARCH)
	os.Exit(1)
}
