// Command sendtobottom pushes one window beneath every other top-level
// window. It takes the native handle in hex and reports through its exit
// code: 1 usage, 2 invalid handle, 3 restack failure.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"desk-overlay/internal/native"
)

const (
	exitOK = iota
	exitUsage
	exitInvalidHandle
	exitRestackFailed
)

func main() {
	ops, err := native.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sendtobottom: %v\n", err)
		os.Exit(exitRestackFailed)
	}
	os.Exit(run(os.Args[1:], ops, os.Stderr))
}

func run(args []string, ops native.Ops, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "usage: sendtobottom <handle-hex>")
		return exitUsage
	}

	h, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(args[0]), "0x"), 16, 64)
	if err != nil || h == 0 {
		fmt.Fprintf(stderr, "sendtobottom: invalid handle %q\n", args[0])
		return exitInvalidHandle
	}
	handle := uintptr(h)
	if !ops.IsAlive(handle) {
		fmt.Fprintf(stderr, "sendtobottom: no window %#x\n", handle)
		return exitInvalidHandle
	}

	// best effort: a topmost window cannot be moved below normal ones
	_ = ops.SetAlwaysOnTop(handle, false)
	if err := ops.Lower(handle); err != nil {
		fmt.Fprintf(stderr, "sendtobottom: %v\n", err)
		return exitRestackFailed
	}
	return exitOK
}
