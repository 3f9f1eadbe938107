//go:build windows

package main

import (
	"syscall"
	"unsafe"
)

var procGetNumberOfEvents = syscall.NewLazyDLL("kernel32.dll").NewProc("GetNumberOfConsoleInputEvents")

// stdinHasData returns true if there are pending input events in the
// Windows console input buffer, detecting pasted multi-line input that
// hasn't been consumed by ReadString yet.
func stdinHasData() bool {
	h, err := syscall.GetStdHandle(syscall.STD_INPUT_HANDLE)
	if err != nil {
		return false
	}
	var count uint32
	r, _, _ := procGetNumberOfEvents.Call(uintptr(h), uintptr(unsafe.Pointer(&count)))
	if r == 0 {
		return false
	}
	return count > 0
}
