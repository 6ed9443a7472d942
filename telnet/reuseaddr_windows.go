//go:build windows

package telnet

import "syscall"

// setReuseAddr lets the command port rebind right after a restart.
func setReuseAddr(fd uintptr) error {
	return syscall.SetsockoptInt(syscall.Handle(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
}
