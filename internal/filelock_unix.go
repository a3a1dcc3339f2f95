//go:build linux || darwin

package internal

import (
	"os"
	"syscall"
)

// lockFile takes an exclusive non-blocking advisory lock on f. Other
// processes can still read; a second writer gets EWOULDBLOCK.
func lockFile(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
}

func unlockFile(f *os.File) {
	syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}
