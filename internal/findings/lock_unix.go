//go:build unix

package findings

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockFile takes a blocking exclusive flock on f.
func lockFile(f *os.File) error {
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX)
		if err != unix.EINTR {
			return err
		}
	}
}

func unlockFile(f *os.File) {
	// Flock on unix doesn't return a meaningful error for LOCK_UN
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
