//go:build !unix

package findings

import "os"

// lockFile is a no-op where flock is unavailable; O_APPEND still keeps each
// single write intact.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) {}
