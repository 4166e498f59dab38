//go:build !unix

package store

import "os"

// lockFile is a no-op where flock(2) is unavailable; SQLite's own locking
// plus RetryWithBackoff covers concurrent migrations there.
func lockFile(string) (*os.File, error) { return nil, nil }

func unlockFile(*os.File) {}
