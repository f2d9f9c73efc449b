//go:build darwin

package probe

import "golang.org/x/sys/unix"

// fullFlush forces the storage device's write cache to drain. fsync on
// darwin only pushes data to the drive, not through its cache; F_FULLFSYNC
// is the documented way to get all the way to stable storage.
func fullFlush(fd int) error {
	_, err := unix.FcntlInt(uintptr(fd), unix.F_FULLFSYNC, 0)
	return err
}
