package probe

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Handle owns one open test file: its descriptor, the parent directory's
// descriptor, the current logical length, and (for the mapped write path)
// the active mapping.
//
// Invariants: length always equals the last successful Extend, and when a
// mapping exists it covers exactly [0, length). The parent-directory
// descriptor is opened once at creation and kept for the handle's lifetime
// so the directory entry can be barriered independent of file content.
type Handle struct {
	file      *os.File
	dir       *os.File
	path      string
	writePath WritePath
	length    int64
	data      []byte // active mapping, mapped path only
}

// Create opens dir/name exclusively and fsyncs the parent directory so the
// entry itself is durable before any data is written. An existing file is
// a setup error: the experiment requires an unambiguous fresh file.
func Create(dir, name string, writePath WritePath) (*Handle, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, setupError("create working directory", err)
	}

	d, err := os.Open(dir)
	if err != nil {
		return nil, setupError("open working directory", err)
	}

	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		d.Close()
		return nil, setupError("create test file", err)
	}

	if err := unix.Fsync(int(d.Fd())); err != nil {
		f.Close()
		d.Close()
		return nil, setupError("fsync working directory", err)
	}

	return &Handle{
		file:      f,
		dir:       d,
		path:      path,
		writePath: writePath,
	}, nil
}

// Extend grows the file to newLength with a length-only truncate. For the
// mapped write path the old mapping (if any) is released and a new one
// created over the full new length; any prior mapping is invalid the
// moment the length changes. Extend never shrinks.
func (h *Handle) Extend(newLength int64) error {
	if newLength < h.length {
		return setupError("extend", fmt.Errorf("length %d would shrink file of length %d", newLength, h.length))
	}

	if err := h.file.Truncate(newLength); err != nil {
		return setupError("truncate", err)
	}

	if h.writePath == WritePathMapped {
		if h.data != nil {
			if err := unix.Munmap(h.data); err != nil {
				return setupError("munmap", err)
			}
			h.data = nil
		}
		data, err := unix.Mmap(h.fd(), 0, int(newLength), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			return setupError("mmap", err)
		}
		h.data = data
	}

	h.length = newLength
	return nil
}

// Write makes p visible to the kernel's page cache at offset. The mapped
// path is a pure memory copy; the positional path is one pwrite, and a
// short write is treated as a failure.
func (h *Handle) Write(offset int64, p []byte) error {
	if offset < 0 || offset+int64(len(p)) > h.length {
		return setupError("write", fmt.Errorf("range [%d, %d) outside file of length %d", offset, offset+int64(len(p)), h.length))
	}

	switch h.writePath {
	case WritePathMapped:
		copy(h.data[offset:], p)
		return nil
	case WritePathPositional:
		n, err := unix.Pwrite(h.fd(), p, offset)
		if err != nil {
			return setupError("pwrite", err)
		}
		if n != len(p) {
			return setupError("pwrite", fmt.Errorf("short write: %d of %d bytes at offset %d", n, len(p), offset))
		}
		return nil
	default:
		return setupError("write", fmt.Errorf("invalid write path %d", int(h.writePath)))
	}
}

// Length returns the last successfully committed extension.
func (h *Handle) Length() int64 {
	return h.length
}

// Path returns the test file's path.
func (h *Handle) Path() string {
	return h.path
}

func (h *Handle) fd() int {
	return int(h.file.Fd())
}

func (h *Handle) dirFd() int {
	return int(h.dir.Fd())
}

// Close releases the mapping and both descriptors. Only the clean exit
// path gets here; a power cut tears the handle down uncontrolled, which is
// the point.
func (h *Handle) Close() error {
	var firstErr error

	if h.data != nil {
		if err := unix.Munmap(h.data); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("munmap: %w", err)
		}
		h.data = nil
	}
	if err := h.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close file: %w", err)
	}
	if err := h.dir.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close directory: %w", err)
	}

	return firstErr
}
