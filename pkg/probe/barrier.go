package probe

import (
	"strings"

	"golang.org/x/sys/unix"
)

// Barrier is one durability primitive. Barriers are composed into ordered
// lists and applied as a unit after the extend step and after each write
// group; which combinations actually survive a power cut is the question
// the whole experiment answers.
type Barrier int

const (
	// BarrierNone applies nothing; the baseline against which the others
	// are measured.
	BarrierNone Barrier = iota

	// BarrierFlushMapping msyncs the current mapping. A deliberate no-op
	// when no mapping exists or the file is still empty: it only has
	// meaning for the mapped write path.
	BarrierFlushMapping

	// BarrierFlushFile fsyncs the file. On some platforms this does not
	// flush the device's own write cache.
	BarrierFlushFile

	// BarrierFlushParentDir fsyncs the parent directory, making the
	// directory entry itself durable independent of file content.
	BarrierFlushParentDir

	// BarrierFullFlush is the strongest barrier available: F_FULLFSYNC
	// where the platform has it, forcing the device cache to drain. Used
	// to establish the ground-truth success case.
	BarrierFullFlush
)

// ParseBarrier maps a CLI token to a barrier.
func ParseBarrier(token string) (Barrier, error) {
	switch token {
	case "none":
		return BarrierNone, nil
	case "msync":
		return BarrierFlushMapping, nil
	case "fsync":
		return BarrierFlushFile, nil
	case "fsyncparent":
		return BarrierFlushParentDir, nil
	case "fullfsync":
		return BarrierFullFlush, nil
	default:
		return 0, configErrorf("unknown sync operation %q (valid: none, msync, fsync, fsyncparent, fullfsync)", token)
	}
}

func (b Barrier) String() string {
	switch b {
	case BarrierNone:
		return "none"
	case BarrierFlushMapping:
		return "msync"
	case BarrierFlushFile:
		return "fsync"
	case BarrierFlushParentDir:
		return "fsyncparent"
	case BarrierFullFlush:
		return "fullfsync"
	default:
		return "unknown"
	}
}

// apply blocks until the barrier's class of buffering is on stable storage.
// Any failure is fatal to the run: a barrier that errors cannot guarantee
// anything, and the experiment's results would be meaningless.
func (b Barrier) apply(h *Handle) error {
	switch b {
	case BarrierNone:
		return nil
	case BarrierFlushMapping:
		if h.data == nil || h.length == 0 {
			return nil
		}
		if err := unix.Msync(h.data, unix.MS_SYNC); err != nil {
			return setupError("msync", err)
		}
		return nil
	case BarrierFlushFile:
		if err := unix.Fsync(h.fd()); err != nil {
			return setupError("fsync", err)
		}
		return nil
	case BarrierFlushParentDir:
		if err := unix.Fsync(h.dirFd()); err != nil {
			return setupError("fsync parent directory", err)
		}
		return nil
	case BarrierFullFlush:
		if err := fullFlush(h.fd()); err != nil {
			return setupError("fullfsync", err)
		}
		return nil
	default:
		return setupError("barrier", configErrorf("invalid barrier %d", int(b)))
	}
}

// BarrierList is an ordered barrier combination, applied front to back.
type BarrierList []Barrier

// ParseBarrierList parses a comma-separated token list such as
// "msync,fullfsync". Order is preserved; it is part of what is under test.
func ParseBarrierList(s string) (BarrierList, error) {
	var list BarrierList
	for _, token := range strings.Split(s, ",") {
		b, err := ParseBarrier(strings.TrimSpace(token))
		if err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, nil
}

// Apply invokes each barrier in order against the handle, stopping at the
// first failure.
func (l BarrierList) Apply(h *Handle) error {
	for _, b := range l {
		if err := b.apply(h); err != nil {
			return err
		}
	}
	return nil
}

func (l BarrierList) String() string {
	tokens := make([]string, len(l))
	for i, b := range l {
		tokens[i] = b.String()
	}
	return strings.Join(tokens, ",")
}
