package probe

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Layout selects which on-disk format the verifier reconstructs. The two
// formats are distinguishable in principle, but guessing would undermine
// the experiment, so the operator states which simulator policy produced
// the file.
type Layout int

const (
	// LayoutHeader is the single size-header format written by PolicyGrow.
	LayoutHeader Layout = iota

	// LayoutSlots is the record-table format written by PolicySlots.
	LayoutSlots
)

// ParseLayout maps the CLI token to a layout. Accepted tokens are "header"
// and "slots".
func ParseLayout(name string) (Layout, error) {
	switch name {
	case "header":
		return LayoutHeader, nil
	case "slots":
		return LayoutSlots, nil
	default:
		return 0, configErrorf("unknown layout %q (valid: header, slots)", name)
	}
}

func (l Layout) String() string {
	switch l {
	case LayoutHeader:
		return "header"
	case LayoutSlots:
		return "slots"
	default:
		return "unknown"
	}
}

// VerifyOptions configures a verification pass. StrictLag promotes a
// header lagging behind the actual file size from benign to failure; the
// default matches the write order the simulator uses (data first, header
// second), under which a lagging header is expected.
type VerifyOptions struct {
	Layout    Layout
	StrictLag bool
}

// Deviation is one unit of content that matches no committed version:
// enough context for a human to work out which barrier combination fell
// short.
type Deviation struct {
	// Slot is the slot index (slots layout) or page index (header layout).
	Slot int64

	// Offset is the byte offset of the offending content.
	Offset int64

	Expected string
	Observed string
}

// Report aggregates everything the verifier reconstructed from the
// surviving bytes. The verifier never throws information away: every
// deviation is kept, and the verdict is computed at the end rather than
// aborting on the first mismatch. The two exceptions are the hard
// corruption conditions, which invalidate everything after them.
type Report struct {
	Path      string
	Layout    Layout
	FileSize  int64
	StrictLag bool

	// Hard, when non-empty, names an unconditionally fatal condition: the
	// header makes a claim the data region cannot possibly satisfy.
	Hard string

	// ClaimedSize and HeaderLagging are only meaningful for LayoutHeader.
	ClaimedSize   uint64
	HeaderLagging bool

	Consistent int
	InFlight   int
	Unwritten  int
	Deviations []Deviation
}

// Mismatches is the number of units whose content matches no committed
// version.
func (r *Report) Mismatches() int {
	return len(r.Deviations)
}

// Success reports the overall verdict. In-flight-interrupted and unwritten
// slots are expected outcomes and never fail a run; hard corruption and
// mismatches always do.
func (r *Report) Success() bool {
	if r.Hard != "" || len(r.Deviations) > 0 {
		return false
	}
	if r.HeaderLagging && r.StrictLag {
		return false
	}
	return true
}

// Verify opens the file left behind by a (possibly interrupted) simulation
// and classifies its content with no side channel beyond the bytes
// themselves. The length reported by the filesystem is authoritative; the
// file's own header is untrusted input. The returned error covers only the
// verifier's own setup (open, stat, map); every judgement about the file
// is in the Report.
func Verify(path string, opts VerifyOptions) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, setupError("open", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, setupError("stat", err)
	}
	size := info.Size()

	report := &Report{
		Path:      path,
		Layout:    opts.Layout,
		FileSize:  size,
		StrictLag: opts.StrictLag,
	}

	if size < PageSize {
		report.Hard = fmt.Sprintf("file is %d bytes, smaller than one %d-byte page: not even the header survived", size, PageSize)
		return report, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, setupError("mmap", err)
	}
	defer unix.Munmap(data)

	switch opts.Layout {
	case LayoutHeader:
		verifyHeaderLayout(data, report)
	case LayoutSlots:
		verifySlotsLayout(data, report)
	default:
		return nil, configErrorf("invalid layout %d", int(opts.Layout))
	}
	return report, nil
}

// verifyHeaderLayout checks the single size-header format. Page 0 claims a
// total file size; body pages are walked from the tail toward page 1
// against their recomputed counter patterns.
func verifyHeaderLayout(data []byte, r *Report) {
	size := uint64(r.FileSize)
	claimed := wordAt(data[:8])
	r.ClaimedSize = claimed

	if !pageMatchesWord(data[:PageSize], size) {
		switch {
		case claimed > size:
			r.Hard = fmt.Sprintf("header claims %d bytes but only %d reached disk: the header committed without the body data it points at", claimed, size)
			return
		case claimed < PageSize:
			r.Hard = fmt.Sprintf("header claims %d bytes, an empty file", claimed)
			return
		default:
			// The header is from a smaller file. Fine as long as the body
			// it claims is intact.
			r.HeaderLagging = true
		}
	}

	pageCount := claimed / PageSize
	for i := pageCount - 1; i >= 1; i-- {
		pageIndex := pageCount - i
		offset := int64(pageIndex) * PageSize
		page := data[offset : offset+PageSize]
		if pageMatchesWord(page, i) {
			r.Consistent++
			continue
		}
		r.Deviations = append(r.Deviations, Deviation{
			Slot:     int64(pageIndex),
			Offset:   offset,
			Expected: fmt.Sprintf("0x%016x", i),
			Observed: fmt.Sprintf("0x%016x", wordAt(page[:8])),
		})
	}
}

// verifySlotsLayout checks the record-table format. Each committed record
// claims one data page; the only tolerated disagreement is the data page
// running exactly one version ahead of its record, the footprint of a
// crash between the data barrier and the record barrier.
func verifySlotsLayout(data []byte, r *Report) {
	size := uint64(r.FileSize)

	for slot := int64(0); slot < SlotCount; slot++ {
		rec := decodeSlotRecord(data[slot*slotRecordSize:])
		if !rec.committed() {
			// Zero-filled or torn record: this slot was never finalized.
			// Indeterminate, not an error.
			r.Unwritten++
			continue
		}

		// The record is untrusted input: DataOffset and SlotIndex can hold
		// anything, including values whose sum wraps uint64. Division keeps
		// the bounds check exact without ever computing an overflowing sum.
		if rec.DataOffset > size ||
			rec.SlotIndex > (size-rec.DataOffset)/PageSize ||
			size-rec.DataOffset-rec.SlotIndex*PageSize < PageSize {
			r.Hard = fmt.Sprintf("slot %d record claims a page at offset %d for slot index %d, which does not fit in the %d-byte file", slot, rec.DataOffset, rec.SlotIndex, size)
			return
		}

		offset := int64(rec.DataOffset + rec.SlotIndex*PageSize)
		page := data[offset : offset+PageSize]

		if rec.SlotIndex != uint64(slot) {
			r.Deviations = append(r.Deviations, Deviation{
				Slot:     slot,
				Offset:   offset,
				Expected: fmt.Sprintf("record for slot %d", slot),
				Observed: fmt.Sprintf("record names slot %d", rec.SlotIndex),
			})
			continue
		}

		switch {
		case pageMatchesPair(page, rec.SlotIndex, rec.Version):
			r.Consistent++
		case pageMatchesPair(page, rec.SlotIndex, rec.Version+1):
			// The next transaction's data write landed before its record
			// update. Expected under data-first ordering.
			r.InFlight++
		default:
			r.Deviations = append(r.Deviations, Deviation{
				Slot:     slot,
				Offset:   offset,
				Expected: fmt.Sprintf("{slot %d, version %d or %d}", slot, rec.Version, rec.Version+1),
				Observed: fmt.Sprintf("{slot %d, version %d}", wordAt(page[:8]), wordAt(page[8:16])),
			})
		}
	}
}
