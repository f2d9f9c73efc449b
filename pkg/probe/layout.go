// layout.go defines the two on-disk layouts the probe writes and the
// verifier reconstructs.
//
// Header layout (the original single-header experiment):
//
//	Page 0:      the total file size, as a little-endian u64 tiled across
//	             the whole page.
//	Page p >= 1: the counter (pageCount - p), tiled the same way.
//
// Slots layout (transactional per-slot updates):
//
//	Page 0:      a table of SlotCount fixed-width records, one per slot,
//	             at slotIndex * slotRecordSize; the rest of the page is
//	             unused.
//	Data pages:  at dataOffset + slotIndex*PageSize, filled with the
//	             {slotIndex, version} pair tiled as two little-endian u64s.
//
// Pages carry a repeating pattern rather than arbitrary payload so that a
// torn write shows up as a pattern mismatch with no checksum needed: any
// truncated prefix of the intended write sequence still decodes to one of
// the verifier's classifications.
package probe

import (
	"bytes"
	"encoding/binary"
)

const (
	// PageSize is the unit of both file growth and pattern writes.
	PageSize = 4096

	// SlotCount is the number of header records in the slots layout.
	SlotCount = 16

	slotRecordSize = 32

	// slotDataStart is where slot data pages begin: the whole first page
	// is reserved for the record table so data stays page-aligned.
	slotDataStart = PageSize
)

// slotMarker is the sentinel distinguishing a fully written record from a
// zero-filled or torn one. All-ones cannot be produced by a partial write
// of zeros.
const slotMarker = ^uint64(0)

// fillWordPattern tiles an 8-byte little-endian word across buf, the Go
// spelling of memset_pattern8. len(buf) must be a multiple of 8.
func fillWordPattern(buf []byte, word uint64) {
	binary.LittleEndian.PutUint64(buf[:8], word)
	for n := 8; n < len(buf); n *= 2 {
		copy(buf[n:], buf[:n])
	}
}

// fillPairPattern tiles the {slot, version} pair across buf as two
// little-endian u64s. len(buf) must be a multiple of 16.
func fillPairPattern(buf []byte, slot, version uint64) {
	binary.LittleEndian.PutUint64(buf[0:8], slot)
	binary.LittleEndian.PutUint64(buf[8:16], version)
	for n := 16; n < len(buf); n *= 2 {
		copy(buf[n:], buf[:n])
	}
}

func wordAt(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

// slotRecord is one fixed-width header record in the slots layout. It
// claims the expected content of exactly one data page.
type slotRecord struct {
	DataOffset uint64
	SlotIndex  uint64
	Version    uint64
	Marker     uint64
}

func (r slotRecord) encode(b []byte) {
	binary.LittleEndian.PutUint64(b[0:8], r.DataOffset)
	binary.LittleEndian.PutUint64(b[8:16], r.SlotIndex)
	binary.LittleEndian.PutUint64(b[16:24], r.Version)
	binary.LittleEndian.PutUint64(b[24:32], r.Marker)
}

func decodeSlotRecord(b []byte) slotRecord {
	return slotRecord{
		DataOffset: binary.LittleEndian.Uint64(b[0:8]),
		SlotIndex:  binary.LittleEndian.Uint64(b[8:16]),
		Version:    binary.LittleEndian.Uint64(b[16:24]),
		Marker:     binary.LittleEndian.Uint64(b[24:32]),
	}
}

// committed reports whether the record was fully written: a crash can
// leave the record zero-filled or torn, and neither carries the marker.
func (r slotRecord) committed() bool {
	return r.Marker == slotMarker
}

// pageMatchesWord reports whether page is exactly the tiling of word.
func pageMatchesWord(page []byte, word uint64) bool {
	expected := make([]byte, len(page))
	fillWordPattern(expected, word)
	return bytes.Equal(page, expected)
}

// pageMatchesPair reports whether page is exactly the tiling of the
// {slot, version} pair.
func pageMatchesPair(page []byte, slot, version uint64) bool {
	expected := make([]byte, len(page))
	fillPairPattern(expected, slot, version)
	return bytes.Equal(page, expected)
}
