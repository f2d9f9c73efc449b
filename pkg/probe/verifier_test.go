package probe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// growImage builds a quiescent single-header file: page 0 tiles the total
// size, body page p tiles (pageCount - p).
func growImage(pageCount int) []byte {
	data := make([]byte, pageCount*PageSize)
	fillWordPattern(data[:PageSize], uint64(pageCount*PageSize))
	for p := 1; p < pageCount; p++ {
		fillWordPattern(data[p*PageSize:(p+1)*PageSize], uint64(pageCount-p))
	}
	return data
}

// slotsImage builds a quiescent slots file with every slot at the given
// version, data pages in the region starting at dataOffset.
func slotsImage(dataOffset int64, version uint64) []byte {
	data := make([]byte, dataOffset+SlotCount*PageSize)
	for slot := int64(0); slot < SlotCount; slot++ {
		rec := slotRecord{
			DataOffset: uint64(dataOffset),
			SlotIndex:  uint64(slot),
			Version:    version,
			Marker:     slotMarker,
		}
		rec.encode(data[slot*slotRecordSize:])
		fillPairPattern(data[dataOffset+slot*PageSize:dataOffset+(slot+1)*PageSize], uint64(slot), version)
	}
	return data
}

func writeImage(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.dat")
	require.NoError(t, os.WriteFile(path, data, 0o666))
	return path
}

func TestVerifyHeaderConsistent(t *testing.T) {
	path := writeImage(t, growImage(10))

	report, err := Verify(path, VerifyOptions{Layout: LayoutHeader})
	require.NoError(t, err)
	require.True(t, report.Success())
	require.Equal(t, uint64(10*PageSize), report.ClaimedSize)
	require.Equal(t, 9, report.Consistent)
	require.False(t, report.HeaderLagging)
}

func TestVerifyHeaderAheadIsHardCorruption(t *testing.T) {
	// The header committed claiming 20 pages, but the body data past 10
	// pages never reached disk.
	data := growImage(10)
	fillWordPattern(data[:PageSize], uint64(20*PageSize))
	path := writeImage(t, data)

	report, err := Verify(path, VerifyOptions{Layout: LayoutHeader})
	require.NoError(t, err)
	require.False(t, report.Success())
	require.NotEmpty(t, report.Hard)
}

func TestVerifyHeaderClaimsEmptyIsHardCorruption(t *testing.T) {
	data := growImage(10)
	fillWordPattern(data[:PageSize], 0)
	path := writeImage(t, data)

	report, err := Verify(path, VerifyOptions{Layout: LayoutHeader})
	require.NoError(t, err)
	require.False(t, report.Success())
	require.NotEmpty(t, report.Hard)
}

func TestVerifyHeaderLagIsBenign(t *testing.T) {
	// A crash landed after a 20-page extension but before the new header
	// committed; the 10-page transaction's header and body are intact.
	data := growImage(10)
	data = append(data, make([]byte, 10*PageSize)...)
	path := writeImage(t, data)

	report, err := Verify(path, VerifyOptions{Layout: LayoutHeader})
	require.NoError(t, err)
	require.True(t, report.Success())
	require.True(t, report.HeaderLagging)
	require.Equal(t, uint64(10*PageSize), report.ClaimedSize)
	require.Equal(t, 9, report.Consistent)
}

func TestVerifyHeaderLagFailsUnderStrictLag(t *testing.T) {
	data := growImage(10)
	data = append(data, make([]byte, 10*PageSize)...)
	path := writeImage(t, data)

	report, err := Verify(path, VerifyOptions{Layout: LayoutHeader, StrictLag: true})
	require.NoError(t, err)
	require.False(t, report.Success())
	require.Empty(t, report.Hard)
	require.Empty(t, report.Deviations)
}

func TestVerifyHeaderBodyMismatch(t *testing.T) {
	// Claimed size intact, but one body page holds content matching no
	// committed version: a torn or lost write.
	data := growImage(10)
	fillWordPattern(data[4*PageSize:5*PageSize], 77)
	path := writeImage(t, data)

	report, err := Verify(path, VerifyOptions{Layout: LayoutHeader})
	require.NoError(t, err)
	require.False(t, report.Success())
	require.Empty(t, report.Hard)
	require.Len(t, report.Deviations, 1)

	d := report.Deviations[0]
	require.Equal(t, int64(4), d.Slot)
	require.Equal(t, int64(4*PageSize), d.Offset)
	require.Equal(t, 8, report.Consistent)
}

func TestVerifyTruncatedBelowOnePage(t *testing.T) {
	path := writeImage(t, make([]byte, PageSize/2))

	report, err := Verify(path, VerifyOptions{Layout: LayoutHeader})
	require.NoError(t, err)
	require.False(t, report.Success())
	require.NotEmpty(t, report.Hard)
}

func TestVerifySlotsConsistent(t *testing.T) {
	path := writeImage(t, slotsImage(slotDataStart, 4))

	report, err := Verify(path, VerifyOptions{Layout: LayoutSlots})
	require.NoError(t, err)
	require.True(t, report.Success())
	require.Equal(t, SlotCount, report.Consistent)
	require.Zero(t, report.InFlight)
	require.Zero(t, report.Unwritten)
}

func TestVerifySlotsInFlightInterrupted(t *testing.T) {
	// Slot 3's data page committed at version 3 while its record still
	// says version 2: the footprint of a crash between the data barrier
	// and the record barrier. Benign.
	data := slotsImage(slotDataStart, 2)
	fillPairPattern(data[slotDataStart+3*PageSize:slotDataStart+4*PageSize], 3, 3)
	path := writeImage(t, data)

	report, err := Verify(path, VerifyOptions{Layout: LayoutSlots})
	require.NoError(t, err)
	require.True(t, report.Success())
	require.Equal(t, SlotCount-1, report.Consistent)
	require.Equal(t, 1, report.InFlight)
}

func TestVerifySlotsUnwrittenSkipped(t *testing.T) {
	// Slot 7's record was never finalized: zero-filled, no marker.
	data := slotsImage(slotDataStart, 2)
	copy(data[7*slotRecordSize:8*slotRecordSize], make([]byte, slotRecordSize))
	path := writeImage(t, data)

	report, err := Verify(path, VerifyOptions{Layout: LayoutSlots})
	require.NoError(t, err)
	require.True(t, report.Success())
	require.Equal(t, SlotCount-1, report.Consistent)
	require.Equal(t, 1, report.Unwritten)
}

func TestVerifySlotsMismatch(t *testing.T) {
	// Slot 5's data page is two versions ahead: outside the tolerated
	// {version, version+1} set.
	data := slotsImage(slotDataStart, 2)
	fillPairPattern(data[slotDataStart+5*PageSize:slotDataStart+6*PageSize], 5, 4)
	path := writeImage(t, data)

	report, err := Verify(path, VerifyOptions{Layout: LayoutSlots})
	require.NoError(t, err)
	require.False(t, report.Success())
	require.Len(t, report.Deviations, 1)
	require.Equal(t, int64(5), report.Deviations[0].Slot)
}

func TestVerifySlotsRecordPastFileIsHardCorruption(t *testing.T) {
	// A committed record points at a page beyond what reached disk: the
	// record barrier overtook the extension.
	data := slotsImage(slotDataStart, 2)
	rec := slotRecord{
		DataOffset: uint64(len(data)),
		SlotIndex:  0,
		Version:    1,
		Marker:     slotMarker,
	}
	rec.encode(data[0:slotRecordSize])
	path := writeImage(t, data)

	report, err := Verify(path, VerifyOptions{Layout: LayoutSlots})
	require.NoError(t, err)
	require.False(t, report.Success())
	require.NotEmpty(t, report.Hard)
}

func TestVerifySlotsNearMaxOffsetIsHardCorruption(t *testing.T) {
	// A garbage record whose claimed offset sits near the top of the
	// uint64 range. Naive bounds arithmetic wraps and reads out of range;
	// the verifier must classify this as hard corruption instead.
	data := slotsImage(slotDataStart, 2)
	rec := slotRecord{
		DataOffset: ^uint64(0) - PageSize + 1,
		SlotIndex:  0,
		Version:    1,
		Marker:     slotMarker,
	}
	rec.encode(data[0:slotRecordSize])
	path := writeImage(t, data)

	report, err := Verify(path, VerifyOptions{Layout: LayoutSlots})
	require.NoError(t, err)
	require.False(t, report.Success())
	require.NotEmpty(t, report.Hard)
}

func TestVerifySlotsHugeSlotIndexIsHardCorruption(t *testing.T) {
	// SlotIndex alone can overflow the page arithmetic even with a sane
	// DataOffset.
	data := slotsImage(slotDataStart, 2)
	rec := slotRecord{
		DataOffset: uint64(slotDataStart),
		SlotIndex:  ^uint64(0)/PageSize + 1,
		Version:    1,
		Marker:     slotMarker,
	}
	rec.encode(data[2*slotRecordSize:])
	path := writeImage(t, data)

	report, err := Verify(path, VerifyOptions{Layout: LayoutSlots})
	require.NoError(t, err)
	require.False(t, report.Success())
	require.NotEmpty(t, report.Hard)
}

func TestVerifyMissingFile(t *testing.T) {
	_, err := Verify(filepath.Join(t.TempDir(), "nope.dat"), VerifyOptions{Layout: LayoutHeader})
	require.Error(t, err)
}
