package probe

import (
	"testing"
)

func TestParseBarrierListPreservesOrder(t *testing.T) {
	list, err := ParseBarrierList("msync,fullfsync")
	if err != nil {
		t.Fatalf("ParseBarrierList() error = %v", err)
	}
	want := BarrierList{BarrierFlushMapping, BarrierFullFlush}
	if len(list) != len(want) {
		t.Fatalf("ParseBarrierList() = %v, want %v", list, want)
	}
	for i := range want {
		if list[i] != want[i] {
			t.Fatalf("ParseBarrierList()[%d] = %v, want %v", i, list[i], want[i])
		}
	}
	if got := list.String(); got != "msync,fullfsync" {
		t.Fatalf("String() = %q, want %q", got, "msync,fullfsync")
	}
}

func TestParseBarrierListUnknownToken(t *testing.T) {
	_, err := ParseBarrierList("fsync,osync")
	if err == nil {
		t.Fatal("ParseBarrierList() accepted an unknown token")
	}
	if !IsConfigError(err) {
		t.Fatalf("ParseBarrierList() error = %T, want ConfigError", err)
	}
}

func TestFlushMappingIsNoopWithoutMapping(t *testing.T) {
	h, err := Create(t.TempDir(), "test.dat", WritePathPositional)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer h.Close()

	if err := h.Extend(PageSize); err != nil {
		t.Fatalf("Extend() error = %v", err)
	}

	// msync has no meaning for the positional path; it must be skipped,
	// not erred.
	list := BarrierList{BarrierFlushMapping}
	if err := list.Apply(h); err != nil {
		t.Fatalf("Apply(msync) on unmapped handle error = %v", err)
	}
}

func TestFlushMappingIsNoopAtLengthZero(t *testing.T) {
	h, err := Create(t.TempDir(), "test.dat", WritePathMapped)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer h.Close()

	list := BarrierList{BarrierFlushMapping}
	if err := list.Apply(h); err != nil {
		t.Fatalf("Apply(msync) on empty handle error = %v", err)
	}
}

func TestApplyFullBarrierList(t *testing.T) {
	h, err := Create(t.TempDir(), "test.dat", WritePathMapped)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer h.Close()

	if err := h.Extend(PageSize); err != nil {
		t.Fatalf("Extend() error = %v", err)
	}

	list, err := ParseBarrierList("none,msync,fsync,fsyncparent,fullfsync")
	if err != nil {
		t.Fatalf("ParseBarrierList() error = %v", err)
	}
	if err := list.Apply(h); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
}

func TestParseWritePath(t *testing.T) {
	if _, err := ParseWritePath("dma"); err == nil || !IsConfigError(err) {
		t.Fatalf("ParseWritePath(dma) error = %v, want ConfigError", err)
	}
	wp, err := ParseWritePath("mmap")
	if err != nil || wp != WritePathMapped {
		t.Fatalf("ParseWritePath(mmap) = %v, %v", wp, err)
	}
	wp, err = ParseWritePath("write")
	if err != nil || wp != WritePathPositional {
		t.Fatalf("ParseWritePath(write) = %v, %v", wp, err)
	}
}
