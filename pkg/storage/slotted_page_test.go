package storage

import (
	"bytes"
	"testing"
)

func TestSlottedPageAddGetTuple(t *testing.T) {
	sp := NewSlottedPage(NewPage(0))

	s0, err := sp.AddTuple([]byte("first"))
	if err != nil {
		t.Fatalf("AddTuple: %v", err)
	}
	s1, err := sp.AddTuple([]byte("second-tuple"))
	if err != nil {
		t.Fatalf("AddTuple: %v", err)
	}

	if !bytes.Equal(sp.GetTuple(s0), []byte("first")) {
		t.Fatalf("GetTuple(s0) = %q", sp.GetTuple(s0))
	}
	if !bytes.Equal(sp.GetTuple(s1), []byte("second-tuple")) {
		t.Fatalf("GetTuple(s1) = %q", sp.GetTuple(s1))
	}
	if sp.SlotCount() != 2 {
		t.Fatalf("SlotCount() = %d, want 2", sp.SlotCount())
	}
}

func TestSlottedPageDeleteTombstones(t *testing.T) {
	sp := NewSlottedPage(NewPage(0))
	slot, err := sp.AddTuple([]byte("data"))
	if err != nil {
		t.Fatal(err)
	}

	if err := sp.DeleteTuple(slot); err != nil {
		t.Fatalf("DeleteTuple: %v", err)
	}
	if sp.GetTuple(slot) != nil {
		t.Fatal("GetTuple after delete should return nil")
	}
	// Slot numbering survives the delete: count is unchanged.
	if sp.SlotCount() != 1 {
		t.Fatalf("SlotCount() after delete = %d, want 1", sp.SlotCount())
	}
}

func TestSlottedPageRejectsOversizeTuple(t *testing.T) {
	sp := NewSlottedPage(NewPage(0))
	big := make([]byte, PageSize)
	if _, err := sp.AddTuple(big); err == nil {
		t.Fatal("expected no-space error for oversize tuple")
	}
}

func TestSlottedPageFreeSpaceShrinks(t *testing.T) {
	sp := NewSlottedPage(NewPage(0))
	before := sp.FreeSpace()
	if _, err := sp.AddTuple([]byte("abc")); err != nil {
		t.Fatal(err)
	}
	after := sp.FreeSpace()
	if after != before-3-LinePointerSize {
		t.Fatalf("FreeSpace after add = %d, want %d", after, before-3-LinePointerSize)
	}
}

func TestSlottedPageGetOutOfRange(t *testing.T) {
	sp := NewSlottedPage(NewPage(0))
	if sp.GetTuple(0) != nil {
		t.Fatal("GetTuple on empty page should return nil")
	}
}
