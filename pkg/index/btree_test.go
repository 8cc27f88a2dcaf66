package index

import (
	"errors"
	"fmt"
	"testing"
)

func TestBTreeInsertSearch(t *testing.T) {
	bt := NewBTree(4)

	for i := 0; i < 100; i++ {
		key := []byte(fmt.Sprintf("key-%03d", i))
		if err := bt.Insert(key, uint64(i)); err != nil {
			t.Fatalf("Insert(%s): %v", key, err)
		}
	}

	for i := 0; i < 100; i++ {
		key := []byte(fmt.Sprintf("key-%03d", i))
		v, ok := bt.Search(key)
		if !ok {
			t.Fatalf("Search(%s): not found", key)
		}
		if v != uint64(i) {
			t.Fatalf("Search(%s) = %d, want %d", key, v, i)
		}
	}

	if bt.Size() != 100 {
		t.Fatalf("Size() = %d, want 100", bt.Size())
	}
}

func TestBTreeUpsertOverwrites(t *testing.T) {
	bt := NewBTree(4)
	if err := bt.Insert([]byte("a"), 1); err != nil {
		t.Fatal(err)
	}
	if err := bt.Insert([]byte("a"), 2); err != nil {
		t.Fatal(err)
	}
	v, ok := bt.Search([]byte("a"))
	if !ok || v != 2 {
		t.Fatalf("Search(a) = (%d, %v), want (2, true)", v, ok)
	}
	if bt.Size() != 1 {
		t.Fatalf("Size() = %d, want 1 after upsert", bt.Size())
	}
}

func TestBTreeDelete(t *testing.T) {
	bt := NewBTree(4)
	for i := 0; i < 20; i++ {
		key := []byte(fmt.Sprintf("k%02d", i))
		if err := bt.Insert(key, uint64(i)); err != nil {
			t.Fatal(err)
		}
	}

	if err := bt.Delete([]byte("k10")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := bt.Search([]byte("k10")); ok {
		t.Fatal("k10 still reachable after Delete")
	}

	if err := bt.Delete([]byte("missing")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("Delete(missing) err = %v, want ErrKeyNotFound", err)
	}

	// Everything else survives.
	for i := 0; i < 20; i++ {
		if i == 10 {
			continue
		}
		key := []byte(fmt.Sprintf("k%02d", i))
		if _, ok := bt.Search(key); !ok {
			t.Fatalf("Search(%s) lost after unrelated delete", key)
		}
	}
}

func TestBTreeEmptyKeyRejected(t *testing.T) {
	bt := NewBTree(4)
	if err := bt.Insert(nil, 1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Insert(nil) err = %v, want ErrInvalidArgument", err)
	}
}

func TestBTreeRangeScan(t *testing.T) {
	bt := NewBTree(4)
	for i := 0; i < 30; i++ {
		key := []byte(fmt.Sprintf("k%02d", i))
		if err := bt.Insert(key, uint64(i)); err != nil {
			t.Fatal(err)
		}
	}

	var got []uint64
	bt.RangeScan([]byte("k10"), []byte("k15"), func(key []byte, value uint64) bool {
		got = append(got, value)
		return true
	})

	if len(got) != 5 {
		t.Fatalf("RangeScan returned %d entries, want 5: %v", len(got), got)
	}
	for i, v := range got {
		if v != uint64(10+i) {
			t.Fatalf("RangeScan[%d] = %d, want %d", i, v, 10+i)
		}
	}
}

func TestBTreeHeightGrowsWithSplits(t *testing.T) {
	bt := NewBTree(4)
	initialHeight := bt.Height()
	for i := 0; i < 200; i++ {
		key := []byte(fmt.Sprintf("key-%04d", i))
		if err := bt.Insert(key, uint64(i)); err != nil {
			t.Fatal(err)
		}
	}
	if bt.Height() <= initialHeight {
		t.Fatalf("Height() = %d, expected growth beyond %d after 200 inserts at order 4", bt.Height(), initialHeight)
	}
}
