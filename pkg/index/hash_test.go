package index

import (
	"errors"
	"fmt"
	"testing"
)

func TestHashIndexInsertSearch(t *testing.T) {
	h := NewHashIndex(16)
	for i := 0; i < 50; i++ {
		key := []byte(fmt.Sprintf("k%d", i))
		if err := h.Insert(key, uint64(i)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	for i := 0; i < 50; i++ {
		key := []byte(fmt.Sprintf("k%d", i))
		v, ok := h.Search(key)
		if !ok || v != uint64(i) {
			t.Fatalf("Search(%s) = (%d, %v), want (%d, true)", key, v, ok, i)
		}
	}
}

func TestHashIndexUpsert(t *testing.T) {
	h := NewHashIndex(4)
	if err := h.Insert([]byte("a"), 1); err != nil {
		t.Fatal(err)
	}
	if err := h.Insert([]byte("a"), 2); err != nil {
		t.Fatal(err)
	}
	v, ok := h.Search([]byte("a"))
	if !ok || v != 2 {
		t.Fatalf("Search(a) = (%d, %v), want (2, true)", v, ok)
	}
}

func TestHashIndexDelete(t *testing.T) {
	h := NewHashIndex(4)
	if err := h.Insert([]byte("a"), 1); err != nil {
		t.Fatal(err)
	}
	if err := h.Delete([]byte("a")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := h.Search([]byte("a")); ok {
		t.Fatal("a still found after Delete")
	}
	if err := h.Delete([]byte("a")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("Delete(a) again err = %v, want ErrKeyNotFound", err)
	}
}

func TestHashIndexChaining(t *testing.T) {
	h := NewHashIndex(1)
	for i := 0; i < 10; i++ {
		key := []byte(fmt.Sprintf("k%d", i))
		if err := h.Insert(key, uint64(i)); err != nil {
			t.Fatal(err)
		}
	}
	stats := h.Stats()
	if stats["max_chain"].(int) != 10 {
		t.Fatalf("max_chain = %v, want 10 with a single bucket", stats["max_chain"])
	}
	for i := 0; i < 10; i++ {
		key := []byte(fmt.Sprintf("k%d", i))
		if _, ok := h.Search(key); !ok {
			t.Fatalf("Search(%s): not found in single-bucket chain", key)
		}
	}
}
