package tablecache

import "testing"

func TestGetCachesIdenticalLengths(t *testing.T) {
	c := NewHuffmanTables(4)
	lengths := []uint8{2, 2, 2, 3, 3, 0, 0, 0}

	t1, err := c.Get(lengths, 7)
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1 after first Get", c.Len())
	}

	t2, err := c.Get(append([]uint8(nil), lengths...), 7)
	if err != nil {
		t.Fatal(err)
	}
	if t1 != t2 {
		t.Error("expected the second Get to return the cached table instance")
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1 after a repeat Get", c.Len())
	}
}

func TestGetDistinguishesFastBits(t *testing.T) {
	c := NewHuffmanTables(4)
	lengths := []uint8{1, 1}

	if _, err := c.Get(lengths, 4); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(lengths, 8); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2 for distinct fastBits", c.Len())
	}
}

func TestGetPropagatesBuildError(t *testing.T) {
	c := NewHuffmanTables(4)
	if _, err := c.Get([]uint8{0, 0, 0}, 4); err == nil {
		t.Fatal("expected an error for an all-zero length set")
	}
}

func TestNewHuffmanTablesDefaultSize(t *testing.T) {
	c := NewHuffmanTables(0)
	if c.cache.Len() != 0 {
		t.Fatal("expected a fresh cache to start empty")
	}
}

func TestPurge(t *testing.T) {
	c := NewHuffmanTables(4)
	if _, err := c.Get([]uint8{1, 1}, 4); err != nil {
		t.Fatal(err)
	}
	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("Len = %d after Purge, want 0", c.Len())
	}
}
