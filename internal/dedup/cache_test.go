package dedup

import (
	"fmt"
	"testing"
	"time"
)

func TestRecordAndLookup(t *testing.T) {
	c := New(10, 600*time.Second)

	if _, ok := c.Lookup("alice"); ok {
		t.Error("empty cache should not contain alice")
	}

	c.Record("alice", "Marked")
	label, ok := c.Lookup("alice")
	if !ok {
		t.Fatal("expected alice after record")
	}
	if label != "Marked" {
		t.Errorf("expected label Marked, got %q", label)
	}
	if _, ok := c.Lookup("bob"); ok {
		t.Error("bob was never recorded")
	}
}

func TestEvictionOrder(t *testing.T) {
	c := New(10, 600*time.Second)

	for i := 0; i < 10; i++ {
		c.Record(fmt.Sprintf("student-%d", i), "Marked")
	}
	if c.Len() != 10 {
		t.Fatalf("expected full cache, got %d", c.Len())
	}

	// The 11th insert evicts the oldest entry only.
	c.Record("student-10", "Marked")
	if c.Len() != 10 {
		t.Fatalf("capacity exceeded, len = %d", c.Len())
	}
	if _, ok := c.Lookup("student-0"); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok := c.Lookup("student-1"); !ok {
		t.Error("newer entries must survive eviction")
	}
	if _, ok := c.Lookup("student-10"); !ok {
		t.Error("freshly inserted entry missing")
	}
}

func TestRecordKeepsPositionOnOverwrite(t *testing.T) {
	c := New(3, 600*time.Second)

	c.Record("a", "Marked")
	c.Record("b", "Marked")
	c.Record("c", "Marked")
	c.Record("a", "Already Marked") // refresh, position unchanged

	if label, _ := c.Lookup("a"); label != "Already Marked" {
		t.Errorf("overwrite should refresh the label, got %q", label)
	}

	c.Record("d", "Marked") // evicts a, the oldest by first insertion
	if _, ok := c.Lookup("a"); ok {
		t.Error("refreshing an entry must not reset its eviction position")
	}
	for _, id := range []string{"b", "c", "d"} {
		if _, ok := c.Lookup(id); !ok {
			t.Errorf("unexpected eviction of %q", id)
		}
	}
}

func TestFlushBeforeLookup(t *testing.T) {
	c := New(10, 600*time.Second)

	now := time.Now()
	c.SetClock(func() time.Time { return now })

	c.Record("alice", "Marked")
	if _, ok := c.Lookup("alice"); !ok {
		t.Fatal("expected alice before flush interval")
	}

	now = now.Add(599 * time.Second)
	if _, ok := c.Lookup("alice"); !ok {
		t.Error("entry flushed too early")
	}

	now = now.Add(time.Second)
	if _, ok := c.Lookup("alice"); ok {
		t.Error("expected full flush after the interval elapsed")
	}
	if c.Len() != 0 {
		t.Errorf("flush must empty the cache, len = %d", c.Len())
	}
}

func TestFlushResetsInterval(t *testing.T) {
	c := New(10, 600*time.Second)

	now := time.Now()
	c.SetClock(func() time.Time { return now })

	now = now.Add(601 * time.Second)
	c.Record("alice", "Marked") // triggers flush, then records

	now = now.Add(300 * time.Second)
	if _, ok := c.Lookup("alice"); !ok {
		t.Error("interval should restart at the flush, not at the first record")
	}
}

func TestClear(t *testing.T) {
	c := New(10, 600*time.Second)

	c.Record("alice", "Marked")
	c.Record("bob", "Marked")
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("expected empty cache after clear, len = %d", c.Len())
	}
	if _, ok := c.Lookup("alice"); ok {
		t.Error("cleared entry still visible")
	}
}

func TestDefaults(t *testing.T) {
	c := New(0, 0)
	if c.capacity != DefaultCapacity {
		t.Errorf("expected default capacity %d, got %d", DefaultCapacity, c.capacity)
	}
	if c.flushInterval != DefaultFlushInterval {
		t.Errorf("expected default flush interval %v, got %v", DefaultFlushInterval, c.flushInterval)
	}
}
