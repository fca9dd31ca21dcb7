// Package dedup keeps a short-lived cache of recently marked students so
// the frame pipeline can skip database writes for faces it just recorded.
package dedup

import (
	"sync"
	"time"
)

const (
	// DefaultCapacity bounds the cache to the handful of students
	// visible in front of a single camera.
	DefaultCapacity = 10
	// DefaultFlushInterval drops the whole cache so a student standing
	// in frame for a long lesson eventually produces a fresh record.
	DefaultFlushInterval = 600 * time.Second
)

// Cache is a bounded FIFO map of student id to display label with a
// periodic full flush. Eviction order follows first insertion;
// re-recording a present id refreshes its label but keeps its queue
// position.
type Cache struct {
	mu            sync.Mutex
	capacity      int
	flushInterval time.Duration
	now           func() time.Time

	order     []string
	entries   map[string]string
	lastFlush time.Time
}

// New creates a cache with the given capacity and flush interval.
// Non-positive arguments fall back to the defaults.
func New(capacity int, flushInterval time.Duration) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}
	c := &Cache{
		capacity:      capacity,
		flushInterval: flushInterval,
		now:           time.Now,
		entries:       make(map[string]string),
	}
	c.lastFlush = c.now()
	return c
}

// SetClock replaces the time source, used by tests to drive the flush.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	c.lastFlush = now()
}

// Lookup returns the cached label for a student. The flush check runs
// first, so a stale cache never suppresses a mark.
func (c *Cache) Lookup(studentID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.maybeFlushLocked()
	label, ok := c.entries[studentID]
	return label, ok
}

// Record inserts the student with its label, evicting the oldest entry
// when the cache is full. Recording a present student refreshes the
// label but keeps its original position.
func (c *Cache) Record(studentID, label string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.maybeFlushLocked()

	if _, ok := c.entries[studentID]; ok {
		c.entries[studentID] = label
		return
	}

	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.order = append(c.order, studentID)
	c.entries[studentID] = label
}

// Clear empties the cache, used when a session ends.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
}

// Len returns the number of cached students.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

func (c *Cache) maybeFlushLocked() {
	if c.now().Sub(c.lastFlush) >= c.flushInterval {
		c.flushLocked()
	}
}

func (c *Cache) flushLocked() {
	c.order = c.order[:0]
	c.entries = make(map[string]string)
	c.lastFlush = c.now()
}
