package ringbuffer

import "sync"

// DefaultCapacity is the number of daemon output lines kept for crash reports.
const DefaultCapacity = 100

// Lines is a fixed-capacity FIFO of text lines. When full, appending evicts
// the oldest line. All methods are safe for concurrent use.
type Lines struct {
	mu    sync.Mutex
	slots []string
	// head is the index of the oldest line.
	head  int
	count int
	total uint64
}

// New creates a buffer holding at most capacity lines. A non-positive
// capacity falls back to DefaultCapacity.
func New(capacity int) *Lines {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Lines{slots: make([]string, capacity)}
}

// Append adds line, evicting the oldest entry when at capacity.
func (l *Lines) Append(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	capacity := len(l.slots)
	if l.count == capacity {
		l.slots[l.head] = line
		l.head = (l.head + 1) % capacity
	} else {
		l.slots[(l.head+l.count)%capacity] = line
		l.count++
	}
	l.total++
}

// Snapshot returns a copy of the buffered lines, oldest first.
func (l *Lines) Snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, l.count)
	for i := 0; i < l.count; i++ {
		out[i] = l.slots[(l.head+i)%len(l.slots)]
	}
	return out
}

// Len returns the number of buffered lines.
func (l *Lines) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Total returns how many lines were ever appended, including evicted ones.
func (l *Lines) Total() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Capacity returns the maximum number of lines held.
func (l *Lines) Capacity() int {
	return len(l.slots)
}
