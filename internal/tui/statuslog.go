package tui

import (
	"sync"
)

// StatusLog keeps the most recent status lines in a fixed-size ring. When
// full, adding a line drops the oldest one.
type StatusLog struct {
	buf  []string
	size int
	head int // write position
	tail int // read position
	full bool
	mu   sync.RWMutex
}

// NewStatusLog creates a status log holding up to size lines.
func NewStatusLog(size int) *StatusLog {
	if size <= 0 {
		size = 50
	}
	return &StatusLog{
		buf:  make([]string, size),
		size: size,
	}
}

// Add appends a line, overwriting the oldest one when full.
func (l *StatusLog) Add(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.full {
		l.tail = (l.tail + 1) % l.size
	}
	l.buf[l.head] = line
	l.head = (l.head + 1) % l.size
	if l.head == l.tail {
		l.full = true
	}
}

// Last returns the newest line, or "" when empty.
func (l *StatusLog) Last() string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.full && l.head == l.tail {
		return ""
	}
	return l.buf[(l.head-1+l.size)%l.size]
}

// Lines returns the lines oldest first.
func (l *StatusLog) Lines() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := l.lenLocked()
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = l.buf[(l.tail+i)%l.size]
	}
	return out
}

// Len returns the number of lines held.
func (l *StatusLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lenLocked()
}

func (l *StatusLog) lenLocked() int {
	switch {
	case l.full:
		return l.size
	case l.head >= l.tail:
		return l.head - l.tail
	default:
		return (l.size - l.tail) + l.head
	}
}
