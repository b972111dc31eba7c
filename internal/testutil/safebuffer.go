package testutil

import (
	"bytes"
	"strings"
	"sync"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Contains reports whether the captured output contains substr.
func (b *SafeBuffer) Contains(substr string) bool {
	return strings.Contains(b.String(), substr)
}
