package counter

import "sync"

// MemoryBackend stores the record in process memory. It is the tab-scoped
// analog: the value disappears when the process exits.
type MemoryBackend struct {
	mutex  sync.Mutex
	record Record
	stored bool
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (b *MemoryBackend) Read() (Record, bool, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.record, b.stored, nil
}

func (b *MemoryBackend) Write(record Record) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.record = record
	b.stored = true
	return nil
}

// Clear drops the stored record, simulating the user clearing this
// mechanism.
func (b *MemoryBackend) Clear() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.record = Record{}
	b.stored = false
}
