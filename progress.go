package flowgate

// Progress is the durable projection of a run: cursor and completed step
// numbers only. Field values and free-text values are deliberately excluded
// so that user-authored content is never written to durable storage.
type Progress struct {
	Cursor    int   `json:"cursor"`
	Completed []int `json:"completed"`
}

// ProgressStore persists run progress between page loads. Implementations
// must treat a missing record as (nil, nil) rather than an error.
type ProgressStore interface {
	// Save writes the progress record for a key, replacing any prior value.
	Save(key string, progress *Progress) error

	// Load returns the stored progress for a key, or nil when absent.
	Load(key string) (*Progress, error)

	// Delete removes the stored progress for a key.
	Delete(key string) error
}

// NullProgressStore is a no-op implementation
type NullProgressStore struct{}

func NewNullProgressStore() *NullProgressStore {
	return &NullProgressStore{}
}

func (s *NullProgressStore) Save(key string, progress *Progress) error {
	return nil
}

func (s *NullProgressStore) Load(key string) (*Progress, error) {
	return nil, nil
}

func (s *NullProgressStore) Delete(key string) error {
	return nil
}
