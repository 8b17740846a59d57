package numerator

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when a key has no provisioned sequence.
	ErrNotFound = errors.New("numerator: sequence not found")
	// ErrExists is returned when provisioning an existing key.
	ErrExists = errors.New("numerator: sequence already exists")
)

// MemoryStore keeps sequences in process memory behind a single mutex.
// It is used by tests and single-process tools; services use the
// PostgreSQL generator.
type MemoryStore struct {
	mu   sync.Mutex
	seqs map[string]*Sequence
	now  func() time.Time
}

// NewMemoryStore creates an empty store using the wall clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seqs: make(map[string]*Sequence),
		now:  time.Now,
	}
}

// SetClock replaces the clock used to determine the current year.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// Provision registers a sequence under key. Keys are never created implicitly.
func (m *MemoryStore) Provision(key string, seq Sequence) error {
	if err := seq.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seqs[key]; ok {
		return ErrExists
	}
	m.seqs[key] = &seq
	return nil
}

// Get returns a copy of the stored sequence.
func (m *MemoryStore) Get(key string) (Sequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq, ok := m.seqs[key]
	if !ok {
		return Sequence{}, ErrNotFound
	}
	return *seq, nil
}

// Peek returns the next number without consuming it.
func (m *MemoryStore) Peek(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq, ok := m.seqs[key]
	if !ok {
		return "", ErrNotFound
	}
	value, _ := seq.Peek(m.year())
	return value, nil
}

// Consume hands out the next number and advances the counter.
func (m *MemoryStore) Consume(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq, ok := m.seqs[key]
	if !ok {
		return "", ErrNotFound
	}
	return seq.Consume(m.year()), nil
}

func (m *MemoryStore) year() int {
	return m.now().UTC().Year()
}
