package blob

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"lms/internal/core/apperror"
)

// Object is a stored blob.
type Object struct {
	ContentType string
	Data        []byte
}

// MemoryStore keeps objects in process memory. It backs tests and
// deployments without object storage.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
	baseURL string
	now     func() time.Time
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{objects: make(map[string]Object), baseURL: baseURL, now: time.Now}
}

func (s *MemoryStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = Object{ContentType: contentType, Data: append([]byte(nil), data...)}
	return nil
}

// Get returns a stored object.
func (s *MemoryStore) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[key]
	return o, ok
}

// PresignedURL returns a fake signed link carrying the expiry.
func (s *MemoryStore) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if _, ok := s.Get(key); !ok {
		return "", apperror.NewNotFound("object", key)
	}
	expires := s.now().Add(ttl).Unix()
	return fmt.Sprintf("%s/%s?expires=%d", s.baseURL, url.PathEscape(key), expires), nil
}
