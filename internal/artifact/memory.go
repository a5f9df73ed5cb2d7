package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	dErrors "sevagate/pkg/domain-errors"
)

// MemoryObjectStore keeps artifact bytes in process memory. It backs
// development runs without a minio endpoint and the unit tests.
type MemoryObjectStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	baseURL string
}

func NewMemoryObjectStore(baseURL string) *MemoryObjectStore {
	if baseURL == "" {
		baseURL = "memory://artifacts"
	}
	return &MemoryObjectStore{
		objects: make(map[string][]byte),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (s *MemoryObjectStore) Put(_ context.Context, objectName string, upload Upload) (string, error) {
	data, err := io.ReadAll(upload.Content)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "read artifact body")
	}

	s.mu.Lock()
	s.objects[objectName] = data
	s.mu.Unlock()

	return fmt.Sprintf("%s/%s", s.baseURL, objectName), nil
}

// Fetch streams a stored artifact back out, for export bundles.
func (s *MemoryObjectStore) Fetch(_ context.Context, objectName string) (io.ReadCloser, error) {
	s.mu.RLock()
	data, ok := s.objects[objectName]
	s.mu.RUnlock()
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "object not found")
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(data))), nil
}

// Get returns the stored bytes for an object, or nil when absent.
func (s *MemoryObjectStore) Get(objectName string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[objectName]
	if !ok {
		return nil
	}
	return bytes.Clone(data)
}

// Len reports how many distinct objects are held.
func (s *MemoryObjectStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
