package dummydb

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"sync"

	"github.com/teachhub/backend/core/assessment"
)

type blob struct {
	contentType string
	data        []byte
}

// BlobStore keeps evidence files in memory.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string]blob
}

var _ assessment.BlobStore = (*BlobStore)(nil)

func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string]blob)}
}

func (s *BlobStore) Put(_ context.Context, path, contentType string, r io.Reader) (int64, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return int64(len(data)), err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[path] = blob{contentType: contentType, data: data}
	return int64(len(data)), nil
}

func (s *BlobStore) Open(_ context.Context, path string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.blobs[path]
	if !ok {
		return nil, assessment.ErrEvidenceNotFound
	}
	return ioutil.NopCloser(bytes.NewReader(b.data)), nil
}

func (s *BlobStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, path)
	return nil
}

// Paths lists the stored paths.
func (s *BlobStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.blobs))
	for p := range s.blobs {
		paths = append(paths, p)
	}
	return paths
}
