// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"sort"
	"sync"
)

// StoredObject is one object held by MemoryBlobStore.
type StoredObject struct {
	Data        []byte
	ContentType string
}

// MemoryBlobStore is an in-memory storage.BlobStore for tests.
type MemoryBlobStore struct {
	mu      sync.Mutex
	objects map[string]StoredObject
	deleted []string

	// PutErr, when set, is returned by every Put.
	PutErr error
}

// NewMemoryBlobStore returns an empty store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{objects: make(map[string]StoredObject)}
}

// Put stores the object and returns a URL under /uploads.
func (s *MemoryBlobStore) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) (string, error) {
	if s.PutErr != nil {
		return "", s.PutErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = StoredObject{Data: data, ContentType: contentType}
	return "/uploads/" + key, nil
}

// Delete removes the object and records the key.
func (s *MemoryBlobStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

// Object returns the stored object for key.
func (s *MemoryBlobStore) Object(key string) (StoredObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	return obj, ok
}

// Keys returns the stored keys in sorted order.
func (s *MemoryBlobStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Deleted returns every key passed to Delete, in call order.
func (s *MemoryBlobStore) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

// TinyPNG returns an in-memory PNG byte slice with the requested dimensions.
func TinyPNG(t interface {
	Helper()
	Fatalf(string, ...any)
}, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
