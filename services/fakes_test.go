package services

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"pdf-query-system/internal/ai"
	"pdf-query-system/internal/storage"
	"pdf-query-system/models"
)

type memoryStore struct {
	mu      sync.Mutex
	objects  map[string][]byte
	deleted  []string
	fetchErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (s *memoryStore) Name() string                        { return "memory" }
func (s *memoryStore) Configure(ctx context.Context) error { return nil }
func (s *memoryStore) Configured() bool                    { return true }

func (s *memoryStore) Upload(ctx context.Context, name string, r io.Reader, size int64) (*storage.Object, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = data
	return &storage.Object{Provider: "memory", PublicID: name, URL: "memory://" + name, Bytes: int64(len(data))}, nil
}

func (s *memoryStore) Fetch(ctx context.Context, obj storage.Object) (io.ReadCloser, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return io.NopCloser(bytes.NewReader(s.objects[obj.PublicID])), nil
}

func (s *memoryStore) Delete(ctx context.Context, publicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, publicID)
	s.deleted = append(s.deleted, publicID)
	return nil
}

type fakeReader struct {
	doc  *models.PDF
	text string
	err  error
}

func (f *fakeReader) Get(ctx context.Context, id primitive.ObjectID) (*models.PDF, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

func (f *fakeReader) Text(doc *models.PDF) (string, error) {
	return f.text, nil
}

type fakeAnswerer struct {
	calls    int
	document string
	err      error
}

func (f *fakeAnswerer) Answer(ctx context.Context, question, document string) (*ai.Answer, error) {
	f.calls++
	f.document = document
	if f.err != nil {
		return nil, f.err
	}
	return &ai.Answer{Text: "42", Model: "test-model", TokensUsed: 7}, nil
}

type mapCache struct {
	entries map[string]*ai.Answer
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string]*ai.Answer{}}
}

func (c *mapCache) Get(ctx context.Context, pdfID, question string) (*ai.Answer, bool) {
	a, ok := c.entries[answerKey(pdfID, question)]
	return a, ok
}

func (c *mapCache) Set(ctx context.Context, pdfID, question string, answer *ai.Answer) {
	c.entries[answerKey(pdfID, question)] = answer
}

type fakeMarker struct {
	olderThan time.Duration
	n         int64
	err       error
}

func (f *fakeMarker) MarkStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.olderThan = olderThan
	return f.n, f.err
}
