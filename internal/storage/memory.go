package storage

import (
	"context"
	"fmt"
	"sync"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryGateway is an in-process Gateway used for local development runs and
// tests. It additionally counts upload calls so dedup behavior is observable.
type MemoryGateway struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	uploads int
}

// NewMemoryGateway creates an empty in-memory gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{objects: make(map[string]memoryObject)}
}

func (g *MemoryGateway) Upload(_ context.Context, key string, data []byte, contentType string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	g.objects[key] = memoryObject{data: buf, contentType: contentType}
	g.uploads++
	return nil
}

func (g *MemoryGateway) Download(_ context.Context, key string) ([]byte, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	obj, ok := g.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q not found", key)
	}
	buf := make([]byte, len(obj.data))
	copy(buf, obj.data)
	return buf, nil
}

func (g *MemoryGateway) Delete(_ context.Context, key string, ignoreMissing bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.objects[key]; !ok {
		if ignoreMissing {
			return nil
		}
		return fmt.Errorf("object %q not found", key)
	}
	delete(g.objects, key)
	return nil
}

// UploadCount reports how many Upload calls the gateway has served.
func (g *MemoryGateway) UploadCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.uploads
}

// Len reports how many objects are currently stored.
func (g *MemoryGateway) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.objects)
}

// Has reports whether an object exists under key.
func (g *MemoryGateway) Has(key string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.objects[key]
	return ok
}
