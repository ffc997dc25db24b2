package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"sync"
)

var ErrNotFound = errors.New("object not found")

type Object struct {
	Body        io.ReadCloser
	ContentType string
	ETag        string
	Size        int64
}

type Bucket interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

type memObject struct {
	data        []byte
	contentType string
	etag        string
}

// MemoryBucket keeps objects in process memory.
type MemoryBucket struct {
	mu      sync.RWMutex
	objects map[string]memObject
}

func NewMemoryBucket() *MemoryBucket {
	return &MemoryBucket{objects: make(map[string]memObject)}
}

func (b *MemoryBucket) Put(_ context.Context, key string, body []byte, contentType string) error {
	sum := md5.Sum(body)
	cp := append([]byte(nil), body...)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = memObject{data: cp, contentType: contentType, etag: `"` + hex.EncodeToString(sum[:]) + `"`}
	return nil
}

func (b *MemoryBucket) Get(_ context.Context, key string) (*Object, error) {
	b.mu.RLock()
	o, ok := b.objects[key]
	b.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return &Object{
		Body:        io.NopCloser(bytes.NewReader(o.data)),
		ContentType: o.contentType,
		ETag:        o.etag,
		Size:        int64(len(o.data)),
	}, nil
}

func (b *MemoryBucket) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}
