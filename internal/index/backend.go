package index

import "context"

// FileBackend persists indexes as directories on the local filesystem.
type FileBackend struct{}

func NewFileBackend() *FileBackend {
	return &FileBackend{}
}

func (b *FileBackend) Exists(ctx context.Context, location string) (bool, error) {
	return Exists(location), nil
}

func (b *FileBackend) Persist(ctx context.Context, store *Store, location string) error {
	return Persist(store, location)
}

func (b *FileBackend) Load(ctx context.Context, location string) (*Store, error) {
	return Load(location)
}
