package checkpoint

import (
	"context"
	"errors"
	"path/filepath"

	"newsmatch/internal/storage"
	"newsmatch/pkg/types"
)

// BlobStore keeps one JSON document per partition under a local directory or
// an S3 prefix.
type BlobStore struct {
	blobs *storage.Blobs
	root  storage.Location
}

// NewFileStore stores checkpoints below dir.
func NewFileStore(dir string) *BlobStore {
	return &BlobStore{blobs: storage.NewBlobs(nil), root: storage.Location{Path: dir}}
}

// NewS3Store stores checkpoints below s3://bucket/prefix.
func NewS3Store(client *storage.S3, bucket, prefix string) *BlobStore {
	return &BlobStore{blobs: storage.NewBlobs(client), root: storage.Location{Bucket: bucket, Key: prefix}}
}

func (s *BlobStore) location(runID string, partition, total int) storage.Location {
	if s.root.IsS3() {
		return storage.Location{Bucket: s.root.Bucket, Key: Key(s.root.Key, runID, partition, total)}
	}
	return storage.Location{Path: filepath.Join(s.root.Path, filepath.FromSlash(Key("", runID, partition, total)))}
}

func (s *BlobStore) Load(ctx context.Context, runID string, partition, total int) (*types.PartitionState, bool, error) {
	data, err := s.blobs.ReadAll(ctx, s.location(runID, partition, total))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return decode(data, runID, partition, total)
}

func (s *BlobStore) Save(ctx context.Context, state *types.PartitionState) error {
	data, err := encode(state)
	if err != nil {
		return err
	}
	return s.blobs.WriteAll(ctx, s.location(state.RunID, state.PartitionID, state.TotalPartitions), data)
}

func (s *BlobStore) Close() error { return nil }
