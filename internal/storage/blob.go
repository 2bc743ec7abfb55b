// Package storage reads and writes whole files on local disk or in S3.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// Location is a parsed local path or s3://bucket/key reference.
type Location struct {
	Bucket string
	Key    string
	Path   string
}

// ParseLocation splits raw into a Location.
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, errors.New("empty path")
	}
	rest, ok := strings.CutPrefix(raw, "s3://")
	if !ok {
		return Location{Path: raw}, nil
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return Location{}, fmt.Errorf("invalid s3 location %q", raw)
	}
	return Location{Bucket: bucket, Key: key}, nil
}

// IsS3 reports whether the location points at S3.
func (l Location) IsS3() bool {
	return l.Bucket != ""
}

func (l Location) String() string {
	if l.IsS3() {
		return "s3://" + l.Bucket + "/" + l.Key
	}
	return l.Path
}

// Ext returns the lower-cased file extension.
func (l Location) Ext() string {
	if l.IsS3() {
		return strings.ToLower(filepath.Ext(l.Key))
	}
	return strings.ToLower(filepath.Ext(l.Path))
}

// WithSuffix inserts suffix before the extension.
func (l Location) WithSuffix(suffix string) Location {
	insert := func(p string) string {
		ext := filepath.Ext(p)
		return strings.TrimSuffix(p, ext) + suffix + ext
	}
	if l.IsS3() {
		l.Key = insert(l.Key)
	} else {
		l.Path = insert(l.Path)
	}
	return l
}

// Blobs routes reads and writes to local disk or S3.
type Blobs struct {
	s3 *S3
}

// NewBlobs returns a router. A nil client rejects s3:// locations.
func NewBlobs(client *S3) *Blobs {
	return &Blobs{s3: client}
}

// ReadAll loads the whole file at loc.
func (b *Blobs) ReadAll(ctx context.Context, loc Location) ([]byte, error) {
	if !loc.IsS3() {
		data, err := os.ReadFile(loc.Path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", loc.Path, ErrNotFound)
		}
		return data, err
	}
	if b == nil || b.s3 == nil {
		return nil, fmt.Errorf("read %s: s3 storage is not configured", loc)
	}
	body, err := b.s3.Get(ctx, loc.Bucket, loc.Key)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

// WriteAll replaces the file at loc with data. Local writes go through a
// temporary file and rename.
func (b *Blobs) WriteAll(ctx context.Context, loc Location, data []byte) error {
	if loc.IsS3() {
		if b == nil || b.s3 == nil {
			return fmt.Errorf("write %s: s3 storage is not configured", loc)
		}
		return b.s3.Put(ctx, loc.Bucket, loc.Key, bytes.NewReader(data), contentType(loc.Ext()))
	}
	return writeFileAtomic(loc.Path, data)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

func contentType(ext string) string {
	switch ext {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".json":
		return "application/json"
	default:
		return mime.TypeByExtension(ext)
	}
}
