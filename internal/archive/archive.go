// Package archive keeps a copy of every generated export (map images,
// region and NDVI JSON, CSV) in a local directory or an S3 bucket.
package archive

import (
	"context"
	"fmt"
	"path"
	"time"
)

// Driver identifies a storage backend.
type Driver string

const (
	DriverNone       Driver = "none"
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
)

// Info describes an archived export.
type Info struct {
	Key          string    `json:"key" doc:"Object key" example:"2024-03-01/0b6f8a2e/morocco-yield-map.png"`
	Size         int64     `json:"size_bytes" doc:"Size in bytes"`
	ContentType  string    `json:"content_type,omitempty" doc:"MIME type"`
	LastModified time.Time `json:"last_modified" doc:"When the export was stored"`
}

// Store is where exports are archived.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (Info, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

// Config selects and configures a Store.
type Config struct {
	Driver   Driver
	Root     string // fs
	Bucket   string // s3
	Region   string // s3, default us-east-1
	Endpoint string // s3, optional (MinIO and friends)
}

// Open builds the store named by cfg.Driver. An empty driver means none.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverNone:
		return None{}, nil
	case DriverFilesystem:
		return NewFilesystem(cfg.Root)
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			PathStyle: cfg.Endpoint != "",
		})
	default:
		return nil, fmt.Errorf("unknown archive driver %q", cfg.Driver)
	}
}

// Key builds the object key for an export: day/session/filename.
func Key(at time.Time, session, filename string) string {
	return path.Join(at.UTC().Format("2006-01-02"), session, path.Base(filename))
}

// None discards everything.
type None struct{}

func (None) Driver() Driver { return DriverNone }

func (None) Put(_ context.Context, key string, data []byte, contentType string) (Info, error) {
	return Info{Key: key, Size: int64(len(data)), ContentType: contentType}, nil
}

func (None) List(context.Context, string) ([]Info, error) { return nil, nil }
