// Package storage implements core.ObjectStore.
//
// MinIO is the production gateway; Memory backs tests and the
// OBJECT_STORE_DRIVER=memory mode.
package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/JonMunkholm/routeimport/internal/core"
	"github.com/JonMunkholm/routeimport/internal/logging"
)

// MinIOConfig configures a MinIO gateway.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

// MinIO stores objects in one bucket of an S3-compatible server.
type MinIO struct {
	client *minio.Client
	bucket string
	region string
}

var _ core.ObjectStore = (*MinIO)(nil)

// NewMinIO connects to the server described by cfg. No request is made
// until EnsureBucket or the first operation.
func NewMinIO(cfg MinIOConfig) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create minio client")
	}
	return &MinIO{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// EnsureBucket creates the bucket when it does not exist.
func (m *MinIO) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return errors.Wrapf(err, "check bucket %q", m.bucket)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region}); err != nil {
		// Another instance may have created it in the meantime.
		if exists, checkErr := m.client.BucketExists(ctx, m.bucket); checkErr == nil && exists {
			return nil
		}
		return errors.Wrapf(err, "create bucket %q", m.bucket)
	}
	logging.FromContext(ctx).Info("created object store bucket", "bucket", m.bucket)
	return nil
}

func (m *MinIO) Put(ctx context.Context, key string, data []byte, contentType string) (core.ObjectInfo, error) {
	info, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	observe("put", err)
	if err != nil {
		return core.ObjectInfo{}, &core.ObjectStoreError{Op: "put", Key: key, Err: errors.Wrap(err, "put object")}
	}
	return core.ObjectInfo{Key: info.Key, Size: info.Size, ETag: info.ETag}, nil
}

func (m *MinIO) Get(ctx context.Context, key string) (core.Object, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		observe("get", err)
		return core.Object{}, m.wrap("get", key, err)
	}
	defer obj.Close()

	stat, err := obj.Stat()
	if err != nil {
		observe("get", err)
		return core.Object{}, m.wrap("get", key, err)
	}
	data, err := io.ReadAll(obj)
	observe("get", err)
	if err != nil {
		return core.Object{}, m.wrap("get", key, err)
	}
	return core.Object{
		Data:         data,
		ContentType:  stat.ContentType,
		Size:         stat.Size,
		LastModified: stat.LastModified,
	}, nil
}

// Delete removes key. Removing a missing key succeeds.
func (m *MinIO) Delete(ctx context.Context, key string) error {
	err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && isNotFound(err) {
		err = nil
	}
	observe("delete", err)
	if err != nil {
		return &core.ObjectStoreError{Op: "delete", Key: key, Err: errors.Wrap(err, "remove object")}
	}
	return nil
}

func (m *MinIO) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		observe("exists", nil)
		return true, nil
	}
	if isNotFound(err) {
		observe("exists", nil)
		return false, nil
	}
	observe("exists", err)
	return false, &core.ObjectStoreError{Op: "exists", Key: key, Err: errors.Wrap(err, "stat object")}
}

func (m *MinIO) wrap(op, key string, err error) error {
	if isNotFound(err) {
		err = errors.Wrapf(core.ErrNotFound, "object %q", key)
	}
	return &core.ObjectStoreError{Op: op, Key: key, Err: err}
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
