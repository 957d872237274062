package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"usermgmt/console/internal/config"
	"usermgmt/console/internal/ids"
	"usermgmt/console/internal/media"
)

const metaName = "Original-Name"

// ObjectStore keeps staged avatar previews in an S3 compatible bucket so every
// console replica can serve them.
type ObjectStore struct {
	client *minio.Client
	bucket string
	region string
}

var _ media.Stager = (*ObjectStore)(nil)

func NewObjectStore(cfg config.StorageConfig) (*ObjectStore, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &ObjectStore{
		client: client,
		bucket: cfg.BucketPreviews,
		region: cfg.Region,
	}, nil
}

func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// Ping reports whether the previews bucket is reachable.
func (s *ObjectStore) Ping(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return fmt.Errorf("bucket exists %s: %w", s.bucket, err)
	}
	return nil
}

func (s *ObjectStore) Stage(ctx context.Context, up media.Upload) (media.Staged, error) {
	clean, err := media.Prepare(up)
	if err != nil {
		return media.Staged{}, err
	}

	id := ids.New()
	info, err := s.client.PutObject(ctx, s.bucket, id, bytes.NewReader(clean.Data), int64(len(clean.Data)), minio.PutObjectOptions{
		ContentType:  clean.ContentType,
		UserMetadata: map[string]string{metaName: clean.Name},
	})
	if err != nil {
		return media.Staged{}, fmt.Errorf("put preview %s: %w", id, err)
	}

	created := info.LastModified
	if created.IsZero() {
		created = time.Now()
	}
	return media.Staged{
		ID:        id,
		Name:      clean.Name,
		MIME:      clean.ContentType,
		Size:      info.Size,
		CreatedAt: created,
	}, nil
}

func (s *ObjectStore) Open(ctx context.Context, id string) (media.Staged, error) {
	if !ids.Valid(id) {
		return media.Staged{}, media.ErrNotFound
	}

	obj, err := s.client.GetObject(ctx, s.bucket, id, minio.GetObjectOptions{})
	if err != nil {
		return media.Staged{}, s.mapErr(id, err)
	}
	defer obj.Close()

	stat, err := obj.Stat()
	if err != nil {
		return media.Staged{}, s.mapErr(id, err)
	}
	data, err := io.ReadAll(io.LimitReader(obj, media.MaxUploadBytes+1))
	if err != nil {
		return media.Staged{}, s.mapErr(id, err)
	}

	return media.Staged{
		ID:        id,
		Name:      stat.UserMetadata[metaName],
		MIME:      stat.ContentType,
		Size:      stat.Size,
		CreatedAt: stat.LastModified,
		Data:      data,
	}, nil
}

func (s *ObjectStore) Discard(ctx context.Context, id string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, id, minio.RemoveObjectOptions{}); err != nil {
		return s.mapErr(id, err)
	}
	return nil
}

func (s *ObjectStore) Purge(ctx context.Context, olderThan time.Time) (int, error) {
	purged := 0
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{}) {
		if obj.Err != nil {
			return purged, fmt.Errorf("list previews: %w", obj.Err)
		}
		if !obj.LastModified.Before(olderThan) {
			continue
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return purged, fmt.Errorf("remove preview %s: %w", obj.Key, err)
		}
		purged++
	}
	return purged, nil
}

func (s *ObjectStore) mapErr(id string, err error) error {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) && (resp.Code == "NoSuchKey" || resp.StatusCode == 404) {
		return media.ErrNotFound
	}
	return fmt.Errorf("preview %s: %w", id, err)
}
