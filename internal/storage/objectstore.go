package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore fetches and publishes objects by key.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores data under key and returns a URL that can be fetched
	// without credentials.
	Put(ctx context.Context, data []byte, key string) (string, error)
}

type MinioConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	Bucket        string
	PublicBaseURL string
	PresignExpiry time.Duration
}

// MinioStore is an ObjectStore backed by one S3-compatible bucket.
type MinioStore struct {
	client        *miniogo.Client
	bucket        string
	publicBaseURL string
	presignExpiry time.Duration
}

var _ ObjectStore = (*MinioStore)(nil)

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}

	return &MinioStore{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		presignExpiry: expiry,
	}, nil
}

// Bucket returns the bucket this store reads and writes.
func (s *MinioStore) Bucket() string {
	return s.bucket
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, miniogo.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

func (s *MinioStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

// Download streams an object to a local file.
func (s *MinioStore) Download(ctx context.Context, key, destPath string) error {
	if err := s.client.FGetObject(ctx, s.bucket, key, destPath, miniogo.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download object %s: %w", key, err)
	}
	return nil
}

func (s *MinioStore) Put(ctx context.Context, data []byte, key string) (string, error) {
	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), miniogo.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	return s.objectURL(ctx, key)
}

func (s *MinioStore) objectURL(ctx context.Context, key string) (string, error) {
	if s.publicBaseURL != "" {
		return PublicURL(s.publicBaseURL, s.bucket, key), nil
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.presignExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign object %s: %w", key, err)
	}
	return u.String(), nil
}

// PublicURL joins a public endpoint, bucket and key into an object URL.
func PublicURL(baseURL, bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.TrimRight(baseURL, "/") + "/" + url.PathEscape(bucket) + "/" + strings.Join(segments, "/")
}

// ObjectKey builds a slash-separated key from a prefix and path parts,
// ignoring empty parts.
func ObjectKey(prefix string, parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	for _, p := range append([]string{prefix}, parts...) {
		p = strings.Trim(p, "/")
		if p != "" {
			all = append(all, p)
		}
	}
	return strings.Join(all, "/")
}
