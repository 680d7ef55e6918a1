package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tencentyun/cos-go-sdk-v5"

	apperrors "github.com/heap-snapshot/pkg/errors"
)

// COSConfig holds COS-specific configuration.
type COSConfig struct {
	Bucket    string
	Region    string
	SecretID  string
	SecretKey string
	Domain    string // e.g., "myqcloud.com"
	Scheme    string // e.g., "https" or "http"
	DataDir   string // download directory

	// BaseURL overrides the bucket URL built from the fields above.
	BaseURL *url.URL
}

// COSStorage downloads dumps from Tencent Cloud COS.
type COSStorage struct {
	client  *cos.Client
	bucket  string
	region  string
	domain  string
	scheme  string
	dataDir string
}

// NewCOSStorage creates a new COSStorage instance.
func NewCOSStorage(cfg *COSConfig) (*COSStorage, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, apperrors.New(apperrors.CodeConfigError, "bucket and region are required for COS storage")
	}
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, apperrors.New(apperrors.CodeConfigError, "credentials are required for COS storage")
	}

	domain := cfg.Domain
	if domain == "" {
		domain = "myqcloud.com"
	}
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "https"
	}
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = filepath.Join(os.TempDir(), "heapsnap")
	}

	bucketURL := cfg.BaseURL
	if bucketURL == nil {
		var err error
		bucketURL, err = url.Parse(fmt.Sprintf("%s://%s.cos.%s.%s", scheme, cfg.Bucket, cfg.Region, domain))
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to parse bucket URL", err)
		}
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: bucketURL}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
		},
	})

	return &COSStorage{
		client:  client,
		bucket:  cfg.Bucket,
		region:  cfg.Region,
		domain:  domain,
		scheme:  scheme,
		dataDir: dataDir,
	}, nil
}

// Fetch downloads key into the data directory. A previous download with the
// same size as the remote object is reused.
func (s *COSStorage) Fetch(ctx context.Context, key string) (string, error) {
	localPath := s.LocalPath(key)

	resp, err := s.client.Object.Head(ctx, key, nil)
	if err != nil {
		if cos.IsNotFoundError(err) {
			return "", apperrors.Newf(apperrors.CodeNotFound, "dump not found: %s", key)
		}
		return "", apperrors.Wrap(apperrors.CodeStorageError, "failed to stat dump in COS", err)
	}
	if size, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64); err == nil {
		if info, err := os.Stat(localPath); err == nil && info.Size() == size {
			return localPath, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return "", apperrors.Wrap(apperrors.CodeStorageError, "failed to create data directory", err)
	}
	tmpPath := localPath + ".part"
	if _, err := s.client.Object.GetToFile(ctx, key, tmpPath, nil); err != nil {
		os.Remove(tmpPath)
		return "", apperrors.Wrap(apperrors.CodeStorageError, "failed to download dump from COS", err)
	}
	if err := os.Rename(tmpPath, localPath); err != nil {
		return "", apperrors.Wrap(apperrors.CodeStorageError, "failed to move downloaded dump", err)
	}
	return localPath, nil
}

// Download streams key from COS.
func (s *COSStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.client.Object.Get(ctx, key, nil)
	if err != nil {
		if cos.IsNotFoundError(err) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "dump not found: %s", key)
		}
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "failed to download from COS", err)
	}
	return resp.Body, nil
}

// Exists checks if an object exists at the specified key.
func (s *COSStorage) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.Object.IsExist(ctx, key)
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodeStorageError, "failed to check existence in COS", err)
	}
	return ok, nil
}

// GetURL returns the public URL for the specified key.
func (s *COSStorage) GetURL(key string) string {
	return fmt.Sprintf("%s://%s.cos.%s.%s/%s", s.scheme, s.bucket, s.region, s.domain, key)
}

// LocalPath is where Fetch places key.
func (s *COSStorage) LocalPath(key string) string {
	return filepath.Join(s.dataDir, s.bucket, filepath.FromSlash(key))
}
