package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"stayflow/internal/app/policies"
)

// EvidenceStore keeps deposit-claim evidence in an S3-compatible bucket.
// Objects are keyed by transaction so adjudication can list everything a
// claim submitted.
type EvidenceStore struct {
	bucket         string
	client         *minio.Client
	logger         *slog.Logger
	bucketInitOnce sync.Once
	bucketInitErr  error
}

func NewEvidenceStore(endpoint string, useSSL bool, accessKey, secretKey, bucket string, logger *slog.Logger) (*EvidenceStore, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	if bucket = strings.TrimSpace(bucket); bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(accessKey), strings.TrimSpace(secretKey), ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}
	return &EvidenceStore{bucket: bucket, client: client, logger: logger}, nil
}

func (s *EvidenceStore) Put(ctx context.Context, transactionID, filename, contentType string, size int64, r io.Reader) (string, error) {
	if r == nil {
		return "", errors.New("s3: reader is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := path.Join("claims", transactionID, fmt.Sprintf("%d-%s", time.Now().UnixNano(), path.Base(filename)))
	if size <= 0 {
		size = -1
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("s3: put object: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("claim evidence stored", "transaction_id", transactionID, "key", key)
	}
	return key, nil
}

func (s *EvidenceStore) ensureBucket(ctx context.Context) error {
	s.bucketInitOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.bucketInitErr = fmt.Errorf("s3: check bucket: %w", err)
			return
		}
		if exists {
			return
		}
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			s.bucketInitErr = fmt.Errorf("s3: make bucket: %w", err)
		}
	})
	return s.bucketInitErr
}

var _ policies.EvidenceStore = (*EvidenceStore)(nil)
