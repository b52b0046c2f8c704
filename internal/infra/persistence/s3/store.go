// Package s3 provides a remote persistence backend that keeps the room
// snapshot as a single JSON object in an S3-compatible bucket (AWS S3 or MinIO).
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"supplywatch/pkg/domain"
)

var _ domain.Backend = (*Store)(nil)

// Store reads and replaces one object per collection.
type Store struct {
	client *s3.Client
	bucket string
	key    string
}

// Config holds explicit construction parameters. Empty credentials fall back
// to the default AWS credentials chain.
type Config struct {
	Region          string
	Bucket          string
	Endpoint        string // optional; if set enables custom endpoint (e.g. MinIO)
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	PathStyle       bool
	Collection      string
}

// ObjectKey returns the object key the snapshot for collection is stored under.
func ObjectKey(collection string) string {
	if collection == "" {
		collection = domain.DefaultCollection
	}
	return strings.TrimSuffix(collection, "/") + ".json"
}

// New creates an S3 store from Config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Store{client: client, bucket: cfg.Bucket, key: ObjectKey(cfg.Collection)}, nil
}

func (s *Store) Driver() domain.Driver { return domain.DriverS3 }

// Key returns the object key holding the snapshot.
func (s *Store) Key() string { return s.key }

// Load fetches the snapshot object. A missing object is an empty snapshot.
func (s *Store) Load(ctx context.Context) (domain.Snapshot, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &s.key})
	if isNotFound(err) {
		return domain.Snapshot{}, nil
	}
	if err != nil {
		return nil, domain.NewStorageError(domain.DriverS3, "load", err)
	}
	defer func() { _ = out.Body.Close() }()
	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, domain.NewStorageError(domain.DriverS3, "load", err)
	}
	snapshot := domain.Snapshot{}
	if len(b) == 0 {
		return snapshot, nil
	}
	if err := json.Unmarshal(b, &snapshot); err != nil {
		return nil, domain.NewStorageError(domain.DriverS3, "load", fmt.Errorf("decode %s: %w", s.key, err))
	}
	return snapshot, nil
}

// Save overwrites the snapshot object. S3 object writes are atomic, so readers
// observe either the previous or the new document.
func (s *Store) Save(ctx context.Context, snapshot domain.Snapshot) error {
	if snapshot == nil {
		snapshot = domain.Snapshot{}
	}
	b, err := json.Marshal(snapshot)
	if err != nil {
		return domain.NewStorageError(domain.DriverS3, "save", fmt.Errorf("encode: %w", err))
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &s.key,
		Body:        bytes.NewReader(b),
		ContentType: aws.String("application/json"),
	})
	return domain.NewStorageError(domain.DriverS3, "save", err)
}

// Close is a no-op; the SDK client holds no resources needing release.
func (s *Store) Close() error { return nil }

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
