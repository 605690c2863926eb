// Package storage keeps computed analytics records in S3-compatible object
// storage as zstd-compressed JSON.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ConfabulousDev/habitstat/internal/analytics"
	"github.com/ConfabulousDev/habitstat/internal/logger"
)

var tracer = otel.Tracer("habitstat/storage")

// Sentinel errors for storage operations
var (
	// ErrObjectNotFound indicates the requested object does not exist
	ErrObjectNotFound = errors.New("object not found")

	// ErrAccessDenied indicates insufficient permissions for the operation
	ErrAccessDenied = errors.New("access denied")

	// ErrNetworkError indicates a network connectivity issue
	ErrNetworkError = errors.New("network error")
)

// MaxRecordsPerUser is the default cap on records returned by ListAnalytics.
const MaxRecordsPerUser = 10000

// S3Config holds S3/MinIO configuration
type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	UseSSL          bool
}

// S3Store is an analytics.AnalyticsStore on S3/MinIO.
//
// Layout:
//
//	analytics/tasks/{taskID}/{rangeKey}.json.zst     record
//	analytics/users/{userID}/{taskID}/{rangeKey}     empty index marker
type S3Store struct {
	client  *minio.Client
	bucket  string
	encoder *zstd.Encoder
	decoder *zstd.Decoder

	// maxRecords caps ListAnalytics; a truncated listing is logged.
	maxRecords int
}

// NewS3Store creates a new S3/MinIO analytics store
func NewS3Store(config S3Config) (*S3Store, error) {
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	// Verify bucket exists (bucket must be created out-of-band)
	ctx := context.Background()
	exists, err := client.BucketExists(ctx, config.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q does not exist: create it before starting the server", config.BucketName)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &S3Store{
		client:  client,
		bucket:  config.BucketName,
		encoder:    encoder,
		decoder:    decoder,
		maxRecords: MaxRecordsPerUser,
	}, nil
}

func recordKey(taskID int64, rangeKey string) string {
	return fmt.Sprintf("analytics/tasks/%d/%s.json.zst", taskID, rangeKey)
}

func userPrefix(userID string) string {
	return "analytics/users/" + url.PathEscape(userID) + "/"
}

func indexKey(userID string, taskID int64, rangeKey string) string {
	return fmt.Sprintf("%s%d/%s", userPrefix(userID), taskID, rangeKey)
}

// parseIndexKey extracts the task ID and range key from an index marker key.
func parseIndexKey(prefix, key string) (int64, string, error) {
	rest, ok := strings.CutPrefix(key, prefix)
	if !ok {
		return 0, "", fmt.Errorf("index key %q outside prefix %q", key, prefix)
	}
	task, rangeKey, ok := strings.Cut(rest, "/")
	if !ok || rangeKey == "" {
		return 0, "", fmt.Errorf("malformed index key %q", key)
	}
	taskID, err := strconv.ParseInt(task, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("malformed task id in index key %q: %w", key, err)
	}
	return taskID, rangeKey, nil
}

// GetAnalytics implements analytics.AnalyticsStore. A missing object is a miss.
func (s *S3Store) GetAnalytics(ctx context.Context, taskID int64, rangeKey string) (*analytics.TaskAnalytics, error) {
	ctx, span := tracer.Start(ctx, "storage.get_analytics",
		trace.WithAttributes(
			attribute.Int64("task.id", taskID),
			attribute.String("range.key", rangeKey),
		))
	defer span.End()

	data, err := s.download(ctx, recordKey(taskID, rangeKey))
	if errors.Is(err, ErrObjectNotFound) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	record, err := s.decode(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return record, nil
}

// PutAnalytics implements analytics.AnalyticsStore. The record is written
// before its user index marker so a listed marker always has a record.
func (s *S3Store) PutAnalytics(ctx context.Context, record *analytics.TaskAnalytics) error {
	ctx, span := tracer.Start(ctx, "storage.put_analytics",
		trace.WithAttributes(
			attribute.Int64("task.id", record.TaskID),
			attribute.String("range.key", record.RangeKey()),
		))
	defer span.End()

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode analytics: %w", err)
	}
	compressed := s.encoder.EncodeAll(raw, nil)

	if err := s.upload(ctx, recordKey(record.TaskID, record.RangeKey()), compressed, "application/zstd"); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := s.upload(ctx, indexKey(record.UserID, record.TaskID, record.RangeKey()), nil, "application/octet-stream"); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetAttributes(
		attribute.Int("file.size", len(compressed)),
		attribute.Int("file.uncompressed_size", len(raw)),
	)
	return nil
}

// ListAnalytics implements analytics.AnalyticsStore by walking the user index.
// Markers whose record has since disappeared are skipped.
func (s *S3Store) ListAnalytics(ctx context.Context, userID string) ([]analytics.TaskAnalytics, error) {
	ctx, span := tracer.Start(ctx, "storage.list_analytics",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	// Stops the lister goroutine when the loop exits early.
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	prefix := userPrefix(userID)
	objectCh := s.client.ListObjects(listCtx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	var records []analytics.TaskAnalytics
	for obj := range objectCh {
		if obj.Err != nil {
			span.RecordError(obj.Err)
			span.SetStatus(codes.Error, obj.Err.Error())
			return nil, classifyStorageError(obj.Err, "list analytics")
		}
		if len(records) >= s.maxRecords {
			logger.Ctx(ctx).Warn("analytics listing truncated",
				"user_id", userID, "max_records", s.maxRecords)
			span.SetAttributes(attribute.Bool("analytics.truncated", true))
			break
		}

		taskID, rangeKey, err := parseIndexKey(prefix, obj.Key)
		if err != nil {
			return nil, err
		}
		record, err := s.GetAnalytics(ctx, taskID, rangeKey)
		if err != nil {
			return nil, err
		}
		if record != nil {
			records = append(records, *record)
		}
	}

	span.SetAttributes(attribute.Int("analytics.count", len(records)))
	return records, nil
}

// WithMaxRecords returns a store sharing s's client whose ListAnalytics stops
// after n records.
func (s *S3Store) WithMaxRecords(n int) *S3Store {
	capped := *s
	capped.maxRecords = n
	return &capped
}

func (s *S3Store) decode(data []byte) (*analytics.TaskAnalytics, error) {
	raw, err := s.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress analytics: %w", err)
	}
	var record analytics.TaskAnalytics
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to decode analytics: %w", err)
	}
	return &record, nil
}

func (s *S3Store) download(ctx context.Context, key string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyStorageError(err, "download")
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, classifyStorageError(err, "download")
	}
	return data, nil
}

func (s *S3Store) upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return classifyStorageError(err, "upload")
	}
	return nil
}

// classifyStorageError examines a storage error and returns an appropriate sentinel error
func classifyStorageError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var minioErr minio.ErrorResponse
	if errors.As(err, &minioErr) {
		switch minioErr.Code {
		case "NoSuchKey", "NoSuchBucket":
			return fmt.Errorf("%s: %w", operation, ErrObjectNotFound)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%s: %w", operation, ErrAccessDenied)
		}
	}

	msg := err.Error()
	for _, hint := range []string{"connection", "timeout", "network", "dial", "refused"} {
		if strings.Contains(msg, hint) {
			return fmt.Errorf("%s network issue: %w", operation, ErrNetworkError)
		}
	}

	return fmt.Errorf("%s failed: %w", operation, err)
}
