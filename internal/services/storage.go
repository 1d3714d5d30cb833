package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"sitepilot/internal/config"
	"sitepilot/internal/models"
	"sitepilot/internal/utils/logger"
)

// SummaryStorage keeps uploaded project briefs.
type SummaryStorage interface {
	models.FileURLGenerator
	Save(ctx context.Context, data []byte, filename, contentType string) (fileID string, err error)
	Read(ctx context.Context, fileID string) ([]byte, error)
}

var (
	_ SummaryStorage = (*S3Storage)(nil)
	_ SummaryStorage = (*LocalStorage)(nil)
)

// NewSummaryStorage builds the storage selected by STORAGE_PROVIDER.
func NewSummaryStorage(ctx context.Context, cfg *config.Config) (SummaryStorage, error) {
	switch cfg.Storage.Provider {
	case "s3":
		return NewS3Storage(ctx, cfg.Storage.S3)
	default:
		return NewLocalStorage(cfg.Storage.BasePath, cfg.Server.PublicURL)
	}
}

// objectKey keeps the original extension so the stored object stays recognisable.
func objectKey(filename string) string {
	return "summaries/" + uuid.New().String() + strings.ToLower(filepath.Ext(filename))
}

type S3Storage struct {
	client *s3.Client
	bucket string
	log    *logger.Logger
}

func NewS3Storage(ctx context.Context, cfg config.S3Config) (*S3Storage, error) {
	log := logger.New("s3_storage")

	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, log.Error("S3 credentials are empty", fmt.Errorf("accessKey or secretKey is empty"))
	}
	if cfg.BucketName == "" {
		return nil, log.Error("S3 bucket is not configured", fmt.Errorf("S3_BUCKET_NAME is empty"))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithRetryMode(aws.RetryModeStandard),
		awsconfig.WithRetryMaxAttempts(3),
	)
	if err != nil {
		return nil, log.Error("Unable to load SDK config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	if _, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(cfg.BucketName),
		MaxKeys: aws.Int32(1),
	}); err != nil {
		return nil, log.Error("Failed to verify S3 credentials", err)
	}

	log.Success("S3 storage ready, bucket %s", cfg.BucketName)
	return &S3Storage{client: client, bucket: cfg.BucketName, log: log}, nil
}

func (s *S3Storage) Save(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	key := objectKey(filename)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata:    map[string]string{"original-name": url.QueryEscape(filename)},
	})
	if err != nil {
		return "", s.log.Error("Failed to upload %s", err, filename)
	}
	s.log.Info("Stored summary %s as %s", filename, key)
	return key, nil
}

func (s *S3Storage) Read(ctx context.Context, fileID string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fileID),
	})
	var missing *types.NoSuchKey
	if errors.As(err, &missing) {
		return nil, fmt.Errorf("summary %s: %w", fileID, fs.ErrNotExist)
	}
	if err != nil {
		return nil, s.log.Error("Failed to read %s", err, fileID)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *S3Storage) SignedURL(ctx context.Context, fileID string, ttl time.Duration) (string, error) {
	presigned, err := s3.NewPresignClient(s.client).PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fileID),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", s.log.Error("Failed to presign %s", err, fileID)
	}
	return presigned.URL, nil
}

// LocalStorage writes briefs under a directory served at /uploads.
type LocalStorage struct {
	basePath  string
	publicURL string
	log       *logger.Logger
}

func NewLocalStorage(basePath, publicURL string) (*LocalStorage, error) {
	if basePath == "" {
		basePath = "./uploads"
	}
	if err := os.MkdirAll(filepath.Join(basePath, "summaries"), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStorage{
		basePath:  basePath,
		publicURL: strings.TrimRight(publicURL, "/"),
		log:       logger.New("local_storage"),
	}, nil
}

// BasePath is the directory to expose under /uploads.
func (l *LocalStorage) BasePath() string { return l.basePath }

func (l *LocalStorage) path(fileID string) (string, error) {
	clean := filepath.Clean("/" + fileID)
	if clean == "/" || strings.Contains(fileID, "..") {
		return "", fmt.Errorf("invalid file id %q: %w", fileID, fs.ErrNotExist)
	}
	return filepath.Join(l.basePath, clean), nil
}

func (l *LocalStorage) Save(_ context.Context, data []byte, filename, _ string) (string, error) {
	key := objectKey(filename)
	p, err := l.path(key)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", l.log.Error("Failed to write %s", err, p)
	}
	return key, nil
}

func (l *LocalStorage) Read(_ context.Context, fileID string) ([]byte, error) {
	p, err := l.path(fileID)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

// SignedURL returns the public link; local files are not access controlled.
func (l *LocalStorage) SignedURL(_ context.Context, fileID string, _ time.Duration) (string, error) {
	if _, err := l.path(fileID); err != nil {
		return "", err
	}
	return l.publicURL + "/uploads/" + fileID, nil
}
