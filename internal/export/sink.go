package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Sink stores an exported document and returns where it ended up
type Sink interface {
	Save(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// DirSink writes exports into a local directory
type DirSink struct {
	Dir string
}

func (s DirSink) Save(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure export directory: %w", err)
	}
	out := filepath.Join(s.Dir, filepath.Base(name))
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	slog.Info("Exported document", "path", out, "bytes", len(data))
	return out, nil
}

// MinIOConfig locates an S3-compatible bucket
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"`
}

// MinIOSink uploads exports to object storage under <prefix>/YYYY/MM/<name>
type MinIOSink struct {
	client *minio.Client
	bucket string
	prefix string
	now    func() time.Time
}

// NewMinIOSink connects to the bucket and checks that it exists
func NewMinIOSink(ctx context.Context, cfg MinIOConfig) (*MinIOSink, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", cfg.Bucket)
	}

	return &MinIOSink{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		now:    time.Now,
	}, nil
}

func (s *MinIOSink) Save(ctx context.Context, name, contentType string, data []byte) (string, error) {
	now := s.now()
	objectName := path.Join(s.prefix, fmt.Sprintf("%d/%02d", now.Year(), now.Month()), path.Base(name))

	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload export: %w", err)
	}

	location := s.bucket + "/" + objectName
	slog.Info("Exported document", "object", location, "bytes", len(data))
	return location, nil
}
