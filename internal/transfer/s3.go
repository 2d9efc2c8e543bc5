package transfer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/packship/packship/internal/archive"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// S3Uploader is the part of manager.Uploader the S3 transferrer needs.
type S3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Config contains configuration for the S3 transferrer.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

// S3Transferrer uploads files to S3-compatible object storage.
type S3Transferrer struct {
	name     string
	bucket   string
	prefix   string
	uploader S3Uploader
	fs       afero.Fs
	logger   *zap.Logger
}

// NewS3Transferrer creates a new S3 transferrer with the given configuration.
func NewS3Transferrer(ctx context.Context, name string, logger *zap.Logger, afs afero.Fs, cfg S3Config) (*S3Transferrer, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithHTTPClient(&http.Client{Transport: cleanhttp.DefaultPooledTransport()}),
	}

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)

	// Custom endpoint for S3-compatible services (R2, MinIO, etc.)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return NewS3TransferrerWithUploader(name, logger, afs, cfg.Bucket, cfg.Prefix, manager.NewUploader(client)), nil
}

// NewS3TransferrerWithUploader creates a new S3 transferrer with a custom
// uploader and filesystem. This is useful for testing.
func NewS3TransferrerWithUploader(name string, logger *zap.Logger, afs afero.Fs, bucket, prefix string, uploader S3Uploader) *S3Transferrer {
	return &S3Transferrer{
		name:     name,
		bucket:   bucket,
		prefix:   prefix,
		uploader: uploader,
		fs:       afs,
		logger:   logger,
	}
}

func (s *S3Transferrer) Name() string {
	if s.name != "" {
		return s.name
	}
	if s.prefix != "" {
		return fmt.Sprintf("s3(%s/%s)", s.bucket, s.prefix)
	}
	return fmt.Sprintf("s3(%s)", s.bucket)
}

func (s *S3Transferrer) Kind() string {
	return string(MethodS3)
}

// Transfer uploads a file under its base name, or every regular file of a
// directory keyed relative to the directory's parent.
func (s *S3Transferrer) Transfer(ctx context.Context, localPath string) error {
	info, err := s.fs.Stat(localPath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	if !info.IsDir() {
		return s.upload(ctx, localPath, filepath.Base(localPath))
	}

	root := filepath.Clean(localPath)
	base := filepath.Dir(root)
	count := 0
	err = afero.Walk(s.fs, root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		count++
		return s.upload(ctx, p, filepath.ToSlash(rel))
	})
	if err != nil {
		return err
	}
	s.logger.Debug("uploaded directory",
		zap.String("transfer", s.Name()),
		zap.String("path", localPath),
		zap.Int("objects", count),
	)
	return nil
}

func (s *S3Transferrer) upload(ctx context.Context, localPath, objectPath string) (err error) {
	key := objectPath
	if s.prefix != "" {
		key = path.Join(s.prefix, objectPath)
	}

	f, err := s.fs.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close %s: %w", localPath, closeErr))
		}
	}()

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	}

	if contentType := contentTypeFromPath(objectPath); contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("%w: upload to s3://%s/%s: %w", ErrTransferFailed, s.bucket, key, err)
	}

	s.logger.Debug("uploaded object", zap.String("bucket", s.bucket), zap.String("key", key))
	return nil
}

// contentTypeFromPath returns the Content-Type based on the file extension.
func contentTypeFromPath(p string) string {
	if format, err := archive.DetectFormat(p); err == nil {
		if format.Kind == archive.KindZip {
			return "application/zip"
		}
		switch format.Compression {
		case archive.CompressionGzip:
			return "application/gzip"
		case archive.CompressionBzip2:
			return "application/x-bzip2"
		case archive.CompressionXz:
			return "application/x-xz"
		case archive.CompressionZstd:
			return "application/zstd"
		default:
			return "application/x-tar"
		}
	}

	switch path.Ext(p) {
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/x-yaml"
	case ".txt":
		return "text/plain"
	default:
		return ""
	}
}
