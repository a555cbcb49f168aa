package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/photovault/media-pipeline/pkg/mediapipeline"
)

// Config options for the S3-compatible backend (AWS S3, Cloudflare R2, MinIO).
type Config struct {
	Region          string // AWS region; R2 uses "auto"
	Bucket          string // Bucket name
	AccessKeyID     string // Access key ID
	SecretAccessKey string // Secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (MinIO)
}

// Backend is an S3-compatible implementation of the mediapipeline.ObjectStore
// interface.
type Backend struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	config   Config
}

// New creates a new S3-compatible storage backend
func New(config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}

	var awsCfg aws.Config
	var err error

	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				config.AccessKeyID,
				config.SecretAccessKey,
				"",
			)),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Options...)

	return &Backend{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   config.Bucket,
		config:   config,
	}, nil
}

func (b *Backend) Name() string { return "s3" }

func (b *Backend) Put(ctx context.Context, key string, reader io.Reader, opts mediapipeline.PutOptions) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   reader,
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = opts.Metadata
	}

	if _, err := b.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, mediapipeline.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return result.Body, nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	// S3 DeleteObject succeeds on absent keys, which matches the idempotent
	// delete contract.
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (b *Backend) Head(ctx context.Context, key string) (*mediapipeline.ObjectInfo, error) {
	result, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, mediapipeline.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to head object: %w", err)
	}

	contentType := "application/octet-stream"
	if result.ContentType != nil {
		contentType = *result.ContentType
	}

	metadata := make(map[string]string, len(result.Metadata))
	for k, v := range result.Metadata {
		metadata[k] = v
	}

	info := &mediapipeline.ObjectInfo{
		Key:         key,
		ContentType: contentType,
		Metadata:    metadata,
	}
	if result.ContentLength != nil {
		info.Size = *result.ContentLength
	}
	if result.LastModified != nil {
		info.UpdatedAt = *result.LastModified
	}
	if result.ETag != nil {
		info.ETag = strings.Trim(*result.ETag, "\"")
	}
	return info, nil
}

func (b *Backend) ListPage(ctx context.Context, prefix, token string, maxKeys int) (*mediapipeline.ObjectPage, error) {
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		MaxKeys: aws.Int32(int32(maxKeys)),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	if token != "" {
		input.ContinuationToken = aws.String(token)
	}

	result, err := b.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	page := &mediapipeline.ObjectPage{
		Objects: make([]mediapipeline.ObjectInfo, 0, len(result.Contents)),
	}
	for _, obj := range result.Contents {
		info := mediapipeline.ObjectInfo{}
		if obj.Key != nil {
			info.Key = *obj.Key
		}
		if obj.Size != nil {
			info.Size = *obj.Size
		}
		if obj.LastModified != nil {
			info.UpdatedAt = *obj.LastModified
		}
		if obj.ETag != nil {
			info.ETag = strings.Trim(*obj.ETag, "\"")
		}
		page.Objects = append(page.Objects, info)
	}
	if result.IsTruncated != nil && *result.IsTruncated && result.NextContinuationToken != nil {
		page.Truncated = true
		page.NextToken = *result.NextContinuationToken
	}
	return page, nil
}

func (b *Backend) BucketExists(ctx context.Context) (bool, error) {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err == nil {
		return true, nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &notFound) || errors.As(err, &noSuchBucket) ||
		strings.Contains(err.Error(), "NoSuchBucket") {
		return false, nil
	}
	return false, fmt.Errorf("failed to check bucket: %w", err)
}

func (b *Backend) EnsureBucket(ctx context.Context) error {
	exists, err := b.BucketExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	createInput := &s3.CreateBucketInput{
		Bucket: aws.String(b.bucket),
	}
	// Location constraint is required outside us-east-1
	if b.config.Region != "us-east-1" && b.config.Region != "auto" {
		createInput.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.config.Region),
		}
	}

	if _, err := b.client.CreateBucket(ctx, createInput); err != nil {
		if strings.Contains(err.Error(), "BucketAlreadyExists") ||
			strings.Contains(err.Error(), "BucketAlreadyOwnedByYou") {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// PublicURL builds the backend's public URL for a key: the custom endpoint
// when one is configured, otherwise the virtual-hosted AWS form.
func (b *Backend) PublicURL(key string) string {
	escaped := escapeKey(key)
	if b.config.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(b.config.Endpoint, "/"), b.bucket, escaped)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", b.bucket, b.config.Region, escaped)
}

// KeyFromURL inverts PublicURL: it recognizes the virtual-hosted AWS form and
// any URL carrying a "{bucket}/" path marker (custom endpoints, path-style).
func (b *Backend) KeyFromURL(u string) (string, bool) {
	hostPrefix := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/", b.bucket, b.config.Region)
	if strings.HasPrefix(u, hostPrefix) {
		return unescapeKey(u[len(hostPrefix):]), true
	}

	marker := b.bucket + "/"
	if idx := strings.Index(u, marker); idx >= 0 {
		return unescapeKey(u[idx+len(marker):]), true
	}
	return "", false
}

func unescapeKey(escaped string) string {
	key, err := url.PathUnescape(escaped)
	if err != nil {
		return escaped
	}
	return key
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
