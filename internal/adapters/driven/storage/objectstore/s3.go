package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/custodia-labs/convorag/internal/core/domain"
)

// Ensure S3Bucket implements the interface.
var _ Bucket = (*S3Bucket)(nil)

// S3Config configures an S3 compatible bucket.
type S3Config struct {
	// Endpoint overrides the AWS endpoint, e.g. a MinIO URL.
	Endpoint string

	// Region is the bucket region (default: us-east-1).
	Region string

	// Bucket is the bucket name (required).
	Bucket string

	// Prefix is prepended to every key.
	Prefix string

	// AccessKey and SecretKey select static credentials. Empty uses the
	// default AWS credential chain.
	AccessKey string
	SecretKey string

	// PathStyle addresses the bucket in the path instead of the host name.
	PathStyle bool

	// HTTPClient overrides the SDK transport.
	HTTPClient *http.Client
}

// S3Bucket stores objects in an S3 bucket. Single object PUTs are atomic,
// which is all IndexStore relies on.
type S3Bucket struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Bucket creates a bucket client.
func NewS3Bucket(ctx context.Context, cfg S3Config) (*S3Bucket, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket is required", domain.ErrConfiguration)
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, config.WithHTTPClient(cfg.HTTPClient))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: loading aws config: %w", domain.ErrConfiguration, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
		// Checksums only where the API requires them.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &S3Bucket{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Put uploads an object.
func (b *S3Bucket) Put(ctx context.Context, key string, data []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(b.objectKey(key)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("%w: s3 put %s: %w", domain.ErrUpstream, key, err)
	}
	return nil
}

// Get downloads an object.
func (b *S3Bucket) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: s3 get %s: %w", domain.ErrUpstream, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: s3 read %s: %w", domain.ErrUpstream, key, err)
	}
	return data, nil
}

// List pages through ListObjectsV2.
func (b *S3Bucket) List(ctx context.Context, prefix string) ([]string, error) {
	full := b.objectKey(prefix)
	if prefix == "" && b.prefix != "" {
		full = b.prefix + "/"
	}

	var keys []string
	pages := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(full),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: s3 list %s: %w", domain.ErrUpstream, prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, b.relativeKey(aws.ToString(obj.Key)))
		}
	}
	return keys, nil
}

// Delete removes objects one by one.
func (b *S3Bucket) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(b.objectKey(key)),
		})
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("%w: s3 delete %s: %w", domain.ErrUpstream, key, err)
		}
	}
	return nil
}

func (b *S3Bucket) objectKey(key string) string {
	if b.prefix == "" {
		return key
	}
	if strings.HasSuffix(key, "/") {
		return path.Join(b.prefix, key) + "/"
	}
	return path.Join(b.prefix, key)
}

func (b *S3Bucket) relativeKey(key string) string {
	if b.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, b.prefix+"/")
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}
