package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"mixdeck/config"
	"mixdeck/metrics"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// presignConcurrency bounds parallel presign calls during List
const presignConcurrency = 8

// ErrInvalidKey is returned for keys that are empty or escape the bucket layout
var ErrInvalidKey = errors.New("invalid object key")

// Object is one stored clip as returned by List
type Object struct {
	Key          string    `json:"key"`
	Name         string    `json:"name"`
	URL          string    `json:"url"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
	Type         string    `json:"type"`
}

type objectAPI interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Client stores clips in an S3-compatible bucket (Cloudflare R2 by default)
type Client struct {
	objects objectAPI
	presign presignAPI
	bucket  string
	ttl     time.Duration
	clock   clockwork.Clock
	logger  *slog.Logger
}

// New creates a client from the storage settings
func New(ctx context.Context, cfg config.StorageConfig) (*Client, error) {
	if err := (&config.Config{Storage: cfg}).ValidateStorage(); err != nil {
		return nil, err
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load object store config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.ResolvedEndpoint())
		o.UsePathStyle = true
	})

	ttl := cfg.PresignTTL
	presigner := s3.NewPresignClient(client, func(o *s3.PresignOptions) {
		o.Expires = ttl
	})

	return newClient(client, presigner, cfg.Bucket, ttl, clockwork.NewRealClock()), nil
}

func newClient(objects objectAPI, presign presignAPI, bucket string, ttl time.Duration, clock clockwork.Clock) *Client {
	return &Client{
		objects: objects,
		presign: presign,
		bucket:  bucket,
		ttl:     ttl,
		clock:   clock,
		logger:  slog.With("component", "storage"),
	}
}

// Upload stores body under a fresh key for kind and returns the key.
// size may be -1 when unknown.
func (c *Client) Upload(ctx context.Context, kind, name, contentType string, body io.Reader, size int64) (key string, err error) {
	defer func() { metrics.RecordStorageOp("upload", err) }()

	if kind == "" || strings.Contains(kind, "/") {
		return "", fmt.Errorf("%w: kind %q", ErrInvalidKey, kind)
	}
	if contentType == "" {
		contentType = "audio/mpeg"
	}

	key = ObjectKey(kind, name, c.clock.Now())
	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := c.objects.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	c.logger.Info("Uploaded clip",
		slog.String("key", key),
		slog.String("content_type", contentType),
		slog.Int64("size", size))
	return key, nil
}

// List returns every object under kind ("" lists the whole bucket) with a presigned URL each
func (c *Client) List(ctx context.Context, kind string) (objects []Object, err error) {
	defer func() { metrics.RecordStorageOp("list", err) }()

	prefix := ""
	if kind != "" {
		prefix = kind + "/"
	}

	paginator := s3.NewListObjectsV2Paginator(c.objects, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %q: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			objects = append(objects, Object{
				Key:          key,
				Name:         DisplayName(key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
				Type:         KindOf(key),
			})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(presignConcurrency)
	for i := range objects {
		g.Go(func() error {
			url, err := c.presignURL(gctx, objects[i].Key)
			if err != nil {
				return err
			}
			objects[i].URL = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Debug("Listed clips", slog.String("prefix", prefix), slog.Int("count", len(objects)))
	return objects, nil
}

// Delete removes the object at key
func (c *Client) Delete(ctx context.Context, key string) (err error) {
	defer func() { metrics.RecordStorageOp("delete", err) }()

	if err := ValidateKey(key); err != nil {
		return err
	}
	if _, err := c.objects.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}

	c.logger.Info("Deleted clip", slog.String("key", key))
	return nil
}

// PresignURL returns a time-limited GET URL for key
func (c *Client) PresignURL(ctx context.Context, key string) (url string, err error) {
	defer func() { metrics.RecordStorageOp("presign", err) }()

	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return c.presignURL(ctx, key)
}

func (c *Client) presignURL(ctx context.Context, key string) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return req.URL, nil
}

// TTL returns how long presigned URLs stay valid
func (c *Client) TTL() time.Duration {
	return c.ttl
}

// ValidateKey rejects empty keys, keys without a kind prefix and path traversal
func ValidateKey(key string) error {
	kind, rest, ok := strings.Cut(key, "/")
	if !ok || kind == "" || rest == "" {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
