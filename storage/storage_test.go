package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"mixdeck/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBucket is an in-memory stand-in for the S3 object calls
type memBucket struct {
	mu       sync.Mutex
	objects  map[string][]byte
	types    map[string]string
	pageSize int
	failList error
}

func newMemBucket() *memBucket {
	return &memBucket{objects: map[string][]byte{}, types: map[string]string{}, pageSize: 2}
}

func (b *memBucket) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[aws.ToString(in.Key)] = data
	b.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (b *memBucket) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (b *memBucket) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if b.failList != nil {
		return nil, b.failList
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var keys []string
	for k := range b.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		start, _ = strconv.Atoi(tok)
	}
	end := min(start+b.pageSize, len(keys))

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(b.objects[k]))),
			LastModified: aws.Time(time.UnixMilli(1700000000000)),
		})
	}
	return out, nil
}

type fakePresigner struct{}

func (fakePresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{
		URL:    fmt.Sprintf("https://bucket.example/%s?X-Amz-Signature=abc", aws.ToString(in.Key)),
		Method: "GET",
	}, nil
}

func newTestClient(t *testing.T) (*Client, *memBucket, *clockwork.FakeClock) {
	t.Helper()
	bucket := newMemBucket()
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1700000000123))
	return newClient(bucket, fakePresigner{}, "clips", time.Hour, clock), bucket, clock
}

func TestUploadKeyLayout(t *testing.T) {
	c, bucket, _ := newTestClient(t)

	key, err := c.Upload(context.Background(), "voiceover", "Café Ünïcode!.MP3", "audio/mpeg", strings.NewReader("id3"), 3)
	require.NoError(t, err)
	assert.Equal(t, "voiceover/1700000000123-cafe_unicode.mp3", key)
	assert.Equal(t, []byte("id3"), bucket.objects[key])
	assert.Equal(t, "audio/mpeg", bucket.types[key])
}

func TestUploadDefaultsContentType(t *testing.T) {
	c, bucket, _ := newTestClient(t)

	key, err := c.Upload(context.Background(), "background", "a.mp3", "", strings.NewReader("x"), -1)
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", bucket.types[key])
}

func TestUploadRejectsBadKind(t *testing.T) {
	c, _, _ := newTestClient(t)

	for _, kind := range []string{"", "a/b"} {
		_, err := c.Upload(context.Background(), kind, "a.mp3", "", strings.NewReader("x"), 1)
		assert.ErrorIs(t, err, ErrInvalidKey, "kind %q", kind)
	}
}

func TestListPaginatesAndPresigns(t *testing.T) {
	c, _, clock := newTestClient(t)
	ctx := context.Background()

	var keys []string
	for i := 0; i < 5; i++ {
		key, err := c.Upload(ctx, "background", fmt.Sprintf("track %d.mp3", i), "audio/mpeg", strings.NewReader("data"), 4)
		require.NoError(t, err)
		keys = append(keys, key)
		clock.Advance(time.Millisecond)
	}
	_, err := c.Upload(ctx, "voiceover", "vo.wav", "audio/wav", strings.NewReader("v"), 1)
	require.NoError(t, err)

	objects, err := c.List(ctx, "background")
	require.NoError(t, err)
	require.Len(t, objects, 5)
	for i, obj := range objects {
		assert.Equal(t, keys[i], obj.Key)
		assert.Equal(t, fmt.Sprintf("track_%d.mp3", i), obj.Name)
		assert.Equal(t, "background", obj.Type)
		assert.Equal(t, int64(4), obj.Size)
		assert.Contains(t, obj.URL, obj.Key)
	}

	all, err := c.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestListError(t *testing.T) {
	c, bucket, _ := newTestClient(t)
	bucket.failList = errors.New("access denied")

	_, err := c.List(context.Background(), "background")
	assert.ErrorContains(t, err, "access denied")
}

func TestDelete(t *testing.T) {
	c, bucket, _ := newTestClient(t)
	ctx := context.Background()

	key, err := c.Upload(ctx, "background", "a.mp3", "", strings.NewReader("x"), 1)
	require.NoError(t, err)
	require.NoError(t, c.Delete(ctx, key))
	assert.NotContains(t, bucket.objects, key)

	for _, bad := range []string{"", "nokind", "/x", "background/", "background/../secret"} {
		assert.ErrorIs(t, c.Delete(ctx, bad), ErrInvalidKey, "key %q", bad)
	}
}

func TestNewRequiresSettings(t *testing.T) {
	_, err := New(context.Background(), config.StorageConfig{Bucket: "clips", PresignTTL: time.Hour})
	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "storage.account_id", cfgErr.Field)
}

func TestPresignURLAgainstR2Endpoint(t *testing.T) {
	t.Setenv("AWS_CONFIG_FILE", t.TempDir()+"/none")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", t.TempDir()+"/none")

	c, err := New(context.Background(), config.StorageConfig{
		AccountID:       "acct",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		Bucket:          "clips",
		Region:          "auto",
		PresignTTL:      time.Hour,
	})
	require.NoError(t, err)

	url, err := c.PresignURL(context.Background(), "background/1-a.mp3")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://acct.r2.cloudflarestorage.com/clips/background/1-a.mp3?"), url)
	assert.Contains(t, url, "X-Amz-Expires=3600")
	assert.Contains(t, url, "X-Amz-Signature=")
	assert.Equal(t, time.Hour, c.TTL())
}
