package sink

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zstd"
)

// S3PutClient abstracts the S3 PutObject operation for testability.
type S3PutClient interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink archives raw payloads to an S3 bucket, zstd-compressed. Keys
// follow <prefix>/<city>_raw_<utc-ts>.json.zst.
type S3Sink struct {
	client  S3PutClient
	bucket  string
	prefix  string
	encoder *zstd.Encoder
	nowFn   func() time.Time
}

// NewS3Sink creates an S3Sink writing under the given bucket and key
// prefix.
func NewS3Sink(client S3PutClient, bucket, prefix string) (*S3Sink, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	return &S3Sink{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		encoder: enc,
		nowFn:   time.Now,
	}, nil
}

// WithNowFunc overrides the clock used for object keys. Test hook.
func (s *S3Sink) WithNowFunc(fn func() time.Time) *S3Sink {
	s.nowFn = fn
	return s
}

// Save compresses and uploads the payload, returning the object URI.
func (s *S3Sink) Save(ctx context.Context, city string, payload []byte) (string, error) {
	key := path.Join(s.prefix, fileName(city, s.nowFn())+".zst")
	compressed := s.encoder.EncodeAll(payload, nil)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(compressed),
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("zstd"),
	})
	if err != nil {
		return "", fmt.Errorf("uploading raw payload for %s: %w", city, err)
	}

	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
