package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"usagestats/internal/metrics"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter 는 S3 PutObject 호출 하나 (*s3.Client 가 만족, 테스트에서는 in-memory 구현).
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client 는 기본 AWS 설정으로 S3 client 를 만든다.
// SDK retry 는 0 으로 고정한다. 재시도는 Uploader 에서만 한다.
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.Retryer = aws.NopRetryer{}
	}), nil
}

// Uploader
// ------------------------------------------------------------
// gzip JSONL 배치를 S3 에 올린다.
//   - 시도당 timeout
//   - 지수 backoff (200ms 시작, 최대 2s)
//   - ctx 취소 시 즉시 중단
type Uploader struct {
	client  ObjectPutter
	bucket  string
	timeout time.Duration
	retries int
	metrics *metrics.Metrics

	backoff time.Duration
}

func NewUploader(client ObjectPutter, bucket string, timeout time.Duration, retries int, m *metrics.Metrics) *Uploader {
	if retries < 1 {
		retries = 1
	}
	return &Uploader{
		client:  client,
		bucket:  bucket,
		timeout: timeout,
		retries: retries,
		metrics: m,
		backoff: 200 * time.Millisecond,
	}
}

// Upload 는 body 를 key 로 업로드한다. 모든 시도가 실패하면 마지막 에러를 반환한다.
func (u *Uploader) Upload(ctx context.Context, key string, body []byte) error {
	var lastErr error
	backoff := u.backoff

	for attempt := 1; attempt <= u.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		// 재시도마다 reader 를 새로 만든다
		err := u.put(ctx, key, body)
		if err == nil {
			return nil
		}
		lastErr = err
		u.metrics.Inc(metrics.S3PutErrors)

		if attempt == u.retries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > 2*time.Second {
				backoff = 2 * time.Second
			}
		}
	}
	return lastErr
}

func (u *Uploader) put(ctx context.Context, key string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(u.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(body),
		ContentLength:   aws.Int64(int64(len(body))),
		ContentType:     aws.String("application/x-ndjson"),
		ContentEncoding: aws.String("gzip"),
	})
	return err
}
