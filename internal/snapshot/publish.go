package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	// ObjectKey is where the published snapshot lives in the bucket.
	ObjectKey    = "data/debates.json"
	cacheControl = "public, max-age=60"
)

// PutObjectAPI is the slice of the S3 client the publisher needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher copies the snapshot artifact to S3 behind a CDN.
type S3Publisher struct {
	client     PutObjectAPI
	bucket     string
	cdnBaseURL string // e.g. "https://debates.example.com"
}

func NewS3Publisher(client PutObjectAPI, bucket, cdnBaseURL string) *S3Publisher {
	return &S3Publisher{client: client, bucket: bucket, cdnBaseURL: strings.TrimSuffix(cdnBaseURL, "/")}
}

// Publish uploads data and returns its public URL. Without a CDN base URL the
// s3:// location is returned instead.
func (p *S3Publisher) Publish(ctx context.Context, data []byte) (string, error) {
	key := ObjectKey
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &p.bucket,
		Key:           &key,
		Body:          bytes.NewReader(data),
		ContentType:   aws.String("application/json"),
		CacheControl:  aws.String(cacheControl),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}

	if p.cdnBaseURL == "" {
		return fmt.Sprintf("s3://%s/%s", p.bucket, key), nil
	}
	return p.cdnBaseURL + "/" + key, nil
}
