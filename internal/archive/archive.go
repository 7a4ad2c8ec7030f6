// Package archive writes per-cycle summaries and reports as JSON documents
// to S3 for downstream consumers. Archiving is best-effort from the
// engine's point of view; callers decide whether a write failure is fatal.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// s3Client is the subset of the S3 API the archiver calls.
type s3Client interface {
	PutObject(ctx context.Context, params *s3svc.PutObjectInput, optFns ...func(*s3svc.Options)) (*s3svc.PutObjectOutput, error)
}

// Archiver writes JSON documents under a date-partitioned key layout:
// <prefix>/<kind>/<yyyy>/<mm>/<dd>/<name>.json.
type Archiver struct {
	client s3Client
	bucket string
	prefix string
}

// New returns an Archiver writing to bucket under prefix.
func New(cfg aws.Config, bucket, prefix string) *Archiver {
	return &Archiver{client: s3svc.NewFromConfig(cfg), bucket: bucket, prefix: prefix}
}

// Put marshals doc and writes it under the date partition for day.
// kind partitions document families ("summaries", "reports"); name is the
// object basename without extension.
func (a *Archiver) Put(ctx context.Context, kind, name string, day time.Time, doc any) (string, error) {
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal %s document: %w", kind, err)
	}

	key := fmt.Sprintf("%s/%s/%s/%s.json", a.prefix, kind, day.Format("2006/01/02"), name)
	_, err = a.client.PutObject(ctx, &s3svc.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", a.bucket, key, err)
	}
	log.Debug().Str("bucket", a.bucket).Str("key", key).Int("bytes", len(body)).Msg("document archived")
	return key, nil
}
