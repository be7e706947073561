package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	auditrepo "github.com/dmitrijs2005/authkeeper/internal/server/repositories/audit"
)

const archiveTimeLayout = "20060102T150405Z"

// ObjectPutter is the part of the S3 client the archiver needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Config struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
}

// NewS3Client builds a client for AWS or any S3-compatible endpoint.
func NewS3Client(ctx context.Context, c S3Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

type ArchiveResult struct {
	Key     string `json:"key"`
	Records int    `json:"records"`
}

// Archiver copies a time range of the audit trail to object storage as
// JSON lines. Records are copied, never removed.
type Archiver struct {
	repo   auditrepo.Repository
	client ObjectPutter
	bucket string
}

func NewArchiver(repo auditrepo.Repository, client ObjectPutter, bucket string) *Archiver {
	return &Archiver{repo: repo, client: client, bucket: bucket}
}

// Archive writes records with from <= timestamp < to to
// audit/<from>_<to>.jsonl.
func (a *Archiver) Archive(ctx context.Context, from, to time.Time) (*ArchiveResult, error) {
	if !from.Before(to) {
		return nil, fmt.Errorf("empty archive range %s..%s", from, to)
	}

	records, err := a.repo.ListBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return nil, err
		}
	}

	key := fmt.Sprintf("audit/%s_%s.jsonl", from.UTC().Format(archiveTimeLayout), to.UTC().Format(archiveTimeLayout))

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 put: %w", err)
	}

	return &ArchiveResult{Key: key, Records: len(records)}, nil
}
