// Package storage archives replaced domain snapshots to S3 so the history
// of a domain survives the single-row snapshot table.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/domainwatch/internal/domain"
)

// s3API is the subset of the S3 client used here.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// SnapshotArchive stores snapshots as JSON objects under
// snapshots/<tracked domain id>/<timestamp>.json.
type SnapshotArchive struct {
	client s3API
	bucket string
}

// NewSnapshotArchive creates an archive for bucket using the default AWS
// credential chain.
func NewSnapshotArchive(ctx context.Context, bucket, region string) (*SnapshotArchive, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &SnapshotArchive{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

func snapshotPrefix(trackedDomainID string) string {
	return "snapshots/" + trackedDomainID + "/"
}

// SnapshotKey is the object key of a snapshot.
func SnapshotKey(s *domain.Snapshot) string {
	return snapshotPrefix(s.TrackedDomainID) + s.CreatedAt.UTC().Format("20060102T150405Z") + ".json"
}

// Archive writes s to the bucket. Writing the same snapshot twice
// overwrites the same key.
func (a *SnapshotArchive) Archive(ctx context.Context, s *domain.Snapshot) error {
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(SnapshotKey(s)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("putting snapshot to S3: %w", err)
	}
	return nil
}

// Check reports whether the bucket is reachable.
func (a *SnapshotArchive) Check(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err != nil {
		return fmt.Errorf("HeadBucket %s: %w", a.bucket, err)
	}
	return nil
}

// Bucket returns the bucket name.
func (a *SnapshotArchive) Bucket() string { return a.bucket }

// History returns every archived snapshot of a domain, oldest first.
func (a *SnapshotArchive) History(ctx context.Context, trackedDomainID string) ([]domain.Snapshot, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(snapshotPrefix(trackedDomainID)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing S3 objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil && strings.HasSuffix(*obj.Key, ".json") {
				keys = append(keys, *obj.Key)
			}
		}
	}
	sort.Strings(keys)

	out := make([]domain.Snapshot, 0, len(keys))
	for _, key := range keys {
		s, err := a.get(ctx, key)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, nil
}

func (a *SnapshotArchive) get(ctx context.Context, key string) (*domain.Snapshot, error) {
	result, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("getting object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("reading S3 object body: %w", err)
	}
	var s domain.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot %s: %w", key, err)
	}
	return &s, nil
}
