package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/domainwatch/internal/domain"
)

// fakeS3 is an in-memory bucket.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	headErr error
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func TestCheck(t *testing.T) {
	fake := newFakeS3()
	a := &SnapshotArchive{client: fake, bucket: "archive"}
	require.NoError(t, a.Check(context.Background()))

	fake.headErr = errors.New("AccessDenied")
	err := a.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive")
}

func TestSnapshotKey(t *testing.T) {
	s := &domain.Snapshot{TrackedDomainID: "td-1", CreatedAt: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)}
	assert.Equal(t, "snapshots/td-1/20260304T050607Z.json", SnapshotKey(s))
}

func TestArchiveAndHistory(t *testing.T) {
	fake := newFakeS3()
	a := &SnapshotArchive{client: fake, bucket: "archive"}
	ctx := context.Background()

	issuer := "letsencrypt"
	first := &domain.Snapshot{
		TrackedDomainID: "td-1",
		Certificates:    []domain.Certificate{{CAProviderID: &issuer, Issuer: "R3"}},
		CreatedAt:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	second := &domain.Snapshot{TrackedDomainID: "td-1", CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}
	other := &domain.Snapshot{TrackedDomainID: "td-2", CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}

	for _, s := range []*domain.Snapshot{second, first, other} {
		require.NoError(t, a.Archive(ctx, s))
	}

	history, err := a.History(ctx, "td-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].CreatedAt.Equal(first.CreatedAt))
	assert.Equal(t, "R3", history[0].Certificates[0].Issuer)
	assert.True(t, history[1].CreatedAt.Equal(second.CreatedAt))
}

func TestArchive_PutError(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = errors.New("access denied")
	a := &SnapshotArchive{client: fake, bucket: "archive"}

	err := a.Archive(context.Background(), &domain.Snapshot{TrackedDomainID: "td-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}
