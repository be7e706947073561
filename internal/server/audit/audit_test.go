package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu      sync.Mutex
	records []*models.AuditRecord
	err     error
	gate    chan struct{}

	between  []*models.AuditRecord
	from, to time.Time
}

func (f *fakeRepo) Append(ctx context.Context, r *models.AuditRecord) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, r)
	return nil
}

func (f *fakeRepo) List(ctx context.Context, limit, offset int) ([]*models.AuditRecord, error) {
	return nil, nil
}

func (f *fakeRepo) ListBetween(ctx context.Context, from, to time.Time) ([]*models.AuditRecord, error) {
	f.from, f.to = from, to
	return f.between, f.err
}

func (f *fakeRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func rec(email string) *models.AuditRecord {
	return &models.AuditRecord{Email: email, Event: models.EventLogin, Reason: models.ReasonBadCredentials}
}

func TestSync_Writes(t *testing.T) {
	repo := &fakeRepo{}
	s := NewSync(repo, logging.Nop())

	s.Record(context.Background(), rec("a@x.com"))
	assert.Equal(t, 1, repo.count())
}

func TestSync_CancelledContextStillWrites(t *testing.T) {
	repo := &fakeRepo{}
	s := NewSync(repo, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Record(ctx, rec("a@x.com"))
	assert.Equal(t, 1, repo.count())
}

func TestSync_FailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	repo := &fakeRepo{err: errors.New("disk full")}
	s := NewSync(repo, logging.NewJSONLogger(&buf, "debug"))

	s.Record(context.Background(), rec("a@x.com"))
	assert.Contains(t, buf.String(), "audit write failed")
	assert.Contains(t, buf.String(), "disk full")
}

func TestDispatcher_DrainsOnClose(t *testing.T) {
	repo := &fakeRepo{}
	d := NewDispatcher(repo, logging.Nop(), 8)

	for i := 0; i < 50; i++ {
		d.Record(context.Background(), rec("a@x.com"))
	}
	d.Close()

	assert.Equal(t, 50, repo.count())
}

func TestDispatcher_BlocksWhenFullNeverDrops(t *testing.T) {
	repo := &fakeRepo{gate: make(chan struct{})}
	d := NewDispatcher(repo, logging.Nop(), 1)

	// the worker takes the first and blocks in Append; the second fills the buffer
	d.Record(context.Background(), rec("1"))
	d.Record(context.Background(), rec("2"))

	third := make(chan struct{})
	go func() {
		d.Record(context.Background(), rec("3"))
		close(third)
	}()

	time.Sleep(20 * time.Millisecond)

	close(repo.gate)
	<-third
	d.Close()

	assert.Equal(t, 3, repo.count())
}

func TestDispatcher_RecordAfterCloseWritesInline(t *testing.T) {
	repo := &fakeRepo{}
	d := NewDispatcher(repo, logging.Nop(), 1)
	d.Close()
	d.Close()

	d.Record(context.Background(), rec("late@x.com"))
	assert.Equal(t, 1, repo.count())
}

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	if in.Body != nil {
		f.body, _ = io.ReadAll(in.Body)
	}
	return &s3.PutObjectOutput{}, f.err
}

func TestArchiver_WritesJSONLines(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	repo := &fakeRepo{between: []*models.AuditRecord{rec("a@x.com"), rec("b@x.com")}}
	putter := &fakePutter{}

	res, err := NewArchiver(repo, putter, "audit-bucket").Archive(context.Background(), from, to)
	require.NoError(t, err)

	assert.Equal(t, "audit/20260301T000000Z_20260302T000000Z.jsonl", res.Key)
	assert.Equal(t, 2, res.Records)
	assert.Equal(t, from, repo.from)
	assert.Equal(t, to, repo.to)

	require.NotNil(t, putter.input)
	assert.Equal(t, "audit-bucket", *putter.input.Bucket)
	assert.Equal(t, res.Key, *putter.input.Key)

	lines := strings.Split(strings.TrimSpace(string(putter.body)), "\n")
	require.Len(t, lines, 2)
	var got models.AuditRecord
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &got))
	assert.Equal(t, "b@x.com", got.Email)
}

func TestArchiver_Errors(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := NewArchiver(&fakeRepo{}, &fakePutter{}, "b").Archive(context.Background(), from, from)
	require.Error(t, err)

	_, err = NewArchiver(&fakeRepo{err: errors.New("db down")}, &fakePutter{}, "b").Archive(context.Background(), from, from.Add(time.Hour))
	require.Error(t, err)

	_, err = NewArchiver(&fakeRepo{}, &fakePutter{err: errors.New("403")}, "b").Archive(context.Background(), from, from.Add(time.Hour))
	require.ErrorContains(t, err, "s3 put")
}

func TestNewS3Client(t *testing.T) {
	c, err := NewS3Client(context.Background(), S3Config{
		Region: "us-east-1", BaseEndpoint: "http://127.0.0.1:9000", AccessKey: "minio", SecretKey: "minio123",
	})
	require.NoError(t, err)
	assert.NotNil(t, c)
}
