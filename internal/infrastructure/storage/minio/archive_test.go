package minio

import (
	"context"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracefold/anonymizer/internal/config"
	"github.com/tracefold/anonymizer/internal/infrastructure/monitoring/logging"
	"github.com/tracefold/anonymizer/pkg/errors"
)

type mockAPI struct {
	bucketExists bool
	bucketErr    error
	madeBuckets  []string

	putKey     string
	putData    []byte
	putErr     error
	removedKey string
	removeErr  error

	listObjects []miniogo.ObjectInfo
	presignErr  error
}

func (m *mockAPI) BucketExists(_ context.Context, _ string) (bool, error) {
	return m.bucketExists, m.bucketErr
}

func (m *mockAPI) MakeBucket(_ context.Context, name string, _ miniogo.MakeBucketOptions) error {
	m.madeBuckets = append(m.madeBuckets, name)
	return nil
}

func (m *mockAPI) PutObject(_ context.Context, _, key string, reader io.Reader, _ int64, _ miniogo.PutObjectOptions) (miniogo.UploadInfo, error) {
	if m.putErr != nil {
		return miniogo.UploadInfo{}, m.putErr
	}
	m.putKey = key
	m.putData, _ = io.ReadAll(reader)
	return miniogo.UploadInfo{Key: key, Size: int64(len(m.putData))}, nil
}

func (m *mockAPI) RemoveObject(_ context.Context, _, key string, _ miniogo.RemoveObjectOptions) error {
	if m.removeErr != nil {
		return m.removeErr
	}
	m.removedKey = key
	return nil
}

func (m *mockAPI) StatObject(_ context.Context, _, key string, _ miniogo.StatObjectOptions) (miniogo.ObjectInfo, error) {
	return miniogo.ObjectInfo{Key: key}, nil
}

func (m *mockAPI) ListObjects(_ context.Context, _ string, _ miniogo.ListObjectsOptions) <-chan miniogo.ObjectInfo {
	ch := make(chan miniogo.ObjectInfo, len(m.listObjects))
	for _, o := range m.listObjects {
		ch <- o
	}
	close(ch)
	return ch
}

func (m *mockAPI) PresignedGetObject(_ context.Context, bucket, key string, _ time.Duration, _ url.Values) (*url.URL, error) {
	if m.presignErr != nil {
		return nil, m.presignErr
	}
	return url.Parse("https://minio.local/" + bucket + "/" + key + "?signed=1")
}

func newTestArchive(api *mockAPI) *AuditArchive {
	client := NewClientWithAPI(api, config.MinIOConfig{Bucket: "audit-archive"}, logging.NewNopLogger())
	return NewAuditArchive(client, logging.NewNopLogger())
}

func TestAuditArchive_StoreBatch(t *testing.T) {
	t.Parallel()

	api := &mockAPI{}
	archive := newTestArchive(api)

	day := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	key, err := archive.StoreBatch(context.Background(), day, [][]byte{
		[]byte(`{"event_id":"a"}`),
		[]byte(`{"event_id":"b"}`),
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "audit/2026/08/29/"))
	assert.True(t, strings.HasSuffix(key, ".ndjson"))
	assert.Equal(t, "{\"event_id\":\"a\"}\n{\"event_id\":\"b\"}\n", string(api.putData))
}

func TestAuditArchive_StoreBatch_EmptyRejected(t *testing.T) {
	t.Parallel()

	archive := newTestArchive(&mockAPI{})
	_, err := archive.StoreBatch(context.Background(), time.Now(), nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestAuditArchive_StoreBatch_UploadFailure(t *testing.T) {
	t.Parallel()

	api := &mockAPI{putErr: io.ErrUnexpectedEOF}
	archive := newTestArchive(api)

	_, err := archive.StoreBatch(context.Background(), time.Now(), [][]byte{[]byte("{}")})
	assert.True(t, errors.IsCode(err, errors.ErrCodeAuditArchiveFailed))
}

func TestAuditArchive_List(t *testing.T) {
	t.Parallel()

	now := time.Now()
	api := &mockAPI{listObjects: []miniogo.ObjectInfo{
		{Key: "audit/2026/08/29/a.ndjson", Size: 100, LastModified: now},
		{Key: "audit/2026/08/29/b.ndjson", Size: 200, LastModified: now},
	}}
	archive := newTestArchive(api)

	objects, err := archive.List(context.Background(), "audit/2026/08/")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "audit/2026/08/29/a.ndjson", objects[0].Key)
	assert.Equal(t, int64(200), objects[1].Size)
}

func TestAuditArchive_List_PropagatesObjectError(t *testing.T) {
	t.Parallel()

	api := &mockAPI{listObjects: []miniogo.ObjectInfo{
		{Err: io.ErrUnexpectedEOF},
	}}
	archive := newTestArchive(api)

	_, err := archive.List(context.Background(), "audit/")
	assert.True(t, errors.IsCode(err, errors.ErrCodeAuditArchiveFailed))
}

func TestAuditArchive_PresignedURL(t *testing.T) {
	t.Parallel()

	archive := newTestArchive(&mockAPI{})
	u, err := archive.PresignedURL(context.Background(), "audit/2026/08/29/a.ndjson", 0)
	require.NoError(t, err)
	assert.Contains(t, u, "audit-archive/audit/2026/08/29/a.ndjson")
}

func TestAuditArchive_Delete(t *testing.T) {
	t.Parallel()

	api := &mockAPI{}
	archive := newTestArchive(api)

	require.NoError(t, archive.Delete(context.Background(), "audit/2026/08/29/a.ndjson"))
	assert.Equal(t, "audit/2026/08/29/a.ndjson", api.removedKey)
}

func TestClient_HealthCheck(t *testing.T) {
	t.Parallel()

	client := NewClientWithAPI(&mockAPI{bucketExists: true}, config.MinIOConfig{Bucket: "audit-archive"}, logging.NewNopLogger())
	assert.NoError(t, client.HealthCheck(context.Background()))

	require.NoError(t, client.Close())
	assert.Error(t, client.HealthCheck(context.Background()))
}

func TestClient_HealthCheck_BucketError(t *testing.T) {
	t.Parallel()

	client := NewClientWithAPI(&mockAPI{bucketErr: io.ErrUnexpectedEOF}, config.MinIOConfig{Bucket: "audit-archive"}, logging.NewNopLogger())
	err := client.HealthCheck(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
}
