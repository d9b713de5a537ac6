package minio

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"github.com/tracefold/anonymizer/internal/infrastructure/monitoring/logging"
	"github.com/tracefold/anonymizer/pkg/errors"
)

// AuditArchive stores batches of audit events as newline-delimited JSON
// objects, keyed by day so retention tooling can prune whole prefixes.
type AuditArchive struct {
	client *Client
	logger logging.Logger
}

// ArchiveObject describes one stored batch.
type ArchiveObject struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

func NewAuditArchive(client *Client, log logging.Logger) *AuditArchive {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &AuditArchive{client: client, logger: log}
}

// objectKey builds "audit/2026/08/29/<uuid>.ndjson".
func objectKey(day time.Time) string {
	return fmt.Sprintf("audit/%s/%s.ndjson", day.UTC().Format("2006/01/02"), uuid.NewString())
}

// StoreBatch writes the given event lines as one NDJSON object and returns
// its key. Empty batches are rejected; an empty archive object would be
// indistinguishable from data loss.
func (a *AuditArchive) StoreBatch(ctx context.Context, day time.Time, lines [][]byte) (string, error) {
	if len(lines) == 0 {
		return "", errors.New(errors.ErrCodeValidation, "audit batch is empty")
	}

	var buf bytes.Buffer
	for _, line := range lines {
		buf.Write(line)
		buf.WriteByte('\n')
	}

	key := objectKey(day)
	_, err := a.client.API().PutObject(ctx, a.client.Bucket(), key,
		bytes.NewReader(buf.Bytes()), int64(buf.Len()),
		minio.PutObjectOptions{ContentType: "application/x-ndjson"},
	)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeAuditArchiveFailed, "failed to store audit batch")
	}

	a.logger.Info("Archived audit batch",
		logging.String("key", key),
		logging.Int("events", len(lines)),
		logging.Int("bytes", buf.Len()),
	)
	return key, nil
}

// List returns the archive objects under the given prefix, e.g.
// "audit/2026/08/".
func (a *AuditArchive) List(ctx context.Context, prefix string) ([]ArchiveObject, error) {
	objects := []ArchiveObject{}
	for info := range a.client.API().ListObjects(ctx, a.client.Bucket(), minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if info.Err != nil {
			return nil, errors.Wrap(info.Err, errors.ErrCodeAuditArchiveFailed, "failed to list audit archive")
		}
		objects = append(objects, ArchiveObject{
			Key:          info.Key,
			Size:         info.Size,
			LastModified: info.LastModified,
		})
	}
	return objects, nil
}

// PresignedURL returns a time-limited download link for one archive object.
func (a *AuditArchive) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = time.Hour
	}
	u, err := a.client.API().PresignedGetObject(ctx, a.client.Bucket(), key, expiry, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeAuditArchiveFailed, "failed to presign archive object")
	}
	return u.String(), nil
}

// Delete removes one archive object. Used by retention pruning.
func (a *AuditArchive) Delete(ctx context.Context, key string) error {
	err := a.client.API().RemoveObject(ctx, a.client.Bucket(), key, minio.RemoveObjectOptions{})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeAuditArchiveFailed, "failed to delete archive object")
	}
	return nil
}
