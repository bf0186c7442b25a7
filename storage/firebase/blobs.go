package firebase

import (
	"context"
	"io"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/teachhub/backend/core/assessment"
)

// BlobStore keeps evidence files in a Firebase Storage bucket.
type BlobStore struct {
	bucket *gcs.BucketHandle
}

var _ assessment.BlobStore = (*BlobStore)(nil)

// NewBlobStore opens bucket, or the app's default bucket when empty.
func NewBlobStore(ctx context.Context, app *firebase.App, bucket string) (*BlobStore, error) {
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "initialising storage client")
	}
	var handle *gcs.BucketHandle
	if bucket == "" {
		handle, err = client.DefaultBucket()
	} else {
		handle, err = client.Bucket(bucket)
	}
	if err != nil {
		return nil, errors.Wrap(err, "opening evidence bucket")
	}
	return &BlobStore{bucket: handle}, nil
}

func (s *BlobStore) Put(ctx context.Context, path, contentType string, r io.Reader) (int64, error) {
	// cancelling ctx before Close aborts the upload
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.bucket.Object(path).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{
		"firebaseStorageDownloadTokens": uuid.New().String(),
	}

	n, err := io.Copy(w, r)
	if err != nil {
		cancel()
		_ = w.Close()
		return n, err
	}
	if err := w.Close(); err != nil {
		return n, errors.Wrap(err, "finalising upload")
	}
	return n, nil
}

func (s *BlobStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	rc, err := s.bucket.Object(path).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, assessment.ErrEvidenceNotFound
		}
		return nil, err
	}
	return rc, nil
}

func (s *BlobStore) Delete(ctx context.Context, path string) error {
	err := s.bucket.Object(path).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return err
	}
	return nil
}
