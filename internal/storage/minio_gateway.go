package storage

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/pkg/errors"
)

// MinioGateway implements Gateway against a MinIO/S3 bucket.
type MinioGateway struct {
	client *minio.Client
	bucket string
}

// NewMinioGateway creates a Gateway over the given client and bucket.
func NewMinioGateway(client *minio.Client, bucket string) *MinioGateway {
	return &MinioGateway{client: client, bucket: bucket}
}

// Upload writes the payload in a single non-resumable PUT. Multipart is
// disabled so a retried save never resumes a half-written stream.
func (g *MinioGateway) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := g.client.PutObject(
		ctx,
		g.bucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType, DisableMultipart: true},
	)
	if err != nil {
		return errors.Wrapf(err, "failed to upload %s to bucket %s", key, g.bucket)
	}
	return nil
}

// Download reads the full object into memory.
func (g *MinioGateway) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := g.client.GetObject(ctx, g.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s in bucket %s", key, g.bucket)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s from bucket %s", key, g.bucket)
	}
	return data, nil
}

// Delete removes the object, optionally tolerating a missing key.
func (g *MinioGateway) Delete(ctx context.Context, key string, ignoreMissing bool) error {
	err := g.client.RemoveObject(ctx, g.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		if ignoreMissing && minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil
		}
		return errors.Wrapf(err, "failed to delete %s from bucket %s", key, g.bucket)
	}
	return nil
}
