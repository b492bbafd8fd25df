package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIO is an ObjectStore for S3-compatible servers. References use s3://.
type MinIO struct {
	client *minio.Client
}

// NewMinIO connects to an S3-compatible endpoint with static credentials.
func NewMinIO(endpoint, accessKey, secretKey string, useSSL bool) (*MinIO, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &MinIO{client: client}, nil
}

func (m *MinIO) Ref(bucket, key string) string {
	return Ref{Scheme: "s3", Bucket: bucket, Key: key}.String()
}

func (m *MinIO) Get(ctx context.Context, ref string) (*Object, error) {
	r, err := parseRefWithScheme(ref, "s3")
	if err != nil {
		return nil, err
	}

	obj, err := m.client.GetObject(ctx, r.Bucket, r.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, m.translate(ref, err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, m.translate(ref, err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", ref, err)
	}
	if int64(len(data)) != info.Size {
		return nil, fmt.Errorf("failed to download the entire object %s: expected bytes %d received %d", ref, info.Size, len(data))
	}

	return &Object{
		Data:            data,
		ContentType:     info.ContentType,
		ContentEncoding: info.Metadata.Get("Content-Encoding"),
		Metadata:        info.UserMetadata,
		Created:         info.LastModified,
	}, nil
}

func (m *MinIO) Put(ctx context.Context, ref string, data []byte, contentType string) (string, error) {
	r, err := parseRefWithScheme(ref, "s3")
	if err != nil {
		return "", err
	}
	_, err = m.client.PutObject(ctx, r.Bucket, r.Key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", ref, err)
	}
	return r.String(), nil
}

func (m *MinIO) translate(ref string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return fmt.Errorf("failed to get object %s: %w", ref, err)
}
