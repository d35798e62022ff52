package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/abduss/crmassets/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/tags"
)

const defaultObjectStoreTimeout = 5 * time.Second

// Tag keys recording the declared limits of a provisioned container.
const (
	TagMaxObjectBytes = "max-object-bytes"
	TagAllowedTypes   = "allowed-mime-types"
)

// NewMinIOClient establishes a MinIO client using the provided configuration.
func NewMinIOClient(cfg config.MinIOConfig) (*minio.Client, error) {
	endpoint := cfg.Endpoint
	if !strings.Contains(endpoint, ":") {
		// default to MinIO API port when not supplied explicitly
		endpoint = fmt.Sprintf("%s:9000", endpoint)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return client, nil
}

// ContainerSpec describes a bucket to create.
type ContainerSpec struct {
	Name           string
	Public         bool
	MaxObjectBytes int64
	AllowedTypes   []string
}

// minioAPI is the subset of *minio.Client used by MinIOBackend.
type minioAPI interface {
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	SetBucketPolicy(ctx context.Context, bucketName, policy string) error
	SetBucketTagging(ctx context.Context, bucketName string, tags *tags.Tags) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// MinIOBackend adapts a MinIO client to the upload pipeline, translating S3 error codes into Code values.
type MinIOBackend struct {
	client        minioAPI
	region        string
	publicBaseURL string
}

// NewMinIOBackend constructs a backend. publicBaseURL prefixes every resolved object URL.
func NewMinIOBackend(client minioAPI, region, publicBaseURL string) *MinIOBackend {
	return &MinIOBackend{
		client:        client,
		region:        region,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// ListContainers returns the names of all buckets visible to the credentials.
func (b *MinIOBackend) ListContainers(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultObjectStoreTimeout)
	defer cancel()

	buckets, err := b.client.ListBuckets(ctx)
	if err != nil {
		return nil, translate("list buckets", err)
	}
	names := make([]string, 0, len(buckets))
	for _, bucket := range buckets {
		names = append(names, bucket.Name)
	}
	return names, nil
}

// CreateContainer makes the bucket, applies public-read when requested, and tags its declared limits.
// An existing bucket is still configured, then reported as an *Error with CodeBucketExists.
func (b *MinIOBackend) CreateContainer(ctx context.Context, spec ContainerSpec) error {
	ctx, cancel := context.WithTimeout(ctx, defaultObjectStoreTimeout)
	defer cancel()

	var existsErr error
	if err := b.client.MakeBucket(ctx, spec.Name, minio.MakeBucketOptions{Region: b.region}); err != nil {
		existsErr = translate(fmt.Sprintf("create bucket %q", spec.Name), err)
		if CodeOf(existsErr) != CodeBucketExists {
			return existsErr
		}
	}

	// policy and tags are idempotent, so a bucket left half-configured is repaired here
	if err := b.configure(ctx, spec); err != nil {
		return err
	}
	return existsErr
}

func (b *MinIOBackend) configure(ctx context.Context, spec ContainerSpec) error {
	if spec.Public {
		if err := b.client.SetBucketPolicy(ctx, spec.Name, publicReadPolicy(spec.Name)); err != nil {
			return translate(fmt.Sprintf("set policy on %q", spec.Name), err)
		}
	}

	bucketTags, err := tags.NewTags(map[string]string{
		TagMaxObjectBytes: fmt.Sprintf("%d", spec.MaxObjectBytes),
		TagAllowedTypes:   strings.Join(spec.AllowedTypes, " "),
	}, false)
	if err != nil {
		return &Error{Op: "tag bucket", Code: CodeUnknown, Message: err.Error(), Err: err}
	}
	if err := b.client.SetBucketTagging(ctx, spec.Name, bucketTags); err != nil {
		return translate(fmt.Sprintf("tag bucket %q", spec.Name), err)
	}
	return nil
}

// PutObject writes the object, replacing any object already stored at the same path.
func (b *MinIOBackend) PutObject(ctx context.Context, container, path string, reader io.Reader, size int64, contentType string) error {
	_, err := b.client.PutObject(ctx, container, path, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return translate(fmt.Sprintf("put %s/%s", container, path), err)
	}
	return nil
}

// RemoveObject deletes an object.
func (b *MinIOBackend) RemoveObject(ctx context.Context, container, path string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultObjectStoreTimeout)
	defer cancel()

	if err := b.client.RemoveObject(ctx, container, path, minio.RemoveObjectOptions{}); err != nil {
		return translate(fmt.Sprintf("remove %s/%s", container, path), err)
	}
	return nil
}

// PublicURL resolves the anonymous-read URL of an object.
func (b *MinIOBackend) PublicURL(container, path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/%s/%s", b.publicBaseURL, url.PathEscape(container), strings.Join(segments, "/"))
}

func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	code := classify(resp.Code)
	if resp.Code == "" && !errors.Is(err, context.Canceled) {
		// no S3 error document: the request never got an answer
		code = CodeUnreachable
	}
	msg := resp.Message
	if msg == "" {
		msg = err.Error()
	}
	return &Error{Op: op, Code: code, Message: msg, Err: err}
}

func classify(s3Code string) Code {
	switch s3Code {
	case "AccessDenied", "AllAccessDisabled", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return CodeAccessDenied
	case "NoSuchBucket":
		return CodeNoSuchBucket
	case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
		return CodeBucketExists
	default:
		return CodeUnknown
	}
}

func publicReadPolicy(bucket string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, bucket)
}
