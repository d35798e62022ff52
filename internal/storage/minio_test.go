package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/tags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateMapsS3Codes(t *testing.T) {
	cases := []struct {
		s3Code string
		want   Code
	}{
		{"AccessDenied", CodeAccessDenied},
		{"NoSuchBucket", CodeNoSuchBucket},
		{"BucketAlreadyOwnedByYou", CodeBucketExists},
		{"BucketAlreadyExists", CodeBucketExists},
		{"InternalError", CodeUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.s3Code, func(t *testing.T) {
			err := translate("op", minio.ErrorResponse{Code: tc.s3Code, Message: "backend says no"})
			assert.Equal(t, tc.want, CodeOf(err))
			assert.Equal(t, "backend says no", MessageOf(err))
		})
	}
}

func TestTranslateTransportFailureIsUnreachable(t *testing.T) {
	err := translate("list buckets", errors.New("dial tcp 127.0.0.1:9000: connect: connection refused"))
	assert.Equal(t, CodeUnreachable, CodeOf(err))
	assert.Contains(t, MessageOf(err), "connection refused")
}

func TestCodeOfForeignError(t *testing.T) {
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("boom")))
	assert.Equal(t, Code(""), CodeOf(nil))
}

func TestCreateContainerAppliesPolicyAndTags(t *testing.T) {
	api := &fakeMinIO{}
	backend := NewMinIOBackend(api, "us-east-1", "http://localhost:9000/")

	err := backend.CreateContainer(context.Background(), ContainerSpec{
		Name:           "user-avatars",
		Public:         true,
		MaxObjectBytes: 5 << 20,
		AllowedTypes:   []string{"image/png", "image/jpeg"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"user-avatars"}, api.made)
	assert.Contains(t, api.policies["user-avatars"], "arn:aws:s3:::user-avatars/*")
	require.NotNil(t, api.tagged["user-avatars"])
	tagMap := api.tagged["user-avatars"].ToMap()
	assert.Equal(t, "5242880", tagMap[TagMaxObjectBytes])
	assert.Equal(t, "image/png image/jpeg", tagMap[TagAllowedTypes])
}

func TestCreateContainerExisting(t *testing.T) {
	api := &fakeMinIO{makeErr: minio.ErrorResponse{Code: "BucketAlreadyOwnedByYou", Message: "already yours"}}
	backend := NewMinIOBackend(api, "", "http://localhost:9000")

	err := backend.CreateContainer(context.Background(), ContainerSpec{Name: "company-logos", Public: true})
	assert.Equal(t, CodeBucketExists, CodeOf(err))
	assert.Contains(t, api.policies["company-logos"], "arn:aws:s3:::company-logos/*")
	assert.NotNil(t, api.tagged["company-logos"])
}

func TestCreateContainerRepairsPartialSetup(t *testing.T) {
	api := &fakeMinIO{policyErr: errors.New("connection reset by peer")}
	backend := NewMinIOBackend(api, "", "http://localhost:9000")
	spec := ContainerSpec{Name: "user-avatars", Public: true, MaxObjectBytes: 1024}

	err := backend.CreateContainer(context.Background(), spec)
	require.Error(t, err)
	assert.Equal(t, CodeUnreachable, CodeOf(err))
	assert.Empty(t, api.policies)

	api.policyErr = nil
	api.makeErr = minio.ErrorResponse{Code: "BucketAlreadyOwnedByYou", Message: "already yours"}
	err = backend.CreateContainer(context.Background(), spec)
	assert.Equal(t, CodeBucketExists, CodeOf(err))
	assert.Contains(t, api.policies["user-avatars"], "arn:aws:s3:::user-avatars/*")
	assert.Equal(t, "1024", api.tagged["user-avatars"].ToMap()[TagMaxObjectBytes])
}

func TestCreateContainerStopsOnOtherMakeErrors(t *testing.T) {
	api := &fakeMinIO{makeErr: minio.ErrorResponse{Code: "AccessDenied", Message: "Access Denied."}}
	backend := NewMinIOBackend(api, "", "http://localhost:9000")

	err := backend.CreateContainer(context.Background(), ContainerSpec{Name: "user-avatars", Public: true})
	assert.Equal(t, CodeAccessDenied, CodeOf(err))
	assert.Empty(t, api.policies)
}

func TestListContainers(t *testing.T) {
	api := &fakeMinIO{buckets: []minio.BucketInfo{{Name: "a"}, {Name: "b"}}}
	backend := NewMinIOBackend(api, "", "http://localhost:9000")

	names, err := backend.ListContainers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestPutObjectDeclaresContentType(t *testing.T) {
	api := &fakeMinIO{}
	backend := NewMinIOBackend(api, "", "http://localhost:9000")

	err := backend.PutObject(context.Background(), "user-avatars", "u1/profile-1.png", bytes.NewReader([]byte("png")), 3, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", api.putOpts.ContentType)
	assert.Equal(t, "png", string(api.putBody))
}

func TestPublicURLEscapesSegments(t *testing.T) {
	backend := NewMinIOBackend(&fakeMinIO{}, "", "https://cdn.example.com/")
	got := backend.PublicURL("contact-photos", "c 1/photo-1700000000000.jpg")
	assert.Equal(t, "https://cdn.example.com/contact-photos/c%201/photo-1700000000000.jpg", got)
}

type fakeMinIO struct {
	buckets   []minio.BucketInfo
	made      []string
	makeErr   error
	policyErr error
	policies  map[string]string
	tagged    map[string]*tags.Tags
	putOpts   minio.PutObjectOptions
	putBody   []byte
}

func (f *fakeMinIO) ListBuckets(ctx context.Context) ([]minio.BucketInfo, error) {
	return f.buckets, nil
}

func (f *fakeMinIO) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	if f.makeErr != nil {
		return f.makeErr
	}
	f.made = append(f.made, bucketName)
	return nil
}

func (f *fakeMinIO) SetBucketPolicy(ctx context.Context, bucketName, policy string) error {
	if f.policyErr != nil {
		return f.policyErr
	}
	if f.policies == nil {
		f.policies = make(map[string]string)
	}
	f.policies[bucketName] = policy
	return nil
}

func (f *fakeMinIO) SetBucketTagging(ctx context.Context, bucketName string, t *tags.Tags) error {
	if f.tagged == nil {
		f.tagged = make(map[string]*tags.Tags)
	}
	f.tagged[bucketName] = t
	return nil
}

func (f *fakeMinIO) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.putOpts = opts
	f.putBody = data
	return minio.UploadInfo{Size: int64(len(data))}, nil
}

func (f *fakeMinIO) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	return nil
}
