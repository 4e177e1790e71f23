package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	input   *s3.PutObjectInput
	body    []byte
	deleted []string
	err     error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = append(f.deleted, *params.Bucket+"/"+*params.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestPutUploadsAndReturnsPublicURL(t *testing.T) {
	fake := &fakeS3{}
	store := newS3Store(fake, Options{Bucket: "visits", Region: "ap-south-1", PublicBaseURL: "https://cdn.example.com/"})

	url, err := store.Put(context.Background(), "/visits/v1/a.jpg", "image/jpeg", []byte("jpeg"))
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/visits/v1/a.jpg", url)
	assert.Equal(t, "visits", *fake.input.Bucket)
	assert.Equal(t, "visits/v1/a.jpg", *fake.input.Key)
	assert.Equal(t, "image/jpeg", *fake.input.ContentType)
	assert.Equal(t, int64(4), *fake.input.ContentLength)
	assert.Equal(t, []byte("jpeg"), fake.body)
}

func TestPublicURLFallbacks(t *testing.T) {
	aws := newS3Store(&fakeS3{}, Options{Bucket: "b", Region: "ap-south-1"})
	assert.Equal(t, "https://b.s3.ap-south-1.amazonaws.com", aws.baseURL)

	minio := newS3Store(&fakeS3{}, Options{Bucket: "b", Endpoint: "http://localhost:9000/"})
	assert.Equal(t, "http://localhost:9000/b", minio.baseURL)
}

func TestPutErrors(t *testing.T) {
	store := newS3Store(&fakeS3{err: errors.New("denied")}, Options{Bucket: "b"})
	_, err := store.Put(context.Background(), "k", "image/png", nil)
	assert.ErrorContains(t, err, "denied")

	_, err = store.Put(context.Background(), "", "image/png", nil)
	assert.Error(t, err)

	var nilStore *S3Store
	_, err = nilStore.Put(context.Background(), "k", "image/png", nil)
	assert.Error(t, err)
}

func TestDeleteRemovesObject(t *testing.T) {
	fake := &fakeS3{}
	store := newS3Store(fake, Options{Bucket: "visits", Region: "ap-south-1"})

	require.NoError(t, store.Delete(context.Background(), "/visits/v1/a.jpg"))
	assert.Equal(t, []string{"visits/visits/v1/a.jpg"}, fake.deleted)
	assert.Error(t, store.Delete(context.Background(), ""))

	fake.err = errors.New("denied")
	assert.ErrorContains(t, store.Delete(context.Background(), "k"), "denied")
}
