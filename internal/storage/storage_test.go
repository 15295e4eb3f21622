package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"artenis/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	bodies  [][]byte
	deletes []string
	err     error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.puts = append(f.puts, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deletes = append(f.deletes, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store_PutAndDelete(t *testing.T) {
	fake := &fakeS3{}
	store := newS3Store(fake, "artenis-media", "https://cdn.artenis.app/")

	url, err := store.Put(context.Background(), "posts/1/abc.webp", "image/webp", []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.artenis.app/posts/1/abc.webp", url)

	require.Len(t, fake.puts, 1)
	assert.Equal(t, "artenis-media", aws.ToString(fake.puts[0].Bucket))
	assert.Equal(t, "image/webp", aws.ToString(fake.puts[0].ContentType))
	assert.Equal(t, int64(4), aws.ToInt64(fake.puts[0].ContentLength))
	assert.Equal(t, []byte("data"), fake.bodies[0])

	key, ok := store.KeyFromURL(url)
	require.True(t, ok)
	require.NoError(t, store.Delete(context.Background(), key))
	assert.Equal(t, []string{"posts/1/abc.webp"}, fake.deletes)

	_, ok = store.KeyFromURL("https://elsewhere.example.com/posts/1/abc.webp")
	assert.False(t, ok)
}

func TestS3Store_PropagatesErrors(t *testing.T) {
	store := newS3Store(&fakeS3{err: errors.New("denied")}, "b", "https://cdn")
	_, err := store.Put(context.Background(), "k", "image/png", nil)
	assert.ErrorContains(t, err, "denied")
	assert.ErrorContains(t, store.Delete(context.Background(), "k"), "denied")
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Options{})
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore("/media")
	ctx := context.Background()

	body := []byte{1, 2, 3}
	url, err := store.Put(ctx, "posts/2/x.mp4", "video/mp4", body)
	require.NoError(t, err)
	assert.Equal(t, "/media/posts/2/x.mp4", url)
	body[0] = 9

	obj, err := store.Get("posts/2/x.mp4")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, obj.Body)
	assert.Equal(t, "video/mp4", obj.ContentType)

	key, ok := store.KeyFromURL(url)
	require.True(t, ok)
	require.NoError(t, store.Delete(ctx, key))
	assert.ErrorIs(t, store.Delete(ctx, key), ErrNotFound)
	assert.Zero(t, store.Len())
}

func TestNew_SelectsBackend(t *testing.T) {
	s, err := New(context.Background(), &config.Config{MediaStorage: config.StorageMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = New(context.Background(), &config.Config{MediaStorage: "ftp"})
	assert.Error(t, err)
}
