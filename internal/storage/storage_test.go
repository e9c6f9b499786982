package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.UnixMilli(1748865600000)

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "u1/1748865600000.png", ObjectKey("u1", "My Photo.PNG", fixedNow))
	assert.Equal(t, "u1/1748865600000", ObjectKey("u1", "noext", fixedNow))
}

func TestLocalStorageSaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	ls := NewLocalStorage(dir, "http://localhost:8080/uploads/")
	ls.now = func() time.Time { return fixedNow }

	url, key, err := ls.Save(context.Background(), "u1", "clip.mp4", "video/mp4", strings.NewReader("data"))
	require.NoError(t, err)
	assert.Equal(t, "u1/1748865600000.mp4", key)
	assert.Equal(t, "http://localhost:8080/uploads/u1/1748865600000.mp4", url)

	raw, err := os.ReadFile(filepath.Join(dir, "u1", "1748865600000.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(raw))

	require.NoError(t, ls.Delete(context.Background(), key))
	_, err = os.Stat(filepath.Join(dir, "u1", "1748865600000.mp4"))
	assert.True(t, os.IsNotExist(err))

	// deleting twice is fine
	assert.NoError(t, ls.Delete(context.Background(), key))
}

type fakeS3 struct {
	s3iface.S3API
	put     *s3.PutObjectInput
	body    string
	deleted string
	err     error
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	f.put = in
	raw, _ := io.ReadAll(in.Body)
	f.body = string(raw)
	return &s3.PutObjectOutput{}, f.err
}

func (f *fakeS3) DeleteObjectWithContext(_ aws.Context, in *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	f.deleted = aws.StringValue(in.Key)
	return &s3.DeleteObjectOutput{}, f.err
}

func TestSpacesStorageSave(t *testing.T) {
	client := &fakeS3{}
	ss := newSpacesStorage(client, "bucket", "https://cdn.example.com/")
	ss.now = func() time.Time { return fixedNow }

	url, key, err := ss.Save(context.Background(), "u1", "a.webp", "", strings.NewReader("img"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/u1/1748865600000.webp", url)
	assert.Equal(t, "u1/1748865600000.webp", key)
	assert.Equal(t, "image/webp", aws.StringValue(client.put.ContentType))
	assert.Equal(t, "public-read", aws.StringValue(client.put.ACL))
	assert.Equal(t, "bucket", aws.StringValue(client.put.Bucket))
	assert.Equal(t, "img", client.body)

	require.NoError(t, ss.Delete(context.Background(), key))
	assert.Equal(t, key, client.deleted)
}

func TestSpacesStorageError(t *testing.T) {
	ss := newSpacesStorage(&fakeS3{err: errors.New("denied")}, "bucket", "https://cdn")
	_, _, err := ss.Save(context.Background(), "u1", "a.png", "image/png", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentType("a.JPG"))
	assert.Equal(t, "video/mpeg", ContentType("a.mpeg"))
	assert.Equal(t, "application/octet-stream", ContentType("a.bin"))
}
