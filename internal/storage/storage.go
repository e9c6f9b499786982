// Package storage persists uploaded media either on local disk or in a
// DigitalOcean Spaces bucket.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/rs/zerolog/log"
)

type Storage interface {
	// Save writes r under a key derived from userID and fileName and returns
	// the public URL and the key.
	Save(ctx context.Context, userID, fileName, contentType string, r io.Reader) (url, key string, err error)
	Delete(ctx context.Context, key string) error
}

// ObjectKey builds "<userID>/<unix millis><ext>".
func ObjectKey(userID, fileName string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	return fmt.Sprintf("%s/%d%s", userID, now.UnixMilli(), ext)
}

type LocalStorage struct {
	uploadDir string
	baseURL   string
	now       func() time.Time
}

// NewLocalStorage stores files under uploadDir; URLs are baseURL + "/" + key.
func NewLocalStorage(uploadDir, baseURL string) *LocalStorage {
	return &LocalStorage{uploadDir: uploadDir, baseURL: strings.TrimSuffix(baseURL, "/"), now: time.Now}
}

func (ls *LocalStorage) Save(_ context.Context, userID, fileName, _ string, r io.Reader) (string, string, error) {
	key := ObjectKey(userID, fileName, ls.now())
	dst := filepath.Join(ls.uploadDir, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create upload directory: %w", err)
	}
	f, err := os.Create(dst)
	if err != nil {
		return "", "", fmt.Errorf("failed to create destination file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", "", fmt.Errorf("failed to save file: %w", err)
	}
	log.Debug().Str("key", key).Str("path", dst).Msg("media stored locally")
	return ls.baseURL + "/" + key, key, nil
}

func (ls *LocalStorage) Delete(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(ls.uploadDir, filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

type SpacesStorage struct {
	client s3iface.S3API
	bucket string
	cdnURL string
	now    func() time.Time
}

func NewSpacesStorage(endpoint, region, bucket, cdnURL, accessKey, secretKey string) (*SpacesStorage, error) {
	config := &aws.Config{
		Credentials:      credentials.NewStaticCredentials(accessKey, secretKey, ""),
		Endpoint:         aws.String(endpoint),
		Region:           aws.String(region),
		S3ForcePathStyle: aws.Bool(false),
	}

	sess, err := session.NewSession(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return newSpacesStorage(s3.New(sess), bucket, cdnURL), nil
}

func newSpacesStorage(client s3iface.S3API, bucket, cdnURL string) *SpacesStorage {
	return &SpacesStorage{client: client, bucket: bucket, cdnURL: strings.TrimSuffix(cdnURL, "/"), now: time.Now}
}

func (ss *SpacesStorage) Save(ctx context.Context, userID, fileName, contentType string, r io.Reader) (string, string, error) {
	key := ObjectKey(userID, fileName, ss.now())
	if contentType == "" {
		contentType = ContentType(fileName)
	}

	body, ok := r.(io.ReadSeeker)
	if !ok {
		raw, err := io.ReadAll(r)
		if err != nil {
			return "", "", fmt.Errorf("failed to read upload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	_, err := ss.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(ss.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
		ACL:         aws.String("public-read"),
	})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to upload file to Spaces")
		return "", "", fmt.Errorf("failed to upload to Spaces: %w", err)
	}
	return ss.cdnURL + "/" + key, key, nil
}

func (ss *SpacesStorage) Delete(ctx context.Context, key string) error {
	_, err := ss.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(ss.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to delete file from Spaces")
		return fmt.Errorf("failed to delete from Spaces: %w", err)
	}
	return nil
}

// ContentType guesses a MIME type from the file extension.
func ContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".mpeg", ".mpg":
		return "video/mpeg"
	default:
		return "application/octet-stream"
	}
}
