package s3_client

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/log"
	"github.com/okieraised/perceptor-bringup/internal/utilities"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PutObjectAPI is the part of the S3 API the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader copies local folders into a bucket.
type Uploader struct {
	api          PutObjectAPI
	bucket       string
	maxRetry     int
	startBackoff time.Duration
	maxBackoff   time.Duration
	concurrency  int
}

type UploaderOption func(*Uploader)

func WithUploadRetry(maxRetry int, start, max time.Duration) UploaderOption {
	return func(u *Uploader) {
		u.maxRetry, u.startBackoff, u.maxBackoff = maxRetry, start, max
	}
}

func WithConcurrency(n int) UploaderOption {
	return func(u *Uploader) {
		if n > 0 {
			u.concurrency = n
		}
	}
}

func NewUploader(api PutObjectAPI, bucket string, opts ...UploaderOption) *Uploader {
	u := &Uploader{
		api:          api,
		bucket:       bucket,
		maxRetry:     3,
		startBackoff: 500 * time.Millisecond,
		maxBackoff:   5 * time.Second,
		concurrency:  4,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// UploadDir uploads every regular file below dir to <prefix>/<rel path>
// and returns the object keys written, sorted. Files are uploaded
// concurrently; the first failure cancels the remaining uploads.
func (u *Uploader) UploadDir(ctx context.Context, dir, prefix string) ([]string, error) {
	files, err := utilities.ListFiles(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", dir)
	}

	keys := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)
	for i, rel := range files {
		key := path.Join(prefix, rel)
		g.Go(func() error {
			err := utilities.RetryWithBackoff(gctx, func() error {
				return u.uploadFile(gctx, filepath.Join(dir, filepath.FromSlash(rel)), key)
			}, u.maxRetry, u.startBackoff, u.maxBackoff)
			if err != nil {
				return errors.Wrapf(err, "failed to upload %s to s3://%s/%s", rel, u.bucket, key)
			}
			keys[i] = key
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(keys)
	log.Default().Info(fmt.Sprintf("uploaded %d files to s3://%s/%s", len(keys), u.bucket, prefix))
	return keys, nil
}

func (u *Uploader) uploadFile(ctx context.Context, localPath, key string) (cErr error) {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil && cErr == nil {
			cErr = err
		}
	}()

	input := &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if ct := mime.TypeByExtension(filepath.Ext(localPath)); ct != "" {
		input.ContentType = aws.String(ct)
	}
	if _, err := u.api.PutObject(ctx, input); err != nil {
		log.Default().Warn("put object failed", zap.String("key", key), zap.Error(err))
		// Rewind for the next attempt.
		if _, sErr := f.Seek(0, io.SeekStart); sErr != nil {
			return sErr
		}
		return err
	}
	return nil
}
