package s3_client

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string]string
	failures map[string]int
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	if f.failures[key] > 0 {
		f.failures[key]--
		return nil, errors.New("slow down")
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+key] = string(body)
	return &s3.PutObjectOutput{}, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestUploader_UploadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "metadata.yaml"), "output_folder: x\n")
	writeFile(t, filepath.Join(dir, "cuvgl_map", "keyframes", "frame.bin"), "kf")

	api := &fakeS3{
		objects:  map[string]string{},
		failures: map[string]int{"maps/run1/metadata.yaml": 1},
	}
	u := NewUploader(api, "robot-maps", WithUploadRetry(3, time.Millisecond, time.Millisecond))

	keys, err := u.UploadDir(context.Background(), dir, "maps/run1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"maps/run1/metadata.yaml", "maps/run1/cuvgl_map/keyframes/frame.bin"}, keys)
	// The retried upload sends the whole file again.
	assert.Equal(t, "output_folder: x\n", api.objects["robot-maps/maps/run1/metadata.yaml"])
	assert.Equal(t, "kf", api.objects["robot-maps/maps/run1/cuvgl_map/keyframes/frame.bin"])
}

func TestUploader_GivesUp(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "a")

	api := &fakeS3{objects: map[string]string{}, failures: map[string]int{"p/a.txt": 5}}
	u := NewUploader(api, "b", WithUploadRetry(2, time.Millisecond, time.Millisecond))

	_, err := u.UploadDir(context.Background(), dir, "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://b/p/a.txt")
}

func TestUploader_MissingDir(t *testing.T) {
	u := NewUploader(&fakeS3{}, "b")
	_, err := u.UploadDir(context.Background(), filepath.Join(t.TempDir(), "absent"), "p")
	assert.Error(t, err)
}

func TestNewClient_Options(t *testing.T) {
	c, err := newClient(context.Background(), Options{
		Region:           "us-east-1",
		AccessKeyID:      "minio",
		SecretAccessKey:  "minio123",
		Endpoint:         "http://minio.local:9000",
		UsePathStyle:     true,
		RetryMaxAttempts: 5,
		RetryMaxBackoff:  30 * time.Second,
	})
	require.NoError(t, err)

	o := c.Options()
	assert.Equal(t, "us-east-1", o.Region)
	assert.True(t, o.UsePathStyle)
	assert.Equal(t, "http://minio.local:9000", aws.ToString(o.BaseEndpoint))
	assert.Equal(t, 5, o.Retryer.MaxAttempts())

	creds, err := o.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "minio", creds.AccessKeyID)
}
