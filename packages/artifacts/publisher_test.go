package artifacts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu       sync.Mutex
	buckets  map[string]bool
	objects  map[string]string
	types    map[string]string
	failOn   string
	existErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{buckets: map[string]bool{}, objects: map[string]string{}, types: map[string]string{}}
}

func (f *fakeStore) BucketExists(_ context.Context, bucket string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buckets[bucket], f.existErr
}

func (f *fakeStore) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets[bucket] = true
	return nil
}

func (f *fakeStore) FPutObject(_ context.Context, _, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.failOn != "" && filepath.Base(filePath) == f.failOn {
		return minio.UploadInfo{}, errors.New("access denied")
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[object] = string(data)
	f.types[object] = opts.ContentType
	return minio.UploadInfo{Key: object, Size: int64(len(data))}, nil
}

func writeReports(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hitchain.lock"), nil, 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "allure-results"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "allure-results", "a-result.json"), []byte(`{"status":"passed"}`), 0o644))
	return dir
}

func TestPublish(t *testing.T) {
	store := newFakeStore()
	p := NewPublisher(store, Config{Bucket: "reports", Prefix: "ci"}, nil)

	keys, err := p.Publish(context.Background(), writeReports(t), "run-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"ci/run-1/allure-results/a-result.json", "ci/run-1/report.json"}, keys)
	assert.True(t, store.buckets["reports"])
	assert.Equal(t, `{}`, store.objects["ci/run-1/report.json"])
	assert.Equal(t, "application/json", store.types["ci/run-1/report.json"])
	assert.NotContains(t, store.objects, "ci/run-1/.hitchain.lock")
}

func TestPublish_NoPrefix(t *testing.T) {
	p := NewPublisher(newFakeStore(), Config{Bucket: "reports"}, nil)
	keys, err := p.Publish(context.Background(), writeReports(t), "run-1")
	require.NoError(t, err)
	assert.Contains(t, keys, "run-1/report.json")
}

func TestPublish_UploadError(t *testing.T) {
	store := newFakeStore()
	store.failOn = "report.json"
	p := NewPublisher(store, Config{Bucket: "reports"}, nil)

	_, err := p.Publish(context.Background(), writeReports(t), "run-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestPublish_BucketCheckError(t *testing.T) {
	store := newFakeStore()
	store.existErr = errors.New("no route to host")
	p := NewPublisher(store, Config{Bucket: "reports"}, nil)

	_, err := p.Publish(context.Background(), writeReports(t), "run-1")
	assert.ErrorContains(t, err, "bucket exists")
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("HITCHAIN_ARTIFACTS_ACCESS_KEY", "ak")
	t.Setenv("HITCHAIN_ARTIFACTS_SECRET_KEY", "sk")
	t.Setenv("HITCHAIN_ARTIFACTS_BUCKET", "override")
	t.Setenv("HITCHAIN_ARTIFACTS_USE_SSL", "false")

	cfg, err := ConfigFromEnv(Config{Endpoint: "minio:9000", Bucket: "file", UseSSL: true})
	require.NoError(t, err)
	assert.Equal(t, "minio:9000", cfg.Endpoint)
	assert.Equal(t, "override", cfg.Bucket)
	assert.Equal(t, "ak", cfg.AccessKey)
	assert.False(t, cfg.UseSSL)

	t.Setenv("HITCHAIN_ARTIFACTS_USE_SSL", "maybe")
	_, err = ConfigFromEnv(Config{Endpoint: "minio:9000"})
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{}.Validate())
	assert.Error(t, Config{Endpoint: "x"}.Validate())
	assert.Error(t, Config{Endpoint: "x", Bucket: "b"}.Validate())
	assert.NoError(t, Config{Endpoint: "x", Bucket: "b", AccessKey: "a", SecretKey: "s"}.Validate())
}

func TestNewMinIOClient(t *testing.T) {
	_, err := NewMinIOClient(Config{})
	assert.Error(t, err)

	client, err := NewMinIOClient(Config{Endpoint: "localhost:9000", Bucket: "b", AccessKey: "a", SecretKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", client.EndpointURL().Host)
}
