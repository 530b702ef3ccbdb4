// Package artifacts uploads report directories to S3-compatible storage.
package artifacts

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/errgroup"
)

const uploadConcurrency = 4

// ObjectStore is the subset of *minio.Client the publisher uses.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

var _ ObjectStore = (*minio.Client)(nil)

func NewMinIOClient(cfg Config) (*minio.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

type Publisher struct {
	store  ObjectStore
	cfg    Config
	logger *slog.Logger
}

func NewPublisher(store ObjectStore, cfg Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{store: store, cfg: cfg, logger: logger}
}

// Publish uploads every file under dir to <prefix>/<runID>/<relative path>
// and returns the object keys in lexical order. Hidden files are skipped.
func (p *Publisher) Publish(ctx context.Context, dir, runID string) ([]string, error) {
	if err := p.ensureBucket(ctx); err != nil {
		return nil, err
	}

	files, err := collect(dir)
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for i, rel := range files {
		key := p.objectKey(runID, rel)
		keys[i] = key
		local := filepath.Join(dir, rel)
		g.Go(func() error {
			info, err := p.store.FPutObject(gctx, p.cfg.Bucket, key, local, minio.PutObjectOptions{
				ContentType: contentType(rel),
			})
			if err != nil {
				return fmt.Errorf("upload %s: %w", rel, err)
			}
			p.logger.Debug("artifact uploaded", "bucket", p.cfg.Bucket, "key", key, "size", info.Size)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.logger.Info("artifacts published", "bucket", p.cfg.Bucket, "prefix", p.objectKey(runID, ""), "files", len(keys))
	return keys, nil
}

func (p *Publisher) ensureBucket(ctx context.Context) error {
	exists, err := p.store.BucketExists(ctx, p.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("bucket exists: %w", err)
	}
	if exists {
		return nil
	}
	if err := p.store.MakeBucket(ctx, p.cfg.Bucket, minio.MakeBucketOptions{Region: p.cfg.Region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", p.cfg.Bucket, err)
	}
	return nil
}

func (p *Publisher) objectKey(runID, rel string) string {
	return strings.TrimPrefix(path.Join(p.cfg.Prefix, runID, filepath.ToSlash(rel)), "/")
}

func collect(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && p != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
