package speech

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kevinbot-io/kevinbot/pkg/log"
	"github.com/kevinbot-io/kevinbot/pkg/options"
)

// Store fetches piper voice models from the S3-compatible model bucket and
// caches them on disk. A voice is a pair of objects, "<voice>.onnx" and
// "<voice>.onnx.json".
type Store struct {
	client *minio.Client
	bucket string
	dir    string
	logger log.Logger
}

// NewStore returns a store caching models under dir.
func NewStore(opts *options.S3Options, dir string) (*Store, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create model store client: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create model cache dir: %w", err)
	}

	return &Store{
		client: client,
		bucket: opts.BucketName,
		dir:    dir,
		logger: log.WithName("speech.store"),
	}, nil
}

// EnsureVoice makes sure both objects of the named voice are cached locally
// and returns the model path for the engine. Cached files win; a robot in
// the field must come up with no network.
func (s *Store) EnsureVoice(ctx context.Context, voice string) (string, error) {
	modelPath := filepath.Join(s.dir, voice+".onnx")

	for _, object := range []string{voice + ".onnx", voice + ".onnx.json"} {
		local := filepath.Join(s.dir, object)
		if _, err := os.Stat(local); err == nil {
			continue
		}

		s.logger.Info("Fetching voice model object", "bucket", s.bucket, "object", object)
		if err := s.client.FGetObject(ctx, s.bucket, object, local, minio.GetObjectOptions{}); err != nil {
			return "", fmt.Errorf("fetch voice object %s: %w", object, err)
		}
	}

	return modelPath, nil
}
