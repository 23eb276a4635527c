package s3blob

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Uploader archives a local evidence directory to the object store under a
// per-run prefix, e.g. runs/<run_id>/kpi.json.
type Uploader struct {
	client *Client
	logger *slog.Logger
}

// NewUploader creates an Uploader.
func NewUploader(client *Client, logger *slog.Logger) *Uploader {
	return &Uploader{
		client: client,
		logger: logger.With(slog.String("component", "s3_uploader")),
	}
}

// UploadRun walks dir and uploads every regular file under runs/<runID>/.
// Uploads run at shutdown, after the evidence manifest is written, so a
// partial upload never corrupts the local evidence set.
func (u *Uploader) UploadRun(ctx context.Context, runID, dir string) error {
	uploader := manager.NewUploader(u.client.s3)

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		key := path.Join("runs", runID, filepath.ToSlash(rel))

		f, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("open %s: %w", p, err)
		}
		defer f.Close()

		contentType := mime.TypeByExtension(filepath.Ext(p))
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(u.client.bucket),
			Key:         aws.String(key),
			Body:        f,
			ContentType: aws.String(contentType),
		}); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}

		u.logger.Debug("evidence file uploaded", slog.String("key", key))
		return nil
	})
	if err != nil {
		return fmt.Errorf("s3blob: upload run %s: %w", runID, err)
	}

	u.logger.Info("evidence archived",
		slog.String("run_id", runID),
		slog.String("bucket", u.client.bucket),
	)
	return nil
}
