// Package gcs mirrors dataset snapshots into a Google Cloud Storage bucket.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/calfire-history/internal/dataset"
	digest "github.com/JakeFAU/calfire-history/internal/hash/sha256"
	"github.com/JakeFAU/calfire-history/internal/storage/local"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	Prefix string
}

// Mirror uploads the CSV rendering of each snapshot.
type Mirror struct {
	client *storage.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// New creates a GCS-backed mirror.
func New(client *storage.Client, cfg Config, logger *zap.Logger) (*Mirror, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logger,
	}, nil
}

// ObjectName is where a snapshot file is written inside the bucket.
func (m *Mirror) ObjectName(fileName string) string {
	if m.prefix == "" {
		return fileName
	}
	return path.Join(m.prefix, fileName)
}

// Publish implements dataset.Sink.
func (m *Mirror) Publish(ctx context.Context, pub dataset.Publication) error {
	var buf bytes.Buffer
	if err := local.Encode(&buf, pub.Snapshot.Records); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	metadata := map[string]string{
		"run_id":   pub.RunID.String(),
		"decision": string(pub.Decision),
		"sha256":   digest.Sum(buf.Bytes()),
	}
	name := m.ObjectName(local.FileName(pub.Snapshot.CapturedAt))
	uri, err := m.putObject(ctx, name, "text/csv; charset=utf-8", metadata, &buf)
	if err != nil {
		return err
	}
	m.logger.Info("snapshot mirrored",
		zap.String("uri", uri),
		zap.String("run_id", pub.RunID.String()),
		zap.String("sha256", metadata["sha256"]),
	)
	return nil
}

func (m *Mirror) putObject(ctx context.Context, name, contentType string, metadata map[string]string, r io.Reader) (string, error) {
	writer := m.client.Bucket(m.bucket).Object(name).NewWriter(ctx)
	writer.ContentType = contentType
	writer.Metadata = metadata
	if _, err := io.Copy(writer, r); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", m.bucket, name), nil
}
