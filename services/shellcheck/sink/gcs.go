// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// ParseDestination splits "gs://bucket/prefix" into bucket and prefix.
func ParseDestination(dest string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(dest, "gs://")
	if !ok {
		return "", "", fmt.Errorf("upload destination %q must start with gs://", dest)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("upload destination %q has no bucket", dest)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

// ObjectName joins prefix and name with a slash.
func ObjectName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Uploader writes rendered results to a Cloud Storage bucket.
type Uploader struct {
	client *storage.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// NewUploader creates an Uploader for dest.
//
// # Description
//
// credentialsFile is a service account key; when empty, Application
// Default Credentials are used.
func NewUploader(ctx context.Context, dest, credentialsFile string, logger *slog.Logger) (*Uploader, error) {
	bucket, prefix, err := ParseDestination(dest)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("service account key not found at path: %s", credentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &Uploader{client: client, bucket: bucket, prefix: prefix, logger: logger}, nil
}

// Upload stores data as {prefix}/{name} and returns its gs:// URL.
func (u *Uploader) Upload(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	object := ObjectName(u.prefix, name)
	w := u.client.Bucket(u.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write GCS object %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer for %s: %w", object, err)
	}

	url := fmt.Sprintf("gs://%s/%s", u.bucket, object)
	u.logger.Info("uploaded analysis result", "url", url, "bytes", len(data))
	return url, nil
}

// Close releases the storage client.
func (u *Uploader) Close() error {
	return u.client.Close()
}
