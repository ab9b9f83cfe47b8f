package services

import (
	"context"
	"io"
)

// UploadOptions tunes a single upload.
type UploadOptions struct {
	Folder   string
	Filename string
	// Square crops images to Square x Square pixels when supported by the host.
	Square      int
	Size        int64
	ContentType string
}

// UploadResult identifies a hosted file.
type UploadResult struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
	Format   string `json:"format,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// MediaStore hosts user uploaded files.
type MediaStore interface {
	Upload(ctx context.Context, file io.Reader, opts UploadOptions) (UploadResult, error)
	Destroy(ctx context.Context, publicID string) error
}
