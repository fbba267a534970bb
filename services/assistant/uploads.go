package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Upload is one incoming multipart file part, read fully into memory.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// InferExtension applies the fixed extension policy, in priority order:
// an explicit application/pdf MIME wins, then a .csv filename (any case)
// or text/csv MIME, then .txt for everything else.
func InferExtension(name, contentType string) string {
	if contentType == "application/pdf" {
		return "pdf"
	}
	if strings.HasSuffix(strings.ToLower(name), ".csv") || contentType == "text/csv" {
		return "csv"
	}
	return "txt"
}

// UploadName builds the synthetic collision-avoiding filename for an upload.
// Millisecond resolution means concurrent uploads within the same
// millisecond can still collide; retained as-is from the shipped behavior.
func UploadName(ext string, now time.Time) string {
	return fmt.Sprintf("uploaded_%d.%s", now.UnixMilli(), ext)
}

// AdaptUpload renames one incoming file per the extension policy, uploads it
// to the upstream file store, and returns the store-assigned file id.
func AdaptUpload(ctx context.Context, client Client, up Upload) (string, error) {
	ext := InferExtension(up.Name, up.ContentType)
	filename := UploadName(ext, time.Now())
	slog.Info("Preparing upload", "filename", filename, "content_type", up.ContentType, "size", len(up.Data))

	fileID, err := client.UploadFile(ctx, filename, up.Data)
	if err != nil {
		return "", fmt.Errorf("adapt upload %q: %w", up.Name, err)
	}
	return fileID, nil
}
