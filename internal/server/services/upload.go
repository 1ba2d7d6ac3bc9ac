package services

import (
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
)

// DefaultMaxUploadBytes caps attached files.
const DefaultMaxUploadBytes int64 = 16 << 20

var allowedMimeTypes = map[string]struct{}{
	"image/jpeg":         {},
	"image/png":          {},
	"image/gif":          {},
	"application/pdf":    {},
	"text/plain":         {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
}

// AllowedMimeType reports whether files of mime type may be attached.
// Parameters such as "; charset=utf-8" are ignored.
func AllowedMimeType(mime string) bool {
	base, _, _ := strings.Cut(mime, ";")
	_, ok := allowedMimeTypes[strings.ToLower(strings.TrimSpace(base))]
	return ok
}

// FileUpload is an attached file as received from the client.
type FileUpload struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	// Size is the declared length, or -1 when unknown.
	Size int64
}

func validateUpload(f *FileUpload, max int64) error {
	if f == nil {
		return nil
	}
	if f.Reader == nil || strings.TrimSpace(f.Filename) == "" {
		return common.NewValidationError("attachedFile", "is empty")
	}
	if !AllowedMimeType(f.ContentType) {
		return common.NewValidationError("attachedFile", "file type not allowed")
	}
	if f.Size > max {
		return common.NewValidationError("attachedFile", fmt.Sprintf("must not exceed %d bytes", max))
	}
	return nil
}
