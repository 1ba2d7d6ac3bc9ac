// Package models defines server-side data models persisted in the database.
package models

import "time"

// AttachedFile describes a binary payload attached to an account. The bytes
// themselves live in the blob store under BlobID.
type AttachedFile struct {
	// BlobID is the opaque blob store identifier (a UUID).
	BlobID string `json:"blobId"`
	// Filename is the original client-side file name.
	Filename string `json:"filename"`
	// ContentType is the MIME type declared at upload.
	ContentType string `json:"contentType"`
	// Size is the stored payload length in bytes.
	Size int64 `json:"size"`
	// UploadDate is when the blob was stored.
	UploadDate time.Time `json:"uploadDate"`
}

// FileURL is the gateway path serving the attached file.
func (f *AttachedFile) FileURL() string {
	if f == nil || f.BlobID == "" {
		return ""
	}
	return "/accounts/files/" + f.BlobID
}
