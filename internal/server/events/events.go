// Package events publishes account lifecycle notifications.
package events

import (
	"context"
	"time"
)

// Type is the kind of account mutation.
type Type string

const (
	AccountCreated     Type = "account.created"
	AccountUpdated     Type = "account.updated"
	AccountDeleted     Type = "account.deleted"
	AccountLogoChanged Type = "account.logo_changed"
)

// Event is the message body. Secrets are never included.
type Event struct {
	Type         Type      `json:"type"`
	AccountID    string    `json:"accountId"`
	UserID       string    `json:"userId"`
	SerialNumber int64     `json:"serialNumber"`
	Website      string    `json:"website,omitempty"`
	BlobID       string    `json:"blobId,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// Publisher delivers events. Callers treat failures as best-effort.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
