package models

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/go-playground/validator/v10"
)

// LogoStatus describes how trustworthy Account.Logo is.
type LogoStatus string

const (
	LogoStatusVerified LogoStatus = "verified"
	LogoStatusSuccess  LogoStatus = "success"
	LogoStatusFallback LogoStatus = "fallback"
	LogoStatusError    LogoStatus = "error"
)

// LogoSource describes where Account.Logo came from.
type LogoSource string

const (
	LogoSourceDirect   LogoSource = "direct"
	LogoSourceGoogle   LogoSource = "google"
	LogoSourceVerified LogoSource = "verified"
	LogoSourceFallback LogoSource = "fallback"
)

// Account is one vault record owned by UserID.
type Account struct {
	ID                string        `json:"id"`
	SerialNumber      int64         `json:"serialNumber"`
	UserID            string        `json:"user" validate:"required"`
	Website           string        `json:"website" validate:"required"`
	Name              string        `json:"name" validate:"required"`
	Username          string        `json:"username" validate:"required"`
	Email             string        `json:"email" validate:"required,email"`
	Password          string        `json:"password" validate:"required,min=6"`
	Note              string        `json:"note"`
	IsPasswordVisible bool          `json:"isPasswordVisible"`
	IsAutoGenerated   bool          `json:"isAutoGenerated"`
	Logo              string        `json:"logo"`
	LogoStatus        LogoStatus    `json:"logoStatus"`
	LogoSource        LogoSource    `json:"logoSource"`
	AttachedFile      *AttachedFile `json:"attachedFile"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// MarshalJSON adds the derived fileUrl field.
func (a Account) MarshalJSON() ([]byte, error) {
	type plain Account
	var fileURL *string
	if u := a.AttachedFile.FileURL(); u != "" {
		fileURL = &u
	}
	return json.Marshal(struct {
		plain
		FileURL *string `json:"fileUrl"`
	}{plain: plain(a), FileURL: fileURL})
}

// Normalize trims the free-text fields the way they are persisted.
func (a *Account) Normalize() {
	a.Website = strings.TrimSpace(a.Website)
	a.Name = strings.TrimSpace(a.Name)
	a.Username = strings.TrimSpace(a.Username)
	a.Email = strings.TrimSpace(a.Email)
	a.Note = strings.TrimSpace(a.Note)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

var fieldNames = map[string]string{
	"UserID":   "user",
	"Website":  "website",
	"Name":     "name",
	"Username": "username",
	"Email":    "email",
	"Password": "password",
}

// Validate checks required fields and formats. The returned error is a
// *common.ValidationError carrying one message per offending field.
func (a *Account) Validate() error {
	err := validate.Struct(a)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &common.ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		name, ok := fieldNames[fe.Field()]
		if !ok {
			name = strings.ToLower(fe.Field())
		}
		out.Fields[name] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}
