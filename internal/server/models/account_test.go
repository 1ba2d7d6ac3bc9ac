package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validAccount() *Account {
	return &Account{
		UserID:   "u1",
		Website:  "github.com",
		Name:     "GitHub",
		Username: "octocat",
		Email:    "octo@example.com",
		Password: "hunter22",
	}
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validAccount().Validate())
}

func TestValidate_FieldErrors(t *testing.T) {
	a := validAccount()
	a.Website = ""
	a.Email = "not-an-email"
	a.Password = "123"

	err := a.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrValidation))

	var ve *common.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, map[string]string{
		"website":  "is required",
		"email":    "must be a valid email",
		"password": "must be at least 6 characters",
	}, ve.Fields)
}

func TestValidate_MissingOwner(t *testing.T) {
	a := validAccount()
	a.UserID = ""

	var ve *common.ValidationError
	require.True(t, errors.As(a.Validate(), &ve))
	assert.Equal(t, "is required", ve.Fields["user"])
}

func TestNormalize_TrimsFields(t *testing.T) {
	a := &Account{Website: "  github.com ", Name: " n ", Username: "\tu", Email: "e@x.io ", Note: " hi "}
	a.Normalize()
	assert.Equal(t, "github.com", a.Website)
	assert.Equal(t, "n", a.Name)
	assert.Equal(t, "u", a.Username)
	assert.Equal(t, "e@x.io", a.Email)
	assert.Equal(t, "hi", a.Note)
}

func TestMarshalJSON_FileURL(t *testing.T) {
	a := validAccount()
	a.AttachedFile = &AttachedFile{
		BlobID:      "0b8f5f36-3c1a-4b8e-9f7c-2d7c4c1b9a11",
		Filename:    "scan.pdf",
		ContentType: "application/pdf",
		Size:        42,
		UploadDate:  time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	b, err := json.Marshal(a)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "/accounts/files/0b8f5f36-3c1a-4b8e-9f7c-2d7c4c1b9a11", out["fileUrl"])

	file := out["attachedFile"].(map[string]any)
	assert.Equal(t, "scan.pdf", file["filename"])
	assert.Equal(t, float64(42), file["size"])
}

func TestMarshalJSON_NoFile(t *testing.T) {
	b, err := json.Marshal(validAccount())
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Nil(t, out["fileUrl"])
	assert.Nil(t, out["attachedFile"])
}
