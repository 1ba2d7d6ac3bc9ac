package rest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/services"
	"github.com/gin-gonic/gin"
)

const (
	fileField       = "attachedFile"
	removeFileField = "removeFile"

	// formOverhead caps the text fields sent next to a maximum size file.
	formOverhead = 1 << 20
	sniffLen     = 512
)

func (s *Server) createAccount(c *gin.Context) {
	form, err := s.parseForm(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	in := services.AccountInput{
		Website:  form.value("website"),
		Name:     form.value("name"),
		Username: form.value("username"),
		Email:    form.value("email"),
		Password: form.value("password"),
		Note:     form.value("note"),
	}
	if in.IsPasswordVisible, err = form.flag("isPasswordVisible"); err != nil {
		s.writeError(c, err)
		return
	}
	if in.IsAutoGenerated, err = form.flag("isAutoGenerated"); err != nil {
		s.writeError(c, err)
		return
	}

	a, err := s.accounts.Create(c.Request.Context(), caller(c), in, form.upload)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Account created successfully", "account": a})
}

func (s *Server) listAccounts(c *gin.Context) {
	list, err := s.accounts.List(c.Request.Context(), caller(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) getAccount(c *gin.Context) {
	a, err := s.accounts.Get(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) updateAccount(c *gin.Context) {
	form, err := s.parseForm(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	patch := services.AccountPatch{
		Website:  form.optional("website"),
		Name:     form.optional("name"),
		Username: form.optional("username"),
		Email:    form.optional("email"),
		Password: form.optional("password"),
		Note:     form.optional("note"),
	}
	for field, dst := range map[string]**bool{
		"isPasswordVisible": &patch.IsPasswordVisible,
		"isAutoGenerated":   &patch.IsAutoGenerated,
	} {
		if !form.has(field) {
			continue
		}
		v, err := form.flag(field)
		if err != nil {
			s.writeError(c, err)
			return
		}
		*dst = &v
	}
	if patch.RemoveFile, err = form.flag(removeFileField); err != nil {
		s.writeError(c, err)
		return
	}
	patch.File = form.upload

	a, err := s.accounts.Update(c.Request.Context(), caller(c), c.Param("id"), patch)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account updated successfully", "account": a})
}

func (s *Server) deleteAccount(c *gin.Context) {
	if err := s.accounts.Delete(c.Request.Context(), caller(c), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account removed"})
}

// accountForm holds the text fields of a request body and, for multipart
// bodies, the still unread attachment. The attachment must be the last part;
// it is streamed to the blob store while the handler runs.
type accountForm struct {
	values url.Values
	upload *services.FileUpload
}

func (s *Server) parseForm(c *gin.Context) (*accountForm, error) {
	r := c.Request
	r.Body = http.MaxBytesReader(c.Writer, r.Body, s.maxUpload+formOverhead)

	mr, err := r.MultipartReader()
	if errors.Is(err, http.ErrNotMultipart) {
		if err := r.ParseForm(); err != nil {
			return nil, s.formError(err)
		}
		return &accountForm{values: r.PostForm}, nil
	}
	if err != nil {
		return nil, s.formError(err)
	}

	form := &accountForm{values: url.Values{}}
	budget := int64(formOverhead)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return form, nil
		}
		if err != nil {
			return nil, s.formError(err)
		}

		if part.FormName() == fileField && part.FileName() != "" {
			if form.upload, err = s.openUpload(mr, part); err != nil {
				return nil, err
			}
			return form, nil
		}

		v, err := io.ReadAll(io.LimitReader(part, budget+1))
		if err != nil {
			return nil, s.formError(err)
		}
		if budget -= int64(len(v)); budget < 0 {
			return nil, common.NewValidationError(part.FormName(), "form fields too large")
		}
		form.values.Add(part.FormName(), string(v))
	}
}

// openUpload wraps the attachment part without reading it, except for the
// first bytes when the client sent no usable content type.
func (s *Server) openUpload(mr *multipart.Reader, part *multipart.Part) (*services.FileUpload, error) {
	var r io.Reader = &lastPart{mr: mr, part: part, maxUpload: s.maxUpload}

	contentType := part.Header.Get("Content-Type")
	if contentType == "" || contentType == blobstore.DefaultMimeType {
		buf := make([]byte, sniffLen)
		n, err := io.ReadFull(r, buf)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, s.formError(err)
		}
		contentType = http.DetectContentType(buf[:n])
		r = io.MultiReader(bytes.NewReader(buf[:n]), r)
	}

	return &services.FileUpload{
		Reader:      r,
		Filename:    part.FileName(),
		ContentType: contentType,
		Size:        -1,
	}, nil
}

func (s *Server) formError(err error) error {
	var ve *common.ValidationError
	if errors.As(err, &ve) {
		return err
	}
	if tooLarge := uploadTooLarge(err, s.maxUpload); tooLarge != nil {
		return tooLarge
	}
	return badRequest(fmt.Errorf("malformed form: %w", err))
}

func uploadTooLarge(err error, maxUpload int64) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return common.NewValidationError(fileField, fmt.Sprintf("must not exceed %d bytes", maxUpload))
	}
	return nil
}

// lastPart reads the attachment part. At its end it checks that no other
// part follows, so every text field was seen before the file is stored.
type lastPart struct {
	mr        *multipart.Reader
	part      *multipart.Part
	maxUpload int64
	err       error
}

func (p *lastPart) Read(b []byte) (int, error) {
	if p.err != nil {
		return 0, p.err
	}

	n, err := p.part.Read(b)
	if errors.Is(err, io.EOF) {
		err = p.checkLast()
	}
	if err != nil {
		if tooLarge := uploadTooLarge(err, p.maxUpload); tooLarge != nil {
			err = tooLarge
		}
		p.err = err
	}
	return n, err
}

func (p *lastPart) checkLast() error {
	next, err := p.mr.NextPart()
	switch {
	case errors.Is(err, io.EOF):
		return io.EOF
	case err != nil:
		return err
	default:
		_ = next.Close()
		return common.NewValidationError(fileField, "must be the last form field")
	}
}

func (f *accountForm) has(key string) bool {
	_, ok := f.values[key]
	return ok
}

func (f *accountForm) value(key string) string {
	return f.values.Get(key)
}

func (f *accountForm) optional(key string) *string {
	if !f.has(key) {
		return nil
	}
	v := f.value(key)
	return &v
}

// flag parses a boolean field; absent or empty means false.
func (f *accountForm) flag(key string) (bool, error) {
	v := strings.TrimSpace(f.value(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, common.NewValidationError(key, "must be true or false")
	}
	return b, nil
}
