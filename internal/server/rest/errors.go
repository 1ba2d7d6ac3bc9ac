package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/gin-gonic/gin"
)

const (
	codeInvalidArgument    = "invalid_argument"
	codeDuplicateKey       = "duplicate_key"
	codeNotFound           = "not_found"
	codeForbidden          = "forbidden"
	codeUnauthorized       = "unauthorized"
	codeStorageUnavailable = "storage_unavailable"
	codeInternal           = "internal"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type apiError struct {
	status int
	code   string
	err    error
}

func (e apiError) Error() string {
	if e.err == nil {
		return http.StatusText(e.status)
	}
	return e.err.Error()
}

func (e apiError) Unwrap() error {
	return e.err
}

func badRequest(err error) error {
	return apiError{status: http.StatusBadRequest, code: codeInvalidArgument, err: err}
}

// classify maps a service error onto a status and a stable code.
func classify(err error) apiError {
	var ae apiError
	if errors.As(err, &ae) {
		return ae
	}

	switch {
	case errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrInvalidReference),
		errors.Is(err, common.ErrReadError):
		return apiError{status: http.StatusBadRequest, code: codeInvalidArgument, err: err}
	case errors.Is(err, common.ErrDuplicateKey):
		return apiError{status: http.StatusConflict, code: codeDuplicateKey, err: err}
	case errors.Is(err, common.ErrorNotFound):
		return apiError{status: http.StatusNotFound, code: codeNotFound, err: err}
	case errors.Is(err, common.ErrForbidden):
		return apiError{status: http.StatusForbidden, code: codeForbidden, err: err}
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return apiError{status: http.StatusUnauthorized, code: codeUnauthorized, err: err}
	case errors.Is(err, common.ErrStorageUnavailable):
		return apiError{status: http.StatusServiceUnavailable, code: codeStorageUnavailable, err: err}
	default:
		return apiError{status: http.StatusInternalServerError, code: codeInternal, err: err}
	}
}

// publicMessage hides internals of server-side failures.
func publicMessage(ae apiError) string {
	switch ae.code {
	case codeNotFound:
		return "not found"
	case codeDuplicateKey:
		return "an account with the same username or email already exists for this website"
	case codeUnauthorized:
		return "unauthorized"
	case codeForbidden:
		return "forbidden"
	case codeStorageUnavailable:
		return "file storage is temporarily unavailable"
	}
	if ae.status >= http.StatusInternalServerError {
		return "internal server error"
	}
	if ve := new(common.ValidationError); errors.As(ae.err, &ve) {
		return common.ErrValidation.Error()
	}
	return ae.Error()
}

func (s *Server) writeError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	ae := classify(err)

	switch {
	case ae.status >= http.StatusInternalServerError:
		s.logger.Error(ctx, "request failed", "path", c.FullPath(), "status", ae.status, "error", err)
	case errors.Is(err, context.Canceled):
		s.logger.Debug(ctx, "request cancelled", "path", c.FullPath())
	default:
		s.logger.Debug(ctx, "request rejected", "path", c.FullPath(), "status", ae.status, "error", err)
	}

	body := errorBody{Error: publicMessage(ae), Code: ae.code}
	var ve *common.ValidationError
	if errors.As(err, &ve) {
		body.Fields = ve.Fields
	}
	c.AbortWithStatusJSON(ae.status, body)
}
