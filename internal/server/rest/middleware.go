package rest

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/auth"
	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// requestLogger logs every request once it has been served.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", c.FullPath(),
			"status", status,
			"duration", time.Since(start),
			"remote", c.ClientIP(),
		}
		if status >= http.StatusInternalServerError {
			s.logger.Error(c.Request.Context(), "http request", args...)
			return
		}
		s.logger.Debug(c.Request.Context(), "http request", args...)
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, rec any) {
		s.logger.Error(c.Request.Context(), "panic recovered", "path", c.Request.URL.Path, "panic", rec)
		if c.Writer.Written() {
			c.Abort()
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Error: "internal server error", Code: codeInternal})
	})
}

// authenticate verifies the bearer token and stores the caller identity.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(common.AuthorizationHeaderName)
		token, ok := strings.CutPrefix(header, common.BearerPrefix)
		if !ok || strings.TrimSpace(token) == "" {
			s.writeError(c, common.ErrorUnauthorized)
			return
		}

		id, err := auth.ParseToken(strings.TrimSpace(token), s.secret)
		if err != nil {
			s.writeError(c, err)
			return
		}

		c.Set(identityKey, id)
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !caller(c).IsAdmin() {
			s.writeError(c, common.ErrForbidden)
			return
		}
		c.Next()
	}
}

func caller(c *gin.Context) auth.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(auth.Identity); ok {
			return id
		}
	}
	id, _ := auth.FromContext(c.Request.Context())
	return id
}
