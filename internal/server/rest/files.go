package rest

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/vaultkeeper/internal/shared"
	"github.com/gin-gonic/gin"
)

const fallbackFilename = "file"

// serveFile streams an attached file to its owner.
func (s *Server) serveFile(c *gin.Context) {
	ctx := c.Request.Context()

	fc, err := s.files.Open(ctx, caller(c), c.Param("blobId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	defer fc.Reader.Close()

	name := fc.Filename
	if name == "" {
		name = fallbackFilename
	}

	h := c.Writer.Header()
	h.Set("Content-Type", fc.ContentType)
	h.Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, shared.EncodeURIComponent(name)))
	if fc.Size >= 0 {
		h.Set("Content-Length", strconv.FormatInt(fc.Size, 10))
	}
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	c.Status(http.StatusOK)

	n, err := io.Copy(c.Writer, fc.Reader)
	if err == nil {
		return
	}

	if c.Writer.Written() {
		// the status line is out; a short body makes net/http drop the connection
		s.logger.Warn(ctx, "file stream interrupted", "blob", c.Param("blobId"), "written", n, "error", err)
		c.Abort()
		return
	}

	for _, k := range []string{"Content-Type", "Content-Disposition", "Content-Length", "Cache-Control", "Pragma", "Expires"} {
		h.Del(k)
	}
	s.writeError(c, err)
}
