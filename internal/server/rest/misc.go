package rest

import (
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/passgen"
	"github.com/gin-gonic/gin"
)

func (s *Server) generatePassword(c *gin.Context) {
	length := passgen.DefaultLength
	if raw, ok := c.GetQuery("length"); ok && raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(c, common.NewValidationError("length", "must be an integer"))
			return
		}
		length = n
	}

	password, err := passgen.Generate(length)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"password": password})
}

func (s *Server) checkAdmin(c *gin.Context) {
	id := caller(c)
	role := id.Role
	if role == "" {
		role = common.RoleUser
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "isAdmin": id.IsAdmin(), "role": role})
}

func (s *Server) updateLogos(c *gin.Context) {
	rep, err := s.maintenance.RefreshLogos(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logo update completed", "report": rep})
}

// cleanupUploads only reports orphans unless dryRun=false is given.
func (s *Server) cleanupUploads(c *gin.Context) {
	dryRun := true
	if raw, ok := c.GetQuery("dryRun"); ok && raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(c, common.NewValidationError("dryRun", "must be true or false"))
			return
		}
		dryRun = v
	}

	rep, err := s.maintenance.SweepOrphans(c.Request.Context(), !dryRun)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Cleanup completed", "report": rep})
}
