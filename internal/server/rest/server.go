// Package rest exposes the vault over HTTP using gin.
package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/auth"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/services"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 5 * time.Second

// AccountService is implemented by *services.AccountService.
type AccountService interface {
	Create(ctx context.Context, caller auth.Identity, in services.AccountInput, file *services.FileUpload) (*models.Account, error)
	Update(ctx context.Context, caller auth.Identity, id string, patch services.AccountPatch) (*models.Account, error)
	Delete(ctx context.Context, caller auth.Identity, id string) error
	Get(ctx context.Context, caller auth.Identity, id string) (*models.Account, error)
	List(ctx context.Context, caller auth.Identity) ([]*models.Account, error)
}

// FileGateway is implemented by *services.FileGateway.
type FileGateway interface {
	Open(ctx context.Context, caller auth.Identity, blobID string) (*services.FileContent, error)
}

// Maintenance is implemented by *services.MaintenanceService.
type Maintenance interface {
	RefreshLogos(ctx context.Context) (services.RefreshReport, error)
	SweepOrphans(ctx context.Context, apply bool) (services.SweepReport, error)
}

// Server is the HTTP front end of the vault.
type Server struct {
	address     string
	accounts    AccountService
	files       FileGateway
	maintenance Maintenance
	logger      logging.Logger
	secret      []byte
	maxUpload   int64
	engine      *gin.Engine
}

func NewServer(address string, l logging.Logger, as AccountService, fg FileGateway, ms Maintenance,
	secretKey string, maxUpload int64) *Server {
	if maxUpload <= 0 {
		maxUpload = services.DefaultMaxUploadBytes
	}
	s := &Server{
		address:     address,
		accounts:    as,
		files:       fg,
		maintenance: ms,
		logger:      l.With("module", "http_server"),
		secret:      []byte(secretKey),
		maxUpload:   maxUpload,
	}
	s.engine = s.routes()
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(s.recovery())
	r.Use(s.requestLogger())

	r.GET("/health", s.health)

	accounts := r.Group("/accounts", s.authenticate())
	{
		accounts.POST("", s.createAccount)
		accounts.GET("", s.listAccounts)
		accounts.GET("/generate-password", s.generatePassword)
		accounts.GET("/check-admin", s.checkAdmin)
		accounts.GET("/files/:blobId", s.serveFile)
		accounts.GET("/:id", s.getAccount)
		accounts.PUT("/:id", s.updateAccount)
		accounts.DELETE("/:id", s.deleteAccount)

		admin := accounts.Group("", s.requireAdmin())
		admin.POST("/update-logos", s.updateLogos)
		admin.POST("/cleanup-uploads", s.cleanupUploads)
	}

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(ctx, "http shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
