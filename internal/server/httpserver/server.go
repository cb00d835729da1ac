// Package httpserver exposes the users service over HTTP with gin.
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/userhub/internal/logging"
	"github.com/dmitrijs2005/userhub/internal/server/models"
	"github.com/dmitrijs2005/userhub/internal/server/throttle"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Users is the service behind the /users routes.
type Users interface {
	ResolveUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	CreateUser(ctx context.Context, in *models.NewUser) (*models.User, error)
	UpdateUser(ctx context.Context, id string, patch *models.UserPatch) (*models.User, error)
	DeleteUser(ctx context.Context, id string) (*models.User, error)
	FetchAvatar(ctx context.Context, id string) (*models.Avatar, error)
	UploadAvatar(ctx context.Context, id string, in *models.NewAvatar) (*models.Avatar, error)
	DeleteAvatar(ctx context.Context, id string) (*models.DeletedAvatar, error)
}

type Options struct {
	Address         string
	CORSOrigins     []string
	ShutdownTimeout time.Duration
	// Limiter throttles requests per client IP; nil disables throttling.
	Limiter throttle.Limiter
}

type HTTPServer struct {
	address         string
	shutdownTimeout time.Duration
	engine          *gin.Engine
	users           Users
	limiter         throttle.Limiter
	logger          logging.Logger
}

func NewHTTPServer(opts Options, users Users, logger logging.Logger) *HTTPServer {
	s := &HTTPServer{
		address:         opts.Address,
		shutdownTimeout: opts.ShutdownTimeout,
		users:           users,
		limiter:         opts.Limiter,
		logger:          logger.With("module", "http_server"),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  opts.CORSOrigins,
			AllowMethods:  []string{"GET", "POST", "PUT", "DELETE"},
			AllowHeaders:  []string{"Origin", "Content-Type"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}
	s.engine = r
	s.registerRoutes(r)

	return s
}

// Handler returns the router; used by tests and for embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is done, then shuts down gracefully within the
// configured timeout.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()
		stopped <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return <-stopped
}
