package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *HTTPServer) registerRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	api := r.Group("/api/v1")
	if s.limiter != nil {
		api.Use(s.throttle())
	}

	users := api.Group("/users")
	users.POST("", wrap(http.StatusCreated, s.createUser))
	users.GET("", wrap(http.StatusOK, s.listUsers))
	users.GET("/:id", wrap(http.StatusOK, s.getUser))
	users.PUT("/:id", wrap(http.StatusOK, s.updateUser))
	users.DELETE("/:id", wrap(http.StatusOK, s.deleteUser))

	users.GET("/:id/avatar", wrap(http.StatusOK, s.getAvatar))
	users.POST("/:id/avatar", wrap(http.StatusCreated, s.uploadAvatar))
	users.DELETE("/:id/avatar", wrap(http.StatusOK, s.deleteAvatar))
}

func (s *HTTPServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
