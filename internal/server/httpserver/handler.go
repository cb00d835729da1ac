package httpserver

import (
	"github.com/dmitrijs2005/userhub/internal/common"
	"github.com/dmitrijs2005/userhub/internal/server/models"
	"github.com/gin-gonic/gin"
)

// handlerFunc returns the response body or an error to be rendered by
// writeError.
type handlerFunc func(c *gin.Context) (any, error)

func wrap(status int, h handlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := h(c)
		if err != nil {
			_ = c.Error(err)
			writeError(c, err)
			return
		}
		c.JSON(status, body)
	}
}

func invalidBody(err error) error {
	return common.WrapError(common.ErrorInvalidArgument, err, "Invalid request body")
}

func (s *HTTPServer) createUser(c *gin.Context) (any, error) {
	var in models.NewUser
	if err := c.ShouldBindJSON(&in); err != nil {
		return nil, invalidBody(err)
	}
	return s.users.CreateUser(c.Request.Context(), &in)
}

func (s *HTTPServer) listUsers(c *gin.Context) (any, error) {
	return s.users.ListUsers(c.Request.Context())
}

func (s *HTTPServer) getUser(c *gin.Context) (any, error) {
	return s.users.ResolveUser(c.Request.Context(), c.Param("id"))
}

func (s *HTTPServer) updateUser(c *gin.Context) (any, error) {
	var patch models.UserPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		return nil, invalidBody(err)
	}
	return s.users.UpdateUser(c.Request.Context(), c.Param("id"), &patch)
}

func (s *HTTPServer) deleteUser(c *gin.Context) (any, error) {
	return s.users.DeleteUser(c.Request.Context(), c.Param("id"))
}

func (s *HTTPServer) getAvatar(c *gin.Context) (any, error) {
	return s.users.FetchAvatar(c.Request.Context(), c.Param("id"))
}

func (s *HTTPServer) uploadAvatar(c *gin.Context) (any, error) {
	var in models.NewAvatar
	if err := c.ShouldBindJSON(&in); err != nil {
		return nil, invalidBody(err)
	}
	if in.Filename == "" || len(in.Content) == 0 {
		return nil, common.NewError(common.ErrorInvalidArgument, "filename and content are required")
	}
	return s.users.UploadAvatar(c.Request.Context(), c.Param("id"), &in)
}

func (s *HTTPServer) deleteAvatar(c *gin.Context) (any, error) {
	return s.users.DeleteAvatar(c.Request.Context(), c.Param("id"))
}
