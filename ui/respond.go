package ui

import (
	"net/http"

	"cmportal/internal/errors"

	"github.com/gin-gonic/gin"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// respondError answers the catalog endpoints with {"error": message}
func (s *Server) respondError(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": errors.UserMessage(err)})
}

// respondStatusError answers the search and benchmark endpoints, which carry
// a status field in every response
func (s *Server) respondStatusError(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"status": statusError, "message": errors.UserMessage(err)})
}
