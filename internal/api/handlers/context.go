package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"example.com/albaranes/internal/models"
)

// Context keys
const (
	RequestIDKey = "request_id"
	userKey      = "user"
)

// SetUser stores the authenticated user on the request
func SetUser(c *gin.Context, user *models.User) {
	c.Set(userKey, user)
}

// CurrentUser returns the authenticated user. Routes behind the auth
// middleware always have one.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(userKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// requireUser aborts with 401 when there is no authenticated user
func requireUser(c *gin.Context) (*models.User, bool) {
	user := CurrentUser(c)
	if user == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Message: "authentication required", Code: "UNAUTHORIZED"})
		return nil, false
	}
	return user, true
}

// pathID parses the :id route parameter
func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Message: "invalid id", Code: "VALIDATION"})
		return uuid.Nil, false
	}
	return id, true
}
