package util

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/windoze95/manas-api/internal/models"
)

// DefaultUserID owns requests made without credentials on optional-auth routes.
const DefaultUserID = "default"

// GetUserIDFromContext gets the user ID from the context.
func GetUserIDFromContext(c *gin.Context) (string, error) {
	val, ok := c.Get("user_id")
	if !ok {
		return "", errors.New("no user ID information")
	}

	userID, ok := val.(string)
	if !ok {
		return "", errors.New("user ID information is of the wrong type")
	}
	if userID == "" {
		return "", errors.New("user ID is empty")
	}

	return userID, nil
}

// UserIDOrDefault returns the authenticated user ID, or DefaultUserID when
// the request carried no credentials.
func UserIDOrDefault(c *gin.Context) string {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		return DefaultUserID
	}
	return userID
}

// GetProfileFromContext gets the profile attached by the profile middleware.
func GetProfileFromContext(c *gin.Context) (*models.Profile, error) {
	val, ok := c.Get("profile")
	if !ok {
		return nil, errors.New("no profile information")
	}

	profile, ok := val.(*models.Profile)
	if !ok {
		return nil, errors.New("profile information is of the wrong type")
	}

	return profile, nil
}
