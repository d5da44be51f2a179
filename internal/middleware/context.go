package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/windoze95/manas-api/internal/logger"
	"github.com/windoze95/manas-api/internal/service"
	"github.com/windoze95/manas-api/internal/util"
	"go.uber.org/zap"
)

// AttachProfileToContext loads the caller's profile, creating it on first
// use. A failed lookup leaves profile unset rather than failing the request.
func AttachProfileToContext(profileService *service.ProfileService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := util.GetUserIDFromContext(c)
		if err != nil {
			c.Next()
			return
		}

		profile, err := profileService.GetOrCreate(userID)
		if err != nil {
			logger.FromGin(c).Warn("failed to load profile", zap.String("user_id", userID), zap.Error(err))
		} else {
			c.Set("profile", profile)
		}
		c.Next()
	}
}
