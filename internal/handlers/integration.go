package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/windoze95/manas-api/internal/logger"
	"github.com/windoze95/manas-api/internal/models"
	"github.com/windoze95/manas-api/internal/service"
	"github.com/windoze95/manas-api/internal/util"
	"go.uber.org/zap"
)

// IntegrationHandler runs the OAuth connect flow for calendar, email and
// fitness providers.
type IntegrationHandler struct {
	Service *service.IntegrationService
}

// NewIntegrationHandler creates a new IntegrationHandler.
func NewIntegrationHandler(integrationService *service.IntegrationService) *IntegrationHandler {
	return &IntegrationHandler{Service: integrationService}
}

func (h *IntegrationHandler) provider(c *gin.Context) (models.IntegrationProvider, bool) {
	provider, err := service.ParseProvider(c.Param("provider"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return provider, true
}

// Connect handles GET /v1/auth/:provider/connect and returns the consent URL.
func (h *IntegrationHandler) Connect(c *gin.Context) {
	userID, err := util.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	provider, ok := h.provider(c)
	if !ok {
		return
	}

	authURL, err := h.Service.ConnectURL(c.Request.Context(), userID, provider)
	if err != nil {
		respondError(c, err, "Failed to start authorization")
		return
	}
	c.JSON(http.StatusOK, gin.H{"auth_url": authURL, "provider": provider})
}

// Callback handles GET /v1/auth/callback. The browser is sent back to the
// frontend with the outcome in the query string.
func (h *IntegrationHandler) Callback(c *gin.Context) {
	if oauthErr := c.Query("error"); oauthErr != "" {
		h.redirect(c, url.Values{"error": {oauthErr}})
		return
	}

	userID, provider, err := h.Service.Callback(c.Request.Context(), c.Query("code"), c.Query("state"))
	if err != nil {
		reason := "authorization_failed"
		if errors.Is(err, service.ErrInvalidOAuthState) {
			reason = "invalid_state"
		} else if ue, ok := service.AsUserError(err); ok {
			reason = ue.Code
		} else {
			logger.FromGin(c).Error("oauth callback failed", zap.Error(err))
		}
		h.redirect(c, url.Values{"error": {reason}})
		return
	}

	logger.FromGin(c).Info("oauth callback complete", zap.String("user_id", userID), zap.String("provider", string(provider)))
	h.redirect(c, url.Values{"connected": {string(provider)}})
}

func (h *IntegrationHandler) redirect(c *gin.Context, q url.Values) {
	base := strings.TrimRight(h.Service.Cfg.EnvVars.FrontendURL, "/")
	c.Redirect(http.StatusFound, base+"/settings/integrations?"+q.Encode())
}

// Status handles GET /v1/auth/:provider/status.
func (h *IntegrationHandler) Status(c *gin.Context) {
	userID, err := util.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	provider, ok := h.provider(c)
	if !ok {
		return
	}

	connected, err := h.Service.IsConnected(userID, provider)
	if err != nil {
		respondError(c, err, "Failed to check integration status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"provider": provider, "connected": connected})
}

// Disconnect handles DELETE /v1/auth/:provider.
func (h *IntegrationHandler) Disconnect(c *gin.Context) {
	userID, err := util.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	provider, ok := h.provider(c)
	if !ok {
		return
	}

	if err := h.Service.Disconnect(userID, provider); err != nil {
		respondError(c, err, "Failed to disconnect integration")
		return
	}
	c.JSON(http.StatusOK, gin.H{"provider": provider, "connected": false})
}
