package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/windoze95/manas-api/internal/ai"
	"github.com/windoze95/manas-api/internal/models"
	"github.com/windoze95/manas-api/internal/service"
	"github.com/windoze95/manas-api/internal/util"
)

// ProfileHandler is the handler for profile requests.
type ProfileHandler struct {
	Service *service.ProfileService
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profileService *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{Service: profileService}
}

func (h *ProfileHandler) respond(c *gin.Context, profile *models.Profile) {
	resp, err := h.Service.Response(profile)
	if err != nil {
		respondError(c, err, "Failed to load profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": resp})
}

// GetProfile handles GET /v1/profile. The profile is created on first access.
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	profile, err := util.GetProfileFromContext(c)
	if err != nil {
		profile, err = h.Service.GetOrCreate(util.UserIDOrDefault(c))
		if err != nil {
			respondError(c, err, "Failed to load profile")
			return
		}
	}
	h.respond(c, profile)
}

// UpdateProfile handles PUT /v1/profile. Only the fields present are changed.
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	userID, err := util.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var update service.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	profile, err := h.Service.Update(userID, update)
	if err != nil {
		respondError(c, err, "Failed to update profile")
		return
	}
	h.respond(c, profile)
}

// ExtractProfile handles POST /v1/profile/extract.
func (h *ProfileHandler) ExtractProfile(c *gin.Context) {
	userID, err := util.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var body struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	profile, facts, err := h.Service.ExtractFromText(c.Request.Context(), userID, body.Text)
	if err != nil {
		respondError(c, err, "Failed to extract profile information")
		return
	}
	resp, err := h.Service.Response(profile)
	if err != nil {
		respondError(c, err, "Failed to load profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": resp, "extracted": facts})
}

// ClearField handles DELETE /v1/profile/field/:field.
func (h *ProfileHandler) ClearField(c *gin.Context) {
	userID, err := util.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	field := c.Param("field")
	if err := h.Service.ClearField(userID, field); err != nil {
		respondError(c, err, "Failed to clear profile field")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cleared " + field})
}

// ListVoices handles GET /v1/profile/voices.
func (h *ProfileHandler) ListVoices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"voices": h.Service.Voices(), "default": ai.DefaultVoiceID})
}
