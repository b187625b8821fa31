package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"agenda-medica-server/internal/config"
	"agenda-medica-server/internal/middleware"
	"agenda-medica-server/internal/models"
	"agenda-medica-server/internal/store"
	"agenda-medica-server/internal/utils"
)

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	Store store.Store
	Cfg   *config.Config
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(s store.Store, cfg *config.Config) *AuthHandler {
	return &AuthHandler{Store: s, Cfg: cfg}
}

// LoginRequest represents the request body for user login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the response body for successful login.
type LoginResponse struct {
	AccessToken string               `json:"accessToken"`
	User        models.UserSanitized `json:"user"`
}

// Login handles user login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, err := h.Store.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCredentials) {
			utils.Unauthorized(c, "Invalid username or password")
		} else {
			respondStoreError(c, err)
		}
		return
	}

	accessToken, err := utils.GenerateToken(user, h.Cfg)
	if err != nil {
		utils.InternalServerError(c, "Failed to generate token: "+err.Error())
		return
	}

	// The local backend keeps the current session user under its own key,
	// the way the browser variant did.
	if sessions, ok := h.Store.(store.SessionStore); ok {
		if err := sessions.SaveSession(c.Request.Context(), *user); err != nil {
			utils.InternalServerError(c, "Failed to persist session: "+err.Error())
			return
		}
	}

	utils.Success(c, "Login successful", LoginResponse{
		AccessToken: accessToken,
		User:        user.Sanitize(),
	})
}

// Logout handles user logout, clearing the persisted session where the
// backend keeps one.
func (h *AuthHandler) Logout(c *gin.Context) {
	if sessions, ok := h.Store.(store.SessionStore); ok {
		if err := sessions.ClearSession(c.Request.Context()); err != nil {
			utils.InternalServerError(c, "Failed to clear session: "+err.Error())
			return
		}
	}
	utils.Success(c, "Logged out successfully", nil)
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	username, exists := middleware.GetUsernameFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	utils.Success(c, "Authenticated user", models.UserSanitized{
		ID:       userID,
		Username: username,
	})
}
