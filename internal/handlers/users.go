package handlers

import (
	"github.com/gin-gonic/gin"

	"agenda-medica-server/internal/middleware"
	"agenda-medica-server/internal/models"
	"agenda-medica-server/internal/store"
	"agenda-medica-server/internal/utils"
)

// UserHandler handles user administration requests.
type UserHandler struct {
	Store store.Store
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(s store.Store) *UserHandler {
	return &UserHandler{Store: s}
}

// CreateUserRequest represents the request body for creating a user.
type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=4"`
}

// UpdateUserRequest represents the request body for updating a user. An
// empty password leaves the current credential in place.
type UpdateUserRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"omitempty,min=4"`
}

// GetUsers handles fetching all users, without credential material.
func (h *UserHandler) GetUsers(c *gin.Context) {
	users, err := h.Store.ListUsers(c.Request.Context())
	if err != nil {
		respondStoreError(c, err)
		return
	}

	sanitized := make([]models.UserSanitized, len(users))
	for i := range users {
		sanitized[i] = users[i].Sanitize()
	}
	utils.Success(c, "Users fetched successfully", sanitized)
}

// CreateUser handles creating a new user account.
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, err := h.Store.AddUser(c.Request.Context(), models.UserCredential{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		respondStoreError(c, err)
		return
	}
	utils.Created(c, "User created successfully", user.Sanitize())
}

// UpdateUser handles renaming a user and/or replacing their password.
func (h *UserHandler) UpdateUser(c *gin.Context) {
	userID := c.Param("id")

	var req UpdateUserRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	err := h.Store.UpdateUser(c.Request.Context(), userID, models.UserCredential{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		respondStoreError(c, err)
		return
	}
	utils.Success(c, "User updated successfully", nil)
}

// DeleteUser handles deleting a user account. The admin account and the
// caller's own account are never deletable.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	userID := c.Param("id")

	currentUserID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	if currentUserID == userID {
		utils.Forbidden(c, "You cannot delete your own account.")
		return
	}

	if err := h.Store.DeleteUser(c.Request.Context(), userID); err != nil {
		respondStoreError(c, err)
		return
	}
	utils.Success(c, "User deleted successfully", nil)
}
