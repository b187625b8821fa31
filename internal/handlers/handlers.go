package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"agenda-medica-server/internal/store"
	"agenda-medica-server/internal/utils"
)

// respondStoreError maps store-layer errors onto the response envelope.
// Policy violations and lost optimistic writes get their own statuses; the
// rest surface as 500 with a retry affordance on the client.
func respondStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrConflict):
		utils.Conflict(c, "The data changed while saving. Please retry.")
	case errors.Is(err, store.ErrAdminProtected):
		utils.Forbidden(c, "The admin account cannot be modified or deleted.")
	case errors.Is(err, store.ErrUsernameTaken):
		utils.BadRequest(c, "Username is already in use.")
	default:
		utils.InternalServerError(c, "Storage error: "+err.Error())
	}
}
