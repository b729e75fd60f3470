package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ricirt/chatpulse/internal/api/middleware"
	"github.com/ricirt/chatpulse/internal/sweeper"
)

// AccountHandler receives account lifecycle hooks from the identity service.
type AccountHandler struct {
	sweeper *sweeper.Sweeper
	logger  *zap.Logger
}

func NewAccountHandler(s *sweeper.Sweeper, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{sweeper: s, logger: logger}
}

type accountDeletedRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// Deleted handles POST /api/v1/hooks/account-deleted
//
// @Summary  Remove a deleted account's profile and chat history
// @Tags     hooks
// @Accept   json
// @Success  204
// @Failure  422  {object}  map[string]string
// @Failure  503  {object}  map[string]string
// @Router   /api/v1/hooks/account-deleted [post]
func (h *AccountHandler) Deleted(w http.ResponseWriter, r *http.Request) {
	var req accountDeletedRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.sweeper.CleanupUser(r.Context(), req.UserID); err != nil {
		middleware.Logger(r.Context(), h.logger).Warn("account cleanup failed",
			zap.String("user_id", req.UserID), zap.Error(err))
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
