package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ricirt/chatpulse/internal/api/middleware"
	"github.com/ricirt/chatpulse/internal/service"
)

type JobHandler struct {
	svc    *service.NotificationService
	logger *zap.Logger
}

func NewJobHandler(svc *service.NotificationService, logger *zap.Logger) *JobHandler {
	return &JobHandler{svc: svc, logger: logger}
}

// Get handles GET /api/v1/jobs/{id}
//
// @Summary  Inspect a notification job
// @Tags     jobs
// @Produce  json
// @Param    id   path      string  true  "Job ID"
// @Success  200  {object}  domain.NotificationJob
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/jobs/{id} [get]
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.svc.GetJob(r.Context(), id)
	if err != nil {
		middleware.Logger(r.Context(), h.logger).Debug("job lookup failed",
			zap.String("job_id", id), zap.Error(err))
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}
