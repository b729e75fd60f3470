package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ricirt/chatpulse/internal/api/middleware"
	"github.com/ricirt/chatpulse/internal/sweeper"
)

// SweepHandler triggers retention sweeps on demand, outside their schedule.
type SweepHandler struct {
	sweeper *sweeper.Sweeper
	logger  *zap.Logger
}

func NewSweepHandler(s *sweeper.Sweeper, logger *zap.Logger) *SweepHandler {
	return &SweepHandler{sweeper: s, logger: logger}
}

// Messages handles POST /api/v1/sweeps/messages
//
// @Summary  Run the message retention purge now
// @Tags     sweeps
// @Produce  json
// @Success  200  {object}  sweeper.MessagePurgeReport
// @Failure  503  {object}  map[string]any
// @Router   /api/v1/sweeps/messages [post]
func (h *SweepHandler) Messages(w http.ResponseWriter, r *http.Request) {
	report, err := h.sweeper.PurgeMessages(r.Context())
	h.respond(w, r, sweeper.SweepMessages, report, err)
}

// Notifications handles POST /api/v1/sweeps/notifications
//
// @Summary  Run the notification queue purge now
// @Tags     sweeps
// @Produce  json
// @Success  200  {object}  sweeper.NotificationPurgeReport
// @Router   /api/v1/sweeps/notifications [post]
func (h *SweepHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	report, err := h.sweeper.PurgeNotifications(r.Context())
	h.respond(w, r, sweeper.SweepNotifications, report, err)
}

// respond returns the partial report alongside the error so operators can
// see what was committed before the failure.
func (h *SweepHandler) respond(w http.ResponseWriter, r *http.Request, sweep string, report any, err error) {
	if err == nil {
		respondJSON(w, http.StatusOK, report)
		return
	}

	middleware.Logger(r.Context(), h.logger).Warn("sweep failed",
		zap.String("sweep", sweep), zap.Error(err))
	if isNilReport(report) {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusServiceUnavailable, map[string]any{
		"error":  "sweep incomplete, retry later",
		"report": report,
	})
}

func isNilReport(report any) bool {
	switch v := report.(type) {
	case *sweeper.MessagePurgeReport:
		return v == nil
	case *sweeper.NotificationPurgeReport:
		return v == nil
	}
	return report == nil
}
