package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/ricirt/chatpulse/internal/api/middleware"
	"github.com/ricirt/chatpulse/internal/domain"
	"github.com/ricirt/chatpulse/internal/service"
)

// EventHandler accepts create-events from the chat event source.
type EventHandler struct {
	svc        *service.NotificationService
	dispatcher service.Dispatcher
	logger     *zap.Logger
}

func NewEventHandler(svc *service.NotificationService, d service.Dispatcher, logger *zap.Logger) *EventHandler {
	return &EventHandler{svc: svc, dispatcher: d, logger: logger}
}

// Message handles POST /api/v1/events/messages
//
// @Summary  Fan out a newly created chat message
// @Tags     events
// @Accept   json
// @Produce  json
// @Param    sync  query  bool  false  "dispatch inline instead of queueing"
// @Param    body  body   domain.RawEvent  true  "create-event"
// @Success  202  {object}  service.FanoutResult
// @Failure  400  {object}  map[string]string
// @Failure  422  {object}  map[string]string
// @Failure  503  {object}  map[string]string
// @Router   /api/v1/events/messages [post]
func (h *EventHandler) Message(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, domain.EventMessage, h.svc.HandleMessage)
}

// Call handles POST /api/v1/events/calls
//
// @Summary  Fan out an incoming call at high priority
// @Tags     events
// @Accept   json
// @Produce  json
// @Success  202  {object}  service.FanoutResult
// @Router   /api/v1/events/calls [post]
func (h *EventHandler) Call(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, domain.EventCall, h.svc.HandleCall)
}

type fanoutFunc func(context.Context, domain.RawEvent) (*service.FanoutResult, error)

func (h *EventHandler) handle(w http.ResponseWriter, r *http.Request, kind domain.EventKind, fanout fanoutFunc) {
	var raw domain.RawEvent
	if !decode(w, r, &raw) {
		return
	}
	raw.Kind = kind

	var (
		res *service.FanoutResult
		err error
	)
	sync := r.URL.Query().Get("sync") == "true"
	if sync {
		res, err = h.svc.SendNow(r.Context(), raw, h.dispatcher)
	} else {
		res, err = fanout(r.Context(), raw)
	}
	if err != nil {
		middleware.Logger(r.Context(), h.logger).Warn("fan-out failed",
			zap.String("container_id", raw.ContainerID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	status := http.StatusAccepted
	if sync {
		status = http.StatusOK
	}
	respondJSON(w, status, res)
}
