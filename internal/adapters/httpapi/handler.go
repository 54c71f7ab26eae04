package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"ramadan-bot/internal/domain"
	httpinfra "ramadan-bot/internal/infra/http"
	"ramadan-bot/internal/usecase/schedule"
	"ramadan-bot/internal/usecase/state"
)

var errBadBody = errors.New("invalid request body")

// Service операции оркестратора, доступные администратору.
type Service interface {
	Status(ctx context.Context) schedule.Status
	Countdown(ctx context.Context) domain.CountdownResult
	SetCountdownEnabled(ctx context.Context, enabled bool) error
	Activate(ctx context.Context, channelID string) error
	Deactivate(ctx context.Context) error
	ChangeCity(ctx context.Context, channelID, city, country string) error
	ChannelTimes(ctx context.Context, channelID string) (domain.PrayerTimes, error)
	TriggerReminder(ctx context.Context, channelID string, typ domain.MessageType) error
	RemoveChannel(ctx context.Context, channelID string) error
}

// Handler административные маршруты /api/v1.
type Handler struct {
	svc Service
	log zerolog.Logger
}

// New создаёт обработчик.
func New(svc Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: logger}
}

// Mount регистрирует маршруты под защитой токена администратора.
func (h *Handler) Mount(r chi.Router, adminToken string) {
	r.Route("/api/v1", func(api chi.Router) {
		api.Use(httpinfra.BearerAuthMiddleware(adminToken))

		api.Get("/status", h.status)
		api.Get("/countdown", h.countdown)
		api.Put("/countdown", h.setCountdown)
		api.Post("/season/activate", h.activate)
		api.Post("/season/deactivate", h.deactivate)
		api.Put("/channels/{id}/location", h.changeLocation)
		api.Get("/channels/{id}/times", h.channelTimes)
		api.Post("/channels/{id}/reminders/{type}", h.trigger)
		api.Delete("/channels/{id}", h.removeChannel)
	})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	httpinfra.WriteJSON(w, http.StatusOK, h.svc.Status(r.Context()))
}

func (h *Handler) countdown(w http.ResponseWriter, r *http.Request) {
	httpinfra.WriteJSON(w, http.StatusOK, h.svc.Countdown(r.Context()))
}

type countdownRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *Handler) setCountdown(w http.ResponseWriter, r *http.Request) {
	var req countdownRequest
	if err := decode(r, &req); err != nil || req.Enabled == nil {
		httpinfra.WriteError(w, http.StatusBadRequest, errBadBody)
		return
	}
	if err := h.svc.SetCountdownEnabled(r.Context(), *req.Enabled); err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]bool{"enabled": *req.Enabled})
}

type activateRequest struct {
	ChannelID string `json:"channelId"`
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			httpinfra.WriteError(w, http.StatusBadRequest, errBadBody)
			return
		}
	}
	if err := h.svc.Activate(r.Context(), req.ChannelID); err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]string{"status": "active"})
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Deactivate(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]string{"status": "idle"})
}

type locationRequest struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

func (h *Handler) changeLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := decode(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, errBadBody)
		return
	}
	if err := h.svc.ChangeCity(r.Context(), chi.URLParam(r, "id"), req.City, req.Country); err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) channelTimes(w http.ResponseWriter, r *http.Request) {
	times, err := h.svc.ChannelTimes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, times)
}

func (h *Handler) trigger(w http.ResponseWriter, r *http.Request) {
	typ := domain.MessageType(chi.URLParam(r, "type"))
	if err := h.svc.TriggerReminder(r.Context(), chi.URLParam(r, "id"), typ); err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]string{"status": "sent", "type": string(typ)})
}

func (h *Handler) removeChannel(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveChannel(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail переводит ошибку оркестратора в HTTP статус.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("request_id", httpinfra.RequestID(r)).Str("path", r.URL.Path).Msg("api: ошибка запроса")
	}
	httpinfra.WriteError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, schedule.ErrUnknownType), errors.Is(err, domain.ErrInvalidLocation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrChannelNotFound), errors.Is(err, state.ErrUnknownChannel):
		return http.StatusNotFound
	case errors.Is(err, schedule.ErrAlreadyActive),
		errors.Is(err, schedule.ErrNotActive),
		errors.Is(err, schedule.ErrAlreadySent),
		errors.Is(err, schedule.ErrInFlight):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNetwork):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func decode(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
