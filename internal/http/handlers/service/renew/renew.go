// Package renew реализует HTTP-обработчик ручного продления сервиса.
package renew

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/service/guard"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/response"
	"github.com/magabrotheeeer/subscription-tracker/internal/lifecycle"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// Handler обрабатывает запросы на ручное продление.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики продления.
type Service interface {
	Read(ctx context.Context, id int) (*models.Service, error)
	Renew(ctx context.Context, id int) (*models.Service, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Продлить сервис
// @Description Переносит дату окончания на ближайший период после сегодняшнего дня и отмечает оплату сегодня.
// @Tags Services
// @Produce  json
// @Param id path int true "ID сервиса"
// @Success 200 {object} response.Response "Сервис после продления"
// @Failure 403 {object} response.ErrorResponse "Сервис принадлежит другому пользователю"
// @Failure 404 {object} response.ErrorResponse "Сервис не найден"
// @Failure 422 {object} response.ErrorResponse "Период оплаты не поддерживает продление"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /services/{id}/renew [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.service.renew"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	svc, ok := guard.Load(w, r, log, h.service)
	if !ok {
		return
	}

	renewed, err := h.service.Renew(r.Context(), svc.ID)
	if errors.Is(err, lifecycle.ErrInvalidFrequency) {
		log.Warn("renewal not possible", slog.Int("id", svc.ID), slog.String("frequency", string(svc.Frequency)))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("frequency does not support renewal"))
		return
	}
	if err != nil {
		guard.StoreError(w, r, log, err, "could not renew service")
		return
	}

	log.Info("service renewed", slog.Int("id", svc.ID))
	render.JSON(w, r, response.OKWithData(renewed))
}
