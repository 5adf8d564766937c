// Package remove реализует HTTP-обработчик удаления сервиса.
package remove

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/service/guard"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/response"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// Handler обрабатывает запросы на удаление сервиса.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики удаления сервиса.
type Service interface {
	Read(ctx context.Context, id int) (*models.Service, error)
	Remove(ctx context.Context, id int) error
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Удалить сервис
// @Tags Services
// @Produce  json
// @Param id path int true "ID сервиса"
// @Success 200 {object} response.Response "Сервис удалён"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 403 {object} response.ErrorResponse "Сервис принадлежит другому пользователю"
// @Failure 404 {object} response.ErrorResponse "Сервис не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /services/{id} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.service.remove"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	svc, ok := guard.Load(w, r, log, h.service)
	if !ok {
		return
	}

	if err := h.service.Remove(r.Context(), svc.ID); err != nil {
		guard.StoreError(w, r, log, err, "could not remove service")
		return
	}

	log.Info("service removed", slog.Int("id", svc.ID))
	render.JSON(w, r, response.OK())
}
