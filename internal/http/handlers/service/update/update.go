// Package update реализует HTTP-обработчик частичного изменения сервиса.
//
// В теле передаются только изменяемые поля. Поле с нулевым значением
// (amount "0", пустое описание) записывается, а не пропускается.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/service/guard"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/response"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// Handler обрабатывает запросы на изменение сервиса.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики изменения сервиса.
type Service interface {
	Read(ctx context.Context, id int) (*models.Service, error)
	Update(ctx context.Context, id int, upd models.ServiceUpdate) (*models.Service, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Изменить сервис
// @Description Частично изменяет сервис. При смене даты окончания статус пересчитывается.
// @Tags Services
// @Accept  json
// @Produce  json
// @Param id path int true "ID сервиса"
// @Param request body models.DummyServiceUpdate true "Изменяемые поля"
// @Success 200 {object} response.Response "Сервис после изменения"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 403 {object} response.ErrorResponse "Сервис принадлежит другому пользователю"
// @Failure 404 {object} response.ErrorResponse "Сервис не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /services/{id} [patch]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.service.update"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	svc, ok := guard.Load(w, r, log, h.service)
	if !ok {
		return
	}

	var req models.DummyServiceUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			render.JSON(w, r, response.ValidationError(verrs))
			return
		}
		render.JSON(w, r, response.Error("invalid request"))
		return
	}

	upd, err := req.ToUpdate()
	if err != nil {
		log.Warn("invalid field value", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error(err.Error()))
		return
	}
	if upd.IsEmpty() {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("no fields to update"))
		return
	}

	updated, err := h.service.Update(r.Context(), svc.ID, upd)
	if err != nil {
		guard.StoreError(w, r, log, err, "could not update service")
		return
	}

	log.Info("service updated", slog.Int("id", svc.ID))
	render.JSON(w, r, response.OKWithData(updated))
}
