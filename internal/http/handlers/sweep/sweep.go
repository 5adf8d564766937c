// Package sweep реализует ручной запуск прохода автопродления (только для администратора).
package sweep

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/juju/clock"

	"github.com/magabrotheeeer/subscription-tracker/internal/http/response"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/scheduler"
)

// Handler запускает проход автопродления.
type Handler struct {
	log     *slog.Logger
	sweeper Sweeper
	clock   clock.Clock
}

// Sweeper выполняет один проход.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (models.SweepReport, error)
}

// New создает новый Handler.
func New(log *slog.Logger, sweeper Sweeper, clk clock.Clock) *Handler {
	return &Handler{
		log:     log,
		sweeper: sweeper,
		clock:   clk,
	}
}

// ServeHTTP godoc
// @Summary Запустить автопродление
// @Description Выполняет проход автопродления на текущую дату и возвращает отчёт.
// @Tags Admin
// @Produce  json
// @Success 200 {object} response.Response "Отчёт прохода"
// @Failure 403 {object} response.ErrorResponse "Нужна роль администратора"
// @Failure 409 {object} response.ErrorResponse "Проход уже выполняется"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /sweep [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.sweep"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	report, err := h.sweeper.Sweep(context.WithoutCancel(r.Context()), h.clock.Now())
	if errors.Is(err, scheduler.ErrSweepInProgress) {
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.Error("sweep already in progress"))
		return
	}
	if err != nil {
		log.Error("sweep failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("sweep failed"))
		return
	}

	render.JSON(w, r, response.OKWithData(report))
}
