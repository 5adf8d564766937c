// Package clean очищает журнал ошибок импорта текущего пользователя целиком.
package clean

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/response"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
)

// Handler очищает журнал ошибок импорта.
type Handler struct {
	log   *slog.Logger
	store Store
}

// Store удаляет журнал ошибок импорта.
type Store interface {
	ClearImportErrors(ctx context.Context, userUID string) (int, error)
}

// New создает новый Handler.
func New(log *slog.Logger, store Store) *Handler {
	return &Handler{
		log:   log,
		store: store,
	}
}

// ServeHTTP godoc
// @Summary Очистить журнал ошибок импорта
// @Tags Import
// @Produce  json
// @Success 200 {object} response.Response "Количество удалённых записей"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /import-errors [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.importerrors.clean"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, _, ok := middlewarectx.Identity(r.Context())
	if !ok {
		log.Error("user uid not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	removed, err := h.store.ClearImportErrors(r.Context(), userUID)
	if err != nil {
		log.Error("failed to clear import errors", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not clear import errors"))
		return
	}

	log.Info("import errors cleared", slog.Int("removed", removed))
	render.JSON(w, r, response.OKWithData(map[string]int{"removed": removed}))
}
