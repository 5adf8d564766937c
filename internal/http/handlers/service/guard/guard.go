// Package guard загружает сервис из URL-параметра {id} и проверяет,
// что текущий пользователь может с ним работать.
package guard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/response"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
	"github.com/magabrotheeeer/subscription-tracker/internal/storage/repository"
)

// Reader читает сервис по ID.
type Reader interface {
	Read(ctx context.Context, id int) (*models.Service, error)
}

// Load возвращает сервис из запроса. При false ответ клиенту уже записан.
func Load(w http.ResponseWriter, r *http.Request, log *slog.Logger, reader Reader) (*models.Service, bool) {
	userUID, role, ok := middlewarectx.Identity(r.Context())
	if !ok {
		log.Error("user uid not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return nil, false
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		log.Warn("failed to decode id from url", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode id from url"))
		return nil, false
	}

	svc, err := reader.Read(r.Context(), id)
	if errors.Is(err, repository.ErrServiceNotFound) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("service not found"))
		return nil, false
	}
	if err != nil {
		log.Error("failed to read service", slog.Int("id", id), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read service"))
		return nil, false
	}

	if !svc.AccessibleBy(userUID, role) {
		log.Warn("access denied", slog.Int("id", id), slog.String("user_uid", userUID))
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, response.Error("access denied"))
		return nil, false
	}
	return svc, true
}

// StoreError отвечает на ошибку записи: 404 для удалённого сервиса,
// 409 для сервиса, изменённого параллельно, иначе 500 с msg.
func StoreError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error, msg string) {
	if errors.Is(err, repository.ErrServiceNotFound) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("service not found"))
		return
	}
	if errors.Is(err, repository.ErrServiceConflict) {
		log.Warn("service changed concurrently", sl.Err(err))
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.Error("service was changed concurrently, retry"))
		return
	}
	log.Error(msg, sl.Err(err))
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, response.Error(msg))
}
