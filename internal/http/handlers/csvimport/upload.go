// Package csvimport реализует HTTP-обработчик пакетного импорта сервисов из CSV.
//
// В теле запроса CSV-текст с разделителем ";". Ошибки отдельных строк не
// прерывают импорт и возвращаются в результате. Неверная структура файла
// (нет данных, неверный заголовок) возвращается как 422.
package csvimport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/response"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/importer"
)

// MaxBodyBytes ограничивает размер загружаемого файла.
const MaxBodyBytes = 5 << 20

// Handler обрабатывает загрузку CSV.
type Handler struct {
	log      *slog.Logger
	importer Importer
}

// Importer описывает пакетный импорт.
type Importer interface {
	ImportBatch(ctx context.Context, userUID, raw string) (models.ImportResult, error)
}

// New создает новый Handler.
func New(log *slog.Logger, importer Importer) *Handler {
	return &Handler{
		log:      log,
		importer: importer,
	}
}

// ServeHTTP godoc
// @Summary Импорт сервисов из CSV
// @Description Колонки: name;description;expirationDate;registeredDate;serviceType;providerName;amountPaid;frequency;paidVia;currency. Даты в формате DD/MM/YYYY (ISO YYYY-MM-DD тоже принимается).
// @Tags Import
// @Accept  plain
// @Produce  json
// @Param file body string true "CSV-текст"
// @Success 200 {object} response.Response "Итог импорта"
// @Failure 413 {object} response.ErrorResponse "Файл слишком большой"
// @Failure 422 {object} response.Response "Неверная структура файла"
// @Failure 429 {object} response.ErrorResponse "Слишком много запросов"
// @Security BearerAuth
// @Router /services/import [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.csvimport.upload"
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

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			render.Status(r, http.StatusRequestEntityTooLarge)
			render.JSON(w, r, response.Error("file too large"))
			return
		}
		log.Error("failed to read request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	result, err := h.importer.ImportBatch(r.Context(), userUID, string(body))
	if errors.Is(err, importer.ErrStructural) {
		log.Warn("import rejected", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ErrorWithData(structuralMessage(err), result))
		return
	}
	if err != nil {
		log.Error("import failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.ErrorWithData("import interrupted", result))
		return
	}

	log.Info("import finished", slog.Int("imported", result.ImportedCount), slog.Int("errors", result.ErrorCount))
	render.JSON(w, r, response.OKWithData(result))
}

func structuralMessage(err error) string {
	if errors.Is(err, importer.ErrInvalidHeader) {
		return "invalid header"
	}
	return "insufficient content"
}
