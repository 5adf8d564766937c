package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/csvexport"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/csvimport"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/health"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/importerrors/clean"
	importerrorslist "github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/importerrors/list"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/service/create"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/service/list"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/service/read"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/service/remove"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/service/renew"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/service/update"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/sweep"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/jwt"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

const (
	importRPS   = 1
	importBurst = 3
)

// Subscriptions описывает ручные операции с сервисами.
type Subscriptions interface {
	Create(ctx context.Context, userUID string, in models.ServiceCreate) (*models.Service, error)
	Read(ctx context.Context, id int) (*models.Service, error)
	List(ctx context.Context, userUID, role string, limit, offset int) ([]*models.Service, error)
	Update(ctx context.Context, id int, upd models.ServiceUpdate) (*models.Service, error)
	Renew(ctx context.Context, id int) (*models.Service, error)
	Remove(ctx context.Context, id int) error
	Export(ctx context.Context, userUID, role string) (string, error)
}

// Storage отдаёт журнал ошибок импорта и проверяет соединение с базой.
type Storage interface {
	ListImportErrors(ctx context.Context, userUID string, limit int) ([]models.ImportError, error)
	ClearImportErrors(ctx context.Context, userUID string) (int, error)
	PingContext(ctx context.Context) error
}

// Deps собирает зависимости обработчиков.
type Deps struct {
	Subscriptions Subscriptions
	Importer      csvimport.Importer
	Sweeper       sweep.Sweeper
	Storage       Storage
	TokenMaker    jwt.Maker
	Clock         clock.Clock
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	r.Get("/health", health.New(logger, deps.Storage).ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarectx.JWTMiddleware(deps.TokenMaker, logger))

		r.Post("/services", create.New(logger, deps.Subscriptions).ServeHTTP)
		r.Get("/services", list.New(logger, deps.Subscriptions).ServeHTTP)
		r.Get("/services/export", csvexport.New(logger, deps.Subscriptions).ServeHTTP)
		r.With(middlewarectx.RateLimitMiddleware(logger, importRPS, importBurst)).
			Post("/services/import", csvimport.New(logger, deps.Importer).ServeHTTP)
		r.Get("/services/{id}", read.New(logger, deps.Subscriptions).ServeHTTP)
		r.Patch("/services/{id}", update.New(logger, deps.Subscriptions).ServeHTTP)
		r.Delete("/services/{id}", remove.New(logger, deps.Subscriptions).ServeHTTP)
		r.Post("/services/{id}/renew", renew.New(logger, deps.Subscriptions).ServeHTTP)

		r.Get("/import-errors", importerrorslist.New(logger, deps.Storage).ServeHTTP)
		r.Delete("/import-errors", clean.New(logger, deps.Storage).ServeHTTP)

		r.With(middlewarectx.AdminOnly(logger)).
			Post("/sweep", sweep.New(logger, deps.Sweeper, deps.Clock).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
}
