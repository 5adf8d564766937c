// Package subscription содержит бизнес-логику ручных операций с сервисами:
// создание, чтение через кеш, изменение, ручное продление и удаление.
// Статус сервиса всегда выводится из даты окончания на текущий день.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/juju/clock"

	"github.com/magabrotheeeer/subscription-tracker/internal/cache"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/calendar"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/lifecycle"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/importer"
)

// Repository определяет методы хранилища сервисов.
type Repository interface {
	CreateService(ctx context.Context, svc models.Service) (*models.Service, error)
	ReadService(ctx context.Context, id int) (*models.Service, error)
	ListServices(ctx context.Context, filter models.ServiceFilter) ([]*models.Service, error)
	UpdateService(ctx context.Context, id int, upd models.ServiceUpdate) (*models.Service, error)
	RemoveService(ctx context.Context, id int) error
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(ctx context.Context, key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(ctx context.Context, key string) error
}

// Publisher публикует события продления.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// SubscriptionService реализует ручные операции с сервисами.
type SubscriptionService struct {
	repo       Repository
	cache      Cache
	publisher  Publisher
	classifier lifecycle.Classifier
	clock      clock.Clock
	cacheTTL   time.Duration
	log        *slog.Logger
}

// NewSubscriptionService создает новый экземпляр SubscriptionService.
// publisher может быть nil: тогда события продления не публикуются.
func NewSubscriptionService(repo Repository, cache Cache, publisher Publisher,
	classifier lifecycle.Classifier, clk clock.Clock, cacheTTL time.Duration, log *slog.Logger,
) *SubscriptionService {
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &SubscriptionService{
		repo:       repo,
		cache:      cache,
		publisher:  publisher,
		classifier: classifier,
		clock:      clk,
		cacheTTL:   cacheTTL,
		log:        log,
	}
}

func (s *SubscriptionService) today() time.Time {
	return calendar.Date(s.clock.Now().UTC())
}

func (s *SubscriptionService) withStatus(svc *models.Service, today time.Time) *models.Service {
	svc.Status = s.classifier.Classify(svc.ExpirationDate, today)
	return svc
}

// Create сохраняет новый сервис пользователя. Статус и якорный день
// вычисляются из даты окончания. Без даты регистрации берётся сегодняшняя.
func (s *SubscriptionService) Create(ctx context.Context, userUID string, in models.ServiceCreate) (*models.Service, error) {
	const op = "subscription.Create"
	log := s.log.With(slog.String("op", op))

	today := s.today()
	registerDate := calendar.Date(in.RegisterDate)
	if in.RegisterDate.IsZero() {
		registerDate = today
	}
	expiration := calendar.Date(in.ExpirationDate)

	created, err := s.repo.CreateService(ctx, models.Service{
		UserUID:        userUID,
		Name:           in.Name,
		Description:    in.Description,
		Type:           in.Type,
		Provider:       in.Provider,
		PaidVia:        in.PaidVia,
		Amount:         in.Amount,
		Currency:       in.Currency,
		Frequency:      in.Frequency,
		ExpirationDate: expiration,
		RegisterDate:   registerDate,
		AnchorDay:      expiration.Day(),
		AutoRenew:      in.AutoRenew,
		Status:         s.classifier.Classify(expiration, today),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("created new service", slog.Int("id", created.ID), slog.String("status", string(created.Status)))

	s.store(ctx, log, created)
	return created, nil
}

// Read возвращает сервис по ID, используя кеш или репозиторий.
func (s *SubscriptionService) Read(ctx context.Context, id int) (*models.Service, error) {
	const op = "subscription.Read"
	log := s.log.With(slog.String("op", op))
	today := s.today()

	var cached models.Service
	found, err := s.cache.Get(ctx, cache.ServiceKey(id), &cached)
	if err != nil {
		log.Warn("failed to read from cache", slog.Int("id", id), sl.Err(err))
	}
	if found {
		return s.withStatus(&cached, today), nil
	}

	svc, err := s.repo.ReadService(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.store(ctx, log, svc)
	return s.withStatus(svc, today), nil
}

// List возвращает сервисы пользователя с пагинацией. Администратор видит все сервисы.
func (s *SubscriptionService) List(ctx context.Context, userUID, role string, limit, offset int) ([]*models.Service, error) {
	const op = "subscription.List"

	filter := models.ServiceFilter{Limit: limit, Offset: offset}
	if role != models.RoleAdmin {
		filter.UserUID = &userUID
	}
	services, err := s.repo.ListServices(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	today := s.today()
	for _, svc := range services {
		s.withStatus(svc, today)
	}
	return services, nil
}

// Update применяет частичное изменение. Если меняется дата окончания,
// статус пересчитывается, а якорный день берётся из новой даты.
func (s *SubscriptionService) Update(ctx context.Context, id int, upd models.ServiceUpdate) (*models.Service, error) {
	const op = "subscription.Update"
	log := s.log.With(slog.String("op", op))
	today := s.today()

	// Статус и якорь задаются только здесь.
	upd.Status = nil
	upd.AnchorDay = nil
	if upd.ExpirationDate != nil {
		exp := calendar.Date(*upd.ExpirationDate)
		status := s.classifier.Classify(exp, today)
		anchor := exp.Day()
		upd.ExpirationDate = &exp
		upd.Status = &status
		upd.AnchorDay = &anchor
	}

	updated, err := s.repo.UpdateService(ctx, id, upd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, log, id)

	log.Info("service updated", slog.Int("id", id))
	return s.withStatus(updated, today), nil
}

// Renew вручную продлевает сервис на ближайший период после сегодняшнего дня
// и отмечает оплату сегодняшней датой.
func (s *SubscriptionService) Renew(ctx context.Context, id int) (*models.Service, error) {
	const op = "subscription.Renew"
	log := s.log.With(slog.String("op", op))
	today := s.today()

	svc, err := s.repo.ReadService(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	next, err := lifecycle.NextExpirationAnchored(svc.ExpirationDate, svc.AnchorDay, svc.Frequency, today)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	status := s.classifier.Classify(next, today)

	renewed, err := s.repo.UpdateService(ctx, id, models.ServiceUpdate{
		ExpirationDate:     &next,
		Status:             &status,
		LastPayment:        &today,
		ExpectedExpiration: &svc.ExpirationDate,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, log, id)

	log.Info("service renewed",
		slog.Int("id", id),
		sl.Date("previous_expiration", svc.ExpirationDate),
		sl.Date("next_expiration", next),
	)

	if s.publisher != nil {
		event := models.RenewalEvent{
			ServiceID:      renewed.ID,
			UserUID:        renewed.UserUID,
			Name:           renewed.Name,
			ExpirationDate: next,
			Status:         status,
			LastPayment:    today,
		}
		if err := s.publisher.Publish(ctx, rabbitmq.RoutingKeyRenewed, event); err != nil {
			log.Error("failed to publish renewal event", slog.Int("id", id), sl.Err(err))
		}
	}
	return s.withStatus(renewed, today), nil
}

// Remove удаляет сервис по ID и инвалидирует кеш.
func (s *SubscriptionService) Remove(ctx context.Context, id int) error {
	const op = "subscription.Remove"
	log := s.log.With(slog.String("op", op))

	if err := s.repo.RemoveService(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, log, id)
	return nil
}

// Export возвращает сервисы пользователя в CSV-формате импорта с датами в ISO.
func (s *SubscriptionService) Export(ctx context.Context, userUID, role string) (string, error) {
	const op = "subscription.Export"

	services, err := s.List(ctx, userUID, role, 0, 0)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return importer.Export(services), nil
}

func (s *SubscriptionService) store(ctx context.Context, log *slog.Logger, svc *models.Service) {
	if err := s.cache.Set(ctx, cache.ServiceKey(svc.ID), svc, s.cacheTTL); err != nil {
		log.Warn("failed to cache service", slog.Int("id", svc.ID), sl.Err(err))
	}
}

func (s *SubscriptionService) invalidate(ctx context.Context, log *slog.Logger, id int) {
	if err := s.cache.Invalidate(ctx, cache.ServiceKey(id)); err != nil {
		log.Warn("failed to remove from cache", slog.Int("id", id), sl.Err(err))
	}
}
