// Package scheduler реализует автопродление сервисов: периодический проход,
// который продлевает все сервисы с включённым автопродлением и истёкшей
// (или истекающей сегодня) датой окончания.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/magabrotheeeer/subscription-tracker/internal/cache"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/calendar"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/lifecycle"
	"github.com/magabrotheeeer/subscription-tracker/internal/metrics"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// ErrSweepInProgress возвращается, если предыдущий проход ещё не завершён.
var ErrSweepInProgress = errors.New("sweep already in progress")

// Repository описывает методы хранилища, нужные для автопродления.
type Repository interface {
	ListServices(ctx context.Context, filter models.ServiceFilter) ([]*models.Service, error)
	UpdateService(ctx context.Context, id int, upd models.ServiceUpdate) (*models.Service, error)
}

// Invalidator удаляет устаревшие записи кеша.
type Invalidator interface {
	Invalidate(ctx context.Context, key string) error
}

// Publisher публикует события продления.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Sweeper выполняет проходы автопродления. Проходы никогда не выполняются
// одновременно.
type Sweeper struct {
	repo       Repository
	cache      Invalidator
	publisher  Publisher
	classifier lifecycle.Classifier
	clock      clock.Clock
	interval   time.Duration
	metrics    *metrics.Metrics
	log        *slog.Logger

	mu    sync.Mutex
	wg    sync.WaitGroup
	loops sync.WaitGroup
}

// NewSweeper создаёт Sweeper. cache, publisher и m могут быть nil.
func NewSweeper(repo Repository, cache Invalidator, publisher Publisher, classifier lifecycle.Classifier,
	clk clock.Clock, interval time.Duration, m *metrics.Metrics, log *slog.Logger,
) *Sweeper {
	return &Sweeper{
		repo:       repo,
		cache:      cache,
		publisher:  publisher,
		classifier: classifier,
		clock:      clk,
		interval:   interval,
		metrics:    m,
		log:        log,
	}
}

// Sweep выполняет один проход на дату now. Ошибка отдельного сервиса
// записывается в отчёт и не прерывает проход. Ошибка возвращается, только
// если не удалось получить список сервисов или другой проход ещё идёт.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (models.SweepReport, error) {
	const op = "scheduler.Sweep"
	log := s.log.With(slog.String("op", op))

	if !s.mu.TryLock() {
		return models.SweepReport{}, fmt.Errorf("%s: %w", op, ErrSweepInProgress)
	}
	defer s.mu.Unlock()

	today := calendar.Date(now.UTC())
	report := models.SweepReport{Date: today, Entries: []models.SweepEntry{}}

	autoRenew := true
	services, err := s.repo.ListServices(ctx, models.ServiceFilter{
		AutoRenew:         &autoRenew,
		ExpiresOnOrBefore: &today,
	})
	if err != nil {
		return report, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.SweepStarted()

	for _, svc := range services {
		if !svc.AutoRenew || svc.ExpirationDate.After(today) {
			continue
		}

		entry := s.renew(ctx, log, svc, today)
		report.Entries = append(report.Entries, entry)
		switch entry.Outcome {
		case models.SweepUpdated:
			report.Updated++
		case models.SweepSkipped:
			report.Skipped++
		}
		s.metrics.SweepService(string(entry.Outcome))
	}

	log.Info("sweep finished",
		sl.Date("date", today),
		slog.Int("updated", report.Updated),
		slog.Int("skipped", report.Skipped),
	)
	return report, nil
}

// renew продлевает один сервис единственной записью в хранилище.
func (s *Sweeper) renew(ctx context.Context, log *slog.Logger, svc *models.Service, today time.Time) models.SweepEntry {
	entry := models.SweepEntry{
		ServiceID:          svc.ID,
		Name:               svc.Name,
		PreviousExpiration: svc.ExpirationDate,
	}
	skip := func(err error) models.SweepEntry {
		log.Warn("service skipped", slog.Int("id", svc.ID), sl.Err(err))
		entry.Outcome = models.SweepSkipped
		entry.Error = err.Error()
		return entry
	}

	next, err := lifecycle.NextExpirationAnchored(svc.ExpirationDate, svc.AnchorDay, svc.Frequency, today)
	if err != nil {
		return skip(err)
	}
	status := s.classifier.Classify(next, today)

	if _, err := s.repo.UpdateService(ctx, svc.ID, models.ServiceUpdate{
		ExpirationDate:     &next,
		Status:             &status,
		LastPayment:        &today,
		ExpectedExpiration: &svc.ExpirationDate,
	}); err != nil {
		return skip(err)
	}

	entry.Outcome = models.SweepUpdated
	entry.NextExpiration = &next
	entry.Status = status

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, cache.ServiceKey(svc.ID)); err != nil {
			log.Warn("failed to remove from cache", slog.Int("id", svc.ID), sl.Err(err))
		}
	}
	if s.publisher != nil {
		event := models.RenewalEvent{
			ServiceID:      svc.ID,
			UserUID:        svc.UserUID,
			Name:           svc.Name,
			ExpirationDate: next,
			Status:         status,
			LastPayment:    today,
			Automatic:      true,
		}
		if err := s.publisher.Publish(ctx, rabbitmq.RoutingKeyRenewed, event); err != nil {
			log.Error("failed to publish renewal event", slog.Int("id", svc.ID), sl.Err(err))
		}
	}
	return entry
}

// Run запускает проход сразу и затем через каждый interval, пока ctx не отменён.
// Run возвращается сразу после отмены, не дожидаясь текущего прохода: он
// продолжается до конца, дождаться его можно через Wait.
func (s *Sweeper) Run(ctx context.Context) {
	const op = "scheduler.Run"
	log := s.log.With(slog.String("op", op))
	log.Info("auto-renewal sweeper started", slog.Duration("interval", s.interval))

	for {
		if ctx.Err() != nil {
			log.Info("auto-renewal sweeper stopped")
			return
		}
		s.trigger(ctx, log)

		select {
		case <-ctx.Done():
			log.Info("auto-renewal sweeper stopped")
			return
		case <-s.clock.After(s.interval):
		}
	}
}

func (s *Sweeper) trigger(ctx context.Context, log *slog.Logger) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		_, err := s.Sweep(context.WithoutCancel(ctx), s.clock.Now())
		switch {
		case errors.Is(err, ErrSweepInProgress):
			log.Info("previous sweep still running, tick skipped")
		case err != nil:
			log.Error("sweep failed", sl.Err(err))
		}
	}()
}

// Start запускает Run в отдельной горутине. Цикл регистрируется до возврата
// из Start, поэтому Wait, вызванный после Start, дождётся и выхода из цикла,
// и прохода, запущенного им последним.
func (s *Sweeper) Start(ctx context.Context) {
	s.loops.Add(1)
	go func() {
		defer s.loops.Done()
		s.Run(ctx)
	}()
}

// Wait ждёт выхода из циклов, запущенных через Start, и завершения
// начатых ими проходов, либо отмены ctx.
func (s *Sweeper) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		// Все wg.Add выполняются внутри цикла, поэтому wg.Wait только после его выхода.
		s.loops.Wait()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
