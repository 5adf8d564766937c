// Package lifecycle содержит чистые функции жизненного цикла сервиса:
// классификацию статуса по дате окончания и расчёт следующей даты окончания
// при продлении. Функции не имеют побочных эффектов и не перехватывают ошибки.
package lifecycle

import (
	"time"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/calendar"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// DefaultExpiringThreshold — количество дней до окончания, начиная с которого
// сервис считается истекающим.
const DefaultExpiringThreshold = 30

// Classifier вычисляет статус сервиса с единым порогом для всего процесса.
type Classifier struct {
	thresholdDays int
}

// NewClassifier создаёт классификатор. Неположительный порог заменяется
// значением DefaultExpiringThreshold.
func NewClassifier(thresholdDays int) Classifier {
	if thresholdDays <= 0 {
		thresholdDays = DefaultExpiringThreshold
	}
	return Classifier{thresholdDays: thresholdDays}
}

// ThresholdDays возвращает порог в днях.
func (c Classifier) ThresholdDays() int {
	if c.thresholdDays <= 0 {
		return DefaultExpiringThreshold
	}
	return c.thresholdDays
}

// Classify возвращает статус для даты окончания относительно referenceDate:
// expired, если дата уже прошла; expiring, если осталось не больше порога дней;
// active в остальных случаях.
func (c Classifier) Classify(expirationDate, referenceDate time.Time) models.Status {
	diffDays := calendar.DaysBetween(referenceDate, expirationDate)
	switch {
	case diffDays < 0:
		return models.StatusExpired
	case diffDays <= c.ThresholdDays():
		return models.StatusExpiring
	default:
		return models.StatusActive
	}
}

// Classify классифицирует дату с порогом по умолчанию.
func Classify(expirationDate, referenceDate time.Time) models.Status {
	return NewClassifier(DefaultExpiringThreshold).Classify(expirationDate, referenceDate)
}
