package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/calendar"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// ErrInvalidFrequency возвращается для периода оплаты, для которого продление не определено.
var ErrInvalidFrequency = errors.New("invalid frequency")

// ParseFrequency приводит строку к Frequency и проверяет, что продление для неё определено.
func ParseFrequency(s string) (models.Frequency, error) {
	f := models.Frequency(s)
	if _, _, ok := period(f); !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
	}
	return f, nil
}

// NextExpiration возвращает первую дату после referenceDate, получаемую
// из currentExpiration прибавлением целого числа периодов (k >= 1).
// День месяца исходной даты сохраняется с усечением до последнего дня месяца.
//
// Вызывать для ещё не истёкшего сервиса не предполагается: в этом случае
// возвращается дата через один период.
func NextExpiration(currentExpiration time.Time, frequency models.Frequency, referenceDate time.Time) (time.Time, error) {
	return NextExpirationAnchored(currentExpiration, 0, frequency, referenceDate)
}

// NextExpirationAnchored работает как NextExpiration, но для месячных периодов
// ставит день anchorDay (с усечением), а не день currentExpiration. Так цикл,
// привязанный к 31-му числу, после 29 февраля возвращается к 31 марта.
// anchorDay <= 0 означает день currentExpiration.
func NextExpirationAnchored(currentExpiration time.Time, anchorDay int, frequency models.Frequency, referenceDate time.Time) (time.Time, error) {
	days, months, ok := period(frequency)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidFrequency, frequency)
	}

	current := calendar.Date(currentExpiration)
	reference := calendar.Date(referenceDate)

	advance := func(k int) time.Time {
		if days > 0 {
			return current.AddDate(0, 0, days*k)
		}
		return calendar.AddMonths(current, months*k, anchorDay)
	}

	// Оценка k снизу: все меньшие k дают дату не позже reference.
	k := 1
	if days > 0 {
		if elapsed := calendar.DaysBetween(current, reference); elapsed > 0 {
			k = elapsed/days + 1
		}
	} else if elapsed := calendar.MonthsBetween(current, reference); elapsed > months {
		k = elapsed / months
	}

	next := advance(k)
	for !next.After(reference) {
		k++
		next = advance(k)
	}
	return next, nil
}

// period возвращает длину периода в днях или в месяцах.
func period(f models.Frequency) (days, months int, ok bool) {
	switch f {
	case models.FrequencyDaily:
		return 1, 0, true
	case models.FrequencyWeekly:
		return 7, 0, true
	case models.FrequencyMonthly:
		return 0, 1, true
	case models.FrequencyQuarterly:
		return 0, 3, true
	case models.FrequencyYearly:
		return 0, 12, true
	default:
		return 0, 0, false
	}
}
