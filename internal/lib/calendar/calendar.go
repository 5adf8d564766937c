// Package calendar содержит арифметику календарных дат без времени суток.
//
// Все даты нормализуются к полуночи UTC, поэтому разница между двумя датами
// всегда кратна суткам и не зависит от переходов на летнее время.
package calendar

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ISOLayout — формат даты, в котором даты хранятся и экспортируются.
const ISOLayout = time.DateOnly

// Date возвращает календарную дату t (в её собственной локации) как полночь UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween возвращает ceil((to - from) / 1 день) для календарных дат.
func DaysBetween(from, to time.Time) int {
	diff := Date(to).Sub(Date(from))
	return int(math.Ceil(diff.Hours() / 24))
}

// DaysIn возвращает количество дней в месяце.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonths сдвигает дату на n месяцев и ставит день anchorDay.
// Если такого дня в целевом месяце нет, берётся последний день месяца.
// anchorDay <= 0 означает день исходной даты.
func AddMonths(t time.Time, n, anchorDay int) time.Time {
	y, m, d := Date(t).Date()
	if anchorDay <= 0 {
		anchorDay = d
	}

	total := int(m) - 1 + n
	year := y + floorDiv(total, 12)
	month := time.Month(total - floorDiv(total, 12)*12 + 1)

	day := anchorDay
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// MonthsBetween возвращает число границ месяцев между from и to
// без учёта дня: (2024-01-31, 2024-02-01) -> 1.
func MonthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

// ParseISO разбирает дату в формате YYYY-MM-DD.
func ParseISO(s string) (time.Time, error) {
	t, err := time.Parse(ISOLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatISO форматирует дату как YYYY-MM-DD.
func FormatISO(t time.Time) string {
	return t.Format(ISOLayout)
}

// FromDMY переводит DD/MM/YYYY в YYYY-MM-DD.
// Строка, которая не состоит ровно из трёх частей через "/", возвращается как есть.
func FromDMY(s string) string {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return s
	}
	return fmt.Sprintf("%s-%s-%s", parts[2], pad2(parts[1]), pad2(parts[0]))
}

// ToDMY переводит дату в формат DD/MM/YYYY.
func ToDMY(t time.Time) string {
	return t.Format("02/01/2006")
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
