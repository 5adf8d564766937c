package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/calendar"
)

// AccessibleBy сообщает, может ли пользователь с ролью role работать с сервисом.
func (s *Service) AccessibleBy(userUID, role string) bool {
	return role == RoleAdmin || s.UserUID == userUID
}

// ToCreate переводит JSON-запрос в ServiceCreate. Даты ожидаются в формате YYYY-MM-DD,
// пустая дата регистрации остаётся нулевой.
func (d DummyService) ToCreate() (ServiceCreate, error) {
	exp, err := calendar.ParseISO(d.ExpirationDate)
	if err != nil {
		return ServiceCreate{}, fmt.Errorf("expiration_date: %w", err)
	}
	var reg time.Time
	if strings.TrimSpace(d.RegisterDate) != "" {
		if reg, err = calendar.ParseISO(d.RegisterDate); err != nil {
			return ServiceCreate{}, fmt.Errorf("register_date: %w", err)
		}
	}
	amount, err := parseAmount(d.Amount)
	if err != nil {
		return ServiceCreate{}, err
	}

	return ServiceCreate{
		Name:           strings.TrimSpace(d.Name),
		Description:    d.Description,
		Type:           d.Type,
		Provider:       d.Provider,
		PaidVia:        d.PaidVia,
		Amount:         amount,
		Currency:       d.Currency,
		Frequency:      Frequency(d.Frequency),
		ExpirationDate: exp,
		RegisterDate:   reg,
		AutoRenew:      d.AutoRenew,
	}, nil
}

// ToUpdate переводит JSON-запрос в ServiceUpdate. Поля, отсутствовавшие в JSON, остаются nil.
func (d DummyServiceUpdate) ToUpdate() (ServiceUpdate, error) {
	upd := ServiceUpdate{
		Name:        d.Name,
		Description: d.Description,
		Type:        d.Type,
		Provider:    d.Provider,
		PaidVia:     d.PaidVia,
		Currency:    d.Currency,
		AutoRenew:   d.AutoRenew,
	}
	if d.Frequency != nil {
		f := Frequency(*d.Frequency)
		upd.Frequency = &f
	}
	if d.Amount != nil {
		amount, err := parseAmount(*d.Amount)
		if err != nil {
			return ServiceUpdate{}, err
		}
		upd.Amount = &amount
	}
	if d.ExpirationDate != nil {
		exp, err := calendar.ParseISO(*d.ExpirationDate)
		if err != nil {
			return ServiceUpdate{}, fmt.Errorf("expiration_date: %w", err)
		}
		upd.ExpirationDate = &exp
	}
	if d.RegisterDate != nil {
		reg, err := calendar.ParseISO(*d.RegisterDate)
		if err != nil {
			return ServiceUpdate{}, fmt.Errorf("register_date: %w", err)
		}
		upd.RegisterDate = &reg
	}
	return upd, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount: invalid number %q", s)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount: must be non-negative, got %s", s)
	}
	return amount, nil
}
