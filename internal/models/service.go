// Package models содержит доменные структуры трекера подписок: сервис (подписку),
// его создание и частичное обновление, фильтр выборки, а также DTO для JSON-запросов.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Frequency — период оплаты сервиса.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// Status — производный статус сервиса относительно даты окончания.
type Status string

const (
	StatusActive   Status = "active"
	StatusExpiring Status = "expiring"
	StatusExpired  Status = "expired"
)

const (
	// RoleAdmin — роль, которой доступны сервисы всех пользователей.
	RoleAdmin = "admin"
	// RoleUser — обычный пользователь.
	RoleUser = "user"
)

// Service представляет одну регулярную платную подписку пользователя.
//
// Status никогда не является источником истины: он пересчитывается
// из ExpirationDate при каждом изменении даты и при каждом чтении.
type Service struct {
	ID             int             `json:"id"`
	UserUID        string          `json:"user_uid"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Type           string          `json:"type"`
	Provider       string          `json:"provider"`
	PaidVia        string          `json:"paid_via"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Frequency      Frequency       `json:"frequency"`
	ExpirationDate time.Time       `json:"expiration_date"`
	RegisterDate   time.Time       `json:"register_date"`
	AnchorDay      int             `json:"anchor_day"` // День месяца, к которому привязан цикл оплаты
	AutoRenew      bool            `json:"auto_renew"`
	Status         Status          `json:"status"`
	LastPayment    *time.Time      `json:"last_payment,omitempty"`
}

// ServiceCreate — данные для создания сервиса. Статус и якорный день
// вычисляются при создании.
type ServiceCreate struct {
	Name           string
	Description    string
	Type           string
	Provider       string
	PaidVia        string
	Amount         decimal.Decimal
	Currency       string
	Frequency      Frequency
	ExpirationDate time.Time
	RegisterDate   time.Time
	AutoRenew      bool
}

// ServiceUpdate — явный набор изменяемых полей. nil означает "не менять",
// указатель на нулевое значение (0, "") означает "записать нулевое значение".
type ServiceUpdate struct {
	Name           *string
	Description    *string
	Type           *string
	Provider       *string
	PaidVia        *string
	Amount         *decimal.Decimal
	Currency       *string
	Frequency      *Frequency
	ExpirationDate *time.Time
	RegisterDate   *time.Time
	AnchorDay      *int
	AutoRenew      *bool
	Status         *Status
	LastPayment    *time.Time

	// ExpectedExpiration не изменяет поле, а задаёт условие: запись обновляется,
	// только если её дата окончания всё ещё равна этой дате.
	ExpectedExpiration *time.Time
}

// IsEmpty сообщает, что обновление не меняет ни одного поля.
func (u ServiceUpdate) IsEmpty() bool {
	return u.Name == nil && u.Description == nil && u.Type == nil && u.Provider == nil &&
		u.PaidVia == nil && u.Amount == nil && u.Currency == nil && u.Frequency == nil &&
		u.ExpirationDate == nil && u.RegisterDate == nil && u.AnchorDay == nil &&
		u.AutoRenew == nil && u.Status == nil && u.LastPayment == nil
}

// ServiceFilter задаёт условия выборки сервисов из хранилища.
// Незаданные (nil / нулевые) поля не ограничивают выборку.
type ServiceFilter struct {
	UserUID           *string
	AutoRenew         *bool
	ExpiresOnOrBefore *time.Time
	Limit             int
	Offset            int
}

// DummyService используется для приёма данных из JSON-запроса на создание сервиса.
// Даты приходят строками в формате YYYY-MM-DD.
type DummyService struct {
	Name           string `json:"name" validate:"required"`
	Description    string `json:"description"`
	Type           string `json:"type"`
	Provider       string `json:"provider"`
	PaidVia        string `json:"paid_via"`
	Amount         string `json:"amount" validate:"omitempty,numeric"`
	Currency       string `json:"currency" validate:"required"`
	Frequency      string `json:"frequency" validate:"required,oneof=daily weekly monthly quarterly yearly"`
	ExpirationDate string `json:"expiration_date" validate:"required"`
	RegisterDate   string `json:"register_date"`
	AutoRenew      bool   `json:"auto_renew"`
}

// DummyServiceUpdate — JSON-запрос на частичное обновление сервиса.
// Отсутствующее в JSON поле остаётся nil и не изменяется.
type DummyServiceUpdate struct {
	Name           *string `json:"name" validate:"omitempty,min=1"`
	Description    *string `json:"description"`
	Type           *string `json:"type"`
	Provider       *string `json:"provider"`
	PaidVia        *string `json:"paid_via"`
	Amount         *string `json:"amount" validate:"omitempty,numeric"`
	Currency       *string `json:"currency" validate:"omitempty,min=1"`
	Frequency      *string `json:"frequency" validate:"omitempty,oneof=daily weekly monthly quarterly yearly"`
	ExpirationDate *string `json:"expiration_date"`
	RegisterDate   *string `json:"register_date"`
	AutoRenew      *bool   `json:"auto_renew"`
}
