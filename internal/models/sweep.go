package models

import "time"

// SweepOutcome — результат обработки одного сервиса при автопродлении.
type SweepOutcome string

const (
	SweepUpdated SweepOutcome = "updated"
	SweepSkipped SweepOutcome = "skipped"
)

// SweepEntry описывает обработку одного сервиса.
type SweepEntry struct {
	ServiceID          int          `json:"service_id"`
	Name               string       `json:"name"`
	Outcome            SweepOutcome `json:"outcome"`
	PreviousExpiration time.Time    `json:"previous_expiration"`
	NextExpiration     *time.Time   `json:"next_expiration,omitempty"`
	Status             Status       `json:"status,omitempty"`
	Error              string       `json:"error,omitempty"`
}

// SweepReport — отчёт одного прохода автопродления.
type SweepReport struct {
	Date    time.Time    `json:"date"`
	Entries []SweepEntry `json:"entries"`
	Updated int          `json:"updated"`
	Skipped int          `json:"skipped"`
}

// RenewalEvent публикуется в брокер после успешного продления сервиса.
type RenewalEvent struct {
	ServiceID      int       `json:"service_id"`
	UserUID        string    `json:"user_uid"`
	Name           string    `json:"name"`
	ExpirationDate time.Time `json:"expiration_date"`
	Status         Status    `json:"status"`
	LastPayment    time.Time `json:"last_payment"`
	Automatic      bool      `json:"automatic"`
}
