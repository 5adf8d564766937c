package models

import "time"

// ImportError — одна отклонённая строка CSV-импорта.
// RowData хранит исходный текст строки без изменений.
type ImportError struct {
	ID           string    `json:"id"`
	UserUID      string    `json:"-"`
	ErrorMessage string    `json:"error_message"`
	RowData      string    `json:"row_data"`
	CreatedAt    time.Time `json:"created_at"`
}

// ImportResult — итог импорта пакета строк.
type ImportResult struct {
	ImportedCount int           `json:"imported_count"`
	ErrorCount    int           `json:"error_count"`
	Errors        []ImportError `json:"errors,omitempty"`
}
