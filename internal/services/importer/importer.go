// Package importer реализует пакетный импорт сервисов из CSV с разделителем ";"
// и обратный экспорт. Каждая строка данных проверяется независимо: ошибка
// в одной строке записывается в журнал и не останавливает импорт остальных.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/calendar"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/lifecycle"
	"github.com/magabrotheeeer/subscription-tracker/internal/metrics"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// Delimiter разделяет поля в строке CSV.
const Delimiter = ";"

// Columns — логические поля файла в порядке колонок.
var Columns = []string{
	"name",
	"description",
	"expirationDate",
	"registeredDate",
	"serviceType",
	"providerName",
	"amountPaid",
	"frequency",
	"paidVia",
	"currency",
}

var (
	// ErrStructural — файл не имеет структуры, пригодной для импорта.
	// Такая ошибка останавливает весь импорт.
	ErrStructural = errors.New("malformed import structure")
	// ErrInsufficientContent — в файле нет заголовка и хотя бы одной строки данных.
	ErrInsufficientContent = fmt.Errorf("%w: insufficient content", ErrStructural)
	// ErrInvalidHeader — в заголовке нет одного из обязательных полей.
	ErrInvalidHeader = fmt.Errorf("%w: invalid header", ErrStructural)
)

// Creator создаёт сервис пользователя.
type Creator interface {
	Create(ctx context.Context, userUID string, in models.ServiceCreate) (*models.Service, error)
}

// ErrorStore сохраняет записи журнала ошибок импорта.
type ErrorStore interface {
	CreateImportError(ctx context.Context, e models.ImportError) error
}

// Importer разбирает CSV и создаёт сервисы построчно.
type Importer struct {
	creator Creator
	errs    ErrorStore
	clock   clock.Clock
	metrics *metrics.Metrics
	log     *slog.Logger
}

// New создаёт Importer. m может быть nil.
func New(creator Creator, errs ErrorStore, clk clock.Clock, m *metrics.Metrics, log *slog.Logger) *Importer {
	return &Importer{
		creator: creator,
		errs:    errs,
		clock:   clk,
		metrics: m,
		log:     log,
	}
}

// ImportBatch импортирует CSV-текст от имени пользователя.
//
// Структурная ошибка (мало строк, неверный заголовок) записывается одной
// записью журнала и возвращается как ошибка, обёртывающая ErrStructural.
// Ошибки отдельных строк не возвращаются: они попадают в журнал и в result.Errors.
func (im *Importer) ImportBatch(ctx context.Context, userUID, raw string) (models.ImportResult, error) {
	const op = "importer.ImportBatch"
	log := im.log.With(slog.String("op", op), slog.String("user_uid", userUID))

	var result models.ImportResult

	lines := splitLines(raw)
	if len(lines) < 2 {
		im.reject(ctx, log, &result, userUID, "insufficient content: expected a header and at least one data row", raw)
		return result, fmt.Errorf("%s: %w", op, ErrInsufficientContent)
	}

	header := lines[0]
	if missing := missingColumns(header); len(missing) > 0 {
		msg := "invalid header: missing " + strings.Join(missing, ", ")
		im.reject(ctx, log, &result, userUID, msg, header)
		return result, fmt.Errorf("%s: %w", op, ErrInvalidHeader)
	}

	for _, line := range lines[1:] {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("%s: %w", op, err)
		}

		in, problems := parseRow(line)
		if len(problems) > 0 {
			im.reject(ctx, log, &result, userUID, strings.Join(problems, "; "), line)
			continue
		}

		created, err := im.creator.Create(ctx, userUID, in)
		if err != nil {
			log.Warn("failed to create imported service", sl.Err(err))
			im.reject(ctx, log, &result, userUID, "failed to create service: "+err.Error(), line)
			continue
		}

		result.ImportedCount++
		im.metrics.ImportRow("imported")
		log.Debug("row imported", slog.Int("id", created.ID))
	}

	log.Info("import finished",
		slog.Int("imported", result.ImportedCount),
		slog.Int("errors", result.ErrorCount),
	)
	return result, nil
}

func (im *Importer) reject(ctx context.Context, log *slog.Logger, result *models.ImportResult, userUID, msg, rowData string) {
	e := models.ImportError{
		ID:           uuid.NewString(),
		UserUID:      userUID,
		ErrorMessage: msg,
		RowData:      rowData,
		CreatedAt:    im.clock.Now().UTC(),
	}
	if err := im.errs.CreateImportError(ctx, e); err != nil {
		log.Error("failed to record import error", slog.String("message", msg), sl.Err(err))
	}
	result.ErrorCount++
	result.Errors = append(result.Errors, e)
	im.metrics.ImportRow("rejected")
}

// splitLines делит текст на строки без "\r" и отбрасывает пустые.
func splitLines(raw string) []string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// missingColumns возвращает поля, которые не нашлись ни в одной ячейке заголовка.
// Сравнение регистронезависимое, по вхождению подстроки.
func missingColumns(header string) []string {
	cells := strings.Split(strings.ToLower(header), Delimiter)
	var missing []string
	for _, col := range Columns {
		want := strings.ToLower(col)
		found := false
		for _, cell := range cells {
			if strings.Contains(cell, want) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, col)
		}
	}
	return missing
}

// parseRow переводит строку в ServiceCreate и возвращает все нарушенные правила.
func parseRow(line string) (models.ServiceCreate, []string) {
	fields := strings.Split(line, Delimiter)
	if len(fields) < len(Columns) {
		return models.ServiceCreate{}, []string{
			fmt.Sprintf("insufficient columns: expected %d, got %d", len(Columns), len(fields)),
		}
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	in := models.ServiceCreate{
		Name:        fields[0],
		Description: fields[1],
		Type:        fields[4],
		Provider:    fields[5],
		Frequency:   models.Frequency(strings.ToLower(fields[7])),
		PaidVia:     fields[8],
		Currency:    fields[9],
	}

	var problems []string
	if in.Name == "" {
		problems = append(problems, "name is required")
	}
	if _, err := lifecycle.ParseFrequency(string(in.Frequency)); err != nil {
		problems = append(problems, err.Error())
	}
	if in.Currency == "" {
		problems = append(problems, "currency is required")
	}

	var err error
	if in.ExpirationDate, err = parseDate(fields[2]); err != nil {
		problems = append(problems, "expiration date: "+err.Error())
	}
	if in.RegisterDate, err = parseDate(fields[3]); err != nil {
		problems = append(problems, "registered date: "+err.Error())
	}

	if amount := fields[6]; amount != "" {
		d, err := decimal.NewFromString(amount)
		switch {
		case err != nil:
			problems = append(problems, fmt.Sprintf("invalid amount %q", amount))
		case d.IsNegative():
			problems = append(problems, fmt.Sprintf("amount must be non-negative, got %s", amount))
		default:
			in.Amount = d
		}
	}

	return in, problems
}

// parseDate принимает DD/MM/YYYY. Строка другого вида проверяется как ISO-дата.
func parseDate(s string) (time.Time, error) {
	return calendar.ParseISO(calendar.FromDMY(s))
}

// Export записывает сервисы в формате импорта: заголовок и строки с ";",
// даты в ISO YYYY-MM-DD.
func Export(services []*models.Service) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(Columns, Delimiter))
	sb.WriteByte('\n')
	for _, svc := range services {
		row := []string{
			svc.Name,
			svc.Description,
			calendar.FormatISO(svc.ExpirationDate),
			calendar.FormatISO(svc.RegisterDate),
			svc.Type,
			svc.Provider,
			svc.Amount.String(),
			string(svc.Frequency),
			svc.PaidVia,
			svc.Currency,
		}
		for i := range row {
			row[i] = cleanField(row[i])
		}
		sb.WriteString(strings.Join(row, Delimiter))
		sb.WriteByte('\n')
	}
	return sb.String()
}

var fieldReplacer = strings.NewReplacer(Delimiter, ",", "\r", " ", "\n", " ")

func cleanField(s string) string {
	return fieldReplacer.Replace(s)
}
