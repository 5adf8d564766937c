package importer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/calendar"
	"github.com/magabrotheeeer/subscription-tracker/internal/metrics"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

const header = "name;description;expirationDate;registeredDate;serviceType;providerName;amountPaid;frequency;paidVia;currency"

type CreatorMock struct{ mock.Mock }

func (m *CreatorMock) Create(ctx context.Context, userUID string, in models.ServiceCreate) (*models.Service, error) {
	args := m.Called(ctx, userUID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Service), args.Error(1)
}

// memoryErrors собирает записи журнала в памяти.
type memoryErrors struct {
	items []models.ImportError
	err   error
}

func (m *memoryErrors) CreateImportError(_ context.Context, e models.ImportError) error {
	if m.err != nil {
		return m.err
	}
	m.items = append(m.items, e)
	return nil
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newImporter(creator Creator, errs ErrorStore) *Importer {
	clk := testclock.NewClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	return New(creator, errs, clk, nil, newNoopLogger())
}

func TestImportBatch_RowIsolation(t *testing.T) {
	row1 := "Netflix;family;31/01/2024;01/01/2023;streaming;Netflix Inc;15.49;Monthly;card;USD"
	row2 := "Spotify;music;01/02/2024;01/01/2023;streaming;Spotify AB;9.99;monthly"
	row3 := "Gym;fitness;31/13/2024;01/01/2023;sport;FitCo;30;monthly;cash;EUR"
	raw := strings.Join([]string{header, row1, row2, row3}, "\n") + "\n"

	creator := new(CreatorMock)
	creator.On("Create", mock.Anything, "user-1", mock.MatchedBy(func(in models.ServiceCreate) bool {
		return in.Name == "Netflix" &&
			in.ExpirationDate.Equal(date(2024, 1, 31)) &&
			in.RegisterDate.Equal(date(2023, 1, 1)) &&
			in.Amount.Equal(decimal.RequireFromString("15.49")) &&
			in.Frequency == models.FrequencyMonthly &&
			in.Currency == "USD" &&
			in.Provider == "Netflix Inc"
	})).Return(&models.Service{ID: 1}, nil).Once()
	errs := &memoryErrors{}

	res, err := newImporter(creator, errs).ImportBatch(context.Background(), "user-1", raw)
	require.NoError(t, err)

	assert.Equal(t, 1, res.ImportedCount)
	assert.Equal(t, 2, res.ErrorCount)
	require.Len(t, errs.items, 2)
	assert.Equal(t, row2, errs.items[0].RowData)
	assert.Contains(t, errs.items[0].ErrorMessage, "insufficient columns")
	assert.Equal(t, row3, errs.items[1].RowData)
	assert.Contains(t, errs.items[1].ErrorMessage, "expiration date")
	assert.Equal(t, "user-1", errs.items[1].UserUID)
	assert.NotEmpty(t, errs.items[1].ID)
	assert.Equal(t, errs.items, res.Errors)
	creator.AssertExpectations(t)
}

func TestImportBatch_Structural(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
		wantRow string
	}{
		{
			name:    "empty input",
			raw:     "",
			wantErr: ErrInsufficientContent,
		},
		{
			name:    "header only with trailing blank lines",
			raw:     header + "\n\n\r\n",
			wantErr: ErrInsufficientContent,
			wantRow: header + "\n\n\r\n",
		},
		{
			name:    "header misses columns",
			raw:     "name;description;expirationDate\nNetflix;x;01/01/2024",
			wantErr: ErrInvalidHeader,
			wantRow: "name;description;expirationDate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creator := new(CreatorMock)
			errs := &memoryErrors{}

			res, err := newImporter(creator, errs).ImportBatch(context.Background(), "user-1", tt.raw)
			require.ErrorIs(t, err, tt.wantErr)
			require.ErrorIs(t, err, ErrStructural)
			assert.Equal(t, 0, res.ImportedCount)
			assert.Equal(t, 1, res.ErrorCount)
			require.Len(t, errs.items, 1)
			assert.Equal(t, tt.wantRow, errs.items[0].RowData)
			creator.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestImportBatch_HeaderAnyOrderAndCase(t *testing.T) {
	hdr := "Currency;PAID_VIA_paidVia;Frequency;amountPaid (USD);providerName;serviceType;registeredDate;expirationDate;Description;Name"
	row := "Netflix;d;2024-05-01;2024-01-01;t;p;10;weekly;card;USD"

	creator := new(CreatorMock)
	creator.On("Create", mock.Anything, "u", mock.Anything).Return(&models.Service{ID: 3}, nil).Once()

	res, err := newImporter(creator, &memoryErrors{}).ImportBatch(context.Background(), "u", hdr+"\r\n"+row+"\r\n")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ImportedCount)
	creator.AssertExpectations(t)
}

func TestImportBatch_ValidationCollectsAllRules(t *testing.T) {
	row := ";desc;notadate;32/01/2024;t;p;abc;monthly;card;USD"
	errs := &memoryErrors{}

	res, err := newImporter(new(CreatorMock), errs).ImportBatch(context.Background(), "u", header+"\n"+row)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ImportedCount)
	require.Len(t, errs.items, 1)

	msg := errs.items[0].ErrorMessage
	assert.Contains(t, msg, "name is required")
	assert.Contains(t, msg, "expiration date")
	assert.Contains(t, msg, "registered date")
	assert.Contains(t, msg, `invalid amount "abc"`)
	assert.Equal(t, 3, strings.Count(msg, "; "))
}

func TestImportBatch_FrequencyAndCurrencyRequired(t *testing.T) {
	biweekly := "C;;01/02/2024;01/01/2024;;;5;biweekly;card;USD"
	blank := "D;;01/02/2024;01/01/2024;;;5;;card;"

	creator := new(CreatorMock)
	errs := &memoryErrors{}

	res, err := newImporter(creator, errs).ImportBatch(context.Background(), "u", header+"\n"+biweekly+"\n"+blank)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ImportedCount)
	assert.Equal(t, 2, res.ErrorCount)
	require.Len(t, errs.items, 2)

	assert.Equal(t, biweekly, errs.items[0].RowData)
	assert.Contains(t, errs.items[0].ErrorMessage, `invalid frequency: "biweekly"`)
	assert.NotContains(t, errs.items[0].ErrorMessage, "currency")

	assert.Equal(t, blank, errs.items[1].RowData)
	assert.Contains(t, errs.items[1].ErrorMessage, "invalid frequency")
	assert.Contains(t, errs.items[1].ErrorMessage, "currency is required")
	assert.Equal(t, 1, strings.Count(errs.items[1].ErrorMessage, "; "))

	creator.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestImportBatch_NegativeAmountAndEmptyAmount(t *testing.T) {
	negative := "A;;01/02/2024;01/01/2024;;;-5;monthly;;USD"
	empty := "B;;1/2/2024;1/1/2024;;;;monthly;;USD"

	creator := new(CreatorMock)
	creator.On("Create", mock.Anything, "u", mock.MatchedBy(func(in models.ServiceCreate) bool {
		return in.Name == "B" && in.Amount.IsZero() && in.ExpirationDate.Equal(date(2024, 2, 1))
	})).Return(&models.Service{ID: 9}, nil).Once()
	errs := &memoryErrors{}

	res, err := newImporter(creator, errs).ImportBatch(context.Background(), "u", header+"\n"+negative+"\n"+empty)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ImportedCount)
	require.Len(t, errs.items, 1)
	assert.Contains(t, errs.items[0].ErrorMessage, "non-negative")
	creator.AssertExpectations(t)
}

func TestImportBatch_CreateFailureIsRecorded(t *testing.T) {
	ok := "A;;01/02/2024;01/01/2024;;;1;monthly;;USD"
	bad := "B;;01/02/2024;01/01/2024;;;1;monthly;;USD"

	creator := new(CreatorMock)
	creator.On("Create", mock.Anything, "u", mock.MatchedBy(func(in models.ServiceCreate) bool {
		return in.Name == "A"
	})).Return(&models.Service{ID: 1}, nil).Once()
	creator.On("Create", mock.Anything, "u", mock.MatchedBy(func(in models.ServiceCreate) bool {
		return in.Name == "B"
	})).Return(nil, errors.New("db down")).Once()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	errs := &memoryErrors{}
	im := New(creator, errs, testclock.NewClock(date(2024, 3, 1)), m, newNoopLogger())

	res, err := im.ImportBatch(context.Background(), "u", header+"\n"+bad+"\n"+ok)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ImportedCount)
	assert.Equal(t, 1, res.ErrorCount)
	require.Len(t, errs.items, 1)
	assert.Equal(t, bad, errs.items[0].RowData)
	assert.Contains(t, errs.items[0].ErrorMessage, "db down")
	assert.Equal(t, date(2024, 3, 1), errs.items[0].CreatedAt)
	creator.AssertExpectations(t)
}

func TestImportBatch_ErrorStoreFailureDoesNotStopBatch(t *testing.T) {
	row := ";;01/02/2024;01/01/2024;;;1;monthly;;USD"
	ok := "A;;01/02/2024;01/01/2024;;;1;monthly;;USD"

	creator := new(CreatorMock)
	creator.On("Create", mock.Anything, "u", mock.Anything).Return(&models.Service{ID: 1}, nil).Once()
	errs := &memoryErrors{err: errors.New("store down")}

	res, err := newImporter(creator, errs).ImportBatch(context.Background(), "u", header+"\n"+row+"\n"+ok)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ImportedCount)
	assert.Equal(t, 1, res.ErrorCount)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, row, res.Errors[0].RowData)
}

func TestImportBatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newImporter(new(CreatorMock), &memoryErrors{}).
		ImportBatch(ctx, "u", header+"\nA;;01/02/2024;01/01/2024;;;1;monthly;;USD")
	require.ErrorIs(t, err, context.Canceled)
}

func TestExport(t *testing.T) {
	paid := date(2024, 1, 1)
	out := Export([]*models.Service{
		{
			ID:             1,
			Name:           "Netflix",
			Description:    "a;b\nc",
			Type:           "streaming",
			Provider:       "Netflix Inc",
			PaidVia:        "card",
			Amount:         decimal.RequireFromString("15.49"),
			Currency:       "USD",
			Frequency:      models.FrequencyMonthly,
			ExpirationDate: date(2024, 2, 29),
			RegisterDate:   date(2023, 1, 5),
			LastPayment:    &paid,
		},
	})

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, header, lines[0])
	assert.Equal(t, "Netflix;a,b c;2024-02-29;2023-01-05;streaming;Netflix Inc;15.49;monthly;card;USD", lines[1])
}

// toImportFormat переводит ISO-даты экспорта в DD/MM/YYYY.
func toImportFormat(t *testing.T, csv string) string {
	t.Helper()
	lines := strings.Split(strings.TrimSuffix(csv, "\n"), "\n")
	for i := 1; i < len(lines); i++ {
		fields := strings.Split(lines[i], Delimiter)
		for _, idx := range []int{2, 3} {
			d, err := calendar.ParseISO(fields[idx])
			require.NoError(t, err)
			fields[idx] = calendar.ToDMY(d)
		}
		lines[i] = strings.Join(fields, Delimiter)
	}
	return strings.Join(lines, "\n")
}

func TestExportImportRoundTrip(t *testing.T) {
	original := []*models.Service{
		{
			ID: 10, Name: "Netflix", Description: "family", Type: "streaming", Provider: "Netflix Inc",
			PaidVia: "card", Amount: decimal.RequireFromString("15.49"), Currency: "USD",
			Frequency: models.FrequencyMonthly, ExpirationDate: date(2024, 1, 31),
			RegisterDate: date(2023, 1, 31), Status: models.StatusExpired,
		},
		{
			ID: 11, Name: "Domain", Type: "infra", Provider: "Registrar",
			PaidVia: "paypal", Amount: decimal.Zero, Currency: "EUR",
			Frequency: models.FrequencyYearly, ExpirationDate: date(2028, 2, 29),
			RegisterDate: date(2020, 2, 29), Status: models.StatusActive,
		},
	}

	for _, tc := range []struct {
		name    string
		convert bool
	}{
		{name: "dd/mm/yyyy dates", convert: true},
		{name: "iso dates", convert: false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var got []models.ServiceCreate
			creator := new(CreatorMock)
			creator.On("Create", mock.Anything, "u", mock.Anything).
				Run(func(args mock.Arguments) {
					got = append(got, args.Get(2).(models.ServiceCreate))
				}).
				Return(&models.Service{}, nil)

			csv := Export(original)
			if tc.convert {
				csv = toImportFormat(t, csv)
			}
			res, err := newImporter(creator, &memoryErrors{}).ImportBatch(context.Background(), "u", csv)
			require.NoError(t, err)
			require.Equal(t, len(original), res.ImportedCount)
			require.Len(t, got, len(original))

			for i, want := range original {
				assert.Equal(t, want.Name, got[i].Name)
				assert.Equal(t, want.Description, got[i].Description)
				assert.Equal(t, want.Type, got[i].Type)
				assert.Equal(t, want.Provider, got[i].Provider)
				assert.Equal(t, want.PaidVia, got[i].PaidVia)
				assert.True(t, want.Amount.Equal(got[i].Amount))
				assert.Equal(t, want.Currency, got[i].Currency)
				assert.Equal(t, want.Frequency, got[i].Frequency)
				assert.Equal(t, want.ExpirationDate, got[i].ExpirationDate)
				assert.Equal(t, want.RegisterDate, got[i].RegisterDate)
			}
		})
	}
}

func TestImportBatch_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	creator := new(CreatorMock)
	creator.On("Create", mock.Anything, "u", mock.Anything).Return(&models.Service{ID: 1}, nil)
	im := New(creator, &memoryErrors{}, testclock.NewClock(date(2024, 3, 1)), m, newNoopLogger())

	raw := header + "\nA;;01/02/2024;01/01/2024;;;1;monthly;;USD\nbad row"
	_, err := im.ImportBatch(context.Background(), "u", raw)
	require.NoError(t, err)

	expected := `
# HELP tracker_import_rows_total CSV import rows, by result.
# TYPE tracker_import_rows_total counter
tracker_import_rows_total{result="imported"} 1
tracker_import_rows_total{result="rejected"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "tracker_import_rows_total"))
}
