package sweep

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subscription-tracker/internal/models"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/scheduler"
)

type MockSweeper struct {
	mock.Mock
}

func (m *MockSweeper) Sweep(ctx context.Context, now time.Time) (models.SweepReport, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(models.SweepReport), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestSweepHandler(t *testing.T) {
	now := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		report         models.SweepReport
		err            error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "проход выполнен",
			report:         models.SweepReport{Date: now, Updated: 2, Skipped: 1},
			expectedStatus: http.StatusOK,
			expectedBody:   `"updated":2`,
		},
		{
			name:           "проход уже идёт",
			err:            scheduler.ErrSweepInProgress,
			expectedStatus: http.StatusConflict,
			expectedBody:   `"error":"sweep already in progress"`,
		},
		{
			name:           "ошибка чтения кандидатов",
			err:            errors.New("db down"),
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"sweep failed"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sw := new(MockSweeper)
			sw.On("Sweep", mock.Anything, now).Return(tt.report, tt.err).Once()

			rr := httptest.NewRecorder()
			New(newNoopLogger(), sw, testclock.NewClock(now)).
				ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/sweep", nil))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
			sw.AssertExpectations(t)
		})
	}
}

func TestSweepHandler_DetachedFromRequest(t *testing.T) {
	now := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	sw := new(MockSweeper)
	sw.On("Sweep", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil
	}), now).Return(models.SweepReport{}, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/sweep", nil).WithContext(ctx)

	rr := httptest.NewRecorder()
	New(newNoopLogger(), sw, testclock.NewClock(now)).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	sw.AssertExpectations(t)
}
