package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorage_CreateAndReadService(t *testing.T) {
	storage := setupTestDatabase(t)
	ctx := context.Background()
	userUID := newUserUID()
	paid := date(2024, 2, 10)

	created, err := storage.CreateService(ctx, models.Service{
		UserUID:        userUID,
		Name:           "Netflix",
		Description:    "family plan",
		Type:           "streaming",
		Provider:       "Netflix Inc",
		PaidVia:        "card",
		Amount:         decimal.RequireFromString("15.49"),
		Currency:       "USD",
		Frequency:      models.FrequencyMonthly,
		ExpirationDate: date(2024, 3, 10),
		RegisterDate:   date(2024, 1, 10),
		AnchorDay:      10,
		AutoRenew:      true,
		Status:         models.StatusActive,
		LastPayment:    &paid,
	})
	require.NoError(t, err)
	assert.Positive(t, created.ID)

	got, err := storage.ReadService(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Netflix", got.Name)
	assert.Equal(t, userUID, got.UserUID)
	assert.True(t, decimal.RequireFromString("15.49").Equal(got.Amount))
	assert.Equal(t, date(2024, 3, 10), got.ExpirationDate)
	assert.Equal(t, date(2024, 1, 10), got.RegisterDate)
	assert.Equal(t, models.FrequencyMonthly, got.Frequency)
	assert.Equal(t, 10, got.AnchorDay)
	require.NotNil(t, got.LastPayment)
	assert.Equal(t, paid, *got.LastPayment)
}

func TestStorage_ReadService_NotFound(t *testing.T) {
	storage := setupTestDatabase(t)

	_, err := storage.ReadService(context.Background(), 424242)
	require.ErrorIs(t, err, ErrServiceNotFound)
}

func TestStorage_ListServices(t *testing.T) {
	storage := setupTestDatabase(t)
	factory := NewTestDataFactory(storage)
	alice, bob := newUserUID(), newUserUID()

	factory.CreateService(t, alice, "Spotify", date(2024, 1, 5), true)
	factory.CreateService(t, alice, "Dropbox", date(2024, 6, 1), true)
	factory.CreateService(t, alice, "Gym", date(2024, 1, 1), false)
	factory.CreateService(t, bob, "iCloud", date(2023, 12, 31), true)

	autoRenew := true
	cutoff := date(2024, 1, 10)

	tests := []struct {
		name      string
		filter    models.ServiceFilter
		wantNames []string
	}{
		{
			name:      "all services",
			filter:    models.ServiceFilter{},
			wantNames: []string{"Spotify", "Dropbox", "Gym", "iCloud"},
		},
		{
			name:      "by user",
			filter:    models.ServiceFilter{UserUID: &alice},
			wantNames: []string{"Spotify", "Dropbox", "Gym"},
		},
		{
			name:      "due for renewal",
			filter:    models.ServiceFilter{AutoRenew: &autoRenew, ExpiresOnOrBefore: &cutoff},
			wantNames: []string{"Spotify", "iCloud"},
		},
		{
			name:      "pagination",
			filter:    models.ServiceFilter{UserUID: &alice, Limit: 1, Offset: 1},
			wantNames: []string{"Dropbox"},
		},
		{
			name:      "unknown user",
			filter:    models.ServiceFilter{UserUID: func() *string { s := uuid.NewString(); return &s }()},
			wantNames: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := storage.ListServices(context.Background(), tt.filter)
			require.NoError(t, err)

			var names []string
			for _, svc := range got {
				names = append(names, svc.Name)
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestStorage_UpdateService(t *testing.T) {
	storage := setupTestDatabase(t)
	factory := NewTestDataFactory(storage)
	ctx := context.Background()
	svc := factory.CreateService(t, newUserUID(), "Spotify", date(2024, 1, 31), true)

	t.Run("zero values are applied", func(t *testing.T) {
		empty := ""
		zero := decimal.Zero
		got, err := storage.UpdateService(ctx, svc.ID, models.ServiceUpdate{
			Description: &empty,
			Amount:      &zero,
		})
		require.NoError(t, err)
		assert.Equal(t, "", got.Description)
		assert.True(t, got.Amount.IsZero())
		assert.Equal(t, "Spotify", got.Name)
	})

	t.Run("renewal fields in one write", func(t *testing.T) {
		next := date(2024, 2, 29)
		paid := date(2024, 1, 31)
		status := models.StatusExpiring
		got, err := storage.UpdateService(ctx, svc.ID, models.ServiceUpdate{
			ExpirationDate: &next,
			Status:         &status,
			LastPayment:    &paid,
		})
		require.NoError(t, err)
		assert.Equal(t, next, got.ExpirationDate)
		assert.Equal(t, models.StatusExpiring, got.Status)
		require.NotNil(t, got.LastPayment)
		assert.Equal(t, paid, *got.LastPayment)
		assert.Equal(t, 31, got.AnchorDay)
	})

	t.Run("empty update reads the record", func(t *testing.T) {
		got, err := storage.UpdateService(ctx, svc.ID, models.ServiceUpdate{})
		require.NoError(t, err)
		assert.Equal(t, svc.ID, got.ID)
	})

	t.Run("missing service", func(t *testing.T) {
		name := "x"
		_, err := storage.UpdateService(ctx, 999999, models.ServiceUpdate{Name: &name})
		require.ErrorIs(t, err, ErrServiceNotFound)
	})

	t.Run("renewal guarded by previous expiration", func(t *testing.T) {
		stale := date(2024, 1, 31)
		current := date(2024, 2, 29)
		next := date(2024, 3, 31)

		_, err := storage.UpdateService(ctx, svc.ID, models.ServiceUpdate{
			ExpirationDate:     &next,
			ExpectedExpiration: &stale,
		})
		require.ErrorIs(t, err, ErrServiceConflict)

		unchanged, err := storage.ReadService(ctx, svc.ID)
		require.NoError(t, err)
		assert.Equal(t, current, unchanged.ExpirationDate)

		got, err := storage.UpdateService(ctx, svc.ID, models.ServiceUpdate{
			ExpirationDate:     &next,
			ExpectedExpiration: &current,
		})
		require.NoError(t, err)
		assert.Equal(t, next, got.ExpirationDate)

		_, err = storage.UpdateService(ctx, 999999, models.ServiceUpdate{
			ExpirationDate:     &next,
			ExpectedExpiration: &current,
		})
		require.ErrorIs(t, err, ErrServiceNotFound)
	})
}

func TestStorage_RemoveService(t *testing.T) {
	storage := setupTestDatabase(t)
	factory := NewTestDataFactory(storage)
	ctx := context.Background()
	svc := factory.CreateService(t, newUserUID(), "Gym", date(2024, 5, 1), false)

	require.NoError(t, storage.RemoveService(ctx, svc.ID))
	require.ErrorIs(t, storage.RemoveService(ctx, svc.ID), ErrServiceNotFound)

	_, err := storage.ReadService(ctx, svc.ID)
	require.ErrorIs(t, err, ErrServiceNotFound)
}

func TestStorage_ImportErrors(t *testing.T) {
	storage := setupTestDatabase(t)
	ctx := context.Background()
	alice, bob := newUserUID(), newUserUID()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, msg := range []string{"first", "second", "third"} {
		require.NoError(t, storage.CreateImportError(ctx, models.ImportError{
			ID:           uuid.NewString(),
			UserUID:      alice,
			ErrorMessage: msg,
			RowData:      "row;" + msg,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, storage.CreateImportError(ctx, models.ImportError{
		ID:           uuid.NewString(),
		UserUID:      bob,
		ErrorMessage: "other",
		RowData:      "x",
		CreatedAt:    base,
	}))

	got, err := storage.ListImportErrors(ctx, alice, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "third", got[0].ErrorMessage)
	assert.Equal(t, "first", got[2].ErrorMessage)
	assert.Equal(t, "row;first", got[2].RowData)

	limited, err := storage.ListImportErrors(ctx, alice, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	removed, err := storage.ClearImportErrors(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	got, err = storage.ListImportErrors(ctx, alice, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	other, err := storage.ListImportErrors(ctx, bob, 0)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestStorage_CancelledContext(t *testing.T) {
	storage := &Storage{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := storage.ListServices(ctx, models.ServiceFilter{})
	require.ErrorIs(t, err, context.Canceled)
	_, err = storage.ReadService(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, storage.RemoveService(ctx, 1), context.Canceled)
	require.ErrorIs(t, storage.CreateImportError(ctx, models.ImportError{}), context.Canceled)
}
