package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shifttally/internal/core"
	"shifttally/internal/storage"
)

func newTestService(t *testing.T) *TallyService {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "totals.db"), 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return NewTallyService(repo, nil, time.UTC)
}

func TestRecordMessage(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	res, err := svc.RecordMessage(ctx, 7, "$12.50 and 3000 khr", at)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Recorded)
	assert.Equal(t, core.Shift1, res.Shift)
	assert.Equal(t, core.NewDate(2025, 3, 14), res.BusinessDate)
	assert.True(t, res.Totals[core.USD].Total.Equal(decimal.RequireFromString("12.50")))
	assert.True(t, res.Totals[core.KHR].Total.Equal(decimal.RequireFromString("3000")))
	assert.Equal(t, "USD: 12.50$ | KHR: 3,000៛", res.Summary())
}

func TestRecordMessageNoAmountsIsNoOp(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	res, err := svc.RecordMessage(ctx, 7, "hello there", at)
	require.NoError(t, err)
	assert.Zero(t, res.Recorded)
	assert.Nil(t, res.Totals)

	totals, _, _, err := svc.CurrentShiftTotals(ctx, 7, at)
	require.NoError(t, err)
	assert.True(t, totals[core.USD].Total.IsZero())
	assert.True(t, totals[core.KHR].Total.IsZero())
}

func TestRecordMessageAccumulatesWithinBucket(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)

	_, err := svc.RecordMessage(ctx, 9, "$10.00", at)
	require.NoError(t, err)
	res, err := svc.RecordMessage(ctx, 9, "$5.50", at.Add(10*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, core.Shift2, res.Shift)
	assert.True(t, res.Totals[core.USD].Total.Equal(decimal.RequireFromString("15.50")))
	assert.EqualValues(t, 2, res.Totals[core.USD].Invoices)
}

func TestOvernightShiftSharesOneBusinessDate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	evening := time.Date(2025, 3, 14, 21, 30, 0, 0, time.UTC)
	smallHours := time.Date(2025, 3, 15, 2, 15, 0, 0, time.UTC)

	_, err := svc.RecordMessage(ctx, 5, "$10", evening)
	require.NoError(t, err)
	res, err := svc.RecordMessage(ctx, 5, "$4", smallHours)
	require.NoError(t, err)

	// Both sides of midnight land in shift3 of March 14.
	assert.Equal(t, core.Shift3, res.Shift)
	assert.Equal(t, core.NewDate(2025, 3, 14), res.BusinessDate)
	assert.True(t, res.Totals[core.USD].Total.Equal(decimal.RequireFromString("14")))
	assert.EqualValues(t, 2, res.Totals[core.USD].Invoices)
}

func TestBusinessDayTotalsEqualsSumOfShifts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	times := []time.Time{
		time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC),  // shift1
		time.Date(2025, 3, 14, 16, 0, 0, 0, time.UTC), // shift2
		time.Date(2025, 3, 14, 22, 0, 0, 0, time.UTC), // shift3
	}
	for _, at := range times {
		_, err := svc.RecordMessage(ctx, 3, "$5 and 1000 khr", at)
		require.NoError(t, err)
	}

	day, date, err := svc.BusinessDayTotals(ctx, 3, times[1])
	require.NoError(t, err)
	assert.Equal(t, core.NewDate(2025, 3, 14), date)
	assert.True(t, day[core.USD].Total.Equal(decimal.RequireFromString("15")))
	assert.EqualValues(t, 3, day[core.USD].Invoices)
	assert.True(t, day[core.KHR].Total.Equal(decimal.RequireFromString("3000")))
	assert.EqualValues(t, 3, day[core.KHR].Invoices)
}

func TestTimezoneAffectsBucketing(t *testing.T) {
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "totals.db"), 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	ict := time.FixedZone("ICT", 7*3600)
	svc := NewTallyService(repo, nil, ict)

	// 08:00 UTC is 15:00 in ICT: shift2, not shift1.
	at := time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC)
	res, err := svc.RecordMessage(context.Background(), 2, "$1", at)
	require.NoError(t, err)
	assert.Equal(t, core.Shift2, res.Shift)
}
