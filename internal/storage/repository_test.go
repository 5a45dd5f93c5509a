package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shifttally/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "totals.db"), 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func entry(chatID int64, shift core.Shift, c core.Currency, amount string) core.Entry {
	return core.Entry{
		ChatID:       chatID,
		RecordedAt:   time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC),
		BusinessDate: core.NewDate(2025, 3, 14),
		Shift:        shift,
		Currency:     c,
		Amount:       decimal.RequireFromString(amount),
	}
}

func TestRecordEntryRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.RecordEntry(ctx, entry(7, core.Shift1, core.USD, "10.00")))
	require.NoError(t, repo.RecordEntry(ctx, entry(7, core.Shift1, core.USD, "5.50")))

	totals, err := repo.QueryTotals(ctx, 7, core.NewDate(2025, 3, 14), core.Shift1)
	require.NoError(t, err)

	assert.True(t, totals[core.USD].Total.Equal(decimal.RequireFromString("15.50")),
		"USD total = %s", totals[core.USD].Total)
	assert.EqualValues(t, 2, totals[core.USD].Invoices)
	assert.True(t, totals[core.KHR].Total.IsZero())
	assert.EqualValues(t, 0, totals[core.KHR].Invoices)
}

func TestQueryTotalsCurrencyCompleteness(t *testing.T) {
	repo := newTestRepo(t)

	totals, err := repo.QueryTotals(context.Background(), 99, core.NewDate(2025, 3, 14), "")
	require.NoError(t, err)

	require.Len(t, totals, 2)
	for _, c := range core.Currencies() {
		b, ok := totals[c]
		require.True(t, ok, "missing %s", c)
		assert.True(t, b.Total.IsZero())
		assert.Zero(t, b.Invoices)
	}
}

func TestQueryTotalsWholeDayFoldsShifts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	date := core.NewDate(2025, 3, 14)

	require.NoError(t, repo.RecordEntry(ctx, entry(3, core.Shift1, core.USD, "10.25")))
	require.NoError(t, repo.RecordEntry(ctx, entry(3, core.Shift2, core.USD, "4.75")))
	require.NoError(t, repo.RecordEntry(ctx, entry(3, core.Shift3, core.USD, "7.00")))
	require.NoError(t, repo.RecordEntry(ctx, entry(3, core.Shift2, core.KHR, "3000")))

	day, err := repo.QueryTotals(ctx, 3, date, "")
	require.NoError(t, err)

	// The whole-day fold must equal the sum of the three shift queries.
	want := core.NewTotals()
	for _, s := range core.Shifts() {
		shiftTotals, err := repo.QueryTotals(ctx, 3, date, s)
		require.NoError(t, err)
		want.Merge(shiftTotals)
	}

	for _, c := range core.Currencies() {
		assert.True(t, day[c].Total.Equal(want[c].Total), "%s: day %s != sum %s", c, day[c].Total, want[c].Total)
		assert.Equal(t, want[c].Invoices, day[c].Invoices)
	}
	assert.True(t, day[core.USD].Total.Equal(decimal.RequireFromString("22.00")))
	assert.EqualValues(t, 3, day[core.USD].Invoices)
}

func TestRecordEntryIsolatedPerChatAndShift(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.RecordEntry(ctx, entry(1, core.Shift1, core.USD, "10")))
	require.NoError(t, repo.RecordEntry(ctx, entry(2, core.Shift1, core.USD, "20")))

	totals, err := repo.QueryTotals(ctx, 1, core.NewDate(2025, 3, 14), core.Shift1)
	require.NoError(t, err)
	assert.True(t, totals[core.USD].Total.Equal(decimal.RequireFromString("10")))
}

func TestRecordEntryValidationWritesNothing(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	bad := entry(5, core.Shift1, core.USD, "10")
	bad.Currency = "EUR"
	require.ErrorIs(t, repo.RecordEntry(ctx, bad), core.ErrUnknownCurrency)

	bad = entry(5, core.Shift1, core.USD, "10")
	bad.Amount = decimal.RequireFromString("-1")
	require.ErrorIs(t, repo.RecordEntry(ctx, bad), core.ErrInvalidAmount)

	entries, err := repo.ListEntries(ctx, 5, core.NewDate(2025, 3, 14))
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected entries must not reach the history")

	totals, err := repo.QueryTotals(ctx, 5, core.NewDate(2025, 3, 14), "")
	require.NoError(t, err)
	assert.True(t, totals[core.USD].Total.IsZero())
}

func TestRecordEntrySurvivesCallerCancellation(t *testing.T) {
	repo := newTestRepo(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // caller already gone

	require.NoError(t, repo.RecordEntry(ctx, entry(11, core.Shift2, core.KHR, "4000")))

	totals, err := repo.QueryTotals(context.Background(), 11, core.NewDate(2025, 3, 14), core.Shift2)
	require.NoError(t, err)
	assert.True(t, totals[core.KHR].Total.Equal(decimal.RequireFromString("4000")))
	assert.EqualValues(t, 1, totals[core.KHR].Invoices)
}

func TestConcurrentRecordsSameKeyLoseNothing(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	const n = 50
	amount := decimal.RequireFromString("2.50")

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.RecordEntry(ctx, entry(8, core.Shift2, core.USD, "2.50"))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	totals, err := repo.QueryTotals(ctx, 8, core.NewDate(2025, 3, 14), core.Shift2)
	require.NoError(t, err)

	want := amount.Mul(decimal.NewFromInt(n))
	assert.True(t, totals[core.USD].Total.Equal(want),
		"total = %s, want %s", totals[core.USD].Total, want)
	assert.EqualValues(t, n, totals[core.USD].Invoices)

	// The bucket must reconcile exactly to the history it aggregates.
	entries, err := repo.ListEntries(ctx, 8, core.NewDate(2025, 3, 14))
	require.NoError(t, err)
	require.Len(t, entries, n)
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Amount)
	}
	assert.True(t, totals[core.USD].Total.Equal(sum))
}

func TestListEntriesKeepsOrderAndPrecision(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	amounts := []string{"0.05", "12.50", "3000"}
	currencies := []core.Currency{core.USD, core.USD, core.KHR}
	for i := range amounts {
		require.NoError(t, repo.RecordEntry(ctx, entry(4, core.Shift1, currencies[i], amounts[i])))
	}

	entries, err := repo.ListEntries(ctx, 4, core.NewDate(2025, 3, 14))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.True(t, e.Amount.Equal(decimal.RequireFromString(amounts[i])),
			"entry %d amount = %s, want %s", i, e.Amount, amounts[i])
		assert.Equal(t, currencies[i], e.Currency)
		assert.Equal(t, core.Shift1, e.Shift)
	}
}

func TestQueryTotalsRejectsUnknownShift(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.QueryTotals(context.Background(), 1, core.NewDate(2025, 3, 14), "shift9")
	require.ErrorIs(t, err, core.ErrUnknownShift)
}
