package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shifttally/internal/amqp"
	"shifttally/internal/core"
	"shifttally/internal/export"
	"shifttally/internal/storage"
)

func newWorkerFixture(t *testing.T) (*ExportWorker, *storage.Repository, string) {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "totals.db"), 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	outDir := t.TempDir()
	w := NewExportWorker(repo, []export.Renderer{export.XLSXRenderer{}, export.PDFRenderer{}}, outDir, time.Second)
	return w, repo, outDir
}

func record(t *testing.T, repo *storage.Repository, chatID int64, amount string) {
	t.Helper()
	e := core.Entry{
		ChatID:       chatID,
		RecordedAt:   time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
		BusinessDate: core.NewDate(2025, 3, 14),
		Shift:        core.Shift1,
		Currency:     core.USD,
		Amount:       decimal.RequireFromString(amount),
	}
	require.NoError(t, repo.RecordEntry(context.Background(), e))
}

func TestHandleEntryRecordedMarksDirtyAndFlushWrites(t *testing.T) {
	w, repo, outDir := newWorkerFixture(t)
	record(t, repo, 7, "12.50")

	msg := amqp.NewEntryRecordedMessage(7, "2025-03-14", "shift1", "USD")
	require.NoError(t, w.HandleEntryRecorded(msg))

	w.Flush(context.Background())

	for _, name := range []string{"totals_7_2025-03-14.xlsx", "totals_7_2025-03-14.pdf"} {
		info, err := os.Stat(filepath.Join(outDir, name))
		require.NoError(t, err, "missing %s", name)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestHandleEntryRecordedRejectsBadDate(t *testing.T) {
	w, _, _ := newWorkerFixture(t)
	msg := amqp.NewEntryRecordedMessage(7, "14-03-2025", "shift1", "USD")
	require.Error(t, w.HandleEntryRecorded(msg))
}

func TestFlushSkipsUnchangedSnapshot(t *testing.T) {
	w, repo, outDir := newWorkerFixture(t)
	record(t, repo, 7, "10")

	msg := amqp.NewEntryRecordedMessage(7, "2025-03-14", "shift1", "USD")
	require.NoError(t, w.HandleEntryRecorded(msg))
	w.Flush(context.Background())

	path := filepath.Join(outDir, "totals_7_2025-03-14.xlsx")
	require.NoError(t, os.Remove(path))

	// Same data again: the fingerprint matches, no file is re-written.
	require.NoError(t, w.HandleEntryRecorded(msg))
	w.Flush(context.Background())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "unchanged snapshot should not re-render")

	// New data invalidates the fingerprint.
	record(t, repo, 7, "5")
	require.NoError(t, w.HandleEntryRecorded(msg))
	w.Flush(context.Background())
	_, err = os.Stat(path)
	assert.NoError(t, err, "changed snapshot must re-render")
}

func TestFlushKeepsFailedDaysDirty(t *testing.T) {
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "totals.db"), 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	// An unwritable export dir makes the render pass fail.
	w := NewExportWorker(repo, []export.Renderer{export.XLSXRenderer{}}, string([]byte{0}), time.Second)
	record(t, repo, 7, "10")
	require.NoError(t, w.HandleEntryRecorded(amqp.NewEntryRecordedMessage(7, "2025-03-14", "shift1", "USD")))

	w.Flush(context.Background())

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Len(t, w.dirty, 1, "failed day should stay dirty for retry")
}

func TestRunFlushesOnShutdown(t *testing.T) {
	w, repo, outDir := newWorkerFixture(t)
	record(t, repo, 9, "3.25")
	require.NoError(t, w.HandleEntryRecorded(amqp.NewEntryRecordedMessage(9, "2025-03-14", "shift1", "USD")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	_, err := os.Stat(filepath.Join(outDir, "totals_9_2025-03-14.xlsx"))
	assert.NoError(t, err, "shutdown flush should have written the export")
}
