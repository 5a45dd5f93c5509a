// Package worker regenerates export files in the background, driven by
// entry-recorded events from the bot process.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"shifttally/internal/amqp"
	"shifttally/internal/cache"
	"shifttally/internal/core"
	"shifttally/internal/export"
)

type dayKey struct {
	chatID int64
	date   string
}

// ExportWorker consumes entry-recorded messages, marks the affected
// (chat, business date) dirty, and re-renders dirty days on a ticker.
// A fingerprint cache suppresses renders when nothing changed since the
// last pass.
type ExportWorker struct {
	source    export.Source
	renderers []export.Renderer
	outDir    string
	interval  time.Duration

	mu      sync.Mutex
	dirty   map[dayKey]struct{}
	renders *cache.LRUCache[string]
}

func NewExportWorker(source export.Source, renderers []export.Renderer, outDir string, interval time.Duration) *ExportWorker {
	return &ExportWorker{
		source:    source,
		renderers: renderers,
		outDir:    outDir,
		interval:  interval,
		dirty:     make(map[dayKey]struct{}),
		renders:   cache.NewLRUCache[string](256, 24*time.Hour),
	}
}

// HandleEntryRecorded is the AMQP consumer callback. It only marks the
// day dirty; rendering happens on the next flush so bursts of messages
// collapse into one export.
func (w *ExportWorker) HandleEntryRecorded(msg *amqp.EntryRecordedMessage) error {
	if _, err := core.ParseDate(msg.BusinessDate); err != nil {
		return fmt.Errorf("bad business date %q: %w", msg.BusinessDate, err)
	}

	w.mu.Lock()
	w.dirty[dayKey{chatID: msg.ChatID, date: msg.BusinessDate}] = struct{}{}
	w.mu.Unlock()
	return nil
}

// Run flushes dirty days every interval until ctx is cancelled. A final
// flush runs on shutdown so acknowledged messages are not lost.
func (w *ExportWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.interval)
			w.Flush(flushCtx)
			cancel()
			return ctx.Err()
		case <-ticker.C:
			w.Flush(ctx)
		}
	}
}

// Flush renders every dirty day once. Days that fail stay dirty and are
// retried on the next pass.
func (w *ExportWorker) Flush(ctx context.Context) {
	w.mu.Lock()
	pending := make([]dayKey, 0, len(w.dirty))
	for k := range w.dirty {
		pending = append(pending, k)
	}
	w.dirty = make(map[dayKey]struct{})
	w.mu.Unlock()

	for _, key := range pending {
		if err := w.exportDay(ctx, key); err != nil {
			slog.ErrorContext(ctx, "Export failed, will retry",
				"chat_id", key.chatID,
				"business_date", key.date,
				"error", err)
			w.mu.Lock()
			w.dirty[key] = struct{}{}
			w.mu.Unlock()
		}
	}
}

func (w *ExportWorker) exportDay(ctx context.Context, key dayKey) error {
	date, err := core.ParseDate(key.date)
	if err != nil {
		return fmt.Errorf("parse business date: %w", err)
	}

	snap, err := export.BuildSnapshot(ctx, w.source, key.chatID, date)
	if err != nil {
		return fmt.Errorf("build snapshot: %w", err)
	}

	cacheKey := fmt.Sprintf("%d|%s", key.chatID, key.date)
	fingerprint := snap.Fingerprint()
	if prev, ok := w.renders.Get(cacheKey); ok && prev == fingerprint {
		slog.InfoContext(ctx, "Snapshot unchanged, skipping render",
			"chat_id", key.chatID,
			"business_date", key.date)
		return nil
	}

	if err := os.MkdirAll(w.outDir, 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	for _, r := range w.renderers {
		name, data, err := r.Render(ctx, snap)
		if err != nil {
			return fmt.Errorf("render: %w", err)
		}
		path := filepath.Join(w.outDir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		slog.InfoContext(ctx, "Export written",
			"chat_id", key.chatID,
			"business_date", key.date,
			"file", path,
			"bytes", len(data))
	}

	w.renders.Set(cacheKey, fingerprint)
	return nil
}
