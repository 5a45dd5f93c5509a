// Package export renders read-only snapshots of recorded totals into
// report files. It never writes to the store and mandates no single
// output format: each Renderer owns one.
package export

import (
	"context"
	"fmt"
	"strings"

	"shifttally/internal/core"
)

type (
	// Source is the read side of the aggregate store the exporters
	// consume. Satisfied by *storage.Repository.
	Source interface {
		QueryTotals(ctx context.Context, chatID int64, date core.Date, shift core.Shift) (core.Totals, error)
		ListEntries(ctx context.Context, chatID int64, date core.Date) ([]core.Entry, error)
	}

	// Snapshot is one business day of one chat, frozen for rendering:
	// per-shift totals, the day fold, and the contributing history.
	Snapshot struct {
		ChatID       int64
		BusinessDate core.Date
		Shifts       map[core.Shift]core.Totals
		Day          core.Totals
		Entries      []core.Entry
	}

	// Renderer turns a snapshot into a named report file.
	Renderer interface {
		Render(ctx context.Context, snap Snapshot) (filename string, data []byte, err error)
	}
)

// BuildSnapshot reads one chat's business day from src.
func BuildSnapshot(ctx context.Context, src Source, chatID int64, date core.Date) (Snapshot, error) {
	snap := Snapshot{
		ChatID:       chatID,
		BusinessDate: date,
		Shifts:       make(map[core.Shift]core.Totals, len(core.Shifts())),
		Day:          core.NewTotals(),
	}

	for _, shift := range core.Shifts() {
		totals, err := src.QueryTotals(ctx, chatID, date, shift)
		if err != nil {
			return Snapshot{}, fmt.Errorf("snapshot shift %s: %w", shift, err)
		}
		snap.Shifts[shift] = totals
		snap.Day.Merge(totals)
	}

	entries, err := src.ListEntries(ctx, chatID, date)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot history: %w", err)
	}
	snap.Entries = entries

	return snap, nil
}

// Fingerprint is a cheap identity for change detection: two snapshots of
// the same data fingerprint identically, so re-renders can be skipped.
func (s Snapshot) Fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%s|%d", s.ChatID, s.BusinessDate, len(s.Entries))
	for _, shift := range core.Shifts() {
		totals := s.Shifts[shift]
		for _, c := range core.Currencies() {
			bucket := totals[c]
			fmt.Fprintf(&b, "|%s:%s:%s:%d", shift, c, bucket.Total.String(), bucket.Invoices)
		}
	}
	return b.String()
}
