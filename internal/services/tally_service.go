package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"shifttally/internal/amqp"
	"shifttally/internal/core"
	"shifttally/internal/storage"
)

// TallyService orchestrates the record flow (parse, resolve, store,
// notify) and answers the two supported total queries.
type TallyService struct {
	storage    *storage.Repository
	amqpClient *amqp.Client
	loc        *time.Location
}

// RecordResult is what a handled message produced: how many amounts were
// stored and the fresh totals of the bucket they landed in.
type RecordResult struct {
	Recorded     int
	Shift        core.Shift
	BusinessDate core.Date
	Totals       core.Totals
}

// Summary renders the reply line for the chat.
func (r *RecordResult) Summary() string {
	return r.Totals.Summary()
}

func NewTallyService(storage *storage.Repository, amqpClient *amqp.Client, loc *time.Location) *TallyService {
	if loc == nil {
		loc = time.Local
	}
	return &TallyService{
		storage:    storage,
		amqpClient: amqpClient,
		loc:        loc,
	}
}

// RecordMessage extracts every amount from text and records each one
// into the bucket the arrival time resolves to. Text without amounts is
// a valid no-op: the result has Recorded == 0 and nil Totals, and no
// write happens. On success the result carries the bucket's updated
// shift totals, re-read after the writes.
func (s *TallyService) RecordMessage(ctx context.Context, chatID int64, text string, at time.Time) (*RecordResult, error) {
	amounts := core.ParseAmounts(text)
	if len(amounts) == 0 {
		return &RecordResult{}, nil
	}

	shift, date := core.Resolve(at.In(s.loc))

	for _, a := range amounts {
		entry := core.Entry{
			ChatID:       chatID,
			RecordedAt:   at,
			BusinessDate: date,
			Shift:        shift,
			Currency:     a.Currency,
			Amount:       a.Amount,
		}
		if err := s.storage.RecordEntry(ctx, entry); err != nil {
			return nil, fmt.Errorf("record entry: %w", err)
		}
		s.publishEntryRecorded(ctx, entry)
	}

	totals, err := s.storage.QueryTotals(ctx, chatID, date, shift)
	if err != nil {
		return nil, fmt.Errorf("query totals after record: %w", err)
	}

	return &RecordResult{
		Recorded:     len(amounts),
		Shift:        shift,
		BusinessDate: date,
		Totals:       totals,
	}, nil
}

// CurrentShiftTotals answers "totals for this shift": it resolves now
// into a bucket and reads that single bucket per currency.
func (s *TallyService) CurrentShiftTotals(ctx context.Context, chatID int64, now time.Time) (core.Totals, core.Shift, core.Date, error) {
	shift, date := core.Resolve(now.In(s.loc))
	totals, err := s.storage.QueryTotals(ctx, chatID, date, shift)
	if err != nil {
		return nil, "", core.Date{}, fmt.Errorf("query shift totals: %w", err)
	}
	return totals, shift, date, nil
}

// BusinessDayTotals answers "totals for the whole business day": all
// shifts of the day now belongs to, folded per currency.
func (s *TallyService) BusinessDayTotals(ctx context.Context, chatID int64, now time.Time) (core.Totals, core.Date, error) {
	_, date := core.Resolve(now.In(s.loc))
	totals, err := s.storage.QueryTotals(ctx, chatID, date, "")
	if err != nil {
		return nil, core.Date{}, fmt.Errorf("query day totals: %w", err)
	}
	return totals, date, nil
}

// BusinessDate returns the business date now belongs to, honoring the
// overnight shift rollover.
func (s *TallyService) BusinessDate(now time.Time) core.Date {
	_, date := core.Resolve(now.In(s.loc))
	return date
}

// publishEntryRecorded is best-effort: a broker outage never fails the
// user-facing record, the entry is already committed.
func (s *TallyService) publishEntryRecorded(ctx context.Context, e core.Entry) {
	if s.amqpClient == nil {
		return
	}

	msg := amqp.NewEntryRecordedMessage(e.ChatID, e.BusinessDate.String(), string(e.Shift), string(e.Currency))
	if err := s.amqpClient.PublishEntryRecorded(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish entry recorded message",
			"chat_id", e.ChatID,
			"business_date", e.BusinessDate.String(),
			"error", err)
	}
}
