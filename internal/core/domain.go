package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	USD Currency = "USD"
	KHR Currency = "KHR"
)

const (
	Shift1 Shift = "shift1"
	Shift2 Shift = "shift2"
	Shift3 Shift = "shift3"
)

type (
	// Currency is the closed set of tracked currencies.
	Currency string

	// Shift is one of the three fixed daily windows.
	Shift string

	// Date is a calendar date used as the business date of a bucket.
	// The time-of-day portion is always midnight UTC.
	Date struct {
		time.Time
	}

	// Entry is one immutable contribution to a bucket. Entries are only
	// ever appended, never updated or deleted.
	Entry struct {
		ChatID       int64
		RecordedAt   time.Time
		BusinessDate Date
		Shift        Shift
		Currency     Currency
		Amount       decimal.Decimal
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrUnknownCurrency = errors.New("unknown currency")
	ErrUnknownShift    = errors.New("unknown shift")
	ErrInvalidChat     = errors.New("invalid chat id")
)

// Currencies lists the supported currencies in display order.
func Currencies() []Currency {
	return []Currency{USD, KHR}
}

// ParseCurrency normalizes a 3-letter code to a Currency.
// Anything outside the closed set is rejected.
func ParseCurrency(code string) (Currency, error) {
	switch Currency(strings.ToUpper(strings.TrimSpace(code))) {
	case USD:
		return USD, nil
	case KHR:
		return KHR, nil
	default:
		return "", ErrUnknownCurrency
	}
}

func (c Currency) Validate() error {
	switch c {
	case USD, KHR:
		return nil
	default:
		return ErrUnknownCurrency
	}
}

// Symbol returns the display symbol appended to formatted totals.
func (c Currency) Symbol() string {
	if c == KHR {
		return "៛"
	}
	return "$"
}

func (s Shift) Validate() error {
	switch s {
	case Shift1, Shift2, Shift3:
		return nil
	default:
		return ErrUnknownShift
	}
}

// Shifts lists the three shifts in chronological order within a business day.
func Shifts() []Shift {
	return []Shift{Shift1, Shift2, Shift3}
}

// DateOf returns the calendar date of t as a Date.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string, the form stored in the database.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// AddDays returns the date shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (e Entry) Validate() error {
	if e.ChatID == 0 {
		return ErrInvalidChat
	}
	if err := e.Currency.Validate(); err != nil {
		return err
	}
	if err := e.Shift.Validate(); err != nil {
		return err
	}
	if e.BusinessDate.IsZero() {
		return errors.New("business date cannot be zero")
	}
	// Zero and negative contributions are rejected before any write.
	if e.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
