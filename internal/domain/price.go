package domain

import "time"

// DateLayout is the ISO date format used for trading days on the wire.
const DateLayout = "2006-01-02"

// PricePoint is a daily closing price for one stock.
// Corresponds to daily_closes table in ClickHouse.
type PricePoint struct {
	Code  string    // stock code, e.g. "000001"
	Day   time.Time // trading day at UTC midnight
	Close float64   // closing price, always > 0
}

// Stock describes a member of the tradable universe.
// Corresponds to stocks table in PostgreSQL.
type Stock struct {
	Code   string
	Name   string
	Market string // exchange prefix: "sh", "sz"
}

// TruncateDay normalizes t to UTC midnight of its calendar date.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses an ISO date (2006-01-02) into a UTC midnight time.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// FormatDay renders a trading day as an ISO date.
func FormatDay(t time.Time) string {
	return t.Format(DateLayout)
}
