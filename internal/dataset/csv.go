// Package dataset imports closes, trading calendars and stock lists from CSV.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"momentum-lab/internal/domain"
)

// ErrMissingColumn is returned when a required header column is absent.
var ErrMissingColumn = errors.New("missing required column")

// LoadCloses reads code,date,close rows. Column order follows the header;
// extra columns are ignored. Rows with a non-positive close mark a
// suspension and are skipped.
func LoadCloses(r io.Reader) ([]*domain.PricePoint, error) {
	var points []*domain.PricePoint
	err := readRows(r, []string{"code", "date", "close"}, nil, func(line int, row map[string]string) error {
		day, err := domain.ParseDay(row["date"])
		if err != nil {
			return fmt.Errorf("line %d: bad date %q: %w", line, row["date"], err)
		}
		c, err := strconv.ParseFloat(row["close"], 64)
		if err != nil {
			return fmt.Errorf("line %d: bad close %q: %w", line, row["close"], err)
		}
		if row["code"] == "" {
			return fmt.Errorf("line %d: empty code", line)
		}
		if c <= 0 {
			return nil
		}
		points = append(points, &domain.PricePoint{Code: row["code"], Day: day, Close: c})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

// LoadCalendar reads a single date column and returns sessions ASC, deduplicated.
func LoadCalendar(r io.Reader) ([]time.Time, error) {
	var days []time.Time
	err := readRows(r, []string{"date"}, nil, func(line int, row map[string]string) error {
		day, err := domain.ParseDay(row["date"])
		if err != nil {
			return fmt.Errorf("line %d: bad date %q: %w", line, row["date"], err)
		}
		days = append(days, day)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return uniqueDays(days), nil
}

// DeriveCalendar returns every day with at least one close, ASC.
func DeriveCalendar(points []*domain.PricePoint) []time.Time {
	days := make([]time.Time, 0, len(points))
	for _, p := range points {
		days = append(days, domain.TruncateDay(p.Day))
	}
	return uniqueDays(days)
}

// LoadStocks reads code[,name][,market] rows.
func LoadStocks(r io.Reader) ([]*domain.Stock, error) {
	var stocks []*domain.Stock
	err := readRows(r, []string{"code"}, []string{"name", "market"}, func(line int, row map[string]string) error {
		if row["code"] == "" {
			return fmt.Errorf("line %d: empty code", line)
		}
		stocks = append(stocks, &domain.Stock{Code: row["code"], Name: row["name"], Market: row["market"]})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stocks, nil
}

// readRows validates the header and calls fn for each data row with the
// required and optional columns keyed by lowercase name.
func readRows(r io.Reader, required, optional []string, fn func(line int, row map[string]string) error) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return fmt.Errorf("empty CSV: %w", ErrMissingColumn)
	}
	if err != nil {
		return fmt.Errorf("read CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	columns := append(append([]string{}, required...), optional...)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("read CSV record at line %d: %w", line, err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}

		row := make(map[string]string, len(columns))
		for _, col := range columns {
			if i, ok := index[col]; ok && i < len(record) {
				row[col] = strings.TrimSpace(record[i])
			}
		}
		if err := fn(line, row); err != nil {
			return err
		}
	}
}

func uniqueDays(days []time.Time) []time.Time {
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	out := days[:0]
	for _, d := range days {
		if len(out) > 0 && d.Equal(out[len(out)-1]) {
			continue
		}
		out = append(out, d)
	}
	return out
}
