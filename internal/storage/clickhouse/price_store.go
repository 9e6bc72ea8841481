package clickhouse

import (
	"context"
	"fmt"
	"time"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// PriceStore implements storage.PriceStore using ClickHouse.
type PriceStore struct {
	conn *Conn
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(conn *Conn) *PriceStore {
	return &PriceStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

type closeKey struct {
	code string
	day  time.Time
}

// InsertBulk adds multiple closes. Fails entire batch on duplicate (code, day).
// MergeTree does not enforce uniqueness, so duplicates are checked before insert.
func (s *PriceStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) (err error) {
	if len(points) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { observe("insert_closes", start, err) }()

	seen := make(map[closeKey]struct{}, len(points))
	codes := make(map[string]struct{})
	var first, last time.Time
	for _, p := range points {
		if p == nil || p.Code == "" || p.Close <= 0 {
			return storage.ErrInvalidInput
		}
		k := closeKey{p.Code, domain.TruncateDay(p.Day)}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		codes[p.Code] = struct{}{}
		if first.IsZero() || k.day.Before(first) {
			first = k.day
		}
		if k.day.After(last) {
			last = k.day
		}
	}

	existing, err := s.existing(ctx, codes, first, last)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	for k := range seen {
		if _, ok := existing[k]; ok {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO daily_closes (code, day, close)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(p.Code, domain.TruncateDay(p.Day), p.Close); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetClose retrieves the close of code on day. Returns ErrNotFound if absent.
func (s *PriceStore) GetClose(ctx context.Context, code string, day time.Time) (p *domain.PricePoint, err error) {
	start := time.Now()
	defer func() { observe("get_close", start, err) }()

	rows, err := s.conn.Query(ctx, `
		SELECT code, day, close
		FROM daily_closes
		WHERE code = ? AND day = ?
		LIMIT 1
	`, code, domain.TruncateDay(day))
	if err != nil {
		return nil, fmt.Errorf("query close: %w", err)
	}
	defer rows.Close()

	points, err := scanCloses(rows)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, storage.ErrNotFound
	}
	return points[0], nil
}

// GetByRange retrieves closes for code within [start, end] (inclusive), ordered by day ASC.
func (s *PriceStore) GetByRange(ctx context.Context, code string, from, to time.Time) (points []*domain.PricePoint, err error) {
	start := time.Now()
	defer func() { observe("get_closes_range", start, err) }()

	rows, err := s.conn.Query(ctx, `
		SELECT code, day, close
		FROM daily_closes
		WHERE code = ? AND day >= ? AND day <= ?
		ORDER BY day ASC
	`, code, domain.TruncateDay(from), domain.TruncateDay(to))
	if err != nil {
		return nil, fmt.Errorf("query closes by range: %w", err)
	}
	defer rows.Close()

	return scanCloses(rows)
}

// GetCodes returns every distinct stock code with at least one close, sorted ASC.
func (s *PriceStore) GetCodes(ctx context.Context) (codes []string, err error) {
	start := time.Now()
	defer func() { observe("get_codes", start, err) }()

	rows, err := s.conn.Query(ctx, `SELECT DISTINCT code FROM daily_closes ORDER BY code ASC`)
	if err != nil {
		return nil, fmt.Errorf("query codes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan code row: %w", err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate code rows: %w", err)
	}
	return codes, nil
}

// existing returns the stored (code, day) keys among codes within [first, last].
func (s *PriceStore) existing(ctx context.Context, codes map[string]struct{}, first, last time.Time) (map[closeKey]struct{}, error) {
	list := make([]string, 0, len(codes))
	for code := range codes {
		list = append(list, code)
	}

	rows, err := s.conn.Query(ctx, `
		SELECT code, day, close
		FROM daily_closes
		WHERE code IN (?) AND day >= ? AND day <= ?
	`, list, first, last)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points, err := scanCloses(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[closeKey]struct{}, len(points))
	for _, p := range points {
		out[closeKey{p.Code, p.Day}] = struct{}{}
	}
	return out, nil
}

// scanCloses scans multiple rows.
func scanCloses(rows chRows) ([]*domain.PricePoint, error) {
	var points []*domain.PricePoint

	for rows.Next() {
		var p domain.PricePoint
		if err := rows.Scan(&p.Code, &p.Day, &p.Close); err != nil {
			return nil, fmt.Errorf("scan close row: %w", err)
		}
		p.Day = domain.TruncateDay(p.Day)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate close rows: %w", err)
	}

	return points, nil
}
