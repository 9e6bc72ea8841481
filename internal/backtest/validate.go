package backtest

import (
	"errors"
	"fmt"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// Validation errors. Both wrap storage.ErrInvalidInput.
var (
	ErrInvalidConfig = fmt.Errorf("invalid backtest config: %w", storage.ErrInvalidInput)
	ErrEmptyRange    = fmt.Errorf("%w: no trading days in range", ErrInvalidConfig)
)

// Validate checks cfg before any data is loaded.
func Validate(cfg domain.BacktestConfig) error {
	var errs []error
	if cfg.BeginDate.IsZero() {
		errs = append(errs, errors.New("begin_date is required"))
	}
	if cfg.EndDate.IsZero() {
		errs = append(errs, errors.New("end_date is required"))
	}
	if !cfg.BeginDate.IsZero() && !cfg.EndDate.IsZero() && !cfg.BeginDate.Before(cfg.EndDate) {
		errs = append(errs, fmt.Errorf("begin_date %s must be before end_date %s",
			domain.FormatDay(cfg.BeginDate), domain.FormatDay(cfg.EndDate)))
	}
	if cfg.FormativeDays <= 0 {
		errs = append(errs, fmt.Errorf("formative_days must be positive, got %d", cfg.FormativeDays))
	}
	if cfg.HoldingDays <= 0 {
		errs = append(errs, fmt.Errorf("holding_days must be positive, got %d", cfg.HoldingDays))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
