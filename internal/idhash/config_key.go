// Package idhash derives deterministic identifiers.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/metrics"
)

// ComputeConfigKey computes a deterministic config_key using SHA256.
// Formula: SHA256(begin|end|formative|holding|pool|risk_free|periods|annualize_alpha|precision|group_by_holding)
// over the normalized config, so equivalent configs share a key.
// Returns hex-encoded hash (64 characters).
func ComputeConfigKey(cfg domain.BacktestConfig, p metrics.Params) string {
	cfg = cfg.Normalize()

	data := fmt.Sprintf("%s|%s|%d|%d|%s|%s|%d|%t|%d|%t",
		domain.FormatDay(cfg.BeginDate),
		domain.FormatDay(cfg.EndDate),
		cfg.FormativeDays,
		cfg.HoldingDays,
		strings.Join(cfg.StockPool, ","),
		strconv.FormatFloat(p.RiskFreeRate, 'g', -1, 64),
		p.PeriodsPerYear,
		p.AnnualizeAlpha,
		p.HistogramPrecision,
		p.GroupByHolding,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
