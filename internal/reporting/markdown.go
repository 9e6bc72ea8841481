package reporting

import (
	"fmt"
	"strings"
	"time"

	"momentum-lab/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Momentum Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.ConfigKey != "" {
		sb.WriteString(fmt.Sprintf("Config key: `%s`\n\n", r.ConfigKey))
	}

	// Configuration
	sb.WriteString("## Configuration\n\n")
	sb.WriteString("| Parameter | Value |\n")
	sb.WriteString("|-----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Begin Date | %s |\n", domain.FormatDay(r.Config.BeginDate)))
	sb.WriteString(fmt.Sprintf("| End Date | %s |\n", domain.FormatDay(r.Config.EndDate)))
	sb.WriteString(fmt.Sprintf("| Formative Days | %d |\n", r.Config.FormativeDays))
	sb.WriteString(fmt.Sprintf("| Holding Days | %d |\n", r.Config.HoldingDays))
	if len(r.Config.StockPool) > 0 {
		sb.WriteString(fmt.Sprintf("| Stock Pool | %d codes |\n", len(r.Config.StockPool)))
	} else {
		sb.WriteString("| Stock Pool | default universe |\n")
	}
	sb.WriteString("\n")

	// Summary
	s := r.Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Strategy | Benchmark |\n")
	sb.WriteString("|--------|----------|-----------|\n")
	sb.WriteString(fmt.Sprintf("| Cumulative Return | %.4f | %.4f |\n", s.StrategyReturn, s.BenchmarkReturn))
	sb.WriteString(fmt.Sprintf("| Annual Yield | %.4f | %.4f |\n", s.StrategyAnnualYield, s.BenchmarkAnnualYield))
	sb.WriteString("\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Initial Capital | %.0f |\n", s.InitialCapital))
	sb.WriteString(fmt.Sprintf("| Final Value | %.0f |\n", s.FinalValue))
	sb.WriteString(fmt.Sprintf("| Alpha | %.6f |\n", s.Alpha))
	sb.WriteString(fmt.Sprintf("| Beta | %.4f |\n", s.Beta))
	sb.WriteString(fmt.Sprintf("| Sharpe Ratio | %.4f |\n", s.SharpeRatio))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %.4f |\n", s.MaxDrawdown))
	sb.WriteString("\n")

	// Rebalances
	sb.WriteString("## Rebalances\n\n")
	if len(r.Rebalances) > 0 {
		sb.WriteString("| Date | Lots | Winners |\n")
		sb.WriteString("|------|------|---------|\n")
		for _, rb := range r.Rebalances {
			winners := strings.Join(rb.Winners, ", ")
			if winners == "" {
				winners = "(cash)"
			}
			sb.WriteString(fmt.Sprintf("| %s | %d | %s |\n", rb.Date, rb.Lots, winners))
		}
	} else {
		sb.WriteString("No rebalances recorded.\n")
	}
	sb.WriteString("\n")

	// Return Distribution
	sb.WriteString("## Return Distribution\n\n")
	if len(r.Histogram) > 0 {
		sb.WriteString("| Return | Periods |\n")
		sb.WriteString("|--------|---------|\n")
		for _, h := range r.Histogram {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", h.Bucket, h.Count))
		}
	} else {
		sb.WriteString("No returns available.\n")
	}
	sb.WriteString("\n")

	// Daily Series
	sb.WriteString("## Cumulative Returns\n\n")
	if len(r.Series) > 0 {
		sb.WriteString("| Date | Strategy | Benchmark | Excess |\n")
		sb.WriteString("|------|----------|-----------|--------|\n")
		for _, row := range r.Series {
			sb.WriteString(fmt.Sprintf("| %s | %.4f | %.4f | %.4f |\n",
				row.Date, row.Strategy, row.Benchmark, row.Excess))
		}
	} else {
		sb.WriteString("No trading days in range.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// RenderRunsMarkdown renders a list of persisted runs as Markdown table.
func RenderRunsMarkdown(runs []RunRow) string {
	var sb strings.Builder

	sb.WriteString("## Recent Runs\n\n")
	if len(runs) == 0 {
		sb.WriteString("No runs persisted.\n")
		return sb.String()
	}

	sb.WriteString("| Key | Range | Formative | Holding | Pool | Final Value | Created |\n")
	sb.WriteString("|-----|-------|-----------|---------|------|-------------|---------|\n")
	for _, run := range runs {
		pool := "default"
		if run.PoolSize > 0 {
			pool = fmt.Sprintf("%d", run.PoolSize)
		}
		key := run.ConfigKey
		if len(key) > 12 {
			key = key[:12]
		}
		sb.WriteString(fmt.Sprintf("| %s | %s to %s | %d | %d | %s | %.0f | %s |\n",
			key, run.BeginDate, run.EndDate, run.FormativeDays, run.HoldingDays,
			pool, run.FinalValue, run.CreatedAt.Format(time.RFC3339)))
	}
	return sb.String()
}

// RenderSweepMarkdown renders sweep rows in the given order.
func RenderSweepMarkdown(rows []SweepRow) string {
	var sb strings.Builder

	sb.WriteString("## Parameter Sweep\n\n")
	if len(rows) == 0 {
		sb.WriteString("No combinations run.\n")
		return sb.String()
	}

	sb.WriteString("| Formative | Holding | Strategy | Benchmark | Sharpe | Max DD |\n")
	sb.WriteString("|-----------|---------|----------|-----------|--------|--------|\n")
	for _, row := range rows {
		if row.Error != "" {
			sb.WriteString(fmt.Sprintf("| %d | %d | error: %s | | | |\n",
				row.FormativeDays, row.HoldingDays, row.Error))
			continue
		}
		sb.WriteString(fmt.Sprintf("| %d | %d | %.2f%% | %.2f%% | %.4f | %.2f%% |\n",
			row.FormativeDays, row.HoldingDays,
			row.StrategyCumulative*100, row.BenchmarkCumulative*100,
			row.SharpeRatio, row.MaxDrawdown*100))
	}
	return sb.String()
}
