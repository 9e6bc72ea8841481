package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders the cumulative return series as CSV string.
func RenderCSV(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("date,strategy_cumulative,benchmark_cumulative,excess\n")

	// Rows
	for _, row := range r.Series {
		sb.WriteString(fmt.Sprintf("%s,%.4f,%.4f,%.4f\n",
			row.Date,
			row.Strategy,
			row.Benchmark,
			row.Excess,
		))
	}

	return sb.String()
}

// RenderHistogramCSV renders the return distribution as CSV string.
func RenderHistogramCSV(r *Report) string {
	var sb strings.Builder

	sb.WriteString("bucket,count\n")
	for _, h := range r.Histogram {
		sb.WriteString(fmt.Sprintf("%s,%d\n", h.Bucket, h.Count))
	}

	return sb.String()
}
