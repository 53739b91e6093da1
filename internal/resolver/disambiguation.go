package resolver

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Disambiguation builds the human-readable context string for a candidate:
// display name, identifier, active date range, and trailing-window sales.
// Used only for presentation, never for ranking.
func Disambiguation(rec StoreRecord, confidence float64, crossType bool) string {
	parts := []string{
		rec.Name,
		fmt.Sprintf("[%s]", rec.ID),
		fmt.Sprintf("(score: %.2f)", confidence),
	}
	if crossType {
		parts = append(parts, fmt.Sprintf("(%s)", rec.Type))
	}

	if dateRange := formatDateRange(rec.Metadata); dateRange != "" {
		parts = append(parts, dateRange)
	}

	if sold := metadataFloat(rec.Metadata, "sold_last_30_days"); sold > 0 {
		parts = append(parts, fmt.Sprintf("$%.0f last 30 days", sold))
	} else {
		parts = append(parts, "no recent sales")
	}

	return strings.Join(parts, " ")
}

// formatDateRange renders "(2019-present)" or "(2019-2023)" from first_date
// and last_date metadata. An absent or open-ended last_date means the run is
// still active.
func formatDateRange(metadata map[string]interface{}) string {
	first := metadataString(metadata, "first_date")
	if first == "" || len(first) < 4 {
		return ""
	}
	last := metadataString(metadata, "last_date")
	if last == "" || len(last) < 4 {
		return fmt.Sprintf("(%s-present)", first[:4])
	}
	return fmt.Sprintf("(%s-%s)", first[:4], last[:4])
}

func metadataString(metadata map[string]interface{}, key string) string {
	if metadata == nil {
		return ""
	}
	if v, ok := metadata[key].(string); ok && v != "unknown" {
		return v
	}
	return ""
}

func metadataFloat(metadata map[string]interface{}, key string) float64 {
	if metadata == nil {
		return 0
	}
	switch v := metadata[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}
