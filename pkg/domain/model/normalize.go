package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Visibility labels for the per-post "how many saw this" number. The label
// reflects which vendor counter the value was taken from.
const (
	VisibilityImpressions = "Impressions"
	VisibilityViews       = "Vues"
	VisibilityReach       = "Portée"
)

// Visibility is the reconciled per-post visibility metric
type Visibility struct {
	Label string
	Value int64
}

// CoerceMetric coerces a heterogeneous vendor metric value into an integer.
// It accepts numbers, numeric strings ("1,234 views" -> 1234) and composite
// "a/b" strings ("12/34" -> 34, the maximum of both parts). Anything else
// coerces to 0.
func CoerceMetric(value any) int64 {
	switch v := value.(type) {
	case nil:
		return 0
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case float32:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return int64(f)
	case string:
		return coerceString(v)
	default:
		return 0
	}
}

func coerceString(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	// Composite "a/b" values: take the maximum of the parts
	if strings.Contains(s, "/") {
		var best int64
		for _, part := range strings.Split(s, "/") {
			if n := coerceString(part); n > best {
				best = n
			}
		}
		return best
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}

	// Fall back to extracting the first number, tolerating thousand
	// separators and trailing words ("1,234 views")
	var b strings.Builder
	started := false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			started = true
		case r == '-' && !started && i+1 < len(s):
			b.WriteRune(r)
		case r == ',' && started:
			// skip separator
		default:
			if started {
				goto done
			}
		}
	}
done:
	n, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// ParseMetrics normalizes a stored metric blob into a map. Some rows carry
// double-encoded JSON strings; those are parsed once here so the readers
// below stay typed. On parse failure the blob is treated as opaque.
func ParseMetrics(metrics any) map[string]any {
	switch m := metrics.(type) {
	case nil:
		return nil
	case map[string]any:
		return m
	case string:
		if m == "" {
			return nil
		}
		var parsed map[string]any
		if err := json.Unmarshal([]byte(m), &parsed); err != nil {
			return nil
		}
		return parsed
	default:
		return nil
	}
}

// PostEngagements returns the engagement count for a post. An explicit
// "engagements" counter wins; otherwise likes+comments+shares+saves.
func PostEngagements(metrics any) int64 {
	m := ParseMetrics(metrics)
	if m == nil {
		return 0
	}
	if v, ok := m["engagements"]; ok {
		return CoerceMetric(v)
	}
	var total int64
	for _, key := range []string{"likes", "comments", "shares", "saves"} {
		total += CoerceMetric(m[key])
	}
	return total
}

// PostVisibility derives the single "how many saw this" value for a post.
// Reel-type media prefers views when positive because vendors report reel
// reach through view counts; otherwise impressions, then views, then reach.
func PostVisibility(metrics any, mediaType string) Visibility {
	m := ParseMetrics(metrics)

	views := CoerceMetric(m["views"])
	impressions := CoerceMetric(m["impressions"])
	reach := CoerceMetric(m["reach"])

	if isReelMedia(mediaType) && views > 0 {
		return Visibility{Label: VisibilityViews, Value: views}
	}
	if impressions > 0 {
		return Visibility{Label: VisibilityImpressions, Value: impressions}
	}
	if views > 0 {
		return Visibility{Label: VisibilityViews, Value: views}
	}
	return Visibility{Label: VisibilityReach, Value: reach}
}

// PostImpressions returns the best available impression-like counter
func PostImpressions(metrics any) int64 {
	m := ParseMetrics(metrics)
	if m == nil {
		return 0
	}
	for _, key := range []string{"impressions", "views", "reach", "media_views", "plays", "video_views"} {
		if v := CoerceMetric(m[key]); v > 0 {
			return v
		}
	}
	return 0
}

func isReelMedia(mediaType string) bool {
	return strings.Contains(strings.ToLower(mediaType), "reel")
}
