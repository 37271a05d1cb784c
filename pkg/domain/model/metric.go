package model

import (
	"fmt"
	"time"

	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
)

// DateFormat is the calendar-date key format used for daily metric rows
const DateFormat = "2006-01-02"

// DailyMetric holds one day of account-level metrics. Followers is a
// point-in-time gauge; the remaining counters cover the calendar day.
// Re-syncing the same day fully replaces the row (idempotent upsert).
type DailyMetric struct {
	TenantID  types.TenantID
	Platform  types.Platform
	AccountID types.AccountID
	Date      time.Time

	Followers   int64
	Impressions int64
	Reach       int64
	Engagements int64
	Views       int64
	WatchTime   int64
	PostsCount  int64

	// Raw preserves the vendor payload the row was derived from.
	Raw map[string]any
}

// Key returns the composite upsert key (tenant, platform, account, date)
func (m *DailyMetric) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s", m.TenantID, m.Platform, m.AccountID, m.Date.Format(DateFormat))
}

// Post holds one published post and its vendor-specific metric map.
// Re-syncing fully replaces the row keyed by the external post ID.
type Post struct {
	TenantID       types.TenantID
	Platform       types.Platform
	AccountID      types.AccountID
	ExternalPostID string

	PostedAt     time.Time
	Caption      string
	MediaType    string
	MediaURL     string
	ThumbnailURL string

	// Metrics holds vendor counters (likes/comments/shares/saves/views/...).
	Metrics map[string]any
	Raw     map[string]any
}

// Key returns the composite upsert key (tenant, platform, account, external post ID)
func (p *Post) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s", p.TenantID, p.Platform, p.AccountID, p.ExternalPostID)
}

// SyncResult is what a connector returns for one account sync
type SyncResult struct {
	DailyMetrics []*DailyMetric
	Posts        []*Post
}

// RowCount returns the total number of rows the result will upsert
func (r *SyncResult) RowCount() int {
	if r == nil {
		return 0
	}
	return len(r.DailyMetrics) + len(r.Posts)
}
