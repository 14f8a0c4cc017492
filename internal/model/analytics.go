package model

import (
	"time"
)

// PageView is one recorded public page view.
type PageView struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Referrer  string    `json:"referrer,omitempty"`
	VisitorID string    `json:"visitor_id,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PageViewInput is posted by the site on navigation.
type PageViewInput struct {
	Path      string `json:"path" validate:"required,max=512,startswith=/"`
	Referrer  string `json:"referrer" validate:"max=1024"`
	VisitorID string `json:"visitor_id" validate:"max=128"`
}

// DayCount is a per-day counter.
type DayCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// PathCount is a per-path counter.
type PathCount struct {
	Path  string `json:"path"`
	Count int64  `json:"count"`
}

// AnalyticsSummary is the admin dashboard payload.
type AnalyticsSummary struct {
	From                  string           `json:"from"`
	To                    string           `json:"to"`
	TotalViews            int64            `json:"total_views"`
	UniqueVisitors        int64            `json:"unique_visitors"`
	ViewsPerDay           []DayCount       `json:"views_per_day"`
	TopPages              []PathCount      `json:"top_pages"`
	BookingsByStatus      map[string]int64 `json:"bookings_by_status"`
	Revenue               float64          `json:"revenue"`
	ConversationsByStatus map[string]int64 `json:"conversations_by_status"`
}
