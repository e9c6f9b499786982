package model

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

type ContentType string

const (
	ContentMedia    ContentType = "media"
	ContentTemplate ContentType = "template"
)

// Schedule pins a piece of content to a display for a time window,
// optionally restricted to a set of weekdays.
type Schedule struct {
	ID          string         `db:"id"           json:"id"`
	DisplayID   string         `db:"display_id"   json:"display_id"`
	ContentType ContentType    `db:"content_type" json:"content_type"`
	ContentID   string         `db:"content_id"   json:"content_id"`
	StartTime   time.Time      `db:"start_time"   json:"start_time"`
	EndTime     *time.Time     `db:"end_time"     json:"end_time"`
	RepeatDays  pq.StringArray `db:"repeat_days"  json:"repeat_days"`
	IsActive    bool           `db:"is_active"    json:"is_active"`
	CreatedAt   time.Time      `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"   json:"updated_at"`
}

// WeekdayName returns the lower-case English weekday of t ("monday".."sunday").
func WeekdayName(t time.Time) string {
	return strings.ToLower(t.Weekday().String())
}

// IsWeekdayName reports whether name is one of "monday".."sunday".
func IsWeekdayName(name string) bool {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == name {
			return true
		}
	}
	return false
}

// RunsOn reports whether the schedule repeats on the weekday of t.
// An empty repeat set means every day.
func (s Schedule) RunsOn(t time.Time) bool {
	if len(s.RepeatDays) == 0 {
		return true
	}
	day := WeekdayName(t)
	for _, d := range s.RepeatDays {
		if strings.ToLower(d) == day {
			return true
		}
	}
	return false
}

// ActiveAt reports whether the schedule is enabled, its window contains t
// and it repeats on t's weekday.
func (s Schedule) ActiveAt(t time.Time) bool {
	if !s.IsActive || s.StartTime.After(t) {
		return false
	}
	if s.EndTime != nil && s.EndTime.Before(t) {
		return false
	}
	return s.RunsOn(t)
}
