package model

import "time"

// DisplayStatus is the last observed state of a terminal.
type DisplayStatus string

const (
	StatusOnline  DisplayStatus = "online"
	StatusOffline DisplayStatus = "offline"
	StatusError   DisplayStatus = "error"
)

// Display represents an LED terminal registered by a user.
type Display struct {
	ID             string        `db:"id"                json:"id"`
	UserID         string        `db:"user_id"           json:"user_id"`
	DisplayName    string        `db:"display_name"      json:"display_name"`
	TerminalID     string        `db:"vnnox_terminal_id" json:"vnnox_terminal_id"`
	TerminalSecret string        `db:"vnnox_secret"      json:"-"`
	Location       *string       `db:"location"          json:"location"`
	Status         DisplayStatus `db:"status"            json:"status"`
	LastSeen       *time.Time    `db:"last_seen"         json:"last_seen"`
	CreatedAt      time.Time     `db:"created_at"        json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at"        json:"updated_at"`
}

// StatusUpdate is one observation written by the monitor. It is cached and
// broadcast to dashboards after the status has been persisted.
type StatusUpdate struct {
	DisplayID string        `json:"display_id"`
	Status    DisplayStatus `json:"status"`
	LastSeen  *time.Time    `json:"last_seen"`
	CheckedAt time.Time     `json:"checked_at"`
}
