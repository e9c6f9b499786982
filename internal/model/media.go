package model

import "time"

// Media is an uploaded image or video owned by a user.
type Media struct {
	ID           string    `db:"id"            json:"id"`
	UserID       string    `db:"user_id"       json:"user_id"`
	FileName     string    `db:"file_name"     json:"file_name"`
	FileURL      string    `db:"file_url"      json:"file_url"`
	StorageKey   string    `db:"storage_key"   json:"-"`
	FileSize     int64     `db:"file_size"     json:"file_size"`
	MimeType     string    `db:"mime_type"     json:"mime_type"`
	Width        *int      `db:"width"         json:"width"`
	Height       *int      `db:"height"        json:"height"`
	Duration     *float64  `db:"duration"      json:"duration"`
	ThumbnailURL *string   `db:"thumbnail_url" json:"thumbnail_url"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
}
