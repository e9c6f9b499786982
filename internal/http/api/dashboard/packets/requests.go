package packets

import "time"

type CreateDisplayRequest struct {
	DisplayName     string  `json:"displayName" binding:"required"`
	VnnoxTerminalID string  `json:"vnnoxTerminalId" binding:"required"`
	VnnoxSecret     string  `json:"vnnoxSecret"`
	Location        *string `json:"location"`
}

type UpdateDisplayRequest struct {
	DisplayName *string `json:"displayName"`
	Location    *string `json:"location"`
}

type BrightnessRequest struct {
	Brightness *int `json:"brightness" binding:"required"`
}

type VolumeRequest struct {
	Volume *int `json:"volume" binding:"required"`
}

type PowerRequest struct {
	Power *bool `json:"power" binding:"required"`
}

type CreateScheduleRequest struct {
	DisplayID   string     `json:"displayId" binding:"required"`
	ContentType string     `json:"contentType" binding:"required"`
	ContentID   string     `json:"contentId" binding:"required"`
	StartTime   time.Time  `json:"startTime" binding:"required"`
	EndTime     *time.Time `json:"endTime"`
	RepeatDays  []string   `json:"repeatDays"`
}

// UpdateScheduleRequest leaves absent fields unchanged. ClearEndTime drops
// the end of the window.
type UpdateScheduleRequest struct {
	StartTime    *time.Time `json:"startTime"`
	EndTime      *time.Time `json:"endTime"`
	ClearEndTime bool       `json:"clearEndTime"`
	RepeatDays   []string   `json:"repeatDays"`
	IsActive     *bool      `json:"isActive"`
}
