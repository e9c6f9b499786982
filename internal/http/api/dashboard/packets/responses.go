package packets

import (
	"github.com/Nixie-Tech-LLC/ledmanager/internal/model"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/vnnox"
)

// DisplayDetailResponse is a display plus what is known about it right now.
type DisplayDetailResponse struct {
	model.Display
	RealTimeStatus *vnnox.TerminalStatus `json:"realTimeStatus,omitempty"`
	CachedStatus   *model.StatusUpdate   `json:"cachedStatus,omitempty"`
	Monitoring     bool                  `json:"monitoring"`
}

type PublishResponse struct {
	Success       bool                               `json:"success"`
	VnnoxResponse vnnox.Envelope[vnnox.UploadResult] `json:"vnnoxResponse"`
}

type SubscribeResponse struct {
	Monitoring int             `json:"monitoring"`
	Displays   []model.Display `json:"displays"`
}

type MonitoringResponse struct {
	DisplayID  string              `json:"displayId"`
	Monitoring bool                `json:"monitoring"`
	Status     model.DisplayStatus `json:"status,omitempty"`
}
