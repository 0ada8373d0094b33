package audit

import (
	"time"

	"github.com/wI2L/jsondiff"
)

// TimelineFilters menampung filter dasar untuk audit timeline.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Actor    string
	Resource string
	Action   string
	Page     int
	PageSize int
}

// TimelineRow is one audit row with the change between old and new values.
type TimelineRow struct {
	ID         string         `json:"id"`
	At         time.Time      `json:"at"`
	TenantID   string         `json:"tenantId,omitempty"`
	Actor      string         `json:"actor"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resourceId,omitempty"`
	IPAddress  string         `json:"ipAddress,omitempty"`
	Changes    jsondiff.Patch `json:"changes,omitempty"`
	Unreadable bool           `json:"unreadable,omitempty"`
}

// PagingInfo menyimpan metadata pagination sederhana.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasNext  bool `json:"hasNext"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}

// Result membungkus hasil timeline dengan informasi paging.
type Result struct {
	Rows   []TimelineRow `json:"rows"`
	Paging PagingInfo    `json:"paging"`
}
