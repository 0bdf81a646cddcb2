package transport

import "time"

// CreateEventBody represents the request to schedule an event
type CreateEventBody struct {
	Title string `json:"title" binding:"required,min=1,max=128"`
	// HostName is the display name put in the host's token
	HostName    string    `json:"hostName" binding:"required,displayname"`
	ScheduledAt time.Time `json:"scheduledAt"`
}

// EventURI represents the event ID carried in the path
type EventURI struct {
	// EventID: 3-64 characters (letters, numbers, hyphens, underscores) - required
	EventID string `uri:"eventId" binding:"required,eventid"`
}

// SetStatusBody represents the request body for a lifecycle transition
type SetStatusBody struct {
	// Status: not_started, live or completed
	Status string `json:"status" binding:"required,eventstatus"`
}

// IssueTokenBody represents the request body for joining an event
type IssueTokenBody struct {
	DisplayName string `json:"displayName" binding:"required,displayname"`
}
