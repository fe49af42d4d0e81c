package domain

import (
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

type IncidentStatus string

const (
	StatusOpen       IncidentStatus = "Open"
	StatusInProgress IncidentStatus = "In Progress"
	StatusResolved   IncidentStatus = "Resolved"
	StatusClosed     IncidentStatus = "Closed"
)

// Photo is an object-store attachment owned by its incident. It has no
// lifecycle of its own: replaced or removed together with the record.
type Photo struct {
	URL  string `json:"url"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

type Incident struct {
	ID           uuid.UUID
	Type         string
	Description  string
	Location     *string
	LocationText *string
	Latitude     *float64
	Longitude    *float64
	Severity     Severity
	Status       IncidentStatus
	Date         string
	Time         string
	ReportedBy   *string
	Photos       []Photo
	PhotoURL     *string
	PhotoKey     *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SyncPhotoRefs derives PhotoURL/PhotoKey from Photos[0]. Must be called
// after any change to Photos so the denormalized columns stay consistent.
func (i *Incident) SyncPhotoRefs() {
	if len(i.Photos) == 0 {
		i.PhotoURL = nil
		i.PhotoKey = nil
		return
	}
	url, key := i.Photos[0].URL, i.Photos[0].Key
	i.PhotoURL = &url
	i.PhotoKey = &key
}
