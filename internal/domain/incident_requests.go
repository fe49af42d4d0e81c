package domain

import "io"

// Upload is one multipart file accepted by the photo gate, ready to be
// pushed to the object store.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

type CreateIncidentRequest struct {
	Type         string   `json:"type" validate:"required,max=255"`
	Description  string   `json:"description" validate:"required"`
	Severity     Severity `json:"severity" validate:"required,severity"`
	Location     *string  `json:"location" validate:"omitempty,max=255"`
	LocationText *string  `json:"locationText" validate:"omitempty,max=500"`
	Latitude     *float64 `json:"latitude" validate:"omitempty,lat"`
	Longitude    *float64 `json:"longitude" validate:"omitempty,lng"`
	Date         *string  `json:"date"`
	Time         *string  `json:"time"`
	ReportedBy   *string  `json:"reportedBy" validate:"omitempty,max=255"`
}

type UpdateIncidentRequest struct {
	Type         *string         `json:"type" validate:"omitempty,max=255"`
	Description  *string         `json:"description"`
	Severity     *Severity       `json:"severity" validate:"omitempty,severity"`
	Status       *IncidentStatus `json:"status" validate:"omitempty,incident_status"`
	Location     *string         `json:"location" validate:"omitempty,max=255"`
	LocationText *string         `json:"locationText" validate:"omitempty,max=500"`
	Latitude     *float64        `json:"latitude" validate:"omitempty,lat"`
	Longitude    *float64        `json:"longitude" validate:"omitempty,lng"`
	Date         *string         `json:"date"`
	Time         *string         `json:"time"`
	ReportedBy   *string         `json:"reportedBy" validate:"omitempty,max=255"`
}

type ListIncidentsRequest struct {
	Severity  string `json:"severity"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Search    string `json:"search"`
	SortBy    string `json:"sort_by"`
	SortOrder string `json:"sort_order"`
	Page      int    `json:"page"`
	PerPage   int    `json:"per_page"`
}
