package casework

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ReportStatus is the lifecycle state of a crime report.
type ReportStatus string

const (
	StatusUnassigned ReportStatus = "unassigned"
	StatusInProgress ReportStatus = "in_progress"
	StatusResolved   ReportStatus = "resolved"
	StatusClosed     ReportStatus = "closed"
)

func (s ReportStatus) Valid() bool {
	switch s {
	case StatusUnassigned, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// CrimeReport is a complaint filed with the station. Reports are created by
// the intake flow; this service only assigns them.
type CrimeReport struct {
	ID                 uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	CrimeType          string       `gorm:"index" json:"crime_type"`
	Description        string       `json:"description,omitempty"`
	ComplainantName    string       `json:"complainant_name,omitempty"`
	ComplainantContact string       `json:"complainant_contact,omitempty"`
	Latitude           *float64     `json:"latitude,omitempty"`
	Longitude          *float64     `json:"longitude,omitempty"`
	Location           string       `json:"location,omitempty"` // WKT as stored by the intake app
	AssignedOfficer    *uuid.UUID   `gorm:"type:uuid;index" json:"assigned_officer"`
	CurrentStatus      ReportStatus `gorm:"not null;default:'unassigned';index" json:"current_status"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

func (CrimeReport) TableName() string { return "crime_reports" }

func (r *CrimeReport) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CurrentStatus == "" {
		r.CurrentStatus = StatusUnassigned
	}
	return nil
}

// Officer is a station officer with a bounded case load.
type Officer struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `json:"name"`
	BadgeNumber string    `gorm:"uniqueIndex" json:"badge_number"`
	Rank        string    `json:"rank,omitempty"`
	ActiveCases int       `gorm:"not null;default:0" json:"active_cases"`
	MaxCases    int       `gorm:"not null;default:5" json:"max_cases"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Officer) TableName() string { return "police_officers" }

func (o *Officer) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// HasCapacity reports whether one more case fits under MaxCases.
func (o Officer) HasCapacity() bool { return o.ActiveCases < o.MaxCases }

func (o Officer) Available() int {
	if n := o.MaxCases - o.ActiveCases; n > 0 {
		return n
	}
	return 0
}

// EvidenceKind groups evidence for the gallery.
type EvidenceKind string

const (
	EvidenceImage    EvidenceKind = "image"
	EvidenceDocument EvidenceKind = "document"
	EvidenceVideo    EvidenceKind = "video"
)

// Evidence is a file attached to a report. The file itself lives in object
// storage; only its URL and metadata are kept here.
type Evidence struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ReportID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"report_id"`
	Kind         EvidenceKind   `gorm:"not null" json:"kind"`
	Title        string         `gorm:"not null" json:"title"`
	URL          string         `gorm:"not null" json:"url"`
	ThumbnailURL string         `json:"thumbnail_url"`
	Tags         pq.StringArray `gorm:"type:text[]" json:"tags"`
	Metadata     string         `json:"metadata,omitempty"`
	CapturedAt   *time.Time     `json:"captured_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (Evidence) TableName() string { return "evidence_items" }

func (e *Evidence) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Assignment is the outcome of a successful AssignCase.
type Assignment struct {
	ReportID    uuid.UUID
	OfficerID   uuid.UUID
	ActiveCases int
	MaxCases    int
}
