package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Report analysis outcomes as stored in the local reports table.
const (
	ReportStatusSubmitted = "submitted"
	ReportStatusAnalyzing = "analyzing"
	ReportStatusCompleted = "completed"
	ReportStatusFailed    = "failed"
	ReportStatusTimedOut  = "timed_out"
)

// Report represents one submitted lab-report analysis tracked locally.
// JobID is the backend's opaque identifier; Status mirrors the last
// terminal (or in-flight) state observed by the poll loop.
type Report struct {
	ID           string     `gorm:"primaryKey" json:"id"`
	JobID        string     `gorm:"uniqueIndex;not null;column:job_id" json:"job_id"`
	FileName     string     `gorm:"not null;column:file_name" json:"file_name"`
	FileType     string     `gorm:"column:file_type" json:"file_type"` // image or pdf
	SizeBytes    int64      `gorm:"column:size_bytes" json:"size_bytes"`
	Status       string     `gorm:"not null;default:submitted" json:"status"`
	ErrorMessage string     `gorm:"column:error_message" json:"error_message,omitempty"`
	Title        string     `json:"title,omitempty"`    // backend-assigned title once analyzed
	Synthesis    string     `gorm:"type:text" json:"synthesis,omitempty"`
	SubmittedAt  time.Time  `gorm:"not null;column:submitted_at" json:"submitted_at"`
	CompletedAt  *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// BeforeCreate hook to generate UUID before creating record
func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for GORM
func (Report) TableName() string {
	return "reports"
}
