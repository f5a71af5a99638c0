package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Audit event types recorded locally.
const (
	AuditReportSubmitted = "report_submitted"
	AuditReportCompleted = "report_completed"
	AuditReportFailed    = "report_failed"
	AuditReportTimedOut  = "report_timed_out"
	AuditSignedIn        = "signed_in"
	AuditSignedOut       = "signed_out"
)

// AuditLog records a notable client-side event (submission, terminal
// poll transition, sign-in/out) for troubleshooting and history views.
type AuditLog struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	EventType string    `gorm:"not null;index;column:event_type" json:"event_type"`
	JobID     string    `gorm:"index;column:job_id" json:"job_id,omitempty"`
	Detail    string    `gorm:"type:text" json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate hook to generate UUID before creating record
func (al *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if al.ID == "" {
		al.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for GORM
func (AuditLog) TableName() string {
	return "audit_logs"
}
