package audit

import (
	"log"
	"time"

	"gorm.io/gorm"

	"medscan-desktop/internal/models"
	"medscan-desktop/internal/services/poll"
)

// Service keeps a local audit trail of notable client events:
// submissions, terminal poll transitions, sign-in/out. Entries feed the
// history view and troubleshooting; recording never fails a caller.
type Service struct {
	db *gorm.DB
}

// NewService creates a new audit service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Record writes one audit entry. Failures are logged and swallowed so
// audit bookkeeping can never break the operation being audited.
func (s *Service) Record(eventType, jobID, detail string) {
	entry := models.AuditLog{
		EventType: eventType,
		JobID:     jobID,
		Detail:    detail,
	}

	if err := s.db.Create(&entry).Error; err != nil {
		log.Printf("WARNING: failed to record audit event %s: %v", eventType, err)
	}
}

// RecordTerminal maps a poll loop terminal state to its audit event
func (s *Service) RecordTerminal(jobID string, st poll.State) {
	switch st.Phase {
	case poll.PhaseCompleted:
		s.Record(models.AuditReportCompleted, jobID, "")
	case poll.PhaseFailed:
		s.Record(models.AuditReportFailed, jobID, st.LastError)
	case poll.PhaseTimedOut:
		s.Record(models.AuditReportTimedOut, jobID, st.LastError)
	}
}

// List returns the most recent entries, newest first, optionally
// filtered by event type
func (s *Service) List(eventType string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}

	query := s.db.Order("created_at DESC").Limit(limit)
	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}

	var entries []models.AuditLog
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// PruneBefore deletes entries older than the cutoff and returns the
// number removed. Called by the retention scheduler.
func (s *Service) PruneBefore(cutoff time.Time) (int64, error) {
	result := s.db.Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	return result.RowsAffected, result.Error
}
