package upload

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"medscan-desktop/internal/models"
	"medscan-desktop/internal/services/poll"
)

// Submitter sends a validated report payload to the backend and returns
// the job identifier. Implemented by api.Client.
type Submitter interface {
	SubmitReport(ctx context.Context, fileName string, data []byte, typeHint string) (string, error)
}

// Service handles report submission: caller-side validation, the
// single-shot upload, and the local report record. Submission is never
// retried here; resubmission is a caller decision.
type Service struct {
	db        *gorm.DB
	submitter Submitter
}

// NewService creates a new upload service
func NewService(db *gorm.DB, submitter Submitter) *Service {
	return &Service{
		db:        db,
		submitter: submitter,
	}
}

// Submit validates and uploads one report file, records it locally, and
// returns the job for the poll loop to track
func (s *Service) Submit(ctx context.Context, fileName string, data []byte, typeHint string) (poll.Job, error) {
	if err := ValidateFile(fileName, int64(len(data))); err != nil {
		return poll.Job{}, err
	}

	if typeHint == "" {
		typeHint = TypeHintFor(fileName)
	}

	jobID, err := s.submitter.SubmitReport(ctx, fileName, data, typeHint)
	if err != nil {
		return poll.Job{}, fmt.Errorf("submission rejected: %w", err)
	}

	submittedAt := time.Now()
	report := models.Report{
		JobID:       jobID,
		FileName:    fileName,
		FileType:    typeHint,
		SizeBytes:   int64(len(data)),
		Status:      models.ReportStatusSubmitted,
		SubmittedAt: submittedAt,
	}

	// The upload already succeeded; a local bookkeeping failure must
	// not lose the job ID
	if s.db != nil {
		if err := s.db.Create(&report).Error; err != nil {
			log.Printf("WARNING: failed to record report for job %s: %v", jobID, err)
		}
	}

	return poll.Job{ID: jobID, SubmittedAt: submittedAt}, nil
}

// MarkAnalyzing flags the local report row while the poll loop runs
func (s *Service) MarkAnalyzing(jobID string) error {
	if s.db == nil {
		return nil
	}
	return s.db.Model(&models.Report{}).
		Where("job_id = ?", jobID).
		Update("status", models.ReportStatusAnalyzing).Error
}

// MarkTerminal records the poll loop's terminal state on the local
// report row
func (s *Service) MarkTerminal(jobID string, st poll.State) error {
	if s.db == nil {
		return nil
	}

	updates := map[string]interface{}{}

	switch st.Phase {
	case poll.PhaseCompleted:
		now := time.Now()
		updates["status"] = models.ReportStatusCompleted
		updates["completed_at"] = &now
	case poll.PhaseFailed:
		updates["status"] = models.ReportStatusFailed
		updates["error_message"] = st.LastError
	case poll.PhaseTimedOut:
		updates["status"] = models.ReportStatusTimedOut
		updates["error_message"] = st.LastError
	default:
		return fmt.Errorf("not a terminal phase: %s", st.Phase)
	}

	return s.db.Model(&models.Report{}).
		Where("job_id = ?", jobID).
		Updates(updates).Error
}
