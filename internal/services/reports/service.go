package reports

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"medscan-desktop/internal/api"
	"medscan-desktop/internal/models"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// validRelations for family-sharing grants
var validRelations = map[string]bool{
	"parent": true,
	"child":  true,
	"spouse": true,
	"other":  true,
}

// Backend is the API surface this service consumes (api.Client)
type Backend interface {
	ListReports(ctx context.Context) ([]api.ReportSummary, error)
	GetReport(ctx context.Context, reportID string) (*api.Report, error)
	AskAssistant(ctx context.Context, reportID, question string) (string, error)
	ShareReport(ctx context.Context, reportID, memberEmail, relation string) (*api.Share, error)
	RevokeShare(ctx context.Context, shareID string) error
	ListShares(ctx context.Context) ([]api.Share, error)
}

// Service exposes analyzed reports, the chat assistant, and the
// family-sharing graph. Fetched results are mirrored into the local
// reports table so list views keep working offline.
type Service struct {
	db      *gorm.DB
	backend Backend
}

// NewService creates a new reports service
func NewService(db *gorm.DB, backend Backend) *Service {
	return &Service{
		db:      db,
		backend: backend,
	}
}

// List returns the account's reports, falling back to the local cache
// when the backend is unreachable
func (s *Service) List(ctx context.Context) ([]api.ReportSummary, error) {
	summaries, err := s.backend.ListReports(ctx)
	if err == nil {
		return summaries, nil
	}

	log.Printf("WARNING: listing reports from backend failed, serving local cache: %v", err)

	var cached []models.Report
	if dbErr := s.db.Order("submitted_at DESC").Find(&cached).Error; dbErr != nil {
		// Neither source available; surface the backend error
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	summaries = make([]api.ReportSummary, len(cached))
	for i, r := range cached {
		title := r.Title
		if title == "" {
			title = r.FileName
		}
		summaries[i] = api.ReportSummary{
			ID:        r.JobID,
			Title:     title,
			Status:    r.Status,
			CreatedAt: r.SubmittedAt,
		}
	}
	return summaries, nil
}

// Get fetches a fully analyzed report and mirrors its title and
// synthesis onto the local row
func (s *Service) Get(ctx context.Context, reportID string) (*api.Report, error) {
	report, err := s.backend.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}

	if err := s.db.Model(&models.Report{}).
		Where("job_id = ?", reportID).
		Updates(map[string]interface{}{
			"title":     report.Title,
			"synthesis": report.Synthesis,
		}).Error; err != nil {
		log.Printf("WARNING: failed to cache report %s locally: %v", reportID, err)
	}

	return report, nil
}

// Ask sends a chat-assistant question about one report
func (s *Service) Ask(ctx context.Context, reportID, question string) (string, error) {
	if reportID == "" {
		return "", fmt.Errorf("report ID is required")
	}
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("question is required")
	}

	return s.backend.AskAssistant(ctx, reportID, question)
}

// Share grants a family member access to a report
func (s *Service) Share(ctx context.Context, reportID, memberEmail, relation string) (*api.Share, error) {
	if reportID == "" {
		return nil, fmt.Errorf("report ID is required")
	}
	if !emailPattern.MatchString(memberEmail) {
		return nil, fmt.Errorf("invalid member email: %s", memberEmail)
	}

	if relation == "" {
		relation = "other"
	}
	if !validRelations[relation] {
		return nil, fmt.Errorf("invalid relation %q (expected parent, child, spouse, or other)", relation)
	}

	return s.backend.ShareReport(ctx, reportID, memberEmail, relation)
}

// Revoke removes a family-sharing grant
func (s *Service) Revoke(ctx context.Context, shareID string) error {
	if shareID == "" {
		return fmt.Errorf("share ID is required")
	}
	return s.backend.RevokeShare(ctx, shareID)
}

// ListShares lists the account's family-sharing grants
func (s *Service) ListShares(ctx context.Context) ([]api.Share, error) {
	return s.backend.ListShares(ctx)
}
