package scheduler

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"medscan-desktop/internal/models"
	"medscan-desktop/internal/services/audit"
)

// Service runs recurring maintenance jobs on a cron schedule. The only
// built-in job type is retention cleanup: pruning terminal report rows
// and old audit entries so the local database does not grow without
// bound.
type Service struct {
	db   *gorm.DB
	cron *cron.Cron

	jobsMu sync.RWMutex
	jobs   map[string]cron.EntryID // jobID -> cron entry ID

	auditService *audit.Service
}

// NewService creates a new scheduler service
func NewService(db *gorm.DB, auditService *audit.Service) *Service {
	// Cron scheduler with seconds support
	c := cron.New(cron.WithSeconds())

	return &Service{
		db:           db,
		cron:         c,
		jobs:         make(map[string]cron.EntryID),
		auditService: auditService,
	}
}

// Start loads enabled jobs from the database (seeding the default
// retention job on first launch) and starts the cron scheduler
func (s *Service) Start() error {
	log.Println("Starting scheduler...")

	if err := s.ensureDefaultJobs(); err != nil {
		return fmt.Errorf("failed to seed default jobs: %w", err)
	}

	s.cron.Start()

	var jobs []models.ScheduledJob
	if err := s.db.Where("enabled = ?", true).Find(&jobs).Error; err != nil {
		return fmt.Errorf("failed to load scheduled jobs: %w", err)
	}

	for _, job := range jobs {
		if err := s.scheduleJob(&job); err != nil {
			log.Printf("WARNING: Failed to schedule job %s (%s): %v", job.Name, job.ID, err)
		} else {
			log.Printf("Scheduled job: %s (%s) with cron: %s", job.Name, job.ID, job.Cron)
		}
	}

	log.Printf("Scheduler started with %d enabled jobs", len(jobs))
	return nil
}

// Stop gracefully stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		log.Println("Scheduler stopped")
	}
}

// ListJobs retrieves all scheduled jobs
func (s *Service) ListJobs() ([]JobListResponse, error) {
	var jobs []models.ScheduledJob
	if err := s.db.Order("created_at DESC").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	responses := make([]JobListResponse, len(jobs))
	for i, job := range jobs {
		responses[i] = s.toJobListResponse(&job)
	}

	return responses, nil
}

// RunRetentionNow executes the retention job immediately with the
// given payload, outside the cron schedule
func (s *Service) RunRetentionNow(payload RetentionPayload) RetentionStats {
	return s.runRetention(payload)
}

// ensureDefaultJobs seeds the nightly retention job on first launch
func (s *Service) ensureDefaultJobs() error {
	var count int64
	if err := s.db.Model(&models.ScheduledJob{}).
		Where("job_type = ?", JobTypeRetention).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	payload, _ := json.Marshal(RetentionPayload{
		ReportDays: defaultReportRetentionDays,
		AuditDays:  defaultAuditRetentionDays,
	})

	job := models.ScheduledJob{
		Name:    "nightly-retention",
		JobType: JobTypeRetention,
		Cron:    DefaultRetentionCron,
		Payload: string(payload),
		Enabled: true,
	}
	return s.db.Create(&job).Error
}

// scheduleJob registers one job with the cron scheduler
func (s *Service) scheduleJob(job *models.ScheduledJob) error {
	if job.JobType != JobTypeRetention {
		return fmt.Errorf("unknown job type: %s", job.JobType)
	}

	normalized, err := normalizeCron(job.Cron)
	if err != nil {
		return err
	}

	var payload RetentionPayload
	if job.Payload != "" {
		if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
			return fmt.Errorf("invalid retention payload: %w", err)
		}
	}

	jobID := job.ID
	entryID, err := s.cron.AddFunc(normalized, func() {
		stats := s.runRetention(payload)
		log.Printf("Retention job %s removed %d reports, %d audit entries",
			jobID, stats.ReportsDeleted, stats.AuditDeleted)

		now := time.Now()
		if err := s.db.Model(&models.ScheduledJob{}).
			Where("id = ?", jobID).
			Update("last_run_at", &now).Error; err != nil {
			log.Printf("WARNING: failed to update last_run_at for job %s: %v", jobID, err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to register cron entry: %w", err)
	}

	s.jobsMu.Lock()
	s.jobs[job.ID] = entryID
	s.jobsMu.Unlock()
	return nil
}

// runRetention prunes terminal reports and old audit entries
func (s *Service) runRetention(payload RetentionPayload) RetentionStats {
	reportDays := payload.ReportDays
	if reportDays <= 0 {
		reportDays = defaultReportRetentionDays
	}
	auditDays := payload.AuditDays
	if auditDays <= 0 {
		auditDays = defaultAuditRetentionDays
	}

	now := time.Now()
	stats := RetentionStats{RanAt: now}

	// Only terminal reports are prunable; an in-flight job's record
	// must survive until its loop resolves
	reportCutoff := now.AddDate(0, 0, -reportDays)
	result := s.db.Where("status IN ? AND submitted_at < ?",
		[]string{models.ReportStatusCompleted, models.ReportStatusFailed, models.ReportStatusTimedOut},
		reportCutoff).
		Delete(&models.Report{})
	if result.Error != nil {
		log.Printf("WARNING: report retention failed: %v", result.Error)
	} else {
		stats.ReportsDeleted = result.RowsAffected
	}

	if s.auditService != nil {
		deleted, err := s.auditService.PruneBefore(now.AddDate(0, 0, -auditDays))
		if err != nil {
			log.Printf("WARNING: audit retention failed: %v", err)
		} else {
			stats.AuditDeleted = deleted
		}
	}

	return stats
}

func (s *Service) toJobListResponse(job *models.ScheduledJob) JobListResponse {
	resp := JobListResponse{
		ID:        job.ID,
		Name:      job.Name,
		JobType:   job.JobType,
		Cron:      job.Cron,
		Timezone:  job.Timezone,
		Enabled:   job.Enabled,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
	}

	if job.LastRunAt != nil {
		v := job.LastRunAt.Format(time.RFC3339)
		resp.LastRunAt = &v
	}

	s.jobsMu.RLock()
	entryID, scheduled := s.jobs[job.ID]
	s.jobsMu.RUnlock()
	if scheduled {
		next := s.cron.Entry(entryID).Next
		if !next.IsZero() {
			v := next.Format(time.RFC3339)
			resp.NextRun = &v
		}
	}

	return resp
}

// normalizeCron accepts both standard 5-field expressions and 6-field
// expressions with seconds; 5-field input gets a leading "0" so it
// parses under cron.WithSeconds
func normalizeCron(expr string) (string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "", fmt.Errorf("cron expression is required")
	}

	fields := strings.Fields(expr)
	switch len(fields) {
	case 5:
		expr = "0 " + strings.Join(fields, " ")
	case 6:
		// already has seconds
	default:
		return "", fmt.Errorf("cron expression must have 5 or 6 fields, got %d", len(fields))
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(expr); err != nil {
		return "", fmt.Errorf("invalid cron expression: %w", err)
	}

	return expr, nil
}
