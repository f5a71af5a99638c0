package scheduler

import "time"

// JobTypeRetention prunes old local records
const JobTypeRetention = "retention"

// DefaultRetentionCron runs nightly at 03:00 (6-field, with seconds)
const DefaultRetentionCron = "0 0 3 * * *"

// RetentionPayload configures a retention job. Zero values fall back
// to the defaults below.
type RetentionPayload struct {
	ReportDays int `json:"report_days"` // terminal reports older than this are pruned
	AuditDays  int `json:"audit_days"`  // audit entries older than this are pruned
}

const (
	defaultReportRetentionDays = 90
	defaultAuditRetentionDays  = 30
)

// JobListResponse represents a scheduled job in list responses
type JobListResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	JobType   string  `json:"job_type"`
	Cron      string  `json:"cron"`
	Timezone  string  `json:"timezone"`
	Enabled   bool    `json:"enabled"`
	LastRunAt *string `json:"last_run_at"` // ISO 8601 format
	NextRun   *string `json:"next_run"`    // ISO 8601 format
	CreatedAt string  `json:"created_at"`
}

// RetentionStats captures what one retention run removed
type RetentionStats struct {
	ReportsDeleted int64     `json:"reports_deleted"`
	AuditDeleted   int64     `json:"audit_deleted"`
	RanAt          time.Time `json:"ran_at"`
}
