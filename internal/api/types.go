package api

import "time"

// SubmitResponse is returned by the report submission endpoint.
type SubmitResponse struct {
	JobID string `json:"job_id"`
}

// JobStatusResponse is the backend's answer to a status query for a
// report-analysis job. Progress is optional; ErrorMessage is only set
// when Status is "failed".
type JobStatusResponse struct {
	Status       string `json:"status"` // processing, completed, failed
	Progress     *int   `json:"progress,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Parameter is one extracted test parameter from an analyzed report
type Parameter struct {
	Name           string `json:"name"`
	Value          string `json:"value"`
	Unit           string `json:"unit,omitempty"`
	ReferenceRange string `json:"reference_range,omitempty"`
	Flag           string `json:"flag,omitempty"` // normal, low, high, critical
	Explanation    string `json:"explanation,omitempty"`
}

// Report is a fully analyzed report with extracted parameters and the
// narrative synthesis
type Report struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Status     string      `json:"status"`
	Parameters []Parameter `json:"parameters"`
	Synthesis  string      `json:"synthesis"`
	CreatedAt  time.Time   `json:"created_at"`
}

// ReportSummary is a list-view projection of a report
type ReportSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Share represents a family-sharing grant for one report
type Share struct {
	ID          string    `json:"id"`
	ReportID    string    `json:"report_id"`
	MemberEmail string    `json:"member_email"`
	Relation    string    `json:"relation,omitempty"` // parent, child, spouse, other
	CreatedAt   time.Time `json:"created_at"`
}

// User is the authenticated account as reported by the backend
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}
