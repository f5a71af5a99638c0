package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client represents a MedScan backend API client. All calls go through
// the authenticated request channel: the session token is attached as a
// bearer header and can be swapped at runtime after sign-in.
type Client struct {
	baseURL string
	http    *resty.Client
	tokenMu sync.RWMutex
	token   string
}

// NewClient creates a new MedScan API client
func NewClient(baseURL string) *Client {
	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
	}

	// Configure resty client
	client.http = resty.New().
		SetHeader("User-Agent", "medscan-desktop/1.0").
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Retry on 429 (Too Many Requests) and 5xx server errors
			return r.StatusCode() == 429 || (r.StatusCode() >= 500 && r.StatusCode() <= 504)
		})

	return client
}

// SetToken installs the session token used for subsequent requests
func (c *Client) SetToken(token string) {
	c.tokenMu.Lock()
	c.token = token
	c.tokenMu.Unlock()
}

// SetTimeout allows customizing the timeout for specific operations
func (c *Client) SetTimeout(timeout time.Duration) {
	c.http.SetTimeout(timeout)
}

// SubmitReport uploads a report file (image or PDF) for analysis and
// returns the backend job ID. Submission is single-shot: the caller
// decides whether to resubmit on failure.
func (c *Client) SubmitReport(ctx context.Context, fileName string, data []byte, typeHint string) (string, error) {
	req := c.request(ctx).
		SetFileReader("file", fileName, bytes.NewReader(data))

	if typeHint != "" {
		req.SetFormData(map[string]string{"type_hint": typeHint})
	}

	resp, err := req.Post(c.buildURL("api/reports"))
	if err != nil {
		return "", fmt.Errorf("failed to submit report: %w", err)
	}
	if resp.IsError() {
		return "", c.statusError(resp)
	}

	var result SubmitResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return "", fmt.Errorf("failed to parse submit response: %w", err)
	}
	if result.JobID == "" {
		return "", fmt.Errorf("submit response missing job_id")
	}

	return result.JobID, nil
}

// JobStatus queries the processing status of a report-analysis job.
// Transport failures come back as plain errors (transient); HTTP error
// statuses come back as *StatusError so callers can tell fatal from
// transient via Fatal().
func (c *Client) JobStatus(ctx context.Context, jobID string) (*JobStatusResponse, error) {
	resp, err := c.request(ctx).Get(c.buildURL(fmt.Sprintf("api/reports/%s/status", jobID)))
	if err != nil {
		return nil, fmt.Errorf("status query failed: %w", err)
	}
	if resp.IsError() {
		return nil, c.statusError(resp)
	}

	var result JobStatusResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse status response: %w", err)
	}

	return &result, nil
}

// GetReport retrieves an analyzed report with parameters and synthesis
func (c *Client) GetReport(ctx context.Context, reportID string) (*Report, error) {
	resp, err := c.request(ctx).Get(c.buildURL(fmt.Sprintf("api/reports/%s", reportID)))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch report: %w", err)
	}
	if resp.IsError() {
		return nil, c.statusError(resp)
	}

	var report Report
	if err := json.Unmarshal(resp.Body(), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// ListReports lists the account's analyzed reports
func (c *Client) ListReports(ctx context.Context) ([]ReportSummary, error) {
	resp, err := c.request(ctx).Get(c.buildURL("api/reports"))
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	if resp.IsError() {
		return nil, c.statusError(resp)
	}

	var result struct {
		Reports []ReportSummary `json:"reports"`
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse reports response: %w", err)
	}

	return result.Reports, nil
}

// AskAssistant sends a chat question about a report and returns the answer
func (c *Client) AskAssistant(ctx context.Context, reportID, question string) (string, error) {
	payload := map[string]string{
		"report_id": reportID,
		"question":  question,
	}

	resp, err := c.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(c.buildURL("api/assistant/ask"))
	if err != nil {
		return "", fmt.Errorf("assistant request failed: %w", err)
	}
	if resp.IsError() {
		return "", c.statusError(resp)
	}

	var result struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return "", fmt.Errorf("failed to parse assistant response: %w", err)
	}

	return result.Answer, nil
}

// ShareReport grants a family member access to one report
func (c *Client) ShareReport(ctx context.Context, reportID, memberEmail, relation string) (*Share, error) {
	payload := map[string]string{
		"report_id":    reportID,
		"member_email": memberEmail,
		"relation":     relation,
	}

	resp, err := c.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(c.buildURL("api/shares"))
	if err != nil {
		return nil, fmt.Errorf("failed to share report: %w", err)
	}
	if resp.IsError() {
		return nil, c.statusError(resp)
	}

	var share Share
	if err := json.Unmarshal(resp.Body(), &share); err != nil {
		return nil, fmt.Errorf("failed to parse share response: %w", err)
	}

	return &share, nil
}

// RevokeShare removes a family-sharing grant
func (c *Client) RevokeShare(ctx context.Context, shareID string) error {
	resp, err := c.request(ctx).Delete(c.buildURL(fmt.Sprintf("api/shares/%s", shareID)))
	if err != nil {
		return fmt.Errorf("failed to revoke share: %w", err)
	}
	if resp.IsError() {
		return c.statusError(resp)
	}
	return nil
}

// ListShares lists the account's family-sharing grants
func (c *Client) ListShares(ctx context.Context) ([]Share, error) {
	resp, err := c.request(ctx).Get(c.buildURL("api/shares"))
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}
	if resp.IsError() {
		return nil, c.statusError(resp)
	}

	var result struct {
		Shares []Share `json:"shares"`
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse shares response: %w", err)
	}

	return result.Shares, nil
}

// Me validates the current session token and returns the account
func (c *Client) Me(ctx context.Context) (*User, error) {
	resp, err := c.request(ctx).Get(c.buildURL("api/auth/me"))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account: %w", err)
	}
	if resp.IsError() {
		return nil, c.statusError(resp)
	}

	var user User
	if err := json.Unmarshal(resp.Body(), &user); err != nil {
		return nil, fmt.Errorf("failed to parse account response: %w", err)
	}

	return &user, nil
}

// request builds a resty request with the current bearer token attached
func (c *Client) request(ctx context.Context) *resty.Request {
	c.tokenMu.RLock()
	token := c.token
	c.tokenMu.RUnlock()

	req := c.http.R().SetContext(ctx)
	if token != "" {
		req.SetAuthToken(token)
	}
	return req
}

// statusError converts an HTTP error response into a *StatusError,
// pulling the backend's error message out of the body when present
func (c *Client) statusError(resp *resty.Response) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	message := ""
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		message = body.Error
		if message == "" {
			message = body.Message
		}
	}
	if message == "" {
		message = resp.Status()
	}

	return &StatusError{
		StatusCode: resp.StatusCode(),
		Message:    message,
	}
}

// buildURL constructs the full URL for an endpoint
func (c *Client) buildURL(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "/")
	return fmt.Sprintf("%s/%s", c.baseURL, endpoint)
}
