package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/gorm"

	"medscan-desktop/internal/api"
	"medscan-desktop/internal/crypto"
	"medscan-desktop/internal/database"
	"medscan-desktop/internal/models"
	"medscan-desktop/internal/services/audit"
	"medscan-desktop/internal/services/poll"
	"medscan-desktop/internal/services/reports"
	"medscan-desktop/internal/services/scheduler"
	"medscan-desktop/internal/services/session"
	"medscan-desktop/internal/services/upload"
)

const defaultAPIURL = "https://api.medscan.example.com"

// App struct - main application state
type App struct {
	ctx    context.Context
	db     *gorm.DB
	client *api.Client

	sessionManager   *session.Manager
	uploadService    *upload.Service
	reportsService   *reports.Service
	auditService     *audit.Service
	schedulerService *scheduler.Service

	// One poll loop per in-flight job; loops are removed on terminal,
	// and all of them are cancelled on sign-out so no stale screen can
	// receive a terminal callback for a dead session
	loopsMu sync.Mutex
	loops   map[string]*poll.Loop

	authSub *session.Subscription
}

// NewApp creates a new App application struct
func NewApp() *App {
	return &App{
		loops: make(map[string]*poll.Loop),
	}
}

// startup initializes encryption, the database, and all services. The
// context is saved so background work can be tied to the app lifetime.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	log.Println("Application starting up...")

	// Initialize encryption (FATAL if this fails - we cannot store the session token without it)
	if err := crypto.InitEncryption(); err != nil {
		log.Fatalf("FATAL: Encryption initialization failed: %v\nSessions cannot be stored without encryption.", err)
	}
	log.Println("Encryption initialized successfully")

	// Initialize database
	db, err := database.Init()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	a.db = db
	log.Println("Database initialized successfully")

	baseURL := os.Getenv("MEDSCAN_API_URL")
	if baseURL == "" {
		baseURL = defaultAPIURL
	}
	a.client = api.NewClient(baseURL)

	// Initialize services
	a.sessionManager = session.NewManager(db, a.client)
	log.Println("Session manager initialized")

	a.uploadService = upload.NewService(db, a.client)
	log.Println("Upload service initialized")

	a.reportsService = reports.NewService(db, a.client)
	log.Println("Reports service initialized")

	a.auditService = audit.NewService(db)
	log.Println("Audit service initialized")

	a.schedulerService = scheduler.NewService(db, a.auditService)
	if err := a.schedulerService.Start(); err != nil {
		log.Printf("WARNING: Failed to start scheduler: %v", err)
	} else {
		log.Println("Scheduler service initialized and started")
	}

	// Sign-out tears down every in-flight poll loop
	a.authSub = a.sessionManager.Subscribe(func(event session.Event) {
		if event == session.EventSignedOut {
			a.cancelAllTracking()
		}
	})

	log.Println("Startup complete")
}

// shutdown is called when the app is closing
func (a *App) shutdown() {
	log.Println("Application shutting down...")

	if a.authSub != nil {
		a.authSub.Cancel()
	}

	a.cancelAllTracking()

	if a.schedulerService != nil {
		a.schedulerService.Stop()
	}

	if err := database.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}

	log.Println("Shutdown complete")
}

// Resolve runs the startup session check
func (a *App) Resolve() (*session.Resolution, error) {
	return a.sessionManager.Resolve(a.ctx)
}

// SignIn installs a backend-issued session token
func (a *App) SignIn(token string) error {
	if err := a.sessionManager.SignIn(token, nil); err != nil {
		return err
	}
	a.auditService.Record(models.AuditSignedIn, "", "")
	return nil
}

// SignOut clears the session and all durable navigation state
func (a *App) SignOut() error {
	if err := a.sessionManager.SignOut(); err != nil {
		return err
	}
	a.auditService.Record(models.AuditSignedOut, "", "")
	return nil
}

// SubmitAndTrack submits a report file and starts a poll loop for it.
// The returned job ID keys later CancelTracking / TrackingState calls.
func (a *App) SubmitAndTrack(path string, onTerminal func(jobID string, st poll.State)) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	job, err := a.uploadService.Submit(a.ctx, filepath.Base(path), data, "")
	if err != nil {
		return "", err
	}

	a.auditService.Record(models.AuditReportSubmitted, job.ID, filepath.Base(path))

	if err := a.uploadService.MarkAnalyzing(job.ID); err != nil {
		log.Printf("WARNING: failed to mark job %s analyzing: %v", job.ID, err)
	}

	loop := poll.New(&statusSource{client: a.client}, pollConfigFromEnv())

	a.loopsMu.Lock()
	a.loops[job.ID] = loop
	a.loopsMu.Unlock()

	err = loop.Start(job, func(st poll.State) {
		a.loopsMu.Lock()
		delete(a.loops, job.ID)
		a.loopsMu.Unlock()

		if err := a.uploadService.MarkTerminal(job.ID, st); err != nil {
			log.Printf("WARNING: failed to record terminal state for job %s: %v", job.ID, err)
		}
		a.auditService.RecordTerminal(job.ID, st)

		if onTerminal != nil {
			onTerminal(job.ID, st)
		}
	})
	if err != nil {
		return "", err
	}

	return job.ID, nil
}

// CancelTracking abandons the poll loop for one job (e.g., the user
// navigated away). The submitted job keeps running server-side.
func (a *App) CancelTracking(jobID string) {
	a.loopsMu.Lock()
	loop, exists := a.loops[jobID]
	if exists {
		delete(a.loops, jobID)
	}
	a.loopsMu.Unlock()

	if exists {
		loop.Cancel()
	}
}

// TrackingState returns the observable poll state for an in-flight job
func (a *App) TrackingState(jobID string) (poll.State, error) {
	a.loopsMu.Lock()
	loop, exists := a.loops[jobID]
	a.loopsMu.Unlock()

	if !exists {
		return poll.State{}, fmt.Errorf("no tracked job: %s", jobID)
	}
	return loop.State(), nil
}

func (a *App) cancelAllTracking() {
	a.loopsMu.Lock()
	loops := a.loops
	a.loops = make(map[string]*poll.Loop)
	a.loopsMu.Unlock()

	for jobID, loop := range loops {
		log.Printf("Cancelling poll loop for job %s", jobID)
		loop.Cancel()
	}
}

// statusSource adapts api.Client to poll.StatusSource
type statusSource struct {
	client *api.Client
}

func (s *statusSource) JobStatus(ctx context.Context, jobID string) (*poll.Snapshot, error) {
	status, err := s.client.JobStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &poll.Snapshot{
		Status:       status.Status,
		Progress:     status.Progress,
		ErrorMessage: status.ErrorMessage,
	}, nil
}

// pollConfigFromEnv builds the loop config, with env overrides for the
// tuning knobs
func pollConfigFromEnv() poll.Config {
	return poll.Config{
		Interval:          getEnvDuration("POLL_INTERVAL", 0),
		Timeout:           getEnvDuration("POLL_TIMEOUT", 0),
		EstimatedDuration: getEnvDuration("POLL_ESTIMATED_DURATION", 0),
	}
}

// getEnvDuration retrieves a duration from environment variable with default fallback
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultValue
}
