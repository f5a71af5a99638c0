package audit

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"medscan-desktop/internal/models"
	"medscan-desktop/internal/services/poll"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "audit_test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.AuditLog{}))
	return db
}

func TestRecordTerminal(t *testing.T) {
	tests := []struct {
		name     string
		state    poll.State
		expected string
		detail   string
	}{
		{
			name:     "completed",
			state:    poll.State{Phase: poll.PhaseCompleted, Progress: 100},
			expected: models.AuditReportCompleted,
		},
		{
			name:     "failed carries the error message",
			state:    poll.State{Phase: poll.PhaseFailed, LastError: "OCR failed"},
			expected: models.AuditReportFailed,
			detail:   "OCR failed",
		},
		{
			name:     "timed out",
			state:    poll.State{Phase: poll.PhaseTimedOut, LastError: "no result after 1m0s"},
			expected: models.AuditReportTimedOut,
			detail:   "no result after 1m0s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testDB(t)
			svc := NewService(db)

			svc.RecordTerminal("job-1", tt.state)

			entries, err := svc.List("", 10)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, tt.expected, entries[0].EventType)
			assert.Equal(t, "job-1", entries[0].JobID)
			assert.Equal(t, tt.detail, entries[0].Detail)
		})
	}

	t.Run("non-terminal states are not recorded", func(t *testing.T) {
		db := testDB(t)
		svc := NewService(db)

		svc.RecordTerminal("job-1", poll.State{Phase: poll.PhasePolling})

		entries, err := svc.List("", 10)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestList(t *testing.T) {
	t.Run("Should filter by event type and honor the limit", func(t *testing.T) {
		db := testDB(t)
		svc := NewService(db)

		svc.Record(models.AuditReportSubmitted, "job-1", "")
		svc.Record(models.AuditReportSubmitted, "job-2", "")
		svc.Record(models.AuditSignedIn, "", "")

		entries, err := svc.List(models.AuditReportSubmitted, 10)
		require.NoError(t, err)
		assert.Len(t, entries, 2)

		entries, err = svc.List("", 1)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}
