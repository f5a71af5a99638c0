package models

import (
	"time"
)

// AppState persists the last-visited screen and tab so the UI can be
// restored across launches. A single row (ID = 1) is ever stored; the
// session token itself lives encrypted in session_token_enc and is
// never exposed in JSON.
type AppState struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	LastScreen      string    `gorm:"column:last_screen" json:"last_screen"`
	LastTab         string    `gorm:"column:last_tab" json:"last_tab"`
	SessionTokenEnc string    `gorm:"column:session_token_enc" json:"-"` // Encrypted, never expose in JSON
	TokenExpiresAt  *time.Time `gorm:"column:token_expires_at" json:"token_expires_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (AppState) TableName() string {
	return "app_state"
}
