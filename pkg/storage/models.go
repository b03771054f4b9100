// Package storage persists synced B2Chat data in MySQL via GORM.
package storage

import (
	"time"
)

// Contact is a synced contact row. The external contact_id is the upsert
// key; rows are rewritten on every sync so the table mirrors the platform.
type Contact struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	ContactID      int64  `gorm:"uniqueIndex;not null"`
	Fullname       string `gorm:"size:255;not null"`
	Mobile         string `gorm:"size:64;index"`
	Phone          string `gorm:"size:64"`
	Email          string `gorm:"size:255;index"`
	Identification string `gorm:"size:64"`
	City           string `gorm:"size:128"`
	Country        string `gorm:"size:128"`
	Company        string `gorm:"size:255"`

	// Raw is the upstream payload as received, for fields the schema does
	// not model.
	Raw []byte `gorm:"type:json"`

	SourceUpdatedAt *time.Time
}

// Chat is a synced conversation row.
type Chat struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	ChatID        string `gorm:"size:64;uniqueIndex;not null"`
	Status        string `gorm:"size:32;index"`
	Channel       string `gorm:"size:32;index"`
	Priority      string `gorm:"size:16;index"`
	AgentUsername string `gorm:"size:128;index"`
	ContactID     int64  `gorm:"index"`

	// Lifecycle timestamps as reported upstream. OpenedAt is agent pickup.
	StartedAt *time.Time `gorm:"index"`
	OpenedAt  *time.Time
	ClosedAt  *time.Time

	DurationSeconds int64

	Raw []byte `gorm:"type:json"`
}

// Sync run statuses.
const (
	SyncRunRunning   = "running"
	SyncRunSucceeded = "succeeded"
	SyncRunFailed    = "failed"
)

// SyncRun records one sync invocation for auditing and incremental windows.
type SyncRun struct {
	ID         string `gorm:"primaryKey;size:36"`
	Resource   string `gorm:"size:16;index;not null"`
	Status     string `gorm:"size:16;index;not null"`
	StartedAt  time.Time
	FinishedAt *time.Time

	Pages    int
	Records  int
	Failures int

	// Error holds the terminal failure message, if any.
	Error string `gorm:"size:1024"`
}
