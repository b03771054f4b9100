package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/PedroPJaramillo/b2chat-analytics-sub003/pkg/b2chat"
)

// Open connects to MySQL and migrates the schema.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	if err := db.AutoMigrate(&Contact{}, &Chat{}, &SyncRun{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return db, nil
}

// Store wraps the database with the operations the syncer and analytics
// layers need.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// UpsertContacts writes a batch of normalized contacts, replacing rows that
// share an external contact_id.
func (s *Store) UpsertContacts(ctx context.Context, contacts []b2chat.Contact) error {
	if len(contacts) == 0 {
		return nil
	}

	rows := make([]Contact, 0, len(contacts))
	for _, c := range contacts {
		rows = append(rows, contactRow(c))
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "contact_id"}},
			UpdateAll: true,
		}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("upsert contacts: %w", err)
	}
	return nil
}

// UpsertChats writes a batch of normalized chats keyed by chat_id.
func (s *Store) UpsertChats(ctx context.Context, chats []b2chat.Chat) error {
	if len(chats) == 0 {
		return nil
	}

	rows := make([]Chat, 0, len(chats))
	for _, c := range chats {
		rows = append(rows, chatRow(c))
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chat_id"}},
			UpdateAll: true,
		}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("upsert chats: %w", err)
	}
	return nil
}

// ChatsBetween returns chats whose upstream start time falls in [from, to].
func (s *Store) ChatsBetween(ctx context.Context, from, to time.Time) ([]Chat, error) {
	var chats []Chat
	err := s.db.WithContext(ctx).
		Where("started_at >= ? AND started_at <= ?", from, to).
		Order("started_at").
		Find(&chats).Error
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	return chats, nil
}

// CreateSyncRun inserts a new sync run row.
func (s *Store) CreateSyncRun(ctx context.Context, run *SyncRun) error {
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("create sync run: %w", err)
	}
	return nil
}

// FinishSyncRun persists the run's terminal state.
func (s *Store) FinishSyncRun(ctx context.Context, run *SyncRun) error {
	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("finish sync run: %w", err)
	}
	return nil
}

// LastSuccessfulSync returns the most recent succeeded run for a resource,
// or nil when none exists. Used to derive incremental sync windows.
func (s *Store) LastSuccessfulSync(ctx context.Context, resource string) (*SyncRun, error) {
	var run SyncRun
	err := s.db.WithContext(ctx).
		Where("resource = ? AND status = ?", resource, SyncRunSucceeded).
		Order("started_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last sync: %w", err)
	}
	return &run, nil
}

func contactRow(c b2chat.Contact) Contact {
	row := Contact{
		ContactID:      c.ContactID,
		Fullname:       c.Fullname,
		Mobile:         c.Mobile,
		Phone:          c.Phone,
		Email:          c.Email,
		Identification: c.Identification,
		City:           c.City,
		Country:        c.Country,
		Company:        c.Company,
		Raw:            []byte(c.Raw),
	}
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt.Time
		row.SourceUpdatedAt = &t
	}
	return row
}

func chatRow(c b2chat.Chat) Chat {
	row := Chat{
		ChatID:          c.ChatID,
		Status:          c.Status,
		Channel:         c.Channel,
		Priority:        c.Priority,
		AgentUsername:   c.Agent.Username,
		ContactID:       c.Contact.ContactID,
		DurationSeconds: c.Duration,
		Raw:             []byte(c.Raw),
	}
	if !c.CreatedAt.IsZero() {
		t := c.CreatedAt.Time
		row.StartedAt = &t
	}
	if !c.OpenedAt.IsZero() {
		t := c.OpenedAt.Time
		row.OpenedAt = &t
	}
	if !c.ClosedAt.IsZero() {
		t := c.ClosedAt.Time
		row.ClosedAt = &t
	}
	return row
}
