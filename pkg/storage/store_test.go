package storage

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/PedroPJaramillo/b2chat-analytics-sub003/pkg/b2chat"
)

func ts(t time.Time) b2chat.Timestamp {
	return b2chat.Timestamp{Time: t}
}

func TestContactRow(t *testing.T) {
	updated := time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC)
	raw := json.RawMessage(`{"contact_id": 42, "name": "Ana Gomez"}`)

	contact := b2chat.Contact{
		ContactID:      42,
		Fullname:       "Ana Gomez",
		Mobile:         "+573001234567",
		Email:          "ana@example.com",
		Identification: "CC-1020",
		City:           "Bogota",
		Country:        "Colombia",
		Company:        "Acme",
		UpdatedAt:      ts(updated),
		Raw:            raw,
	}

	row := contactRow(contact)

	if row.ContactID != 42 {
		t.Errorf("ContactID = %d, want 42", row.ContactID)
	}
	if row.Fullname != "Ana Gomez" {
		t.Errorf("Fullname = %q, want %q", row.Fullname, "Ana Gomez")
	}
	if row.Mobile != "+573001234567" {
		t.Errorf("Mobile = %q, want %q", row.Mobile, "+573001234567")
	}
	if string(row.Raw) != string(raw) {
		t.Errorf("Raw = %s, want source payload", row.Raw)
	}
	if row.SourceUpdatedAt == nil || !row.SourceUpdatedAt.Equal(updated) {
		t.Errorf("SourceUpdatedAt = %v, want %v", row.SourceUpdatedAt, updated)
	}
}

func TestContactRow_ZeroUpdatedAt(t *testing.T) {
	row := contactRow(b2chat.Contact{ContactID: 1, Fullname: "Test"})
	if row.SourceUpdatedAt != nil {
		t.Errorf("SourceUpdatedAt = %v, want nil for unset upstream timestamp", row.SourceUpdatedAt)
	}
}

func TestChatRow(t *testing.T) {
	started := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	opened := started.Add(3 * time.Minute)
	closed := started.Add(2 * time.Hour)

	chat := b2chat.Chat{
		ChatID:    "chat-9001",
		Status:    "CLOSED",
		Channel:   "whatsapp",
		Priority:  "high",
		Agent:     b2chat.Agent{Username: "agent.smith"},
		Contact:   b2chat.ChatContact{ContactID: 42},
		CreatedAt: ts(started),
		OpenedAt:  ts(opened),
		ClosedAt:  ts(closed),
		Duration:  7200,
	}

	row := chatRow(chat)

	if row.ChatID != "chat-9001" {
		t.Errorf("ChatID = %q, want %q", row.ChatID, "chat-9001")
	}
	if row.Channel != "whatsapp" || row.Priority != "high" {
		t.Errorf("Channel/Priority = %q/%q, want whatsapp/high", row.Channel, row.Priority)
	}
	if row.AgentUsername != "agent.smith" {
		t.Errorf("AgentUsername = %q, want %q", row.AgentUsername, "agent.smith")
	}
	if row.ContactID != 42 {
		t.Errorf("ContactID = %d, want 42", row.ContactID)
	}
	if row.StartedAt == nil || !row.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", row.StartedAt, started)
	}
	if row.OpenedAt == nil || !row.OpenedAt.Equal(opened) {
		t.Errorf("OpenedAt = %v, want %v", row.OpenedAt, opened)
	}
	if row.ClosedAt == nil || !row.ClosedAt.Equal(closed) {
		t.Errorf("ClosedAt = %v, want %v", row.ClosedAt, closed)
	}
	if row.DurationSeconds != 7200 {
		t.Errorf("DurationSeconds = %d, want 7200", row.DurationSeconds)
	}
}

func TestChatRow_OpenChatHasNoClosedAt(t *testing.T) {
	chat := b2chat.Chat{
		ChatID:    "chat-9002",
		Status:    "OPENED",
		CreatedAt: ts(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)),
	}

	row := chatRow(chat)

	if row.ClosedAt != nil {
		t.Errorf("ClosedAt = %v, want nil for an open chat", row.ClosedAt)
	}
	if row.OpenedAt != nil {
		t.Errorf("OpenedAt = %v, want nil when the chat was never picked up", row.OpenedAt)
	}
}
