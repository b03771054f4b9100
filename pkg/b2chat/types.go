package b2chat

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// DefaultPageSize is used when PageParams.Limit is unset.
const DefaultPageSize = 100

// exportDateFormat is the date layout the export endpoints accept in their
// from/to query parameters.
const exportDateFormat = "2006-01-02"

// Timestamp accepts both RFC 3339 strings and epoch milliseconds. The export
// endpoints mix the two depending on record age.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		t.Time = time.Time{}
		return nil
	}

	if len(s) > 0 && s[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", exportDateFormat} {
			if parsed, err := time.Parse(layout, str); err == nil {
				t.Time = parsed
				return nil
			}
		}
		return fmt.Errorf("unrecognized timestamp %q", str)
	}

	var millis int64
	if err := json.Unmarshal(b, &millis); err != nil {
		return fmt.Errorf("unrecognized timestamp %s", s)
	}
	t.Time = time.UnixMilli(millis).UTC()
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339))
}

// Tag is a label attached to a contact.
type Tag struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Contact is a normalized B2Chat contact. Unknown upstream fields are not an
// error; the full source payload is retained in Raw for downstream code that
// needs them.
type Contact struct {
	ContactID      int64     `json:"contact_id"`
	Fullname       string    `json:"fullname" validate:"required"`
	Mobile         string    `json:"mobile"`
	Phone          string    `json:"phone"`
	Email          string    `json:"email" validate:"omitempty,email"`
	Identification string    `json:"identification"`
	Address        string    `json:"address"`
	City           string    `json:"city"`
	Country        string    `json:"country"`
	Company        string    `json:"company"`
	Tags           []Tag     `json:"tags"`
	CreatedAt      Timestamp `json:"created_at"`
	UpdatedAt      Timestamp `json:"updated_at"`

	// Raw is the source record exactly as the API returned it, before any
	// field remapping.
	Raw json.RawMessage `json:"-"`
}

// Agent identifies the service agent assigned to a chat.
type Agent struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// ChatContact is the embedded contact summary on a chat record.
type ChatContact struct {
	ContactID int64  `json:"contact_id"`
	Fullname  string `json:"fullname"`
	Mobile    string `json:"mobile"`
}

// Chat is a normalized B2Chat conversation.
type Chat struct {
	ChatID    string      `json:"chat_id" validate:"required"`
	Status    string      `json:"status"`
	Channel   string      `json:"channel"`
	Priority  string      `json:"priority"`
	Agent     Agent       `json:"agent"`
	Contact   ChatContact `json:"contact"`
	CreatedAt Timestamp   `json:"created_at"`
	OpenedAt  Timestamp   `json:"opened_at"`
	ClosedAt  Timestamp   `json:"closed_at"`

	// Duration is the total chat duration in seconds as reported upstream.
	Duration int64 `json:"duration"`

	Raw json.RawMessage `json:"-"`
}

// Field aliases applied before decoding. The export endpoints are
// inconsistent about key names across API versions; the left-hand name is
// copied to the right-hand one when the latter is absent.
var (
	contactFieldAliases = map[string]string{
		"name":          "fullname",
		"mobile_number": "mobile",
	}

	chatFieldAliases = map[string]string{
		"id":       "chat_id",
		"provider": "channel",
	}
)

// remapFields rewrites aliased keys in a raw record. The target key wins when
// both names are present. Unknown keys pass through untouched.
func remapFields(raw json.RawMessage, aliases map[string]string) (json.RawMessage, error) {
	var record map[string]any
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}

	for from, to := range aliases {
		value, ok := record[from]
		if !ok {
			continue
		}
		if _, exists := record[to]; !exists {
			record[to] = value
		}
		delete(record, from)
	}

	return json.Marshal(record)
}

// Pagination describes the position of a page within an export.
type Pagination struct {
	Total       int  `json:"total"`
	Exported    int  `json:"exported"`
	HasNextPage bool `json:"has_next_page"`
}

// ContactPage is one page of a contacts export. Errors holds per-record parse
// failures; a malformed record never aborts the page.
type ContactPage struct {
	Contacts   []Contact
	Errors     []RecordError
	Pagination Pagination
}

// ChatPage is one page of a chats export.
type ChatPage struct {
	Chats      []Chat
	Errors     []RecordError
	Pagination Pagination
}

// PageParams selects one page of an export. The remote API is offset-based;
// Page is converted to an offset of (Page-1)*Limit.
type PageParams struct {
	// Page is 1-based. Values below 1 are treated as 1.
	Page int

	// Limit is the page size. Zero means DefaultPageSize.
	Limit int

	// DateFrom/DateTo bound the export window. When either is set they take
	// precedence over UpdatedSince.
	DateFrom time.Time
	DateTo   time.Time

	// UpdatedSince is the fallback lower bound when no explicit range is
	// given.
	UpdatedSince time.Time
}

func (p PageParams) limit() int {
	if p.Limit <= 0 {
		return DefaultPageSize
	}
	return p.Limit
}

func (p PageParams) offset() int {
	page := p.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * p.limit()
}

// query builds the export query string. fromKey/toKey differ between the
// contacts and chats endpoints.
func (p PageParams) query(fromKey, toKey string) url.Values {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(p.offset()))
	q.Set("limit", strconv.Itoa(p.limit()))

	switch {
	case !p.DateFrom.IsZero() || !p.DateTo.IsZero():
		if !p.DateFrom.IsZero() {
			q.Set(fromKey, p.DateFrom.Format(exportDateFormat))
		}
		if !p.DateTo.IsZero() {
			q.Set(toKey, p.DateTo.Format(exportDateFormat))
		}
	case !p.UpdatedSince.IsZero():
		q.Set(fromKey, p.UpdatedSince.Format(exportDateFormat))
	}

	return q
}
