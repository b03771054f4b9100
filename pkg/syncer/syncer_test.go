package syncer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/PedroPJaramillo/b2chat-analytics-sub003/pkg/b2chat"
	"github.com/PedroPJaramillo/b2chat-analytics-sub003/pkg/queue"
	"github.com/PedroPJaramillo/b2chat-analytics-sub003/pkg/storage"
)

type fakeAPI struct {
	contactPages []*b2chat.ContactPage
	chatPages    []*b2chat.ChatPage
	contactErr   map[int]error
	params       []b2chat.PageParams
	calls        int
}

func (f *fakeAPI) GetContacts(_ context.Context, params b2chat.PageParams) (*b2chat.ContactPage, error) {
	f.params = append(f.params, params)
	f.calls++
	if err, ok := f.contactErr[params.Page]; ok {
		return nil, err
	}
	if params.Page > len(f.contactPages) {
		return nil, fmt.Errorf("unexpected page %d", params.Page)
	}
	return f.contactPages[params.Page-1], nil
}

func (f *fakeAPI) GetChats(_ context.Context, params b2chat.PageParams) (*b2chat.ChatPage, error) {
	f.params = append(f.params, params)
	f.calls++
	if params.Page > len(f.chatPages) {
		return nil, fmt.Errorf("unexpected page %d", params.Page)
	}
	return f.chatPages[params.Page-1], nil
}

type fakeSink struct {
	contacts  []b2chat.Contact
	chats     []b2chat.Chat
	created   []*storage.SyncRun
	finished  []*storage.SyncRun
	upsertErr error
	createErr error
}

func (f *fakeSink) UpsertContacts(_ context.Context, contacts []b2chat.Contact) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.contacts = append(f.contacts, contacts...)
	return nil
}

func (f *fakeSink) UpsertChats(_ context.Context, chats []b2chat.Chat) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.chats = append(f.chats, chats...)
	return nil
}

func (f *fakeSink) CreateSyncRun(_ context.Context, run *storage.SyncRun) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, run)
	return nil
}

func (f *fakeSink) FinishSyncRun(_ context.Context, run *storage.SyncRun) error {
	f.finished = append(f.finished, run)
	return nil
}

func newTestQueue(t *testing.T) *queue.Queue {
	t.Helper()
	q, err := queue.New(1000, 1000000, zerolog.Nop())
	if err != nil {
		t.Fatalf("queue.New() error = %v", err)
	}
	return q
}

func contactPage(n int, hasNext bool) *b2chat.ContactPage {
	page := &b2chat.ContactPage{
		Pagination: b2chat.Pagination{Exported: n, HasNextPage: hasNext},
	}
	for i := 0; i < n; i++ {
		page.Contacts = append(page.Contacts, b2chat.Contact{ContactID: int64(i + 1), Fullname: "Test Contact"})
	}
	return page
}

func TestSyncContacts_PagesUntilExhausted(t *testing.T) {
	api := &fakeAPI{
		contactPages: []*b2chat.ContactPage{
			contactPage(50, true),
			contactPage(50, true),
			contactPage(12, false),
		},
	}
	sink := &fakeSink{}
	s := New(api, sink, newTestQueue(t), 50)

	window := Window{
		From: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	}

	run, err := s.SyncContacts(context.Background(), window)
	if err != nil {
		t.Fatalf("SyncContacts() error = %v", err)
	}

	if run.Status != storage.SyncRunSucceeded {
		t.Errorf("Status = %q, want %q", run.Status, storage.SyncRunSucceeded)
	}
	if run.Pages != 3 {
		t.Errorf("Pages = %d, want 3", run.Pages)
	}
	if run.Records != 112 {
		t.Errorf("Records = %d, want 112", run.Records)
	}
	if len(sink.contacts) != 112 {
		t.Errorf("upserted %d contacts, want 112", len(sink.contacts))
	}
	if api.calls != 3 {
		t.Errorf("API calls = %d, want 3", api.calls)
	}

	for i, params := range api.params {
		if params.Page != i+1 {
			t.Errorf("call %d: Page = %d, want %d", i, params.Page, i+1)
		}
		if params.Limit != 50 {
			t.Errorf("call %d: Limit = %d, want 50", i, params.Limit)
		}
		if !params.DateFrom.Equal(window.From) || !params.DateTo.Equal(window.To) {
			t.Errorf("call %d: window = %v..%v, want %v..%v",
				i, params.DateFrom, params.DateTo, window.From, window.To)
		}
	}
}

func TestSyncContacts_FetchErrorFailsRun(t *testing.T) {
	fetchErr := &b2chat.APIError{StatusCode: 500, Endpoint: "/contacts/export"}
	api := &fakeAPI{
		contactPages: []*b2chat.ContactPage{contactPage(50, true)},
		contactErr:   map[int]error{2: fetchErr},
	}
	sink := &fakeSink{}
	s := New(api, sink, newTestQueue(t), 50)

	run, err := s.SyncContacts(context.Background(), Window{})
	if err == nil {
		t.Fatal("SyncContacts() error = nil, want API error")
	}

	var apiErr *b2chat.APIError
	if !errors.As(err, &apiErr) {
		t.Errorf("error = %v, want *b2chat.APIError", err)
	}

	if run.Status != storage.SyncRunFailed {
		t.Errorf("Status = %q, want %q", run.Status, storage.SyncRunFailed)
	}
	if run.Error == "" {
		t.Error("run.Error is empty, want failure message")
	}
	// Page one completed before the failure.
	if run.Pages != 1 || run.Records != 50 {
		t.Errorf("Pages/Records = %d/%d, want 1/50", run.Pages, run.Records)
	}
}

func TestSyncContacts_UpsertErrorFailsRun(t *testing.T) {
	api := &fakeAPI{contactPages: []*b2chat.ContactPage{contactPage(10, false)}}
	sink := &fakeSink{upsertErr: errors.New("mysql is down")}
	s := New(api, sink, newTestQueue(t), 10)

	run, err := s.SyncContacts(context.Background(), Window{})
	if err == nil {
		t.Fatal("SyncContacts() error = nil, want upsert error")
	}
	if run.Status != storage.SyncRunFailed {
		t.Errorf("Status = %q, want %q", run.Status, storage.SyncRunFailed)
	}
	if run.Records != 0 {
		t.Errorf("Records = %d, want 0", run.Records)
	}
}

func TestSyncChats_CountsParseFailures(t *testing.T) {
	api := &fakeAPI{
		chatPages: []*b2chat.ChatPage{
			{
				Chats: []b2chat.Chat{{ChatID: "chat-1"}, {ChatID: "chat-2"}},
				Errors: []b2chat.RecordError{
					{Index: 2, Err: errors.New("missing chat_id")},
				},
				Pagination: b2chat.Pagination{Exported: 3, HasNextPage: true},
			},
			{
				Chats:      []b2chat.Chat{{ChatID: "chat-3"}},
				Pagination: b2chat.Pagination{Exported: 1, HasNextPage: false},
			},
		},
	}
	sink := &fakeSink{}
	s := New(api, sink, newTestQueue(t), 100)

	run, err := s.SyncChats(context.Background(), Window{})
	if err != nil {
		t.Fatalf("SyncChats() error = %v", err)
	}

	if run.Records != 3 {
		t.Errorf("Records = %d, want 3", run.Records)
	}
	if run.Failures != 1 {
		t.Errorf("Failures = %d, want 1", run.Failures)
	}
	if len(sink.chats) != 3 {
		t.Errorf("upserted %d chats, want 3", len(sink.chats))
	}
}

func TestSync_RunBookkeeping(t *testing.T) {
	api := &fakeAPI{contactPages: []*b2chat.ContactPage{contactPage(5, false)}}
	sink := &fakeSink{}
	s := New(api, sink, newTestQueue(t), 100)

	run, err := s.SyncContacts(context.Background(), Window{})
	if err != nil {
		t.Fatalf("SyncContacts() error = %v", err)
	}

	if run.ID == "" {
		t.Error("run.ID is empty, want a generated ID")
	}
	if run.Resource != "contacts" {
		t.Errorf("Resource = %q, want %q", run.Resource, "contacts")
	}
	if run.FinishedAt == nil {
		t.Error("FinishedAt is nil after completion")
	}

	if len(sink.created) != 1 || len(sink.finished) != 1 {
		t.Fatalf("created/finished = %d/%d runs, want 1/1", len(sink.created), len(sink.finished))
	}
	if sink.created[0].Status != storage.SyncRunRunning {
		t.Errorf("created Status = %q, want %q", sink.created[0].Status, storage.SyncRunRunning)
	}
	if sink.finished[0].Status != storage.SyncRunSucceeded {
		t.Errorf("finished Status = %q, want %q", sink.finished[0].Status, storage.SyncRunSucceeded)
	}
}

func TestSync_BookkeepingFailureDoesNotAbort(t *testing.T) {
	api := &fakeAPI{contactPages: []*b2chat.ContactPage{contactPage(5, false)}}
	sink := &fakeSink{createErr: errors.New("sync_runs table missing")}
	s := New(api, sink, newTestQueue(t), 100)

	run, err := s.SyncContacts(context.Background(), Window{})
	if err != nil {
		t.Fatalf("SyncContacts() error = %v", err)
	}
	if run.Status != storage.SyncRunSucceeded {
		t.Errorf("Status = %q, want %q", run.Status, storage.SyncRunSucceeded)
	}
	if len(sink.contacts) != 5 {
		t.Errorf("upserted %d contacts, want 5", len(sink.contacts))
	}
}

func TestSyncContacts_ContextCancelled(t *testing.T) {
	api := &fakeAPI{contactPages: []*b2chat.ContactPage{contactPage(50, true), contactPage(50, true)}}
	sink := &fakeSink{}
	s := New(api, sink, newTestQueue(t), 50)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := s.SyncContacts(ctx, Window{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("SyncContacts() error = %v, want context.Canceled", err)
	}
	if run.Status != storage.SyncRunFailed {
		t.Errorf("Status = %q, want %q", run.Status, storage.SyncRunFailed)
	}
}
