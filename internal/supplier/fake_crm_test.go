package supplier

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/wolfman30/supplier-onboarding/internal/journal"
	"github.com/wolfman30/supplier-onboarding/internal/salesforce"
)

type createCall struct {
	Object  string
	Fields  map[string]any
	Headers http.Header
}

type updateCall struct {
	Object string
	ID     string
	Fields map[string]any
}

var idPrefixes = map[string]string{
	ObjectAccount:             "001",
	ObjectContact:             "003",
	ObjectAttestation:         "a0B",
	ObjectContentVersion:      "068",
	ObjectContentDocumentLink: "06A",
}

type fakeCRM struct {
	mu            sync.Mutex
	authenticated bool
	createErr     map[string]error
	failTitles    map[string]bool
	updateErr     error
	queryErr      error
	recordTypes   map[string]string
	creates       []createCall
	updates       []updateCall
	queries       []string
	seq           int
}

func newFakeCRM() *fakeCRM {
	return &fakeCRM{
		authenticated: true,
		createErr:     map[string]error{},
		failTitles:    map[string]bool{},
		recordTypes: map[string]string{
			RecordTypeLocal:   "012000000000LOCAL",
			RecordTypeForeign: "012000000000FORGN",
		},
	}
}

func (f *fakeCRM) Authenticated(ctx context.Context) bool {
	return f.authenticated
}

func (f *fakeCRM) Create(ctx context.Context, object string, fields map[string]any, opts ...salesforce.CallOption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	headers := http.Header{}
	for _, opt := range opts {
		opt(headers)
	}
	f.creates = append(f.creates, createCall{Object: object, Fields: fields, Headers: headers})
	if err := f.createErr[object]; err != nil {
		return "", err
	}
	if title, _ := fields["Title"].(string); f.failTitles[title] {
		return "", fmt.Errorf("salesforce: create %s: %w", object, &salesforce.APIError{StatusCode: 400, Items: []salesforce.ErrorItem{{ErrorCode: "STORAGE_LIMIT_EXCEEDED", Message: "storage limit exceeded"}}})
	}
	f.seq++
	return fmt.Sprintf("%s%015d", idPrefixes[object], f.seq), nil
}

func (f *fakeCRM) Update(ctx context.Context, object, id string, fields map[string]any, opts ...salesforce.CallOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updateCall{Object: object, ID: id, Fields: fields})
	return f.updateErr
}

func (f *fakeCRM) Query(ctx context.Context, soql string) ([]salesforce.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, soql)
	switch {
	case strings.Contains(soql, "FROM RecordType"):
		if f.queryErr != nil {
			return nil, f.queryErr
		}
		for devName, id := range f.recordTypes {
			if strings.Contains(soql, "'"+devName+"'") {
				return []salesforce.Record{{"Id": id}}, nil
			}
		}
		return nil, nil
	case strings.Contains(soql, "FROM ContentVersion"):
		start := strings.Index(soql, "'068")
		versionID := strings.Trim(soql[start:], "'")
		return []salesforce.Record{{"ContentDocumentId": "069" + versionID[3:]}}, nil
	}
	return nil, fmt.Errorf("unexpected query %q", soql)
}

func (f *fakeCRM) created(object string) []createCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []createCall
	for _, c := range f.creates {
		if c.Object == object {
			out = append(out, c)
		}
	}
	return out
}

type memoryJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (m *memoryJournal) Record(ctx context.Context, entry journal.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

type recordingArchiver struct {
	keys []string
	err  error
}

func (a *recordingArchiver) Put(ctx context.Context, key, contentType string, body []byte) error {
	a.keys = append(a.keys, key)
	return a.err
}

type recordingPublisher struct {
	events []CreatedEvent
}

func (p *recordingPublisher) PublishSupplierCreated(ctx context.Context, evt CreatedEvent) error {
	p.events = append(p.events, evt)
	return nil
}
