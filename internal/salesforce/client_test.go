package salesforce

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/supplier-onboarding/pkg/logging"
)

type stubRefresher struct {
	session *Session
	err     error
	calls   atomic.Int32
}

func (s *stubRefresher) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	s.calls.Add(1)
	return s.session, s.err
}

func newTestClient(t *testing.T, handler http.HandlerFunc, refresher Refresher) (*Client, *MemorySessionStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := NewMemorySessionStore()
	require.NoError(t, store.Save(context.Background(), &Session{AccessToken: "tok-1", RefreshToken: "rt", InstanceURL: srv.URL}))
	client := NewClient(ClientConfig{Store: store, Refresher: refresher, APIVersion: "v59.0", Logger: logging.Discard()})
	return client, store
}

func TestClientCreate(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/services/data/v59.0/sobjects/Contact/", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "allowSave=true", r.Header.Get("Sforce-Duplicate-Rule-Header"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Dupont", body["LastName"])

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"003000000000001AAA","success":true,"errors":[]}`)
	}, nil)

	id, err := client.Create(context.Background(), "Contact", map[string]any{"LastName": "Dupont"}, AllowDuplicateSave())
	require.NoError(t, err)
	assert.Equal(t, "003000000000001AAA", id)
}

func TestClientCreateDuplicateError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `[{"message":"duplicate value found: NomFournisseur__c duplicates value on record with id: 001000000000001AAA","errorCode":"DUPLICATE_VALUE","fields":[]}]`)
	}, nil)

	_, err := client.Create(context.Background(), "Account", map[string]any{"Name": "ACME"})
	require.Error(t, err)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.True(t, apiErr.HasCode("duplicate_value"))
	assert.Equal(t, []string{"DUPLICATE_VALUE"}, apiErr.Codes())
	assert.Contains(t, err.Error(), "DUPLICATE_VALUE: duplicate value found")
}

func TestClientRefreshesExpiredSession(t *testing.T) {
	var calls atomic.Int32
	refresher := &stubRefresher{}
	client, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") == "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `[{"message":"Session expired or invalid","errorCode":"INVALID_SESSION_ID"}]`)
			return
		}
		assert.Equal(t, "Bearer tok-2", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}, refresher)

	current, err := store.Get(context.Background())
	require.NoError(t, err)
	refresher.session = &Session{AccessToken: "tok-2", RefreshToken: "rt", InstanceURL: current.InstanceURL}

	require.NoError(t, client.Update(context.Background(), "Account", "001A", map[string]any{"Contact__c": "003A"}))
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int32(1), refresher.calls.Load())

	saved, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", saved.AccessToken)
}

func TestClientRefreshFailureClearsSession(t *testing.T) {
	refresher := &stubRefresher{err: errors.New("invalid_grant")}
	client, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `[{"message":"Session expired or invalid","errorCode":"INVALID_SESSION_ID"}]`)
	}, refresher)

	_, err := client.Query(context.Background(), "SELECT Id FROM Account")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSession))
	assert.False(t, client.Authenticated(context.Background()))
	_, err = store.Get(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestClientQueryFollowsPagination(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/services/data/v59.0/query":
			assert.Equal(t, "SELECT Id FROM RecordType WHERE DeveloperName = 'LocalSupplier'", r.URL.Query().Get("q"))
			_, _ = io.WriteString(w, `{"done":false,"nextRecordsUrl":"/services/data/v59.0/query/01g-2000","records":[{"Id":"012A"}]}`)
		case strings.HasSuffix(r.URL.Path, "/query/01g-2000"):
			_, _ = io.WriteString(w, `{"done":true,"records":[{"Id":"012B"}]}`)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}, nil)

	records, err := client.Query(context.Background(), "SELECT Id FROM RecordType WHERE DeveloperName = 'LocalSupplier'")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "012A", records[0].String("Id"))
	assert.Equal(t, "012B", records[1].String("Id"))
	assert.Equal(t, "", records[1].String("Missing"))
}

func TestClientWithoutSession(t *testing.T) {
	client := NewClient(ClientConfig{Store: NewMemorySessionStore(), Logger: logging.Discard()})
	assert.False(t, client.Authenticated(context.Background()))
	_, err := client.Create(context.Background(), "Account", map[string]any{})
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestQuoteSOQL(t *testing.T) {
	assert.Equal(t, `O\'Brien \\ Co`, QuoteSOQL(`O'Brien \ Co`))
}

func TestParseAPIErrorOAuthShape(t *testing.T) {
	apiErr := parseAPIError(http.StatusBadRequest, []byte(`{"error":"invalid_grant","error_description":"expired access/refresh token"}`))
	require.Len(t, apiErr.Items, 1)
	assert.Equal(t, "invalid_grant", apiErr.Items[0].ErrorCode)
	assert.Equal(t, "invalid_grant: expired access/refresh token", apiErr.Error())
}
