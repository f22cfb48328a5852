package drafts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/supplier-onboarding/pkg/logging"
	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

const draftID = "3f2b8f2e-6f0e-4d8a-9a51-0c7d2b1e9a10"

func setupStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, time.Hour), mr
}

func sampleDraft() *supplierapi.Draft {
	return &supplierapi.Draft{
		Step:    1,
		SavedAt: time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC),
		FormData: map[string]any{
			"raisonSociale":  "ACME SA",
			"country":        "MAROC",
			"certifications": []any{"ISO 9001", "ISO 14001"},
			supplierapi.AttestationFD: map[string]any{
				"ice":               "001525634000089",
				"statut_regularite": true,
			},
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := setupStore(t)

	_, err := store.Get(ctx, draftID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, draftID, sampleDraft()))
	assert.Equal(t, time.Hour, mr.TTL(defaultPrefix+draftID))

	got, err := store.Get(ctx, draftID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Step)
	assert.Equal(t, "ACME SA", got.FormData["raisonSociale"])
	assert.True(t, got.SavedAt.Equal(sampleDraft().SavedAt))

	require.NoError(t, store.Delete(ctx, draftID))
	_, err = store.Get(ctx, draftID)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, store.Delete(ctx, draftID))
}

func TestStoreExpires(t *testing.T) {
	ctx := context.Background()
	store, mr := setupStore(t)
	require.NoError(t, store.Put(ctx, draftID, sampleDraft()))

	mr.FastForward(2 * time.Hour)
	_, err := store.Get(ctx, draftID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *supplierapi.Draft)
		wantErr error
	}{
		{"scalars", func(d *supplierapi.Draft) {}, nil},
		{"files list", func(d *supplierapi.Draft) { d.FormData["files"] = []any{"a.pdf"} }, errFileContent},
		{"file category", func(d *supplierapi.Draft) { d.FormData["filesICE"] = []any{} }, errFileContent},
		{"confirmation step", func(d *supplierapi.Draft) { d.Step = 4 }, errBadStep},
		{"negative step", func(d *supplierapi.Draft) { d.Step = -1 }, errBadStep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := sampleDraft()
			tt.mutate(d)
			err := Validate(d)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateRejectsNestedContent(t *testing.T) {
	d := sampleDraft()
	d.FormData["address"] = map[string]any{"street": "1 rue"}
	assert.Error(t, Validate(d))

	d = sampleDraft()
	d.FormData["certifications"] = []any{map[string]any{"data": "JVBERi0="}}
	assert.Error(t, Validate(d))

	d = sampleDraft()
	d.FormData[supplierapi.AttestationFD] = map[string]any{"scan": map[string]any{"data": "JVBERi0="}}
	assert.Error(t, Validate(d))
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	store, _ := setupStore(t)
	h := NewHandler(store, logging.Discard())
	h.now = func() time.Time { return time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Route("/api/drafts", h.Routes)
	return r
}

func do(t *testing.T, router http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerLifecycle(t *testing.T) {
	router := newRouter(t)
	path := "/api/drafts/" + draftID

	rec := do(t, router, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodPut, path, []byte(`{"step":2,"formData":{"raisonSociale":"ACME SA","effectifTotal":12}}`))
	require.Equal(t, http.StatusOK, rec.Code)
	var saved supplierapi.Draft
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.Equal(t, "2026-05-04T10:00:00Z", saved.SavedAt.Format(time.RFC3339))

	rec = do(t, router, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"raisonSociale":"ACME SA"`)

	rec = do(t, router, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, router, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerRejects(t *testing.T) {
	router := newRouter(t)

	rec := do(t, router, http.MethodGet, "/api/drafts/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPut, "/api/drafts/"+draftID, []byte(`{"step":1,"formData":{"files":[{"name":"rib.pdf","data":"JVBERi0="}]}}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "fichiers")

	rec = do(t, router, http.MethodPut, "/api/drafts/"+draftID, []byte(`{"step":`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	big := append([]byte(`{"step":1,"formData":{"address":"`), bytes.Repeat([]byte("a"), maxDraftBytes)...)
	big = append(big, []byte(`"}}`)...)
	rec = do(t, router, http.MethodPut, "/api/drafts/"+draftID, big)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
