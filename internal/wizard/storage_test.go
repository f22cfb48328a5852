package wizard

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/supplier-onboarding/internal/drafts"
	"github.com/wolfman30/supplier-onboarding/pkg/logging"
	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

const testDraftID = "3f2b8f2e-6f0e-4d8a-9a51-0c7d2b1e9a10"

func sampleSnapshotDraft() Draft {
	d := completeDraft()
	d.Fields[FieldLogoURL] = "https://acme.my.salesforce.com/logo.png"
	d.Certifications = []string{"ISO 9001"}
	ice := "001525634000089"
	ok := true
	d.Attestation = &supplierapi.AttestationData{ICE: &ice, StatutRegularite: &ok}
	d.Files[supplierapi.CategoryICE] = []Attachment{{Name: "ice.pdf", Data: []byte("%PDF")}}
	return d
}

func TestFileStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStorage(filepath.Join(t.TempDir(), "nested", "draft.json"))

	if _, err := store.Load(ctx); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("Load on empty storage: err = %v, want ErrNoDraft", err)
	}

	want := &supplierapi.Draft{
		Step:    2,
		SavedAt: time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC),
		FormData: map[string]any{
			supplierapi.FieldRaisonSociale:  "ACME SA",
			supplierapi.FieldCertifications: []any{"ISO 9001", "ISO 14001"},
		},
	}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("draft mismatch (-want +got):\n%s", diff)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear twice: %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("Load after Clear: err = %v, want ErrNoDraft", err)
	}
}

func TestSnapshotExcludesFiles(t *testing.T) {
	snap := Snapshot(sampleSnapshotDraft())

	for key := range snap {
		if supplierapi.Category(key).Valid() {
			t.Errorf("snapshot carries document category %q", key)
		}
	}
	if got := snap[supplierapi.FieldRaisonSociale]; got != "ACME SA" {
		t.Errorf("raisonSociale = %v", got)
	}
	want := map[string]any{"ice": "001525634000089", "statut_regularite": true}
	if diff := cmp.Diff(want, snap[supplierapi.AttestationFD]); diff != "" {
		t.Errorf("attestation mismatch (-want +got):\n%s", diff)
	}
	if err := drafts.Validate(&supplierapi.Draft{Step: 1, FormData: snap}); err != nil {
		t.Errorf("snapshot refused by the drafts API: %v", err)
	}
}

func TestRestore(t *testing.T) {
	original := sampleSnapshotDraft()
	restored := Restore(Snapshot(original))

	if diff := cmp.Diff(original.Fields, restored.Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(original.Certifications, restored.Certifications); diff != "" {
		t.Errorf("certifications mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(original.Attestation, restored.Attestation); diff != "" {
		t.Errorf("attestation mismatch (-want +got):\n%s", diff)
	}
	for _, c := range supplierapi.Categories() {
		if files := restored.Files[c]; files == nil || len(files) != 0 {
			t.Errorf("category %s = %v, want present and empty", c, files)
		}
	}

	restored = Restore(map[string]any{
		"unknown":                       "x",
		supplierapi.FieldCity:           12.0,
		supplierapi.FieldCertifications: "ISO 9001, ISO 45001",
	})
	if _, ok := restored.Fields["unknown"]; ok {
		t.Error("unknown key restored")
	}
	if _, ok := restored.Fields[supplierapi.FieldCity]; ok {
		t.Error("non-text city restored")
	}
	if diff := cmp.Diff([]string{"ISO 9001", "ISO 45001"}, restored.Certifications); diff != "" {
		t.Errorf("certifications mismatch (-want +got):\n%s", diff)
	}
}

func newDraftsServer(t *testing.T) *httptest.Server {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := chi.NewRouter()
	r.Route(supplierapi.DraftsPath, drafts.NewHandler(drafts.NewStore(rdb, time.Hour), logging.Discard()).Routes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteStorage(t *testing.T) {
	ctx := context.Background()
	srv := newDraftsServer(t)
	store := NewRemoteStorage(NewClient(srv.URL, srv.Client()), testDraftID)

	if _, err := store.Load(ctx); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("Load on empty storage: err = %v, want ErrNoDraft", err)
	}

	snap := Snapshot(sampleSnapshotDraft())
	if err := store.Save(ctx, &supplierapi.Draft{Step: 2, FormData: snap}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Step != 2 {
		t.Errorf("step = %d, want 2", got.Step)
	}
	restored := Restore(got.FormData)
	if restored.Field(supplierapi.FieldRaisonSociale) != "ACME SA" {
		t.Errorf("raisonSociale = %q", restored.Field(supplierapi.FieldRaisonSociale))
	}
	if restored.Attestation == nil || *restored.Attestation.ICE != "001525634000089" {
		t.Errorf("attestation not restored: %+v", restored.Attestation)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("Load after Clear: err = %v, want ErrNoDraft", err)
	}

	bad := NewRemoteStorage(NewClient(srv.URL, srv.Client()), "not-a-uuid")
	var apiErr *APIError
	if _, err := bad.Load(ctx); !errors.As(err, &apiErr) || apiErr.Status != 400 {
		t.Fatalf("Load with bad id: err = %v, want 400 APIError", err)
	}
}
