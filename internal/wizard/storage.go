package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

// Storage keeps the scalar part of a draft between sessions.
type Storage interface {
	Load(ctx context.Context) (*supplierapi.Draft, error)
	Save(ctx context.Context, d *supplierapi.Draft) error
	Clear(ctx context.Context) error
}

// FileStorage keeps the draft in a local JSON file.
type FileStorage struct {
	path string
}

// NewFileStorage stores the draft at path.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (f *FileStorage) Load(context.Context) (*supplierapi.Draft, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoDraft
	}
	if err != nil {
		return nil, fmt.Errorf("wizard: read draft: %w", err)
	}
	var d supplierapi.Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("wizard: decode draft: %w", err)
	}
	return &d, nil
}

// Save writes through a temporary file so a crash never leaves half a draft.
func (f *FileStorage) Save(_ context.Context, d *supplierapi.Draft) error {
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("wizard: encode draft: %w", err)
	}
	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("wizard: create draft dir: %w", err)
		}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("wizard: write draft: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("wizard: replace draft: %w", err)
	}
	return nil
}

func (f *FileStorage) Clear(context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("wizard: remove draft: %w", err)
	}
	return nil
}

// RemoteStorage keeps the draft on the server under one id.
type RemoteStorage struct {
	client *Client
	id     string
}

// NewRemoteStorage stores the draft through the drafts API.
func NewRemoteStorage(client *Client, id string) *RemoteStorage {
	return &RemoteStorage{client: client, id: id}
}

func (r *RemoteStorage) Load(ctx context.Context) (*supplierapi.Draft, error) {
	return r.client.GetDraft(ctx, r.id)
}

func (r *RemoteStorage) Save(ctx context.Context, d *supplierapi.Draft) error {
	return r.client.PutDraft(ctx, r.id, d)
}

func (r *RemoteStorage) Clear(ctx context.Context) error {
	return r.client.DeleteDraft(ctx, r.id)
}

// Snapshot returns the persistable part of a draft: text fields,
// certifications and attestation data. Files are never included.
func Snapshot(d Draft) map[string]any {
	out := make(map[string]any, len(d.Fields)+2)
	for k, v := range d.Fields {
		if scalarFields[k] {
			out[k] = v
		}
	}
	if len(d.Certifications) > 0 {
		out[supplierapi.FieldCertifications] = append([]string(nil), d.Certifications...)
	}
	if !d.Attestation.IsZero() {
		if m := attestationMap(d.Attestation); len(m) > 0 {
			out[supplierapi.AttestationFD] = m
		}
	}
	return out
}

// Restore rebuilds a draft from a snapshot on top of a fresh one, so every
// document category is present and empty. Unknown keys are ignored.
func Restore(formData map[string]any) Draft {
	d := NewDraft()
	for k, v := range formData {
		switch {
		case scalarFields[k]:
			if s, ok := v.(string); ok {
				d.Fields[k] = s
			}
		case k == supplierapi.FieldCertifications:
			d.Certifications = stringList(v)
		case k == supplierapi.AttestationFD:
			raw, err := json.Marshal(v)
			if err != nil {
				continue
			}
			var a supplierapi.AttestationData
			if json.Unmarshal(raw, &a) == nil && !a.IsZero() {
				d.Attestation = &a
			}
		}
	}
	return d
}

func attestationMap(a *supplierapi.AttestationData) map[string]any {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	for k, v := range m {
		if v == nil {
			delete(m, k)
		}
	}
	return m
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return supplierapi.ParseStringList(list)
	}
	return nil
}
