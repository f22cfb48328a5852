package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/supplier-onboarding/pkg/logging"
)

// mockS3Client records PutObject/GetObject calls for testing.
type mockS3Client struct {
	putCalls []putCall
	objects  map[string][]byte
	getErr   error
}

type putCall struct {
	bucket      string
	key         string
	contentType string
	body        []byte
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(input.Body)
	m.putCalls = append(m.putCalls, putCall{
		bucket:      *input.Bucket,
		key:         *input.Key,
		contentType: *input.ContentType,
		body:        body,
	})
	m.objects[*input.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestStorePut(t *testing.T) {
	mock := newMockS3()
	store := NewStore(mock, "supplier-docs", logging.Discard())

	require.NoError(t, store.Put(context.Background(), "submissions/001A/sub-1/01-Attestation RIB.pdf", "application/pdf", []byte("%PDF")))
	require.Len(t, mock.putCalls, 1)
	call := mock.putCalls[0]
	assert.Equal(t, "supplier-docs", call.bucket)
	assert.Equal(t, "submissions/001A/sub-1/01-Attestation RIB.pdf", call.key)
	assert.Equal(t, "application/pdf", call.contentType)
	assert.Equal(t, []byte("%PDF"), call.body)

	require.NoError(t, store.Put(context.Background(), "k", "", nil))
	assert.Equal(t, "application/octet-stream", mock.putCalls[1].contentType)
}

func TestStoreDisabled(t *testing.T) {
	mock := newMockS3()
	store := NewStore(mock, "", nil)
	assert.False(t, store.Enabled())
	require.NoError(t, store.Put(context.Background(), "k", "text/plain", []byte("x")))
	require.NoError(t, store.AppendManifest(context.Background(), ManifestEntry{SubmissionID: "s"}))
	assert.Empty(t, mock.putCalls)

	var nilStore *Store
	assert.False(t, nilStore.Enabled())
}

func TestStoreAppendManifest(t *testing.T) {
	mock := newMockS3()
	store := NewStore(mock, "supplier-docs", logging.Discard())
	store.now = func() time.Time { return time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	require.NoError(t, store.AppendManifest(ctx, ManifestEntry{SubmissionID: "sub-1", AccountID: "001A", RaisonSociale: "ACME SA", Documents: 2}))
	require.NoError(t, store.AppendManifest(ctx, ManifestEntry{SubmissionID: "sub-2", AccountID: "001B", RaisonSociale: "Globex", Warnings: 1}))

	data, ok := mock.objects["suppliers/manifests/2026-03.jsonl"]
	require.True(t, ok)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var second ManifestEntry
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "sub-2", second.SubmissionID)
	assert.Equal(t, 1, second.Warnings)
}

func TestStoreAppendManifestReadFailure(t *testing.T) {
	mock := newMockS3()
	mock.getErr = errors.New("AccessDenied")
	store := NewStore(mock, "supplier-docs", logging.Discard())

	err := store.AppendManifest(context.Background(), ManifestEntry{SubmissionID: "sub-1"})
	require.Error(t, err)
	assert.Empty(t, mock.putCalls)
}
