// Package archive keeps a copy of accepted supplier documents in S3 next to a
// monthly JSONL manifest of created suppliers.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wolfman30/supplier-onboarding/pkg/logging"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ManifestEntry is one line of the monthly supplier manifest.
type ManifestEntry struct {
	SubmissionID  string `json:"submission_id"`
	AccountID     string `json:"account_id"`
	RaisonSociale string `json:"raison_sociale"`
	Country       string `json:"country,omitempty"`
	Documents     int    `json:"documents"`
	Warnings      int    `json:"warnings"`
	CreatedAt     string `json:"created_at"`
}

// Store writes documents and manifests to one bucket.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
	now      func() time.Time
}

// NewStore creates an archive Store. If bucket is empty, all operations are no-ops.
func NewStore(s3Client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, logger: logger, now: time.Now}
}

// Enabled returns true if archival is configured (bucket is set).
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// Put stores one document under key.
func (s *Store) Put(ctx context.Context, key, contentType string, body []byte) error {
	if !s.Enabled() {
		return nil
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(body),
		ContentType:          aws.String(contentType),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", key, err)
	}
	s.logger.Debug("archived supplier document", "s3_key", key, "bytes", len(body))
	return nil
}

// AppendManifest appends a JSONL line to the monthly manifest file.
// Uses read-modify-write since S3 doesn't support append.
func (s *Store) AppendManifest(ctx context.Context, entry ManifestEntry) error {
	if !s.Enabled() {
		return nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}

	now := s.now().UTC()
	manifestKey := fmt.Sprintf("suppliers/manifests/%d-%02d.jsonl", now.Year(), now.Month())

	var existing []byte
	getResp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(manifestKey),
	})
	switch {
	case err == nil:
		existing, err = io.ReadAll(getResp.Body)
		_ = getResp.Body.Close()
		if err != nil {
			return fmt.Errorf("archive: read manifest: %w", err)
		}
	case isNotFound(err):
		s.logger.Debug("manifest not found, creating new", "key", manifestKey)
	default:
		return fmt.Errorf("archive: s3 get manifest: %w", err)
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(manifestKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	return strings.Contains(err.Error(), "NoSuchKey")
}
