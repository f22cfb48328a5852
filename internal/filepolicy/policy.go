// Package filepolicy decides which uploaded documents are acceptable. The
// same policy runs in the wizard before sending and in the API before any
// CRM write.
package filepolicy

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxBytes is the per-file ceiling when none is configured.
const DefaultMaxBytes int64 = 5 * 1024 * 1024

// DefaultMaxFiles bounds the number of documents in one submission.
const DefaultMaxFiles = 20

var (
	defaultExtensions   = []string{".pdf", ".jpg", ".jpeg", ".png", ".doc", ".docx", ".xls", ".xlsx", ".csv", ".txt", ".tiff"}
	defaultMIMEPrefixes = []string{"application/", "image/", "text/"}

	executableName = regexp.MustCompile(`(?i)\.(exe|sh|bat|cmd|js|jar|msi)$`)

	// detected content types refused whatever the declared name says
	executableMIMEs = []string{
		"application/vnd.microsoft.portable-executable",
		"application/x-msdownload",
		"application/x-executable",
		"application/x-elf",
		"application/x-mach-binary",
		"application/x-sharedlib",
		"application/x-msi",
		"application/jar",
		"application/java-archive",
		"text/x-shellscript",
	}
)

// Reason classifies a rejected file.
type Reason string

const (
	ReasonTooLarge       Reason = "too_large"
	ReasonTypeNotAllowed Reason = "type_not_allowed"
	ReasonExecutable     Reason = "executable"
	ReasonTooMany        Reason = "too_many"
	ReasonInvalid        Reason = "invalid"
)

// Violation is returned when a file breaks the policy.
type Violation struct {
	Name   string
	Reason Reason
	Limit  int64
}

func (v *Violation) Error() string {
	if v.Name == "" {
		return v.Message()
	}
	return v.Name + ": " + v.Message()
}

// Message is the user-facing explanation, without the file name.
func (v *Violation) Message() string {
	switch v.Reason {
	case ReasonTooLarge:
		return fmt.Sprintf("Fichier trop volumineux (max %d Mo)", (v.Limit+512*1024)/(1024*1024))
	case ReasonTypeNotAllowed:
		return "Type de fichier non autorisé"
	case ReasonExecutable:
		return "Type de fichier dangereux non autorisé"
	case ReasonTooMany:
		return fmt.Sprintf("Trop de fichiers envoyés (max %d)", v.Limit)
	default:
		return "Fichier invalide"
	}
}

// Policy holds the acceptance rules.
type Policy struct {
	MaxBytes            int64
	MaxFiles            int
	AllowedExtensions   []string
	AllowedMIMEPrefixes []string
}

// Default returns the standard policy with the given per-file ceiling; a
// non-positive value selects DefaultMaxBytes.
func Default(maxBytes int64) Policy {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return Policy{
		MaxBytes:            maxBytes,
		MaxFiles:            DefaultMaxFiles,
		AllowedExtensions:   append([]string(nil), defaultExtensions...),
		AllowedMIMEPrefixes: append([]string(nil), defaultMIMEPrefixes...),
	}
}

// Check validates file metadata: size, then type (extension or declared MIME
// prefix), then executable-looking names, which are refused even when the
// MIME type passes.
func (p Policy) Check(name string, size int64, mimeType string) error {
	if strings.TrimSpace(name) == "" || size < 0 {
		return &Violation{Name: name, Reason: ReasonInvalid}
	}
	if p.MaxBytes > 0 && size > p.MaxBytes {
		return &Violation{Name: name, Reason: ReasonTooLarge, Limit: p.MaxBytes}
	}
	lower := strings.ToLower(name)
	if !p.extensionAllowed(lower) && !p.mimeAllowed(strings.ToLower(mimeType)) {
		return &Violation{Name: name, Reason: ReasonTypeNotAllowed}
	}
	if executableName.MatchString(lower) {
		return &Violation{Name: name, Reason: ReasonExecutable}
	}
	return nil
}

// CheckContent runs Check and then sniffs the bytes, refusing executables
// disguised under an allowed name.
func (p Policy) CheckContent(name string, data []byte, mimeType string) error {
	if err := p.Check(name, int64(len(data)), mimeType); err != nil {
		return err
	}
	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		for _, exe := range executableMIMEs {
			if m.Is(exe) {
				return &Violation{Name: name, Reason: ReasonExecutable}
			}
		}
	}
	return nil
}

// CheckCount enforces MaxFiles.
func (p Policy) CheckCount(n int) error {
	if p.MaxFiles > 0 && n > p.MaxFiles {
		return &Violation{Reason: ReasonTooMany, Limit: int64(p.MaxFiles)}
	}
	return nil
}

// DetectMIME returns the sniffed content type of data.
func DetectMIME(data []byte) string {
	return mimetype.Detect(data).String()
}

func (p Policy) extensionAllowed(lowerName string) bool {
	ext := filepath.Ext(lowerName)
	for _, allowed := range p.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (p Policy) mimeAllowed(mimeType string) bool {
	if mimeType == "" {
		return false
	}
	for _, prefix := range p.AllowedMIMEPrefixes {
		if strings.HasPrefix(mimeType, prefix) {
			return true
		}
	}
	return false
}
