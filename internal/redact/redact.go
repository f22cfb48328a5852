// Package redact turns CRM error text into messages safe to show suppliers:
// no record ids, no API field or object names, and fixed French phrasing for
// the error classes users can act on.
package redact

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// DuplicateField maps a CRM field to its form field and label.
type DuplicateField struct {
	Field string `yaml:"field"`
	Label string `yaml:"label"`
}

// DuplicateRules configures duplicate-value handling.
type DuplicateRules struct {
	Detect        string                    `yaml:"detect"`
	FieldPattern  string                    `yaml:"field_pattern"`
	Message       string                    `yaml:"message"`
	FieldMessage  string                    `yaml:"field_message"`
	FallbackLabel string                    `yaml:"fallback_label"`
	Fields        map[string]DuplicateField `yaml:"fields"`
}

// Phrase replaces an error carrying Code with Prefix plus the scrubbed detail.
type Phrase struct {
	Code       string `yaml:"code"`
	Prefix     string `yaml:"prefix"`
	Validation bool   `yaml:"validation"`
}

// Rules is the configuration of a Sanitizer.
type Rules struct {
	IDPattern             string         `yaml:"id_pattern"`
	IDReplacement         string         `yaml:"id_replacement"`
	QualifiedFieldPattern string         `yaml:"qualified_field_pattern"`
	FieldPlaceholder      string         `yaml:"field_placeholder"`
	SchemaFieldPattern    string         `yaml:"schema_field_pattern"`
	HumanizeSchemaFields  bool           `yaml:"humanize_schema_fields"`
	ObjectNames           []string       `yaml:"object_names"`
	ObjectPlaceholder     string         `yaml:"object_placeholder"`
	GenericMessage        string         `yaml:"generic_message"`
	Duplicate             DuplicateRules `yaml:"duplicate"`
	Phrases               []Phrase       `yaml:"phrases"`
}

// DefaultRules returns the embedded server-side rules.
func DefaultRules() Rules {
	var r Rules
	if err := yaml.Unmarshal(defaultRulesYAML, &r); err != nil {
		panic(fmt.Sprintf("redact: embedded rules: %v", err))
	}
	return r
}

// ClientRules returns the stricter rules used when the wizard displays
// server text: ids and field names become visible placeholders.
func ClientRules() Rules {
	r := DefaultRules()
	r.IDReplacement = "[id supprimé]"
	r.HumanizeSchemaFields = false
	r.Duplicate.Message = "Doublon détecté : une valeur identique existe déjà."
	r.Phrases = nil
	return r
}

// LoadRules reads rules from a YAML file. Keys absent from the file keep the
// embedded defaults.
func LoadRules(path string) (Rules, error) {
	r := DefaultRules()
	if strings.TrimSpace(path) == "" {
		return r, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("redact: read rules: %w", err)
	}
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return r, fmt.Errorf("redact: parse rules: %w", err)
	}
	return r, nil
}

// Sanitizer applies a compiled rule set. It is safe for concurrent use.
type Sanitizer struct {
	rules          Rules
	id             *regexp.Regexp
	qualifiedField *regexp.Regexp
	schemaField    *regexp.Regexp
	objects        *regexp.Regexp
	duplicate      *regexp.Regexp
	duplicateField *regexp.Regexp
	phrases        []compiledPhrase
	space          *regexp.Regexp
	camel          *regexp.Regexp
}

type compiledPhrase struct {
	Phrase
	match  *regexp.Regexp
	detail *regexp.Regexp
}

// New compiles rules into a Sanitizer.
func New(rules Rules) (*Sanitizer, error) {
	s := &Sanitizer{
		rules: rules,
		space: regexp.MustCompile(`\s+`),
		camel: regexp.MustCompile(`([a-z])([A-Z])`),
	}
	var err error
	compile := func(pattern string) *regexp.Regexp {
		if err != nil || pattern == "" {
			return nil
		}
		var re *regexp.Regexp
		re, err = regexp.Compile(pattern)
		return re
	}
	s.id = compile(rules.IDPattern)
	s.qualifiedField = compile(rules.QualifiedFieldPattern)
	s.schemaField = compile(rules.SchemaFieldPattern)
	s.duplicate = compile(rules.Duplicate.Detect)
	s.duplicateField = compile(rules.Duplicate.FieldPattern)
	if len(rules.ObjectNames) > 0 {
		quoted := make([]string, 0, len(rules.ObjectNames))
		for _, name := range rules.ObjectNames {
			quoted = append(quoted, regexp.QuoteMeta(name))
		}
		s.objects = compile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}
	for _, p := range rules.Phrases {
		code := regexp.QuoteMeta(p.Code)
		cp := compiledPhrase{
			Phrase: p,
			match:  compile(`(?i)` + code),
			detail: compile(`(?is)^.*` + code + `:?\s*`),
		}
		s.phrases = append(s.phrases, cp)
	}
	if err != nil {
		return nil, fmt.Errorf("redact: compile rules: %w", err)
	}
	return s, nil
}

// MustNew is New for rule sets known to be valid.
func MustNew(rules Rules) *Sanitizer {
	s, err := New(rules)
	if err != nil {
		panic(err)
	}
	return s
}

// Default returns a Sanitizer over DefaultRules.
func Default() *Sanitizer {
	return MustNew(DefaultRules())
}

// GenericMessage is the text shown for errors that cannot be classified.
func (s *Sanitizer) GenericMessage() string {
	return s.rules.GenericMessage
}

// Sanitize returns the user-facing form of msg.
func (s *Sanitizer) Sanitize(msg string) string {
	if strings.TrimSpace(msg) == "" {
		return s.rules.GenericMessage
	}
	if s.IsDuplicate(msg) {
		return s.rules.Duplicate.Message
	}
	for _, p := range s.phrases {
		if p.match != nil && p.match.MatchString(msg) {
			detail := msg
			if p.detail != nil {
				detail = p.detail.ReplaceAllString(msg, "")
			}
			detail = strings.NewReplacer(":", " ", "[", " ", "]", " ").Replace(detail)
			return strings.TrimSpace(p.Prefix + s.Scrub(detail))
		}
	}
	out := s.Scrub(msg)
	if out == "" {
		return s.rules.GenericMessage
	}
	return out
}

// Scrub removes identifiers and schema names without rephrasing.
func (s *Sanitizer) Scrub(msg string) string {
	if s.qualifiedField != nil {
		msg = s.qualifiedField.ReplaceAllString(msg, s.rules.FieldPlaceholder)
	}
	if s.objects != nil {
		msg = s.objects.ReplaceAllString(msg, s.rules.ObjectPlaceholder)
	}
	if s.schemaField != nil {
		if s.rules.HumanizeSchemaFields {
			msg = s.schemaField.ReplaceAllStringFunc(msg, func(m string) string {
				sub := s.schemaField.FindStringSubmatch(m)
				if len(sub) < 2 {
					return ""
				}
				return s.humanize(sub[1])
			})
		} else {
			msg = s.schemaField.ReplaceAllString(msg, s.rules.FieldPlaceholder)
		}
	}
	if s.id != nil {
		msg = s.id.ReplaceAllString(msg, s.rules.IDReplacement)
	}
	return strings.TrimSpace(s.space.ReplaceAllString(msg, " "))
}

func (s *Sanitizer) humanize(apiName string) string {
	human := strings.ReplaceAll(apiName, "_", " ")
	return strings.TrimSpace(s.camel.ReplaceAllString(human, "$1 $2"))
}

// IsDuplicate reports whether msg describes a duplicate-value rejection.
func (s *Sanitizer) IsDuplicate(msg string) bool {
	return s.duplicate != nil && s.duplicate.MatchString(msg)
}

// IsValidation reports whether any of the CRM error codes, or the message
// text itself, belongs to a validation class the user can fix.
func (s *Sanitizer) IsValidation(codes []string, msg string) bool {
	for _, p := range s.phrases {
		if !p.Validation {
			continue
		}
		for _, code := range codes {
			if strings.EqualFold(code, p.Code) {
				return true
			}
		}
		if p.match != nil && p.match.MatchString(msg) {
			return true
		}
	}
	return false
}

// Duplicates maps duplicate-value errors to form fields. apiFields lists
// field names reported by the CRM alongside the messages; names found in the
// messages are added. Fields without a form counterpart collapse into one
// entry with a nil Field.
func (s *Sanitizer) Duplicates(messages []string, apiFields []string) []supplierapi.Duplicate {
	names := append([]string(nil), apiFields...)
	if s.duplicateField != nil {
		for _, msg := range messages {
			for _, m := range s.duplicateField.FindAllStringSubmatch(msg, -1) {
				names = append(names, m[1])
			}
		}
	}

	var out []supplierapi.Duplicate
	seen := map[string]bool{}
	for _, name := range names {
		mapped, ok := s.rules.Duplicate.Fields[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			continue
		}
		if seen[mapped.Field] {
			continue
		}
		seen[mapped.Field] = true
		field := mapped.Field
		out = append(out, supplierapi.Duplicate{
			Field:   &field,
			Label:   mapped.Label,
			Message: s.rules.Duplicate.FieldMessage,
		})
	}
	if len(out) == 0 {
		out = append(out, supplierapi.Duplicate{
			Label:   s.rules.Duplicate.FallbackLabel,
			Message: s.rules.Duplicate.FieldMessage,
		})
	}
	return out
}
