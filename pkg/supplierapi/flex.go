package supplierapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// StringList decodes from a JSON array, a JSON-encoded array inside a string,
// or a comma separated string.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if data[0] == '[' {
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("supplierapi: certifications: %w", err)
		}
		*l = items
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("supplierapi: certifications: %w", err)
	}
	*l = ParseStringList(s)
	return nil
}

// ParseStringList parses the textual forms accepted by StringList.
func ParseStringList(s string) StringList {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "[") {
		var items []string
		if err := json.Unmarshal([]byte(s), &items); err == nil {
			return items
		}
	}
	var out StringList
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// AttestationData is the structured content of a fiscal regularity
// attestation, as extracted by OCR. Missing values are nil.
type AttestationData struct {
	NumeroAttestation           *string `json:"numero_attestation"`
	NumeroIdentificationFiscale *string `json:"numero_d_identification_fiscale"`
	ICE                         *string `json:"ice"`
	RegistreDeCommerce          *string `json:"registre_de_commerce"`
	TaxeProfessionnelle         *string `json:"taxe_professionnelle"`
	DateReception               *string `json:"date_reception"`
	DateEdition                 *string `json:"date_edition"`
	StatutRegularite            *bool   `json:"statut_regularite"`
	StatutGaranties             *bool   `json:"statut_garanties"`
	NestPasEnRegle              *bool   `json:"nest_pas_en_regle"`
}

// IsZero reports whether no field carries a value.
func (a *AttestationData) IsZero() bool {
	if a == nil {
		return true
	}
	for _, s := range []*string{a.NumeroAttestation, a.NumeroIdentificationFiscale, a.ICE, a.RegistreDeCommerce, a.TaxeProfessionnelle, a.DateReception, a.DateEdition} {
		if s != nil {
			return false
		}
	}
	return a.StatutRegularite == nil && a.StatutGaranties == nil && a.NestPasEnRegle == nil
}

// UnmarshalJSON accepts the object itself or the object encoded in a string,
// numbers where text is expected, and "true"/"false" strings for flags.
func (a *AttestationData) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return fmt.Errorf("supplierapi: attestation data: %w", err)
		}
		inner = strings.TrimSpace(inner)
		if inner == "" {
			*a = AttestationData{}
			return nil
		}
		data = []byte(inner)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("supplierapi: attestation data: %w", err)
	}
	out := AttestationData{
		NumeroAttestation:           flexString(raw["numero_attestation"]),
		NumeroIdentificationFiscale: flexString(raw["numero_d_identification_fiscale"]),
		ICE:                         flexString(raw["ice"]),
		RegistreDeCommerce:          flexString(raw["registre_de_commerce"]),
		TaxeProfessionnelle:         flexString(raw["taxe_professionnelle"]),
		DateReception:               flexString(raw["date_reception"]),
		DateEdition:                 flexString(raw["date_edition"]),
		StatutRegularite:            flexBool(raw["statut_regularite"]),
		StatutGaranties:             flexBool(raw["statut_garanties"]),
		NestPasEnRegle:              flexBool(raw["nest_pas_en_regle"]),
	}
	*a = out
	return nil
}

func flexString(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s = strings.TrimSpace(s); s == "" {
			return nil
		}
		return &s
	}
	// numbers and other scalars keep their literal text
	s = string(raw)
	return &s
}

func flexBool(raw json.RawMessage) *bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return &b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return &parsed
		}
	}
	return nil
}
