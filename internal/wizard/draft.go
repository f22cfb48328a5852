// Package wizard is the client side of supplier onboarding: the five-step
// form as an explicit state value, pure reducers over it, draft persistence
// at checkpoints, and building and interpreting the submission request.
package wizard

import (
	"errors"
	"fmt"
	"sort"

	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

// Branding keys kept in the draft next to the form fields.
const (
	FieldLogoURL       = "logoUrl"
	FieldLogoName      = "logoName"
	FieldLogoDeveloper = "logoDeveloper"
)

// ErrUnknownField is returned when a field name is not part of the form.
var ErrUnknownField = errors.New("wizard: unknown field")

var scalarFields = map[string]bool{
	supplierapi.FieldCountry:             true,
	supplierapi.FieldRaisonSociale:       true,
	supplierapi.FieldNomCommercial:       true,
	supplierapi.FieldFormeJuridique:      true,
	supplierapi.FieldFormeJuridiqueAutre: true,
	supplierapi.FieldICE:                 true,
	supplierapi.FieldRC:                  true,
	supplierapi.FieldIdentifiantFiscal:   true,
	supplierapi.FieldSiret:               true,
	supplierapi.FieldTVA:                 true,
	supplierapi.FieldAddress:             true,
	supplierapi.FieldPostalCode:          true,
	supplierapi.FieldCity:                true,
	supplierapi.FieldPhone:               true,
	supplierapi.FieldFax:                 true,
	supplierapi.FieldWebsite:             true,
	supplierapi.FieldEmailEntreprise:     true,
	supplierapi.FieldCivility:            true,
	supplierapi.FieldContactNom:          true,
	supplierapi.FieldContactPrenom:       true,
	supplierapi.FieldContactMobile:       true,
	supplierapi.FieldFaxPro:              true,
	supplierapi.FieldFix:                 true,
	supplierapi.FieldOtherPhone:          true,
	supplierapi.FieldEmail:               true,
	supplierapi.FieldLanguage:            true,
	supplierapi.FieldTimezone:            true,
	supplierapi.FieldDateCreation:        true,
	supplierapi.FieldTypeEntreprise:      true,
	supplierapi.FieldEffectifTotal:       true,
	supplierapi.FieldEffectifEncadrement: true,
	supplierapi.FieldExercicesClos:       true,
	supplierapi.FieldHSEPolicy:           true,
	FieldLogoURL:                         true,
	FieldLogoName:                        true,
	FieldLogoDeveloper:                   true,
}

// IsScalarField reports whether name is a text field of the form.
func IsScalarField(name string) bool {
	return scalarFields[name]
}

// ScalarFields returns the text field names in sorted order.
func ScalarFields() []string {
	out := make([]string, 0, len(scalarFields))
	for name := range scalarFields {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Attachment is one document picked by the user. It lives only in memory.
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Size returns the attachment length in bytes.
func (a Attachment) Size() int64 { return int64(len(a.Data)) }

// Draft is the in-progress form. Files holds one list per document category;
// every known category is always present.
type Draft struct {
	Fields         map[string]string
	Certifications []string
	Attestation    *supplierapi.AttestationData
	Files          map[supplierapi.Category][]Attachment
}

// NewDraft returns an empty draft with the form defaults.
func NewDraft() Draft {
	d := Draft{
		Fields: map[string]string{
			supplierapi.FieldLanguage:  "fr",
			supplierapi.FieldTimezone:  "WET",
			supplierapi.FieldHSEPolicy: "oui",
		},
		Files: make(map[supplierapi.Category][]Attachment, len(supplierapi.Categories())),
	}
	for _, c := range supplierapi.Categories() {
		d.Files[c] = []Attachment{}
	}
	return d
}

// Field returns the value of a text field, empty when unset.
func (d Draft) Field(name string) string {
	return d.Fields[name]
}

// FileCount returns the number of attachments across categories.
func (d Draft) FileCount() int {
	n := 0
	for _, files := range d.Files {
		n += len(files)
	}
	return n
}

// Clone returns a copy sharing no maps or slices with d. Attachment bytes
// are shared; they are never modified in place.
func (d Draft) Clone() Draft {
	out := Draft{
		Fields: make(map[string]string, len(d.Fields)),
		Files:  make(map[supplierapi.Category][]Attachment, len(d.Files)),
	}
	for k, v := range d.Fields {
		out.Fields[k] = v
	}
	if d.Certifications != nil {
		out.Certifications = append([]string(nil), d.Certifications...)
	}
	if d.Attestation != nil {
		a := *d.Attestation
		out.Attestation = &a
	}
	for c, files := range d.Files {
		out.Files[c] = append([]Attachment{}, files...)
	}
	for _, c := range supplierapi.Categories() {
		if out.Files[c] == nil {
			out.Files[c] = []Attachment{}
		}
	}
	return out
}

// set applies one field change. Text fields take a string, certifications a
// list or a comma separated string, attestation data its struct or nil.
func (d *Draft) set(name string, value any) error {
	switch {
	case scalarFields[name]:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("wizard: field %s expects text, got %T", name, value)
		}
		d.Fields[name] = s
	case name == supplierapi.FieldCertifications:
		switch v := value.(type) {
		case []string:
			d.Certifications = append([]string(nil), v...)
		case string:
			d.Certifications = supplierapi.ParseStringList(v)
		case nil:
			d.Certifications = nil
		default:
			return fmt.Errorf("wizard: field %s expects a list, got %T", name, value)
		}
	case name == supplierapi.AttestationFD:
		switch v := value.(type) {
		case *supplierapi.AttestationData:
			if v == nil {
				d.Attestation = nil
				return nil
			}
			a := *v
			d.Attestation = &a
		case nil:
			d.Attestation = nil
		default:
			return fmt.Errorf("wizard: field %s expects attestation data, got %T", name, value)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	return nil
}
