package wizard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strings"

	"github.com/wolfman30/supplier-onboarding/internal/filepolicy"
	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

// Length limits of the CRM fields behind the form.
const (
	MaxICEDigits        = 18
	MaxSiretLength      = 14
	MaxNomCommercialLen = 20
)

const incompleteMessage = "Veuillez corriger les champs requis avant de soumettre."

// BuildError explains why a draft cannot be sent yet.
type BuildError struct {
	Message    string
	Fields     FieldErrors
	FileErrors map[supplierapi.Category][]string
}

func (e *BuildError) Error() string {
	return "wizard: " + e.Message
}

// OutgoingFile is one document as it is sent: named after its category.
type OutgoingFile struct {
	Category supplierapi.Category
	FileName string
	MIMEType string
	Data     []byte
}

// Submission is a ready to send POST /api/supplier request.
type Submission struct {
	Request supplierapi.Request
	Files   []OutgoingFile
	// Normalized holds the fields rewritten to fit CRM limits, so the draft
	// can show what was actually sent.
	Normalized map[string]string
}

// BuildSubmission validates the draft and turns it into a request. Only the
// identifiers of the selected country are included.
func BuildSubmission(d Draft, policy filepolicy.Policy) (*Submission, error) {
	if errs := ValidateAll(d); len(errs) > 0 {
		return nil, &BuildError{Message: incompleteMessage, Fields: errs}
	}

	normalized := map[string]string{}
	ice := d.Field(supplierapi.FieldICE)
	if ice != "" {
		digits := digitsOnly(ice)
		if len(digits) > MaxICEDigits {
			return nil, &BuildError{
				Message: incompleteMessage,
				Fields:  FieldErrors{supplierapi.FieldICE: fmt.Sprintf("L'ICE doit comporter au plus %d chiffres", MaxICEDigits)},
			}
		}
		if digits != ice {
			normalized[supplierapi.FieldICE] = digits
			ice = digits
		}
	}
	siret := d.Field(supplierapi.FieldSiret)
	if truncated := truncate(siret, MaxSiretLength); truncated != siret {
		normalized[supplierapi.FieldSiret] = truncated
		siret = truncated
	}
	nomCommercial := d.Field(supplierapi.FieldNomCommercial)
	if truncated := truncate(nomCommercial, MaxNomCommercialLen); truncated != nomCommercial {
		normalized[supplierapi.FieldNomCommercial] = truncated
		nomCommercial = truncated
	}

	formeJuridique := d.Field(supplierapi.FieldFormeJuridique)
	if formeJuridique == supplierapi.LegalFormOther {
		if other := d.Field(supplierapi.FieldFormeJuridiqueAutre); !blank(other) {
			formeJuridique = other
		}
	}

	req := supplierapi.Request{
		Country:             d.Field(supplierapi.FieldCountry),
		RaisonSociale:       d.Field(supplierapi.FieldRaisonSociale),
		NomCommercial:       nomCommercial,
		FormeJuridique:      formeJuridique,
		FormeJuridiqueAutre: d.Field(supplierapi.FieldFormeJuridiqueAutre),
		Address:             d.Field(supplierapi.FieldAddress),
		PostalCode:          d.Field(supplierapi.FieldPostalCode),
		City:                d.Field(supplierapi.FieldCity),
		Phone:               d.Field(supplierapi.FieldPhone),
		Fax:                 d.Field(supplierapi.FieldFax),
		Website:             d.Field(supplierapi.FieldWebsite),
		EmailEntreprise:     d.Field(supplierapi.FieldEmailEntreprise),
		Civility:            d.Field(supplierapi.FieldCivility),
		ContactNom:          d.Field(supplierapi.FieldContactNom),
		ContactPrenom:       d.Field(supplierapi.FieldContactPrenom),
		ContactMobile:       d.Field(supplierapi.FieldContactMobile),
		FaxPro:              d.Field(supplierapi.FieldFaxPro),
		Fix:                 d.Field(supplierapi.FieldFix),
		OtherPhone:          d.Field(supplierapi.FieldOtherPhone),
		Email:               d.Field(supplierapi.FieldEmail),
		Language:            d.Field(supplierapi.FieldLanguage),
		Timezone:            d.Field(supplierapi.FieldTimezone),
		DateCreation:        d.Field(supplierapi.FieldDateCreation),
		TypeEntreprise:      d.Field(supplierapi.FieldTypeEntreprise),
		EffectifTotal:       d.Field(supplierapi.FieldEffectifTotal),
		EffectifEncadrement: d.Field(supplierapi.FieldEffectifEncadrement),
		ExercicesClos:       d.Field(supplierapi.FieldExercicesClos),
		HSEPolicy:           d.Field(supplierapi.FieldHSEPolicy),
	}
	if len(d.Certifications) > 0 {
		req.Certifications = append(supplierapi.StringList(nil), d.Certifications...)
	}
	if !d.Attestation.IsZero() {
		a := *d.Attestation
		req.AttestationData = &a
	}
	switch req.Country {
	case supplierapi.CountryDomestic:
		req.ICE = ice
		req.RC = d.Field(supplierapi.FieldRC)
		req.IdentifiantFiscal = d.Field(supplierapi.FieldIdentifiantFiscal)
	case supplierapi.CountryForeign:
		req.Siret = siret
		req.TVA = d.Field(supplierapi.FieldTVA)
	}

	files, fileErrs := outgoingFiles(d, policy)
	if len(fileErrs) > 0 {
		return nil, &BuildError{Message: "Certains fichiers ne respectent pas les règles d'envoi.", FileErrors: fileErrs}
	}
	if err := policy.CheckCount(len(files)); err != nil {
		return nil, &BuildError{Message: err.Error()}
	}

	return &Submission{Request: req, Files: files, Normalized: normalized}, nil
}

// outgoingFiles re-checks every attachment and names it after its category,
// in the display order of the categories.
func outgoingFiles(d Draft, policy filepolicy.Policy) ([]OutgoingFile, map[supplierapi.Category][]string) {
	var (
		out  []OutgoingFile
		errs = map[supplierapi.Category][]string{}
	)
	for _, c := range supplierapi.Categories() {
		for _, f := range d.Files[c] {
			if err := policy.Check(f.Name, f.Size(), f.MIMEType); err != nil {
				errs[c] = append(errs[c], fileError(f.Name, err))
				continue
			}
			out = append(out, OutgoingFile{
				Category: c,
				FileName: supplierapi.UploadFileName(c, f.Name),
				MIMEType: f.MIMEType,
				Data:     f.Data,
			})
		}
	}
	return out, errs
}

// Multipart reports whether the submission must be sent as multipart.
func (s *Submission) Multipart() bool {
	return len(s.Files) > 0
}

// Encode returns the request body and its content type: JSON without files,
// multipart/form-data with every file under the shared "files" field.
func (s *Submission) Encode() (io.Reader, string, error) {
	if !s.Multipart() {
		body, err := json.Marshal(s.Request)
		if err != nil {
			return nil, "", fmt.Errorf("wizard: encode request: %w", err)
		}
		return bytes.NewReader(body), "application/json", nil
	}

	fields, err := formFields(s.Request)
	if err != nil {
		return nil, "", err
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("wizard: write field %s: %w", f.name, err)
		}
	}
	for _, f := range s.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			supplierapi.FilesField, quoteEscaper.Replace(f.FileName)))
		contentType := f.MIMEType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("wizard: create file part: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("wizard: write file part: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("wizard: close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

type formField struct {
	name  string
	value string
}

// formFields flattens the request through its JSON form so multipart and
// JSON bodies carry the same names. Lists repeat the field; objects are sent
// as JSON text.
func formFields(req supplierapi.Request) ([]formField, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("wizard: encode request: %w", err)
	}
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("wizard: flatten request: %w", err)
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []formField
	for _, k := range keys {
		switch v := values[k].(type) {
		case nil:
		case string:
			out = append(out, formField{k, v})
		case []any:
			for _, item := range v {
				out = append(out, formField{k, fmt.Sprint(item)})
			}
		default:
			text, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("wizard: encode field %s: %w", k, err)
			}
			out = append(out, formField{k, string(text)})
		}
	}
	return out, nil
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
