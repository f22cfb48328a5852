// Package supplierapi holds the wire contract shared by the onboarding API
// and its clients: request field names, document categories and the
// response envelope of POST /api/supplier.
package supplierapi

import (
	"path/filepath"
	"strings"
)

// Routes and multipart field names.
const (
	SupplierPath  = "/api/supplier"
	LogoPath      = "/api/metadata/logo"
	OCRPath       = "/api/ocr/analyze"
	DraftsPath    = "/api/drafts"
	FilesField    = "files"
	OCRFileField  = "file"
	AttestationFD = "attestationRegulariteFiscaleData"
)

// Country picklist tokens.
const (
	CountryDomestic = "MAROC"
	CountryForeign  = "ETRANGER"
)

// LegalFormOther marks a free-text legal form carried in formeJuridiqueAutre.
const LegalFormOther = "AUTRE"

// Category names a document collection of the draft.
type Category string

const (
	CategoryAttestationRC                Category = "filesAttestationRC"
	CategoryAttestationRIB               Category = "filesAttestationRIB"
	CategoryAttestationTVA               Category = "filesAttestationTVA"
	CategoryICE                          Category = "filesICE"
	CategoryIdentifiantFiscal            Category = "filesIdentifiantFiscal"
	CategoryPresentationCommerciale      Category = "filesPresentationCommerciale"
	CategoryStatutMaroc                  Category = "filesStatutMaroc"
	CategoryAttestationRegulariteFiscale Category = "filesAttestationRegulariteFiscale"
	CategoryAttestationAT                Category = "filesAttestationAT"
	CategoryAttestationRCEtranger        Category = "filesAttestationRC_Etranger"
	CategoryAttestationRIBEtranger       Category = "filesAttestationRIB_Etranger"
	CategoryICEEtranger                  Category = "filesICE_Etranger"
)

// FiscalAttestationLabel is the title given to the fiscal regularity
// attestation; documents carrying it are published to the attestation record.
const FiscalAttestationLabel = "Attestation de Régularité Fiscale"

type categoryInfo struct {
	category Category
	label    string
	country  string
}

var categories = []categoryInfo{
	{CategoryAttestationRC, "Attestation RC", CountryDomestic},
	{CategoryAttestationRIB, "Attestation RIB", CountryDomestic},
	{CategoryAttestationTVA, "Attestation TVA", CountryDomestic},
	{CategoryICE, "ICE", CountryDomestic},
	{CategoryIdentifiantFiscal, "Identifiant Fiscal", CountryDomestic},
	{CategoryPresentationCommerciale, "Présentation Commerciale", CountryDomestic},
	{CategoryStatutMaroc, "Statut", CountryDomestic},
	{CategoryAttestationRegulariteFiscale, FiscalAttestationLabel, CountryDomestic},
	{CategoryAttestationAT, "Attestation d'assurance (AT)", CountryForeign},
	{CategoryAttestationRCEtranger, "Attestation d'assurance (RC)", CountryForeign},
	{CategoryAttestationRIBEtranger, "Attestation RIB", CountryForeign},
	{CategoryICEEtranger, "ICE", CountryForeign},
}

// Categories returns every document category in display order.
func Categories() []Category {
	out := make([]Category, 0, len(categories))
	for _, c := range categories {
		out = append(out, c.category)
	}
	return out
}

// CategoriesFor returns the categories offered for a country token.
func CategoriesFor(country string) []Category {
	var out []Category
	for _, c := range categories {
		if c.country == country {
			out = append(out, c.category)
		}
	}
	return out
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := lookup(c)
	return ok
}

// Label returns the deterministic document title of the category.
func (c Category) Label() string {
	if info, ok := lookup(c); ok {
		return info.label
	}
	return ""
}

func lookup(c Category) (categoryInfo, bool) {
	for _, info := range categories {
		if info.category == c {
			return info, true
		}
	}
	return categoryInfo{}, false
}

// IsKnownLabel reports whether title is one of the category labels.
func IsKnownLabel(title string) bool {
	for _, info := range categories {
		if info.label == title {
			return true
		}
	}
	return false
}

// IsFiscalAttestation reports whether a document title designates the fiscal
// regularity attestation, with or without accents.
func IsFiscalAttestation(title string) bool {
	lower := strings.ToLower(title)
	if !strings.Contains(lower, "attestation") || !strings.Contains(lower, "fiscale") {
		return false
	}
	return strings.Contains(lower, "régularité") || strings.Contains(lower, "regularite")
}

// UploadFileName is the name a document is sent under: the category label
// followed by the original extension, never the user's file name.
func UploadFileName(c Category, originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		ext = ".pdf"
	}
	label := c.Label()
	if label == "" {
		label = "FILE"
	}
	return label + ext
}

// Request field names, as sent in JSON bodies and multipart forms.
const (
	FieldCountry             = "country"
	FieldRaisonSociale       = "raisonSociale"
	FieldNomCommercial       = "nomCommercial"
	FieldFormeJuridique      = "formeJuridique"
	FieldFormeJuridiqueAutre = "formeJuridiqueAutre"
	FieldICE                 = "ice"
	FieldRC                  = "rc"
	FieldIdentifiantFiscal   = "identifiantFiscal"
	FieldIdentifiantFiscal1  = "identifiantFiscal1"
	FieldIdentifiantFiscal2  = "identifiantFiscal2"
	FieldSiret               = "siret"
	FieldTVA                 = "tva"
	FieldAddress             = "address"
	FieldPostalCode          = "postalCode"
	FieldCity                = "city"
	FieldPhone               = "phone"
	FieldFax                 = "fax"
	FieldWebsite             = "website"
	FieldEmailEntreprise     = "emailEntreprise"
	FieldCivility            = "civility"
	FieldContactNom          = "contactNom"
	FieldContactPrenom       = "contactPrenom"
	FieldContactMobile       = "contactMobile"
	FieldFaxPro              = "faxPro"
	FieldFix                 = "fix"
	FieldOtherPhone          = "otherPhone"
	FieldEmail               = "email"
	FieldLanguage            = "language"
	FieldTimezone            = "timezone"
	FieldDateCreation        = "dateCreation"
	FieldTypeEntreprise      = "typeEntreprise"
	FieldEffectifTotal       = "effectifTotal"
	FieldEffectifEncadrement = "effectifEncadrement"
	FieldExercicesClos       = "exercicesClos"
	FieldCertifications      = "certifications"
	FieldHSEPolicy           = "hsePolicy"
)

// Request is the JSON body of POST /api/supplier. Multipart submissions carry
// the same names as form fields.
type Request struct {
	Country             string           `json:"country,omitempty"`
	RaisonSociale       string           `json:"raisonSociale"`
	NomCommercial       string           `json:"nomCommercial,omitempty"`
	FormeJuridique      string           `json:"formeJuridique,omitempty"`
	FormeJuridiqueAutre string           `json:"formeJuridiqueAutre,omitempty"`
	ICE                 string           `json:"ice,omitempty"`
	RC                  string           `json:"rc,omitempty"`
	IdentifiantFiscal   string           `json:"identifiantFiscal,omitempty"`
	IdentifiantFiscal1  string           `json:"identifiantFiscal1,omitempty"`
	IdentifiantFiscal2  string           `json:"identifiantFiscal2,omitempty"`
	Siret               string           `json:"siret,omitempty"`
	TVA                 string           `json:"tva,omitempty"`
	Address             string           `json:"address,omitempty"`
	PostalCode          string           `json:"postalCode,omitempty"`
	City                string           `json:"city,omitempty"`
	Phone               string           `json:"phone,omitempty"`
	Fax                 string           `json:"fax,omitempty"`
	Website             string           `json:"website,omitempty"`
	EmailEntreprise     string           `json:"emailEntreprise,omitempty"`
	Civility            string           `json:"civility,omitempty"`
	ContactNom          string           `json:"contactNom"`
	ContactPrenom       string           `json:"contactPrenom"`
	ContactMobile       string           `json:"contactMobile,omitempty"`
	FaxPro              string           `json:"faxPro,omitempty"`
	Fix                 string           `json:"fix,omitempty"`
	OtherPhone          string           `json:"otherPhone,omitempty"`
	Email               string           `json:"email"`
	Language            string           `json:"language,omitempty"`
	Timezone            string           `json:"timezone,omitempty"`
	DateCreation        string           `json:"dateCreation,omitempty"`
	TypeEntreprise      string           `json:"typeEntreprise,omitempty"`
	EffectifTotal       string           `json:"effectifTotal,omitempty"`
	EffectifEncadrement string           `json:"effectifEncadrement,omitempty"`
	ExercicesClos       string           `json:"exercicesClos,omitempty"`
	Certifications      StringList       `json:"certifications,omitempty"`
	HSEPolicy           string           `json:"hsePolicy,omitempty"`
	AttestationData     *AttestationData `json:"attestationRegulariteFiscaleData,omitempty"`
}

// Response is the envelope returned by POST /api/supplier.
type Response struct {
	Success    bool          `json:"success"`
	Message    string        `json:"message,omitempty"`
	Data       *ResponseData `json:"data,omitempty"`
	Warnings   []string      `json:"warnings"`
	Error      string        `json:"error,omitempty"`
	Duplicates []Duplicate   `json:"duplicates,omitempty"`
	LoginURL   string        `json:"loginUrl,omitempty"`
}

// ResponseData lists the CRM records created by a submission.
type ResponseData struct {
	AccountID     string         `json:"accountId"`
	ContactID     *string        `json:"contactId"`
	ContactLinked bool           `json:"contactLinked"`
	AttestationID *string        `json:"attestationId"`
	UploadedFiles []UploadedFile `json:"uploadedFiles"`
}

// UploadedFile references one stored document.
type UploadedFile struct {
	FileName          string `json:"fileName"`
	ContentDocumentID string `json:"contentDocumentId"`
}

// Duplicate describes one field rejected by a CRM duplicate rule. Field is nil
// when the CRM field has no form counterpart.
type Duplicate struct {
	Field   *string `json:"field"`
	Label   string  `json:"label"`
	Message string  `json:"message"`
}

// LogoResponse is returned by GET /api/metadata/logo.
type LogoResponse struct {
	Success       bool   `json:"success"`
	LogoURL       string `json:"logoUrl,omitempty"`
	LogoName      string `json:"logoName,omitempty"`
	DeveloperName string `json:"developerName,omitempty"`
	Error         string `json:"error,omitempty"`
	LoginURL      string `json:"loginUrl,omitempty"`
}

// ErrorResponse is the body of non-supplier error replies (OCR, drafts).
type ErrorResponse struct {
	Error string `json:"error"`
}
