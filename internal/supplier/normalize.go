package supplier

import (
	"html"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

var (
	textPolicy = bluemonday.StrictPolicy()

	isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	frDate  = regexp.MustCompile(`^(\d{2})-(\d{2})-(\d{4})$`)
)

// domestic and foreign spellings accepted for the country field, after
// folding accents and case.
var (
	domesticTokens = map[string]bool{"maroc": true, "ma": true, "morocco": true, "domestic": true, "local": true}
	foreignTokens  = map[string]bool{"etranger": true, "foreign": true, "international": true}
)

// fold strips invisible characters and combining marks, then lowercases.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), runes.Remove(runes.In(unicode.Cf)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// NormalizeCountry maps the submitted country to the CRM picklist token.
// Empty input stays empty; any other unrecognized value is foreign.
func NormalizeCountry(raw string) string {
	c := fold(raw)
	switch {
	case c == "":
		return ""
	case domesticTokens[c]:
		return supplierapi.CountryDomestic
	case foreignTokens[c]:
		return supplierapi.CountryForeign
	default:
		return supplierapi.CountryForeign
	}
}

// RecordTypeFor returns the Account record type developer name for a
// normalized country.
func RecordTypeFor(country string) string {
	if country == supplierapi.CountryDomestic {
		return RecordTypeLocal
	}
	return RecordTypeForeign
}

// cleanText drops markup and surrounding whitespace from free text.
func cleanText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.ContainsAny(s, "<>") {
		return s
	}
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

// Normalize trims and cleans every scalar, resolves the country token and
// keeps only the identifier set matching it.
func Normalize(req supplierapi.Request) supplierapi.Request {
	out := req
	for _, f := range []*string{
		&out.RaisonSociale, &out.NomCommercial, &out.FormeJuridique, &out.FormeJuridiqueAutre,
		&out.ICE, &out.RC, &out.IdentifiantFiscal, &out.IdentifiantFiscal1, &out.IdentifiantFiscal2,
		&out.Siret, &out.TVA, &out.Address, &out.PostalCode, &out.City, &out.Phone, &out.Fax,
		&out.Website, &out.EmailEntreprise, &out.Civility, &out.ContactNom, &out.ContactPrenom,
		&out.ContactMobile, &out.FaxPro, &out.Fix, &out.OtherPhone, &out.Email, &out.Language,
		&out.Timezone, &out.DateCreation, &out.TypeEntreprise, &out.EffectifTotal,
		&out.EffectifEncadrement, &out.ExercicesClos, &out.HSEPolicy,
	} {
		*f = cleanText(*f)
	}
	if len(req.Certifications) > 0 {
		certs := make(supplierapi.StringList, 0, len(req.Certifications))
		for _, c := range req.Certifications {
			if c = cleanText(c); c != "" {
				certs = append(certs, c)
			}
		}
		out.Certifications = certs
	}
	if out.FormeJuridique == supplierapi.LegalFormOther && out.FormeJuridiqueAutre != "" {
		out.FormeJuridique = out.FormeJuridiqueAutre
	}

	out.Country = NormalizeCountry(req.Country)
	switch out.Country {
	case supplierapi.CountryDomestic:
		out.Siret, out.TVA = "", ""
	case supplierapi.CountryForeign:
		out.ICE, out.RC, out.IdentifiantFiscal, out.IdentifiantFiscal1, out.IdentifiantFiscal2 = "", "", "", "", ""
	}
	return out
}

// ParseHSE reads the HSE policy answer. ok is false when the value is empty
// or not understood, in which case the field is not sent.
func ParseHSE(v string) (value bool, ok bool) {
	switch fold(v) {
	case "oui", "true", "yes", "1":
		return true, true
	case "non", "false", "no", "0":
		return false, true
	default:
		return false, false
	}
}

// ConvertDate turns DD-MM-YYYY into YYYY-MM-DD. ISO dates pass through;
// anything else yields "".
func ConvertDate(s string) string {
	s = strings.TrimSpace(s)
	if isoDate.MatchString(s) {
		return s
	}
	if m := frDate.FindStringSubmatch(s); m != nil {
		return m[3] + "-" + m[2] + "-" + m[1]
	}
	return ""
}

// DocumentTitle derives the ContentVersion title and extension from an
// uploaded file name. Names that are not a known category label become
// "Document".
func DocumentTitle(fileName string) (title, ext string) {
	base := filepath.Base(strings.ReplaceAll(fileName, "\\", "/"))
	ext = strings.ToLower(filepath.Ext(base))
	title = strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if !supplierapi.IsKnownLabel(title) {
		title = "Document"
	}
	return title, ext
}
