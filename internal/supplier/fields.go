package supplier

import (
	"strings"

	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

// fieldSet drops empty values so the CRM keeps its defaults.
type fieldSet map[string]any

func (f fieldSet) str(name, value string) {
	if value = strings.TrimSpace(value); value != "" {
		f[name] = value
	}
}

func accountFields(req supplierapi.Request, rawCountry, recordTypeID string) map[string]any {
	f := fieldSet{}
	f.str("Name", req.RaisonSociale)
	f.str("RecordTypeId", recordTypeID)
	f.str("Phone", req.Phone)
	f.str("Website", req.Website)
	f.str("BillingStreet", req.Address)
	f.str("BillingCity", req.City)
	f.str("BillingPostalCode", req.PostalCode)
	f.str("BillingCountry", rawCountry)
	f.str("Country__c", req.Country)
	f.str("DBA__c", req.NomCommercial)
	f.str("RC__c", req.RC)
	f.str("LegalForm__c", req.FormeJuridique)
	f.str("CommonCompanyIdentifier__c", req.ICE)
	f.str("FiscalIdentifier__c", req.IdentifiantFiscal)
	f.str("Identifiant_fiscal_1__c", req.IdentifiantFiscal1)
	f.str("Identifiant_fiscal_2__c", req.IdentifiantFiscal2)
	f.str("Siret__c", req.Siret)
	f.str("VATNumber__c", req.TVA)
	f.str("EmailPrincipale__c", req.EmailEntreprise)
	f.str("DateCreation__c", req.DateCreation)
	f.str("SupplierType__c", req.TypeEntreprise)
	f.str("Nombre_d_employes__c", req.EffectifTotal)
	f.str("Effectif_Encadrement__c", req.EffectifEncadrement)
	f.str("ExercicesClos__c", req.ExercicesClos)
	f.str("Certifications_generales__c", strings.Join(req.Certifications, ", "))
	if hse, ok := ParseHSE(req.HSEPolicy); ok {
		f["PolitiqueHSE__c"] = hse
	}
	return f
}

func contactFields(req supplierapi.Request, accountID string) map[string]any {
	f := fieldSet{}
	f.str("FirstName", req.ContactPrenom)
	f.str("LastName", req.ContactNom)
	f.str("Email", req.Email)
	f.str("Salutation", req.Civility)
	f.str("Phone", req.ContactMobile)
	f.str("OtherPhone", req.OtherPhone)
	f.str("PreferredLanguage__c", req.Language)
	f.str("Timezone__c", req.Timezone)
	f["AccountId"] = accountID
	return f
}

func attestationFields(data *supplierapi.AttestationData, accountID string) map[string]any {
	deref := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	truthy := func(p *bool) bool { return p != nil && *p }

	f := fieldSet{}
	f.str("NumeroAttestation__c", deref(data.NumeroAttestation))
	f.str("NumeroDidentificationFiscale__c", deref(data.NumeroIdentificationFiscale))
	f.str("IdentifiantCommunEntreprise__c", deref(data.ICE))
	f.str("NumeroRegistreCommerce__c", deref(data.RegistreDeCommerce))
	f.str("NumeroDidentificationTaxePro__c", deref(data.TaxeProfessionnelle))
	f.str("DateDebut__c", ConvertDate(deref(data.DateReception)))
	f.str("DateEdition__c", ConvertDate(deref(data.DateEdition)))
	f["EstEnRegularite__c"] = truthy(data.StatutRegularite)
	f["AConstiteDesGarantiesSuffisante__c"] = truthy(data.StatutGaranties)
	f["NestPasEnRegle__c"] = truthy(data.NestPasEnRegle)
	f["Fournisseur__c"] = accountID
	return f
}
