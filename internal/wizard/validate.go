package wizard

import (
	"strings"

	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

// FieldErrors maps a field name to the message shown next to it.
type FieldErrors map[string]string

type requirement struct {
	field   string
	message string
}

var stepRequirements = map[int][]requirement{
	StepOrganization: {
		{supplierapi.FieldRaisonSociale, "Raison sociale est requise"},
		{supplierapi.FieldFormeJuridique, "Forme juridique est requise"},
		{supplierapi.FieldAddress, "Adresse est requise"},
		{supplierapi.FieldPostalCode, "Code postal est requis"},
		{supplierapi.FieldCity, "Ville est requise"},
		{supplierapi.FieldEmailEntreprise, "Email entreprise est requis"},
	},
	StepContact: {
		{supplierapi.FieldCivility, "Civilité est requise"},
		{supplierapi.FieldContactNom, "Nom du contact est requis"},
		{supplierapi.FieldContactPrenom, "Prénom du contact est requis"},
		{supplierapi.FieldEmail, "Email principal est requis"},
	},
}

// ValidateStep returns the missing required fields of one step. The result
// is empty, never nil, when the step is complete.
func ValidateStep(d Draft, step int) FieldErrors {
	errs := FieldErrors{}
	for _, req := range stepRequirements[step] {
		if blank(d.Field(req.field)) {
			errs[req.field] = req.message
		}
	}
	if step == StepOrganization &&
		d.Field(supplierapi.FieldFormeJuridique) == supplierapi.LegalFormOther &&
		blank(d.Field(supplierapi.FieldFormeJuridiqueAutre)) {
		errs[supplierapi.FieldFormeJuridiqueAutre] = "Veuillez préciser la forme juridique"
	}
	return errs
}

// ValidateAll merges the errors of every step that gates submission.
func ValidateAll(d Draft) FieldErrors {
	all := FieldErrors{}
	for step := StepOrganization; step <= StepDocuments; step++ {
		for k, v := range ValidateStep(d, step) {
			all[k] = v
		}
	}
	return all
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
