package supplier

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wolfman30/supplier-onboarding/internal/filepolicy"
	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

// requiredFields are the fields checked server-side, in reporting order.
type requiredFields struct {
	RaisonSociale   string `json:"raisonSociale" validate:"required"`
	ContactPrenom   string `json:"contactPrenom" validate:"required"`
	ContactNom      string `json:"contactNom" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	EmailEntreprise string `json:"emailEntreprise" validate:"omitempty,email"`
}

var fieldMessages = map[string]map[string]string{
	supplierapi.FieldRaisonSociale:   {"required": "Raison sociale est requise"},
	supplierapi.FieldContactPrenom:   {"required": "Prénom du contact est requis"},
	supplierapi.FieldContactNom:      {"required": "Nom du contact est requis"},
	supplierapi.FieldEmail:           {"required": "Email principal est requis", "email": "Email principal invalide"},
	supplierapi.FieldEmailEntreprise: {"email": "Email entreprise invalide"},
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest checks mandatory fields on an already normalized request
// and returns the first failure.
func validateRequest(v *validator.Validate, req supplierapi.Request) error {
	err := v.Struct(requiredFields{
		RaisonSociale:   req.RaisonSociale,
		ContactPrenom:   req.ContactPrenom,
		ContactNom:      req.ContactNom,
		Email:           req.Email,
		EmailEntreprise: req.EmailEntreprise,
	})
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Message: "Requête invalide"}
	}
	fe := fieldErrs[0]
	msg := fieldMessages[fe.Field()][fe.Tag()]
	if msg == "" {
		msg = fe.Field() + " invalide"
	}
	return &ValidationError{Field: fe.Field(), Message: msg}
}

// checkFiles applies the file policy to every upload. Any violation rejects
// the whole submission.
func checkFiles(policy filepolicy.Policy, files []Upload) error {
	if err := policy.CheckCount(len(files)); err != nil {
		return err
	}
	for _, f := range files {
		if err := policy.CheckContent(f.FileName, f.Data, f.ContentType); err != nil {
			return err
		}
	}
	return nil
}

func isEmptyRequest(req supplierapi.Request) bool {
	return reflect.ValueOf(req).IsZero()
}
