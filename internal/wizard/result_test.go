package wizard

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

func TestInterpretSuccess(t *testing.T) {
	body := `{"success":true,"data":{"accountId":"001Wx00000AbCdEFGH","contactId":null,"uploadedFiles":null},"warnings":[]}`

	res := Interpret(http.StatusOK, []byte(body), nil)
	ok, isSuccess := res.(Success)
	require.True(t, isSuccess, "got %T", res)
	assert.Equal(t, "001Wx00000AbCdEFGH", ok.AccountID)
	assert.Nil(t, ok.ContactID)
	assert.NotNil(t, ok.AttachmentRefs)
	assert.Empty(t, ok.Warnings)
}

func TestInterpretSuccessSanitizesWarnings(t *testing.T) {
	body := `{"success":true,"data":{"accountId":"001A"},"warnings":["Cannot update Account.Contact__c on record 001Wx00000AbCdEFGH"]}`

	res := Interpret(http.StatusOK, []byte(body), nil)
	ok, isSuccess := res.(Success)
	require.True(t, isSuccess, "got %T", res)
	require.Len(t, ok.Warnings, 1)
	assert.NotContains(t, ok.Warnings[0], "001Wx00000AbCdEFGH")
	assert.NotContains(t, ok.Warnings[0], "Contact__c")
}

func TestInterpretRefusals(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, res SubmissionResult)
	}{
		{
			name:   "duplicate",
			status: http.StatusConflict,
			body:   `{"success":false,"error":"Doublon détecté","duplicates":[{"field":"raisonSociale","label":"Nom Fournisseur","message":"Valeur existante"}]}`,
			check: func(t *testing.T, res SubmissionResult) {
				c, ok := res.(Conflict)
				require.True(t, ok, "got %T", res)
				assert.Contains(t, c.Message, "Doublon")
				require.Len(t, c.DuplicateFields, 1)
				assert.Equal(t, "raisonSociale", *c.DuplicateFields[0].Field)
			},
		},
		{
			name:   "login required",
			status: http.StatusUnauthorized,
			body:   `{"success":false,"error":"Non connecté","loginUrl":"https://onboarding.example.com/login"}`,
			check: func(t *testing.T, res SubmissionResult) {
				assert.Equal(t, AuthRequired{LoginURL: "https://onboarding.example.com/login"}, res)
			},
		},
		{
			name:   "validation",
			status: http.StatusBadRequest,
			body:   `{"success":false,"error":"Raison sociale est requise"}`,
			check: func(t *testing.T, res SubmissionResult) {
				v, ok := res.(ValidationFailure)
				require.True(t, ok, "got %T", res)
				assert.Equal(t, "Raison sociale est requise", v.Message)
			},
		},
		{
			name:   "server detail hidden",
			status: http.StatusInternalServerError,
			body:   `{"success":false,"error":"INVALID_SESSION_ID: Session expired for 00Dxx0000001gPL"}`,
			check: func(t *testing.T, res SubmissionResult) {
				assert.Equal(t, Failure{SanitizedMessage: UnexpectedErrorMessage}, res)
			},
		},
		{
			name:   "duplicate outside conflict stays readable",
			status: http.StatusInternalServerError,
			body:   `{"success":false,"error":"DUPLICATE_VALUE: duplicate value found: NomFournisseur__c duplicates value on record with id: 001Wx00000AbCdEFGH"}`,
			check: func(t *testing.T, res SubmissionResult) {
				f, ok := res.(Failure)
				require.True(t, ok, "got %T", res)
				assert.Contains(t, f.SanitizedMessage, "Doublon")
				assert.NotContains(t, f.SanitizedMessage, "001Wx00000AbCdEFGH")
			},
		},
		{
			name:   "not json",
			status: http.StatusBadGateway,
			body:   `<html>bad gateway</html>`,
			check: func(t *testing.T, res SubmissionResult) {
				assert.Equal(t, Failure{SanitizedMessage: UnexpectedErrorMessage}, res)
			},
		},
		{
			name:   "success without data",
			status: http.StatusOK,
			body:   `{"success":true}`,
			check: func(t *testing.T, res SubmissionResult) {
				assert.Equal(t, Failure{SanitizedMessage: UnexpectedErrorMessage}, res)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, Interpret(tt.status, []byte(tt.body), nil))
		})
	}
}

func TestDuplicateErrors(t *testing.T) {
	field := supplierapi.FieldEmail
	errs := DuplicateErrors([]supplierapi.Duplicate{
		{Field: &field, Label: "Email", Message: "Email déjà utilisé"},
		{Label: "Nom Fournisseur"},
		{Label: "Nom commercial", Message: "Nom commercial existant"},
		{Label: "Numéro interne", Message: "Valeur existante"},
	})

	assert.Equal(t, FieldErrors{
		supplierapi.FieldEmail:         "Email déjà utilisé",
		supplierapi.FieldRaisonSociale: DuplicateFieldMessage,
		supplierapi.FieldNomCommercial: "Nom commercial existant",
	}, errs)
}
