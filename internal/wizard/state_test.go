package wizard

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/supplier-onboarding/internal/filepolicy"
	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

func mustUpdate(t *testing.T, s State, name string, value any) State {
	t.Helper()
	next, err := UpdateField(s, name, value)
	require.NoError(t, err)
	return next
}

func organizationFilled(t *testing.T) State {
	t.Helper()
	s := NewState()
	for name, value := range map[string]string{
		supplierapi.FieldCountry:         supplierapi.CountryDomestic,
		supplierapi.FieldRaisonSociale:   "ACME SA",
		supplierapi.FieldFormeJuridique:  "SA",
		supplierapi.FieldAddress:         "12 rue des Lilas",
		supplierapi.FieldPostalCode:      "20000",
		supplierapi.FieldCity:            "Casablanca",
		supplierapi.FieldEmailEntreprise: "contact@acme.ma",
	} {
		s = mustUpdate(t, s, name, value)
	}
	return s
}

func TestNewStateDefaults(t *testing.T) {
	s := NewState()
	if s.Step != StepOrganization {
		t.Fatalf("step = %d, want %d", s.Step, StepOrganization)
	}
	if got := s.Draft.Field(supplierapi.FieldLanguage); got != "fr" {
		t.Errorf("language = %q, want fr", got)
	}
	if got := s.Draft.Field(supplierapi.FieldHSEPolicy); got != "oui" {
		t.Errorf("hsePolicy = %q, want oui", got)
	}
	for _, c := range supplierapi.Categories() {
		files, ok := s.Draft.Files[c]
		if !ok || files == nil || len(files) != 0 {
			t.Errorf("category %s should be present and empty, got %v (present=%v)", c, files, ok)
		}
	}
	if StepTitle(StepRecap) != "Récapitulatif" || StepTitle(StepCount) != "" {
		t.Errorf("unexpected step titles")
	}
}

func TestNextRequiresStepFields(t *testing.T) {
	s := NewState()

	next := Next(s)
	assert.Equal(t, StepOrganization, next.Step)
	assert.True(t, next.ScrollToTop)
	assert.Equal(t, "Raison sociale est requise", next.FieldErrors[supplierapi.FieldRaisonSociale])
	assert.Contains(t, next.FieldErrors, supplierapi.FieldEmailEntreprise)
	assert.Empty(t, s.FieldErrors, "reducers must not modify their input")

	filled := organizationFilled(t)
	filled.FieldErrors = next.FieldErrors
	advanced := Next(filled)
	assert.Equal(t, StepContact, advanced.Step)
	assert.Empty(t, advanced.FieldErrors)
}

func TestNextRequiresOtherLegalForm(t *testing.T) {
	s := organizationFilled(t)
	s = mustUpdate(t, s, supplierapi.FieldFormeJuridique, supplierapi.LegalFormOther)
	s = mustUpdate(t, s, supplierapi.FieldFormeJuridiqueAutre, "   ")

	next := Next(s)
	assert.Equal(t, StepOrganization, next.Step)
	assert.Equal(t, "Veuillez préciser la forme juridique", next.FieldErrors[supplierapi.FieldFormeJuridiqueAutre])

	s = mustUpdate(t, s, supplierapi.FieldFormeJuridiqueAutre, "Coopérative")
	assert.Equal(t, StepContact, Next(s).Step)
}

func TestValidateStepCompleteIsEmptyNotNil(t *testing.T) {
	errs := ValidateStep(NewDraft(), StepDocuments)
	if errs == nil || len(errs) != 0 {
		t.Fatalf("documents step has no required fields, got %v", errs)
	}
}

func TestUpdateField(t *testing.T) {
	s := NewState()
	s.Saved = true

	next := mustUpdate(t, s, supplierapi.FieldRaisonSociale, "ACME SA")
	assert.False(t, next.Saved)
	assert.Equal(t, "ACME SA", next.Draft.Field(supplierapi.FieldRaisonSociale))
	assert.Empty(t, s.Draft.Field(supplierapi.FieldRaisonSociale))

	next = mustUpdate(t, next, supplierapi.FieldCertifications, "ISO 9001, ISO 14001")
	assert.Equal(t, []string{"ISO 9001", "ISO 14001"}, next.Draft.Certifications)

	ice := "001525634000089"
	next = mustUpdate(t, next, supplierapi.AttestationFD, &supplierapi.AttestationData{ICE: &ice})
	require.NotNil(t, next.Draft.Attestation)
	assert.Equal(t, ice, *next.Draft.Attestation.ICE)

	_, err := UpdateField(next, "filesICE", "x")
	assert.True(t, errors.Is(err, ErrUnknownField))

	_, err = UpdateField(next, supplierapi.FieldCity, 42)
	assert.Error(t, err)
}

func TestAddFilesRejectsExecutable(t *testing.T) {
	policy := filepolicy.Default(0)
	s := NewState()

	next, err := AddFiles(s, policy, supplierapi.CategoryAttestationRIB, []Attachment{
		{Name: "virus.exe", MIMEType: "application/octet-stream", Data: []byte("MZ")},
	})
	require.NoError(t, err)
	assert.Empty(t, next.Draft.Files[supplierapi.CategoryAttestationRIB])
	assert.Equal(t, []string{"virus.exe: Type de fichier dangereux non autorisé"},
		next.FileErrors[supplierapi.CategoryAttestationRIB])
}

func TestAddFilesRejectsOversized(t *testing.T) {
	policy := filepolicy.Default(0)
	big := Attachment{Name: "statut.pdf", MIMEType: "application/pdf", Data: bytes.Repeat([]byte("a"), 6*1024*1024)}

	next, err := AddFiles(NewState(), policy, supplierapi.CategoryStatutMaroc, []Attachment{big})
	require.NoError(t, err)
	assert.Empty(t, next.Draft.Files[supplierapi.CategoryStatutMaroc])
	assert.Equal(t, []string{"statut.pdf: Fichier trop volumineux (max 5 Mo)"},
		next.FileErrors[supplierapi.CategoryStatutMaroc])
}

func TestAddFilesAcceptedClearsErrors(t *testing.T) {
	policy := filepolicy.Default(0)
	s, err := AddFiles(NewState(), policy, supplierapi.CategoryICE, []Attachment{{Name: "run.sh", Data: []byte("#!/bin/sh")}})
	require.NoError(t, err)
	require.NotEmpty(t, s.FileErrors[supplierapi.CategoryICE])

	s, err = AddFiles(s, policy, supplierapi.CategoryICE, []Attachment{{Name: "ice.pdf", MIMEType: "application/pdf", Data: []byte("%PDF-1.4")}})
	require.NoError(t, err)
	assert.Len(t, s.Draft.Files[supplierapi.CategoryICE], 1)
	assert.NotContains(t, s.FileErrors, supplierapi.CategoryICE)

	_, err = AddFiles(s, policy, supplierapi.Category("filesUnknown"), nil)
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestRemoveFile(t *testing.T) {
	policy := filepolicy.Default(0)
	s, err := AddFiles(NewState(), policy, supplierapi.CategoryICE, []Attachment{
		{Name: "a.pdf", Data: []byte("a")},
		{Name: "b.pdf", Data: []byte("b")},
	})
	require.NoError(t, err)

	unchanged := RemoveFile(s, supplierapi.CategoryICE, 5)
	assert.Len(t, unchanged.Draft.Files[supplierapi.CategoryICE], 2)

	next := RemoveFile(s, supplierapi.CategoryICE, 0)
	require.Len(t, next.Draft.Files[supplierapi.CategoryICE], 1)
	assert.Equal(t, "b.pdf", next.Draft.Files[supplierapi.CategoryICE][0].Name)
	assert.Len(t, s.Draft.Files[supplierapi.CategoryICE], 2)
}

func TestNavigation(t *testing.T) {
	s := NewState()
	assert.Equal(t, StepOrganization, Prev(s).Step)

	s = GoTo(s, StepRecap)
	assert.Equal(t, StepRecap, s.Step)
	assert.Equal(t, StepRecap, GoTo(s, 9).Step)
	assert.Equal(t, StepRecap, GoTo(s, -1).Step)
	assert.Equal(t, StepDocuments, Prev(s).Step)

	s = mustUpdate(t, s, supplierapi.FieldCity, "Rabat")
	reset := Reset(s)
	assert.Equal(t, StepOrganization, reset.Step)
	assert.Empty(t, reset.Draft.Field(supplierapi.FieldCity))
}
