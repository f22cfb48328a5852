package redact

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	recordID  = regexp.MustCompile(`\b[0-9A-Za-z]{15,18}\b`)
	apiSuffix = regexp.MustCompile(`__(c|r)\b`)
)

func TestSanitizeDuplicateHidesIdentifiers(t *testing.T) {
	s := Default()
	msg := "DUPLICATE_VALUE: duplicate value found: NomFournisseur__c duplicates value on record with id: 001Wx00000AbCdEFGH"

	out := s.Sanitize(msg)

	assert.Equal(t, "Doublon détecté : un enregistrement avec cette valeur existe déjà. Veuillez vérifier le nom du fournisseur et réessayer.", out)
	assert.False(t, recordID.MatchString(out))
	assert.False(t, apiSuffix.MatchString(out))
}

func TestSanitizeFriendlyPhrases(t *testing.T) {
	s := Default()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "required field",
			in:   "REQUIRED_FIELD_MISSING: Required fields are missing: [NomFournisseur__c]",
			want: "Des champs obligatoires sont manquants : Required fields are missing Nom Fournisseur",
		},
		{
			name: "invalid email",
			in:   "INVALID_EMAIL_ADDRESS: Email: invalid email address: foo@",
			want: "Adresse email invalide : Email invalid email address foo@",
		},
		{
			name: "picklist",
			in:   "INVALID_OR_NULL_FOR_RESTRICTED_PICKLIST: Country: bad value for restricted picklist field: Narnia",
			want: "Valeur invalide pour un champ de liste : Country bad value for restricted picklist field Narnia",
		},
		{
			name: "scrub only",
			in:   "Cannot update Account.Contact__c on record 001Wx00000AbCdEFGH   now",
			want: "Cannot update [champ supprimé] on record now",
		},
		{
			name: "humanized api names and objects",
			in:   "Field Effectif_Encadrement__c is not writeable on Account",
			want: "Field Effectif Encadrement is not writeable on [objet]",
		},
		{
			name: "empty",
			in:   "   ",
			want: "Erreur lors de la création du fournisseur",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Sanitize(tt.in))
		})
	}
}

func TestIsValidation(t *testing.T) {
	s := Default()
	assert.True(t, s.IsValidation([]string{"REQUIRED_FIELD_MISSING"}, ""))
	assert.True(t, s.IsValidation(nil, "STRING_TOO_LONG: Nom commercial: data value too large"))
	assert.False(t, s.IsValidation([]string{"UNKNOWN_EXCEPTION"}, "boom"))
}

func TestDuplicates(t *testing.T) {
	s := Default()

	t.Run("mapped fields", func(t *testing.T) {
		dups := s.Duplicates([]string{
			"duplicate value found: NomFournisseur__c duplicates value on record with id: 001Wx00000AbCdEFGH",
			"duplicate value found: DBA__c duplicates value on record with id: 001Wx00000AbCdEFGH",
		}, []string{"Name"})
		require.Len(t, dups, 2)
		require.NotNil(t, dups[0].Field)
		assert.Equal(t, "raisonSociale", *dups[0].Field)
		assert.Equal(t, "Raison sociale", dups[0].Label)
		require.NotNil(t, dups[1].Field)
		assert.Equal(t, "nomCommercial", *dups[1].Field)
		assert.Equal(t, "Valeur dupliquée", dups[1].Message)
	})

	t.Run("unmapped field falls back to generic entry", func(t *testing.T) {
		dups := s.Duplicates([]string{"duplicate value found: Siret__c duplicates value on record with id: 001Wx00000AbCdEFGH"}, nil)
		require.Len(t, dups, 1)
		assert.Nil(t, dups[0].Field)
		assert.Equal(t, "Valeur existante", dups[0].Label)
	})
}

func TestClientRulesUsePlaceholders(t *testing.T) {
	s := MustNew(ClientRules())
	assert.Equal(t, "Erreur sur [champ supprimé] de [objet] [id supprimé]", s.Sanitize("Erreur sur Siret__c de Account 001Wx00000AbCdEFGH"))
	assert.Equal(t, "Doublon détecté : une valeur identique existe déjà.", s.Sanitize("Duplicate detected"))
}

func TestLoadRulesOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("generic_message: 'Oups'\nobject_placeholder: '<obj>'\n"), 0o600))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, "Oups", rules.GenericMessage)
	assert.NotEmpty(t, rules.Phrases, "unspecified keys keep defaults")

	s, err := New(rules)
	require.NoError(t, err)
	assert.Equal(t, "Lien <obj> refusé", s.Sanitize("Lien Contact refusé"))

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewRejectsBadPattern(t *testing.T) {
	rules := DefaultRules()
	rules.IDPattern = "("
	_, err := New(rules)
	assert.Error(t, err)
}
