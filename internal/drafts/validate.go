package drafts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

// maxSteps bounds the persisted step; the confirmation step is never saved.
const maxSteps = 4

var (
	errFileContent = errors.New("Les fichiers ne peuvent pas être enregistrés dans un brouillon")
	errBadStep     = errors.New("Étape invalide")
)

// Validate refuses drafts carrying anything but scalar form values. Lists of
// strings (certifications) and the flat OCR attestation object are accepted.
func Validate(d *supplierapi.Draft) error {
	if d == nil {
		return errors.New("Brouillon vide")
	}
	if d.Step < 0 || d.Step >= maxSteps {
		return errBadStep
	}
	for key, value := range d.FormData {
		if isFileKey(key) {
			return errFileContent
		}
		if err := checkValue(key, value, true); err != nil {
			return err
		}
	}
	return nil
}

func isFileKey(key string) bool {
	return key == supplierapi.FilesField || strings.HasPrefix(key, "files")
}

func checkValue(key string, value any, nested bool) error {
	switch v := value.(type) {
	case nil, string, bool, float64:
		return nil
	case []any:
		for _, item := range v {
			if _, ok := item.(string); !ok {
				return fmt.Errorf("Valeur non autorisée pour %s", key)
			}
		}
		return nil
	case map[string]any:
		if !nested || key != supplierapi.AttestationFD {
			return fmt.Errorf("Valeur non autorisée pour %s", key)
		}
		for k, inner := range v {
			if err := checkValue(key+"."+k, inner, false); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("Valeur non autorisée pour %s", key)
}
