package supplierapi

import "time"

// Draft is saved wizard progress. FormData holds scalar fields keyed by their
// request names; attached files are never part of a draft.
type Draft struct {
	Step     int            `json:"step"`
	SavedAt  time.Time      `json:"savedAt"`
	FormData map[string]any `json:"formData"`
}
