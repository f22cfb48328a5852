package wizard

import (
	"errors"

	"github.com/wolfman30/supplier-onboarding/internal/filepolicy"
	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

// Steps of the wizard, in display order.
const (
	StepOrganization = iota
	StepContact
	StepDocuments
	StepRecap
	StepConfirmation

	StepCount
)

var stepTitles = [StepCount]string{
	"Données d'organisation principale",
	"Contact principal entreprise",
	"Documents",
	"Récapitulatif",
	"Confirmation",
}

// StepTitle returns the heading of a step, empty when out of range.
func StepTitle(step int) string {
	if step < 0 || step >= StepCount {
		return ""
	}
	return stepTitles[step]
}

// ErrUnknownCategory is returned for a document category the form does not have.
var ErrUnknownCategory = errors.New("wizard: unknown document category")

// State is everything the wizard shows. Reducers never modify their input;
// they return an updated copy.
type State struct {
	Step           int
	Draft          Draft
	Saved          bool
	Submitting     bool
	FieldErrors    FieldErrors
	FileErrors     map[supplierapi.Category][]string
	SubmitError    string
	SubmitWarnings []string
	// ScrollToTop is raised by navigation so the view shows the step header
	// and any error summary.
	ScrollToTop bool
}

// NewState returns the initial state: empty draft on the first step.
func NewState() State {
	return State{
		Step:        StepOrganization,
		Draft:       NewDraft(),
		FieldErrors: FieldErrors{},
		FileErrors:  map[supplierapi.Category][]string{},
	}
}

func (s State) clone() State {
	out := s
	out.Draft = s.Draft.Clone()
	out.FieldErrors = make(FieldErrors, len(s.FieldErrors))
	for k, v := range s.FieldErrors {
		out.FieldErrors[k] = v
	}
	out.FileErrors = make(map[supplierapi.Category][]string, len(s.FileErrors))
	for k, v := range s.FileErrors {
		out.FileErrors[k] = append([]string(nil), v...)
	}
	if s.SubmitWarnings != nil {
		out.SubmitWarnings = append([]string(nil), s.SubmitWarnings...)
	}
	out.ScrollToTop = false
	return out
}

// UpdateField sets one field by its wire name. It does not validate.
func UpdateField(s State, name string, value any) (State, error) {
	next := s.clone()
	if err := next.Draft.set(name, value); err != nil {
		return s, err
	}
	next.Saved = false
	return next, nil
}

// AddFiles appends the files of one category that pass the policy. Rejected
// files are reported as "<name>: <reason>" in FileErrors; accepting at least
// one file clears the earlier errors of the category.
func AddFiles(s State, policy filepolicy.Policy, category supplierapi.Category, files []Attachment) (State, error) {
	if !category.Valid() {
		return s, ErrUnknownCategory
	}
	next := s.clone()
	var (
		rejected []string
		accepted []Attachment
	)
	for _, f := range files {
		if err := policy.Check(f.Name, f.Size(), f.MIMEType); err != nil {
			rejected = append(rejected, fileError(f.Name, err))
			continue
		}
		accepted = append(accepted, f)
	}
	if len(rejected) > 0 {
		next.FileErrors[category] = rejected
	}
	if len(accepted) > 0 {
		next.Draft.Files[category] = append(next.Draft.Files[category], accepted...)
		next.Saved = false
		delete(next.FileErrors, category)
	}
	return next, nil
}

// RemoveFile drops one attachment. An index out of range changes nothing
// but the saved flag.
func RemoveFile(s State, category supplierapi.Category, index int) State {
	next := s.clone()
	files := next.Draft.Files[category]
	if index >= 0 && index < len(files) {
		next.Draft.Files[category] = append(files[:index:index], files[index+1:]...)
	}
	next.Saved = false
	return next
}

// Next advances one step when the current one validates. Otherwise the
// errors are stored and the step is kept.
func Next(s State) State {
	next := s.clone()
	errs := ValidateStep(s.Draft, s.Step)
	next.ScrollToTop = true
	if len(errs) > 0 {
		next.FieldErrors = errs
		return next
	}
	for field := range stepFields(s.Step) {
		delete(next.FieldErrors, field)
	}
	if next.Step < StepCount-1 {
		next.Step++
	}
	return next
}

// Prev goes back one step.
func Prev(s State) State {
	next := s.clone()
	if next.Step > 0 {
		next.Step--
		next.ScrollToTop = true
	}
	return next
}

// GoTo jumps to a step without validation. Out of range targets are ignored.
func GoTo(s State, step int) State {
	if step < 0 || step >= StepCount {
		return s
	}
	next := s.clone()
	next.Step = step
	next.ScrollToTop = true
	return next
}

// Reset returns a fresh state on the first step.
func Reset(State) State {
	next := NewState()
	next.ScrollToTop = true
	return next
}

func stepFields(step int) map[string]bool {
	out := map[string]bool{}
	for _, req := range stepRequirements[step] {
		out[req.field] = true
	}
	if step == StepOrganization {
		out[supplierapi.FieldFormeJuridiqueAutre] = true
	}
	return out
}

func fileError(name string, err error) string {
	var v *filepolicy.Violation
	if errors.As(err, &v) {
		return name + ": " + v.Message()
	}
	return name + ": " + err.Error()
}
