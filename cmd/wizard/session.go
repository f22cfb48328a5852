package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wolfman30/supplier-onboarding/internal/filepolicy"
	"github.com/wolfman30/supplier-onboarding/internal/wizard"
	"github.com/wolfman30/supplier-onboarding/pkg/logging"
	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

// Navigation choices.
const (
	actionNext     = "Suivant"
	actionPrev     = "Précédent"
	actionSave     = "Enregistrer le brouillon"
	actionQuit     = "Quitter"
	actionSubmit   = "Soumettre"
	actionEdit     = "Modifier une étape"
	actionDone     = "Continuer"
	actionRemove   = "Retirer un fichier"
	actionAnalyze  = "Analyser l'attestation fiscale"
	actionFinish   = "Terminer"
	actionNewEntry = "Nouveau fournisseur"
)

type formField struct {
	name    string
	label   string
	options []string
	list    bool
	show    func(wizard.Draft) bool
}

func domestic(d wizard.Draft) bool {
	return d.Field(supplierapi.FieldCountry) != supplierapi.CountryForeign
}

func foreign(d wizard.Draft) bool {
	return d.Field(supplierapi.FieldCountry) == supplierapi.CountryForeign
}

var organizationFields = []formField{
	{name: supplierapi.FieldCountry, label: "Pays", options: []string{supplierapi.CountryDomestic, supplierapi.CountryForeign}},
	{name: supplierapi.FieldRaisonSociale, label: "Raison sociale *"},
	{name: supplierapi.FieldNomCommercial, label: "Nom commercial"},
	{name: supplierapi.FieldFormeJuridique, label: "Forme juridique *", options: []string{"SA", "SARL", "SARL AU", "SAS", "SNC", "GIE", supplierapi.LegalFormOther}},
	{name: supplierapi.FieldFormeJuridiqueAutre, label: "Précisez la forme juridique *", show: func(d wizard.Draft) bool {
		return d.Field(supplierapi.FieldFormeJuridique) == supplierapi.LegalFormOther
	}},
	{name: supplierapi.FieldICE, label: "ICE", show: domestic},
	{name: supplierapi.FieldRC, label: "Registre de commerce", show: domestic},
	{name: supplierapi.FieldIdentifiantFiscal, label: "Identifiant fiscal", show: domestic},
	{name: supplierapi.FieldSiret, label: "SIRET", show: foreign},
	{name: supplierapi.FieldTVA, label: "Numéro de TVA", show: foreign},
	{name: supplierapi.FieldAddress, label: "Adresse *"},
	{name: supplierapi.FieldPostalCode, label: "Code postal *"},
	{name: supplierapi.FieldCity, label: "Ville *"},
	{name: supplierapi.FieldPhone, label: "Téléphone"},
	{name: supplierapi.FieldFax, label: "Fax"},
	{name: supplierapi.FieldWebsite, label: "Site web"},
	{name: supplierapi.FieldEmailEntreprise, label: "Email entreprise *"},
	{name: supplierapi.FieldDateCreation, label: "Date de création (AAAA-MM-JJ)"},
	{name: supplierapi.FieldTypeEntreprise, label: "Type d'entreprise"},
	{name: supplierapi.FieldEffectifTotal, label: "Effectif total"},
	{name: supplierapi.FieldEffectifEncadrement, label: "Effectif d'encadrement"},
	{name: supplierapi.FieldExercicesClos, label: "Exercices clos"},
	{name: supplierapi.FieldCertifications, label: "Certifications (séparées par des virgules)", list: true},
	{name: supplierapi.FieldHSEPolicy, label: "Politique HSE", options: []string{"oui", "non"}},
}

var contactFields = []formField{
	{name: supplierapi.FieldCivility, label: "Civilité *", options: []string{"M.", "Mme"}},
	{name: supplierapi.FieldContactNom, label: "Nom *"},
	{name: supplierapi.FieldContactPrenom, label: "Prénom *"},
	{name: supplierapi.FieldEmail, label: "Email principal *"},
	{name: supplierapi.FieldContactMobile, label: "Mobile"},
	{name: supplierapi.FieldFix, label: "Téléphone fixe"},
	{name: supplierapi.FieldFaxPro, label: "Fax professionnel"},
	{name: supplierapi.FieldOtherPhone, label: "Autre téléphone"},
	{name: supplierapi.FieldLanguage, label: "Langue", options: []string{"fr", "en"}},
	{name: supplierapi.FieldTimezone, label: "Fuseau horaire"},
}

// session drives one controller from the terminal.
type session struct {
	ctrl     *wizard.Controller
	p        prompter
	out      io.Writer
	logger   *logging.Logger
	readFile func(string) ([]byte, error)
}

func newSession(ctrl *wizard.Controller, p prompter, out io.Writer, logger *logging.Logger) *session {
	return &session{ctrl: ctrl, p: p, out: out, logger: logger, readFile: os.ReadFile}
}

func (s *session) run(ctx context.Context) error {
	if err := s.ctrl.Load(ctx); err != nil {
		s.logger.Warn("saved draft unreadable; starting over", "error", err)
	}
	if st := s.ctrl.State(); st.Step > wizard.StepOrganization || st.Draft.Field(supplierapi.FieldRaisonSociale) != "" {
		resume, err := s.p.Confirm("Un brouillon a été trouvé. Le reprendre ?", true)
		if err != nil {
			return err
		}
		if !resume {
			if err := s.ctrl.Reset(ctx); err != nil {
				s.logger.Warn("failed to clear draft", "error", err)
			}
		}
	}
	if err := s.ctrl.FetchLogo(ctx); err != nil {
		s.logger.Debug("logo unavailable", "error", err)
	} else if name := s.ctrl.State().Draft.Field(wizard.FieldLogoName); name != "" {
		fmt.Fprintf(s.out, "%s\n", name)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		st := s.ctrl.State()
		fmt.Fprintf(s.out, "\n== Étape %d/%d : %s ==\n", st.Step+1, wizard.StepCount, wizard.StepTitle(st.Step))

		var err error
		switch st.Step {
		case wizard.StepOrganization:
			err = s.askFields(organizationFields)
		case wizard.StepContact:
			err = s.askFields(contactFields)
		case wizard.StepDocuments:
			err = s.askDocuments(ctx)
		case wizard.StepRecap:
			s.printRecap(st.Draft)
		case wizard.StepConfirmation:
			fmt.Fprintln(s.out, "Merci, votre demande de référencement a bien été transmise.")
			return nil
		}
		if err != nil {
			return err
		}

		done, err := s.navigate(ctx)
		if err != nil || done {
			return err
		}
	}
}

func (s *session) askFields(fields []formField) error {
	for _, f := range fields {
		d := s.ctrl.State().Draft
		if f.show != nil && !f.show(d) {
			continue
		}
		var (
			value any
			err   error
		)
		switch {
		case f.list:
			value, err = s.p.Input(f.label, strings.Join(d.Certifications, ", "))
		case len(f.options) > 0:
			value, err = s.p.Select(f.label, f.options, d.Field(f.name))
		default:
			value, err = s.p.Input(f.label, d.Field(f.name))
		}
		if err != nil {
			return err
		}
		if err := s.ctrl.UpdateField(f.name, value); err != nil {
			return err
		}
	}
	return nil
}

// navigate asks for the next move until the step changes or the fields of
// the current step need another pass. done ends the session.
func (s *session) navigate(ctx context.Context) (bool, error) {
	for {
		st := s.ctrl.State()
		options := []string{actionNext}
		if st.Step == wizard.StepRecap {
			options = []string{actionSubmit, actionEdit}
		}
		if st.Step > wizard.StepOrganization {
			options = append(options, actionPrev)
		}
		options = append(options, actionSave, actionQuit)

		choice, err := s.p.Select("Que souhaitez-vous faire ?", options, options[0])
		if err != nil {
			return false, err
		}
		switch choice {
		case actionNext:
			advanced, err := s.ctrl.Next(ctx)
			if err != nil {
				fmt.Fprintln(s.out, "Le brouillon n'a pas pu être enregistré.")
			}
			if !advanced {
				s.printFieldErrors(s.ctrl.State().FieldErrors)
			}
			return false, nil
		case actionPrev:
			s.ctrl.Prev()
			return false, nil
		case actionEdit:
			if err := s.editStep(ctx); err != nil {
				return false, err
			}
			return false, nil
		case actionSave:
			if err := s.ctrl.SaveProgress(ctx); err != nil {
				fmt.Fprintln(s.out, "Le brouillon n'a pas pu être enregistré.")
				continue
			}
			fmt.Fprintln(s.out, "Brouillon enregistré. Les fichiers joints devront être ajoutés à nouveau.")
		case actionQuit:
			if err := s.ctrl.SaveProgress(ctx); err != nil {
				s.logger.Warn("failed to save draft on exit", "error", err)
			}
			return true, nil
		case actionSubmit:
			return s.submit(ctx)
		}
	}
}

func (s *session) editStep(ctx context.Context) error {
	titles := make([]string, 0, wizard.StepRecap)
	for step := wizard.StepOrganization; step < wizard.StepRecap; step++ {
		titles = append(titles, wizard.StepTitle(step))
	}
	choice, err := s.p.Select("Quelle étape modifier ?", titles, titles[0])
	if err != nil {
		return err
	}
	for step, title := range titles {
		if title == choice {
			if err := s.ctrl.GoTo(ctx, step); err != nil {
				fmt.Fprintln(s.out, "Le brouillon n'a pas pu être enregistré.")
			}
		}
	}
	return nil
}

func (s *session) submit(ctx context.Context) (bool, error) {
	fmt.Fprintln(s.out, "Envoi en cours...")
	res, err := s.ctrl.SubmitForm(ctx)
	st := s.ctrl.State()
	if err != nil {
		var be *wizard.BuildError
		if !errors.As(err, &be) {
			s.logger.Debug("submission failed", "error", err)
		}
		if st.SubmitError != "" {
			fmt.Fprintln(s.out, st.SubmitError)
		}
		s.printFieldErrors(st.FieldErrors)
		s.printFileErrors(st.FileErrors)
		return false, ctx.Err()
	}

	switch r := res.(type) {
	case wizard.Success:
		if len(r.Warnings) == 0 {
			fmt.Fprintf(s.out, "Fournisseur créé (%s).\n", r.AccountID)
			return false, nil
		}
		fmt.Fprintf(s.out, "Fournisseur créé (%s) avec des avertissements :\n", r.AccountID)
		for _, w := range r.Warnings {
			fmt.Fprintf(s.out, "  - %s\n", w)
		}
		choice, err := s.p.Select("Que souhaitez-vous faire ?", []string{actionFinish, actionNewEntry}, actionFinish)
		if err != nil {
			return false, err
		}
		if err := s.ctrl.Reset(ctx); err != nil {
			s.logger.Warn("failed to clear draft", "error", err)
		}
		return choice == actionFinish, nil
	case wizard.AuthRequired:
		fmt.Fprintln(s.out, st.SubmitError)
		fmt.Fprintf(s.out, "Page de connexion : %s\n", r.LoginURL)
	default:
		fmt.Fprintln(s.out, st.SubmitError)
		s.printFieldErrors(st.FieldErrors)
	}
	return false, nil
}

func (s *session) askDocuments(ctx context.Context) error {
	for {
		st := s.ctrl.State()
		country := st.Draft.Field(supplierapi.FieldCountry)
		if country == "" {
			country = supplierapi.CountryDomestic
		}
		byLabel := map[string]supplierapi.Category{}
		var options []string
		for _, c := range supplierapi.CategoriesFor(country) {
			label := fmt.Sprintf("%s (%d)", c.Label(), len(st.Draft.Files[c]))
			byLabel[label] = c
			options = append(options, label)
		}
		if st.Draft.FileCount() > 0 {
			options = append(options, actionRemove)
		}
		if len(st.Draft.Files[supplierapi.CategoryAttestationRegulariteFiscale]) > 0 {
			options = append(options, actionAnalyze)
		}
		options = append(options, actionDone)

		choice, err := s.p.Select("Documents à joindre", options, actionDone)
		if err != nil {
			return err
		}
		switch choice {
		case actionDone:
			return nil
		case actionRemove:
			if err := s.removeFile(); err != nil {
				return err
			}
		case actionAnalyze:
			s.analyze(ctx)
		default:
			if err := s.attach(byLabel[choice]); err != nil {
				return err
			}
		}
	}
}

func (s *session) attach(category supplierapi.Category) error {
	path, err := s.p.Input("Chemin du fichier", "")
	if err != nil {
		return err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	data, err := s.readFile(path)
	if err != nil {
		fmt.Fprintf(s.out, "Lecture impossible : %s\n", filepath.Base(path))
		return nil
	}
	doc := wizard.Attachment{Name: filepath.Base(path), MIMEType: filepolicy.DetectMIME(data), Data: data}
	if err := s.ctrl.AddFiles(category, []wizard.Attachment{doc}); err != nil {
		return err
	}
	for _, msg := range s.ctrl.State().FileErrors[category] {
		fmt.Fprintf(s.out, "  ! %s\n", msg)
	}
	return nil
}

func (s *session) removeFile() error {
	type ref struct {
		category supplierapi.Category
		index    int
	}
	st := s.ctrl.State()
	refs := map[string]ref{}
	var options []string
	for _, c := range supplierapi.Categories() {
		for i, f := range st.Draft.Files[c] {
			label := fmt.Sprintf("%s : %s", c.Label(), f.Name)
			refs[label] = ref{c, i}
			options = append(options, label)
		}
	}
	choice, err := s.p.Select("Fichier à retirer", options, "")
	if err != nil {
		return err
	}
	if r, ok := refs[choice]; ok {
		s.ctrl.RemoveFile(r.category, r.index)
	}
	return nil
}

func (s *session) analyze(ctx context.Context) {
	fmt.Fprintln(s.out, "Analyse de l'attestation...")
	data, err := s.ctrl.AnalyzeAttestation(ctx)
	if err != nil {
		s.logger.Debug("attestation analysis failed", "error", err)
		fmt.Fprintln(s.out, "L'attestation n'a pas pu être analysée.")
		return
	}
	printAttestation(s.out, data)
}

func (s *session) printRecap(d wizard.Draft) {
	for _, name := range wizard.ScalarFields() {
		if name == wizard.FieldLogoURL || name == wizard.FieldLogoName || name == wizard.FieldLogoDeveloper {
			continue
		}
		if v := d.Field(name); v != "" {
			fmt.Fprintf(s.out, "  %-22s %s\n", name, v)
		}
	}
	if len(d.Certifications) > 0 {
		fmt.Fprintf(s.out, "  %-22s %s\n", supplierapi.FieldCertifications, strings.Join(d.Certifications, ", "))
	}
	for _, c := range supplierapi.Categories() {
		for _, f := range d.Files[c] {
			fmt.Fprintf(s.out, "  [%s] %s\n", c.Label(), f.Name)
		}
	}
	if d.Attestation != nil {
		printAttestation(s.out, d.Attestation)
	}
}

func (s *session) printFieldErrors(errs wizard.FieldErrors) {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(s.out, "  ! %s\n", errs[k])
	}
}

func (s *session) printFileErrors(errs map[supplierapi.Category][]string) {
	for _, c := range supplierapi.Categories() {
		for _, msg := range errs[c] {
			fmt.Fprintf(s.out, "  ! [%s] %s\n", c.Label(), msg)
		}
	}
}

func printAttestation(out io.Writer, a *supplierapi.AttestationData) {
	text := func(p *string) string {
		if p == nil {
			return "-"
		}
		return *p
	}
	flag := func(p *bool) string {
		switch {
		case p == nil:
			return "-"
		case *p:
			return "oui"
		default:
			return "non"
		}
	}
	fmt.Fprintln(out, "  Attestation de régularité fiscale :")
	fmt.Fprintf(out, "    Numéro       %s\n", text(a.NumeroAttestation))
	fmt.Fprintf(out, "    IF           %s\n", text(a.NumeroIdentificationFiscale))
	fmt.Fprintf(out, "    ICE          %s\n", text(a.ICE))
	fmt.Fprintf(out, "    RC           %s\n", text(a.RegistreDeCommerce))
	fmt.Fprintf(out, "    Édition      %s\n", text(a.DateEdition))
	fmt.Fprintf(out, "    En règle     %s\n", flag(a.StatutRegularite))
}
