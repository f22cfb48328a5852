// Package main runs end-to-end checks against a deployed onboarding API.
//
// Scenarios cover:
//   - Health and session reporting
//   - Upload policy on the OCR endpoint
//   - Server-side draft lifecycle
//   - Refusal of incomplete submissions
//   - A real supplier creation, only when E2E_SUBMIT=1 since it writes to the CRM
//
// Usage:
//
//	API_BASE_URL=... go run scripts/e2e/run_e2e.go              # runs all
//	API_BASE_URL=... go run scripts/e2e/run_e2e.go drafts       # runs one
//	E2E_SUBMIT=1 API_BASE_URL=... go run scripts/e2e/run_e2e.go submit
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/supplier-onboarding/internal/filepolicy"
	"github.com/wolfman30/supplier-onboarding/internal/wizard"
	"github.com/wolfman30/supplier-onboarding/pkg/logging"
	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

const requestTimeout = 2 * time.Minute

var (
	apiBase string
	client  *wizard.Client
)

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed  int
	failed  int
	skipped bool
	name    string
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
	} else {
		fmt.Printf("    FAIL: %s\n", name)
		t.failed++
	}
}

func (t *T) fatalf(format string, args ...any) {
	fmt.Printf("    FATAL: "+format+"\n", args...)
	t.failed++
}

func (t *T) skipf(format string, args ...any) {
	fmt.Printf("    SKIP: "+format+"\n", args...)
	t.skipped = true
}

func ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

func getJSON(path string) (int, map[string]any, error) {
	resp, err := http.Get(apiBase + path)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out, nil
}

func scenarioHealth(t *T) {
	status, body, err := getJSON("/api/health")
	if err != nil {
		t.fatalf("health: %v", err)
		return
	}
	t.check("health returns 200", status == http.StatusOK)

	status, body, err = getJSON("/")
	if err != nil {
		t.fatalf("root: %v", err)
		return
	}
	_, reported := body["authenticated"]
	t.check("root reports the CRM session", status == http.StatusOK && reported)
}

func scenarioOCRPolicy(t *T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, _ := w.CreateFormFile(supplierapi.OCRFileField, "payload.exe")
	_, _ = part.Write([]byte("MZ\x90\x00"))
	_ = w.Close()

	resp, err := http.Post(apiBase+supplierapi.OCRPath, w.FormDataContentType(), &buf)
	if err != nil {
		t.fatalf("ocr: %v", err)
		return
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	t.check("executable refused with 400", resp.StatusCode == http.StatusBadRequest)
	t.check("refusal explains the file type", bytes.Contains(body, []byte("dangereux")) || bytes.Contains(body, []byte("non autorisé")))
}

func scenarioDrafts(t *T) {
	c, cancel := ctx()
	defer cancel()
	store := wizard.NewRemoteStorage(client, uuid.NewString())

	d := wizard.NewDraft()
	d.Fields[supplierapi.FieldRaisonSociale] = "E2E Draft SARL"
	d.Certifications = []string{"ISO 9001"}
	err := store.Save(c, &supplierapi.Draft{Step: wizard.StepContact, FormData: wizard.Snapshot(d)})
	var apiErr *wizard.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		t.skipf("drafts endpoint not mounted")
		return
	}
	if err != nil {
		t.fatalf("save draft: %v", err)
		return
	}
	saved, err := store.Load(c)
	if err != nil {
		t.fatalf("load draft: %v", err)
		return
	}
	restored := wizard.Restore(saved.FormData)
	t.check("step survives", saved.Step == wizard.StepContact)
	t.check("fields survive", restored.Field(supplierapi.FieldRaisonSociale) == "E2E Draft SARL")
	t.check("certifications survive", len(restored.Certifications) == 1)

	t.check("draft deleted", store.Clear(c) == nil)
	_, err = store.Load(c)
	t.check("deleted draft is gone", errors.Is(err, wizard.ErrNoDraft))
}

func scenarioIncomplete(t *T) {
	c, cancel := ctx()
	defer cancel()
	status, body, err := client.Submit(c, bytes.NewReader([]byte(`{"raisonSociale":""}`)), "application/json")
	if err != nil {
		t.fatalf("submit: %v", err)
		return
	}
	res := wizard.Interpret(status, body, nil)
	switch r := res.(type) {
	case wizard.AuthRequired:
		t.check("login url offered", r.LoginURL != "")
	case wizard.ValidationFailure:
		t.check("validation message present", r.Message != "")
	default:
		t.fatalf("unexpected result %T (status %d)", res, status)
	}
}

func scenarioSubmit(t *T) {
	if os.Getenv("E2E_SUBMIT") != "1" {
		t.skipf("set E2E_SUBMIT=1 to create a supplier in the CRM")
		return
	}
	c, cancel := ctx()
	defer cancel()

	ctrl := wizard.NewController(wizard.ControllerConfig{
		Client: client,
		Policy: filepolicy.Default(0),
		Logger: logging.Discard(),
	})
	suffix := time.Now().Format("20060102150405")
	for name, value := range map[string]string{
		supplierapi.FieldCountry:         supplierapi.CountryDomestic,
		supplierapi.FieldRaisonSociale:   "E2E Fournisseur " + suffix,
		supplierapi.FieldFormeJuridique:  "SARL",
		supplierapi.FieldAddress:         "1 avenue Hassan II",
		supplierapi.FieldPostalCode:      "10000",
		supplierapi.FieldCity:            "Rabat",
		supplierapi.FieldEmailEntreprise: "e2e+" + suffix + "@example.com",
		supplierapi.FieldCivility:        "Mme",
		supplierapi.FieldContactNom:      "Test",
		supplierapi.FieldContactPrenom:   "E2E",
		supplierapi.FieldEmail:           "contact+" + suffix + "@example.com",
	} {
		if err := ctrl.UpdateField(name, value); err != nil {
			t.fatalf("update %s: %v", name, err)
			return
		}
	}
	_ = ctrl.AddFiles(supplierapi.CategoryAttestationRIB, []wizard.Attachment{
		{Name: "rib.pdf", MIMEType: "application/pdf", Data: []byte("%PDF-1.4\n%e2e\n")},
	})

	res, err := ctrl.SubmitForm(c)
	if err != nil {
		t.fatalf("submit: %v", err)
		return
	}
	ok, isSuccess := res.(wizard.Success)
	t.check("supplier created", isSuccess)
	if !isSuccess {
		fmt.Printf("    result: %+v\n", res)
		return
	}
	t.check("account id returned", ok.AccountID != "")
	t.check("document linked", len(ok.AttachmentRefs) == 1)
	t.check("wizard reached confirmation", ctrl.State().Step == wizard.StepConfirmation)
}

func main() {
	apiBase = os.Getenv("API_BASE_URL")
	if apiBase == "" {
		fmt.Fprintln(os.Stderr, "ERROR: API_BASE_URL required")
		os.Exit(1)
	}
	client = wizard.NewClient(apiBase, nil)

	scenarios := []scenario{
		{"health", scenarioHealth},
		{"ocr-policy", scenarioOCRPolicy},
		{"drafts", scenarioDrafts},
		{"incomplete", scenarioIncomplete},
		{"submit", scenarioSubmit},
	}

	filter := ""
	if len(os.Args) > 1 {
		filter = os.Args[1]
	}

	totalPassed := 0
	totalFailed := 0
	scenarioResults := make([]string, 0)

	for _, s := range scenarios {
		if filter != "" && s.Name != filter {
			continue
		}

		fmt.Printf("\n========================================\n")
		fmt.Printf("SCENARIO: %s\n", s.Name)
		fmt.Printf("========================================\n")

		t := &T{name: s.Name}
		s.Fn(t)

		totalPassed += t.passed
		totalFailed += t.failed

		status := "✅"
		switch {
		case t.failed > 0:
			status = "❌"
		case t.skipped:
			status = "⏭"
		}
		scenarioResults = append(scenarioResults, fmt.Sprintf("  %s %s (%d passed, %d failed)", status, s.Name, t.passed, t.failed))
	}

	fmt.Printf("\n========================================\n")
	fmt.Println("SUMMARY")
	fmt.Printf("========================================\n")
	for _, r := range scenarioResults {
		fmt.Println(r)
	}
	fmt.Printf("\nTotal: %d passed, %d failed\n", totalPassed, totalFailed)

	if totalFailed > 0 {
		fmt.Println("\n❌ SOME TESTS FAILED")
		os.Exit(1)
	}
	fmt.Println("\n✅ ALL TESTS PASSED")
}
