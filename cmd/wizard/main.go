// Command wizard fills and submits the supplier onboarding form from a
// terminal, against a running onboarding API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/net/publicsuffix"

	"github.com/wolfman30/supplier-onboarding/internal/filepolicy"
	"github.com/wolfman30/supplier-onboarding/internal/wizard"
	"github.com/wolfman30/supplier-onboarding/pkg/logging"
)

type config struct {
	APIURL         string        `envconfig:"WIZARD_API_URL" default:"http://localhost:8080"`
	MaxUploadBytes int64         `envconfig:"WIZARD_MAX_UPLOAD_BYTES" default:"5242880"`
	MaxFiles       int           `envconfig:"WIZARD_MAX_FILES" default:"20"`
	StateFile      string        `envconfig:"WIZARD_STATE_FILE"`
	DraftID        string        `envconfig:"WIZARD_DRAFT_ID"`
	Timeout        time.Duration `envconfig:"WIZARD_TIMEOUT" default:"2m"`
	LogLevel       string        `envconfig:"WIZARD_LOG_LEVEL" default:"warn"`
}

func loadConfig() (*config, error) {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.DraftID != "" {
		if _, err := uuid.Parse(cfg.DraftID); err != nil {
			return nil, fmt.Errorf("WIZARD_DRAFT_ID must be a UUID: %w", err)
		}
	}
	if cfg.StateFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = "."
		}
		cfg.StateFile = filepath.Join(dir, "supplier-onboarding", "draft.json")
	}
	return &cfg, nil
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration:", err)
		os.Exit(2)
	}
	logger := logging.NewWithFormat(cfg.LogLevel, "text", os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctrl, err := buildController(cfg, surveyPrompter{}, os.Stdout, logger)
	if err != nil {
		logger.Error("failed to initialize wizard", "error", err)
		os.Exit(1)
	}
	if err := newSession(ctrl, surveyPrompter{}, os.Stdout, logger).run(ctx); err != nil &&
		!errors.Is(err, errAborted) && !errors.Is(err, context.Canceled) {
		logger.Error("wizard stopped", "error", err)
		os.Exit(1)
	}
}

func buildController(cfg *config, p prompter, out io.Writer, logger *logging.Logger) (*wizard.Controller, error) {
	httpClient, err := newHTTPClient(cfg.Timeout)
	if err != nil {
		return nil, err
	}
	client := wizard.NewClient(cfg.APIURL, httpClient)

	policy := filepolicy.Default(cfg.MaxUploadBytes)
	policy.MaxFiles = cfg.MaxFiles

	return wizard.NewController(wizard.ControllerConfig{
		Client:      client,
		Storage:     buildStorage(cfg, client),
		Policy:      policy,
		LoginOpener: &browserOpener{p: p, out: out},
		Logger:      logger,
	}), nil
}

// buildStorage keeps drafts on the server when a draft id is configured, so
// the same draft can be resumed from another machine.
func buildStorage(cfg *config, client *wizard.Client) wizard.Storage {
	if cfg.DraftID != "" {
		return wizard.NewRemoteStorage(client, cfg.DraftID)
	}
	return wizard.NewFileStorage(cfg.StateFile)
}

// newHTTPClient keeps cookies between calls so a server session set during
// login is reused by later requests.
func newHTTPClient(timeout time.Duration) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	return &http.Client{Jar: jar, Timeout: timeout}, nil
}

type browserOpener struct {
	p   prompter
	out io.Writer
}

func (b *browserOpener) ConfirmLogin(_ context.Context, loginURL string) bool {
	ok, err := b.p.Confirm("Le serveur doit se connecter à Salesforce. Ouvrir la page de connexion ?", true)
	return err == nil && ok
}

func (b *browserOpener) OpenLogin(loginURL string) error {
	fmt.Fprintf(b.out, "Connexion : %s\n", loginURL)
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", loginURL)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", loginURL)
	default:
		cmd = exec.Command("xdg-open", loginURL)
	}
	return cmd.Start()
}
