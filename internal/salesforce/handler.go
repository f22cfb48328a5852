package salesforce

import (
	"crypto/rand"
	"encoding/hex"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/wolfman30/supplier-onboarding/pkg/logging"
)

const stateTTL = 10 * time.Minute

var resultPage = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html lang="fr">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family: sans-serif; text-align: center; padding: 48px;">
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{if .Success}}<p>Vous pouvez fermer cette fenêtre et soumettre le formulaire.</p><script>setTimeout(function(){window.close()}, 3000)</script>{{end}}
</body>
</html>`))

// AuthHandler serves the browser side of the OAuth web-server flow.
type AuthHandler struct {
	oauth  *OAuth
	store  SessionStore
	logger *logging.Logger
	now    func() time.Time

	mu     sync.Mutex
	states map[string]time.Time
}

// NewAuthHandler creates the login/callback handler.
func NewAuthHandler(oauth *OAuth, store SessionStore, logger *logging.Logger) *AuthHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AuthHandler{
		oauth:  oauth,
		store:  store,
		logger: logger,
		now:    time.Now,
		states: make(map[string]time.Time),
	}
}

// HandleLogin redirects to the Salesforce consent page.
// GET /login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.oauth.Configured() {
		h.logger.Error("salesforce oauth is not configured")
		h.render(w, http.StatusInternalServerError, "Configuration manquante", "L'application Salesforce n'est pas configurée sur le serveur.", false)
		return
	}

	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		h.logger.Error("failed to generate state", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	state := hex.EncodeToString(stateBytes)

	h.mu.Lock()
	h.cleanExpiredStates()
	h.states[state] = h.now().Add(stateTTL)
	h.mu.Unlock()

	h.logger.Info("initiating salesforce oauth")
	http.Redirect(w, r, h.oauth.AuthorizationURL(state), http.StatusFound)
}

// HandleCallback completes the flow and stores the session.
// GET /oauth/callback?code=...&state=...
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errParam := q.Get("error"); errParam != "" {
		h.logger.Error("salesforce oauth error", "error", errParam, "description", q.Get("error_description"))
		h.render(w, http.StatusBadRequest, "Échec de l'authentification", "Salesforce a refusé la connexion.", false)
		return
	}

	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		h.render(w, http.StatusBadRequest, "Échec de l'authentification", "Paramètres manquants.", false)
		return
	}

	h.mu.Lock()
	expiresAt, ok := h.states[state]
	delete(h.states, state)
	h.mu.Unlock()
	if !ok || h.now().After(expiresAt) {
		h.logger.Warn("invalid or expired oauth state")
		h.render(w, http.StatusBadRequest, "Échec de l'authentification", "Session de connexion expirée, veuillez réessayer.", false)
		return
	}

	session, err := h.oauth.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("token exchange failed", "error", err)
		h.render(w, http.StatusInternalServerError, "Échec de l'authentification", "Impossible d'obtenir un jeton d'accès.", false)
		return
	}
	if err := h.store.Save(r.Context(), session); err != nil {
		h.logger.Error("save session failed", "error", err)
		h.render(w, http.StatusInternalServerError, "Échec de l'authentification", "Impossible d'enregistrer la session.", false)
		return
	}

	h.logger.Info("salesforce oauth completed", "instance_url", session.InstanceURL)
	h.render(w, http.StatusOK, "Authentification réussie", "Le serveur est connecté à Salesforce.", true)
}

// cleanExpiredStates must be called with mu held.
func (h *AuthHandler) cleanExpiredStates() {
	now := h.now()
	for state, expiresAt := range h.states {
		if now.After(expiresAt) {
			delete(h.states, state)
		}
	}
}

func (h *AuthHandler) render(w http.ResponseWriter, status int, title, message string, success bool) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := resultPage.Execute(w, map[string]any{"Title": title, "Message": message, "Success": success}); err != nil {
		h.logger.Warn("render oauth page failed", "error", err)
	}
}
