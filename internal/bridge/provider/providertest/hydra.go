// Package providertest is an in-memory stand-in for the Hydra public and
// admin surfaces, scripted for one client, for use in tests.
package providertest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/aussiebroadwan/tokenbridge/pkg/cryptox"
)

// Hop names used by Calls and Config.FailAt.
const (
	HopAuth          = "auth"
	HopLoginAccept   = "login_accept"
	HopLoginResume   = "login_resume"
	HopConsentAccept = "consent_accept"
	HopConsentResume = "consent_resume"
	HopToken         = "token"
)

const (
	loginCookie   = "oauth2_authentication_csrf"
	consentCookie = "oauth2_consent_csrf"

	// advertisedOrigin is what redirect_to values point at. Clients are
	// expected to rebase them onto the origin they were configured with.
	advertisedOrigin = "https://hydra.invalid"
)

// Config scripts the fake.
type Config struct {
	ClientID     string
	ClientSecret string
	AuthMethod   string // none, client_secret_basic or client_secret_post
	RedirectURI  string

	// AdminBearer, when set, must be presented on every admin call.
	AdminBearer string

	// FailAt makes the named hop answer 500.
	FailAt string

	// TamperState returns a different state on the final redirect.
	TamperState bool

	// DropCode omits the code from the final redirect.
	DropCode bool

	// TokenResponse overrides the token endpoint body.
	TokenResponse map[string]any
}

// TokenRequest is a recorded call to the token endpoint.
type TokenRequest struct {
	Form   url.Values
	Header http.Header
}

// Server is a running fake. Public and Admin are separate listeners.
type Server struct {
	Public *httptest.Server
	Admin  *httptest.Server

	cfg Config

	mu       sync.Mutex
	calls    map[string]int
	logins   []map[string]any
	consents []map[string]any
	tokens   []TokenRequest
	cookies  map[string][]string // hop -> cookie names presented

	byLoginChallenge   map[string]*flow
	byLoginVerifier    map[string]*flow
	byConsentChallenge map[string]*flow
	byConsentVerifier  map[string]*flow
	byCode             map[string]*flow
}

type flow struct {
	state       string
	challenge   string
	scopes      []string
	audiences   []string
	loginCSRF   string
	consentCSRF string
}

// New starts a fake and stops it when the test ends.
func New(t testing.TB, cfg Config) *Server {
	t.Helper()

	if cfg.ClientID == "" {
		cfg.ClientID = "bridge"
	}
	if cfg.AuthMethod == "" {
		cfg.AuthMethod = "client_secret_basic"
	}
	if cfg.AuthMethod != "none" && cfg.ClientSecret == "" {
		cfg.ClientSecret = "bridge-secret"
	}
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = "https://bridge.invalid/callback"
	}

	s := &Server{
		cfg:                cfg,
		calls:              make(map[string]int),
		cookies:            make(map[string][]string),
		byLoginChallenge:   make(map[string]*flow),
		byLoginVerifier:    make(map[string]*flow),
		byConsentChallenge: make(map[string]*flow),
		byConsentVerifier:  make(map[string]*flow),
		byCode:             make(map[string]*flow),
	}

	public := http.NewServeMux()
	public.HandleFunc("GET /oauth2/auth", s.handleAuth)
	public.HandleFunc("POST /oauth2/token", s.handleToken)
	public.HandleFunc("GET /health/ready", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	admin := http.NewServeMux()
	admin.HandleFunc("PUT /admin/oauth2/auth/requests/login/accept", s.handleLoginAccept)
	admin.HandleFunc("PUT /admin/oauth2/auth/requests/consent/accept", s.handleConsentAccept)

	s.Public = httptest.NewServer(public)
	s.Admin = httptest.NewServer(admin)
	t.Cleanup(s.Public.Close)
	t.Cleanup(s.Admin.Close)

	return s
}

// Config returns the script the fake runs with, defaults applied.
func (s *Server) Config() Config { return s.cfg }

// Calls returns how often hop was hit.
func (s *Server) Calls(hop string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[hop]
}

// TotalCalls counts every hop, including rejected ones.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// LoginBodies returns the decoded login accept bodies in call order.
func (s *Server) LoginBodies() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.logins...)
}

// ConsentBodies returns the decoded consent accept bodies in call order.
func (s *Server) ConsentBodies() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.consents...)
}

// TokenRequests returns the recorded token endpoint calls.
func (s *Server) TokenRequests() []TokenRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TokenRequest(nil), s.tokens...)
}

// CookiesSeen returns the cookie names presented on the latest call to hop.
func (s *Server) CookiesSeen(hop string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cookies[hop]...)
}

func (s *Server) hit(hop string, r *http.Request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[hop]++
	var names []string
	for _, c := range r.Cookies() {
		names = append(names, c.Name)
	}
	s.cookies[hop] = names
	return s.cfg.FailAt != hop
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Has("login_verifier"):
		s.resumeLogin(w, r)
	case q.Has("consent_verifier"):
		s.resumeConsent(w, r)
	default:
		s.startAuth(w, r)
	}
}

func (s *Server) startAuth(w http.ResponseWriter, r *http.Request) {
	if !s.hit(HopAuth, r) {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	if q.Get("client_id") != s.cfg.ClientID ||
		q.Get("response_type") != "code" ||
		q.Get("redirect_uri") != s.cfg.RedirectURI ||
		q.Get("code_challenge_method") != "S256" ||
		q.Get("code_challenge") == "" ||
		q.Get("state") == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	f := &flow{
		state:     q.Get("state"),
		challenge: q.Get("code_challenge"),
		audiences: q["audience"],
		loginCSRF: token(),
	}
	if scope := q.Get("scope"); scope != "" {
		f.scopes = strings.Split(scope, " ")
	}

	challenge := token()
	s.mu.Lock()
	s.byLoginChallenge[challenge] = f
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: loginCookie, Value: f.loginCSRF, Path: "/", HttpOnly: true})
	http.Redirect(w, r, advertisedOrigin+"/login?login_challenge="+url.QueryEscape(challenge), http.StatusFound)
}

func (s *Server) handleLoginAccept(w http.ResponseWriter, r *http.Request) {
	if !s.hit(HopLoginAccept, r) {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !s.adminAuthorized(w, r) {
		return
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	s.mu.Lock()
	s.logins = append(s.logins, body)
	f, ok := s.byLoginChallenge[r.URL.Query().Get("login_challenge")]
	verifier := token()
	if ok {
		s.byLoginVerifier[verifier] = f
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"redirect_to": advertisedOrigin + "/oauth2/auth?client_id=" + url.QueryEscape(s.cfg.ClientID) + "&login_verifier=" + verifier,
	})
}

func (s *Server) resumeLogin(w http.ResponseWriter, r *http.Request) {
	if !s.hit(HopLoginResume, r) {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	f, ok := s.byLoginVerifier[r.URL.Query().Get("login_verifier")]
	s.mu.Unlock()

	if !ok || cookieValue(r, loginCookie) != f.loginCSRF {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "request_forbidden"})
		return
	}

	f.consentCSRF = token()
	challenge := token()
	s.mu.Lock()
	s.byConsentChallenge[challenge] = f
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: consentCookie, Value: f.consentCSRF, Path: "/", HttpOnly: true})
	http.Redirect(w, r, advertisedOrigin+"/consent?consent_challenge="+url.QueryEscape(challenge), http.StatusFound)
}

func (s *Server) handleConsentAccept(w http.ResponseWriter, r *http.Request) {
	if !s.hit(HopConsentAccept, r) {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !s.adminAuthorized(w, r) {
		return
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	s.mu.Lock()
	s.consents = append(s.consents, body)
	f, ok := s.byConsentChallenge[r.URL.Query().Get("consent_challenge")]
	verifier := token()
	if ok {
		s.byConsentVerifier[verifier] = f
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"redirect_to": advertisedOrigin + "/oauth2/auth?client_id=" + url.QueryEscape(s.cfg.ClientID) + "&consent_verifier=" + verifier,
	})
}

func (s *Server) resumeConsent(w http.ResponseWriter, r *http.Request) {
	if !s.hit(HopConsentResume, r) {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	f, ok := s.byConsentVerifier[r.URL.Query().Get("consent_verifier")]
	s.mu.Unlock()

	if !ok || cookieValue(r, consentCookie) != f.consentCSRF {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "request_forbidden"})
		return
	}

	q := url.Values{"state": {f.state}}
	if s.cfg.TamperState {
		q.Set("state", f.state+"x")
	}
	if !s.cfg.DropCode {
		code := token()
		s.mu.Lock()
		s.byCode[code] = f
		s.mu.Unlock()
		q.Set("code", code)
	}

	http.Redirect(w, r, s.cfg.RedirectURI+"?"+q.Encode(), http.StatusSeeOther)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if !s.hit(HopToken, r) {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	s.mu.Lock()
	s.tokens = append(s.tokens, TokenRequest{Form: r.PostForm, Header: r.Header.Clone()})
	f, ok := s.byCode[r.PostForm.Get("code")]
	delete(s.byCode, r.PostForm.Get("code"))
	s.mu.Unlock()

	if !s.clientAuthenticated(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}

	if !ok ||
		r.PostForm.Get("grant_type") != "authorization_code" ||
		r.PostForm.Get("redirect_uri") != s.cfg.RedirectURI ||
		cryptox.S256Challenge(r.PostForm.Get("code_verifier")) != f.challenge {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}

	body := s.cfg.TokenResponse
	if body == nil {
		body = map[string]any{
			"access_token": "hydra-" + token(),
			"token_type":   "bearer",
			"expires_in":   3599,
			"scope":        strings.Join(f.scopes, " "),
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) clientAuthenticated(r *http.Request) bool {
	form := r.PostForm
	switch s.cfg.AuthMethod {
	case "client_secret_basic":
		id, secret, ok := r.BasicAuth()
		if !ok || form.Has("client_secret") {
			return false
		}
		id, _ = url.QueryUnescape(id)
		secret, _ = url.QueryUnescape(secret)
		return id == s.cfg.ClientID && secret == s.cfg.ClientSecret
	case "client_secret_post":
		return r.Header.Get("Authorization") == "" &&
			form.Get("client_id") == s.cfg.ClientID &&
			form.Get("client_secret") == s.cfg.ClientSecret
	default:
		return r.Header.Get("Authorization") == "" &&
			form.Get("client_id") == s.cfg.ClientID &&
			!form.Has("client_secret")
	}
}

func (s *Server) adminAuthorized(w http.ResponseWriter, r *http.Request) bool {
	if s.cfg.AdminBearer == "" || r.Header.Get("Authorization") == "Bearer "+s.cfg.AdminBearer {
		return true
	}
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "request_unauthorized"})
	return false
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func token() string {
	t, err := cryptox.GenerateToken(cryptox.TokenSize96)
	if err != nil {
		panic(fmt.Sprintf("providertest: %v", err))
	}
	return t
}
