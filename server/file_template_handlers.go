package server

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/rs/zerolog/log"
)

//go:embed templates/*
var templateFiles embed.FS

// Page templates
const (
	pageTenant  = "tenant.html"
	pageLogin   = "login.html"
	pageConsent = "consent.html"
	pageLogout  = "logout.html"
	pageMessage = "message.html"
	pageToken   = "token.html"
	pageError   = "error.html"
)

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

func parseTemplates() (*template.Template, error) {
	return template.ParseFS(TemplateFilesFS(), "*.html")
}

// PageData is the model shared by every page template.
type PageData struct {
	AppName  string
	Title    string
	TenantID string
	Tenants  []string
	Username string
	Message  string

	// Consent page
	ClientID          string
	ClientName        string
	ClientDescription string
	Scope             string
	ConsentNonce      string

	// Token page
	AccessToken string
	ExpiresAt   string
	ExpiresIn   string
}

// renderPage executes a template into a buffer first so a template failure
// never leaves a half written page.
func (s *Server) renderPage(w http.ResponseWriter, status int, name string, data PageData) {
	data.AppName = s.config.GetAppName()
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.Err(err).Str("template", name).Msg("failed to render template")
		http.Error(w, unexpectedErrorMessage, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderError shows the error page with the status and message of err.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind, message := classify(err)
	logFailure(r, status, kind, err)
	s.renderPage(w, status, pageError, PageData{Title: http.StatusText(status), Message: message})
}
