package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/export"
	"finance-tracker/internal/ledger"
	"finance-tracker/internal/logging"
	"finance-tracker/internal/models"
	"finance-tracker/internal/report"
	"finance-tracker/internal/storage"
	"finance-tracker/web"
)

const (
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "session"
	// maxFormBytes caps request bodies.
	maxFormBytes = 1 << 20
)

var views = []string{"login.html", "signup.html", "dashboard.html", "form.html"}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	db           *storage.DB
	auth         *auth.Service
	ledger       *ledger.Manager
	reports      *report.Engine
	log          logrus.FieldLogger
	templates    map[string]*template.Template
	secureCookie bool
	now          func() time.Time
}

// NewHandlers creates a new Handlers instance and parses the embedded templates.
func NewHandlers(db *storage.DB, authSvc *auth.Service, log logrus.FieldLogger, secureCookie bool) (*Handlers, error) {
	funcs := template.FuncMap{
		"money": export.Money,
	}
	templates := make(map[string]*template.Template, len(views))
	for _, view := range views {
		tmpl, err := template.New(view).Funcs(funcs).ParseFS(web.TemplatesFS, "templates/base.html", "templates/"+view)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", view, err)
		}
		templates[view] = tmpl
	}

	return &Handlers{
		db:           db,
		auth:         authSvc,
		ledger:       ledger.NewManager(db, log),
		reports:      report.NewEngine(db, log),
		log:          log,
		templates:    templates,
		secureCookie: secureCookie,
		now:          time.Now,
	}, nil
}

// Layout is the part of every view model the base template reads.
type Layout struct {
	Title string
	User  *models.User
}

// AuthMiddleware wraps handlers to require authentication. Anonymous
// requests are sent to the login page with the original destination kept in
// the next parameter. Sessions past their halfway point get a fresh cookie.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		id, err := h.auth.RequireIdentity(r.Context(), token)
		if errors.Is(err, models.ErrUnauthenticated) {
			if token != "" {
				// Invalid or expired session, clear the cookie
				h.clearSessionCookie(w)
			}
			redirectToLogin(w, r)
			return
		}
		if err != nil {
			h.serverError(w, r, err)
			return
		}

		if id.Renewed {
			h.setSessionCookie(w, id.Token, id.ExpiresAt)
		}

		ctx := auth.WithIdentity(r.Context(), id)
		ctx = logging.WithEntry(ctx, logging.FromContext(ctx).WithField(logging.FieldUserID, id.User.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SecurityHeaders sets conservative response headers and caps request bodies.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("X-Content-Type-Options", "nosniff")
		hdr.Set("X-Frame-Options", "DENY")
		hdr.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := "/login"
	if r.Method == http.MethodGet {
		target += "?next=" + url.QueryEscape(r.URL.RequestURI())
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/dashboard"
	}
	return next
}

func sessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// identity returns the user attached by AuthMiddleware.
func identity(r *http.Request) *auth.Identity {
	id, err := auth.FromContext(r.Context())
	if err != nil {
		// Routes wired without AuthMiddleware are a programming error.
		panic("handlers: identity requested on an unauthenticated route")
	}
	return id
}

// fail maps the error taxonomy onto HTTP responses for non-form handlers.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ve *models.ValidationError
	switch {
	case errors.Is(err, models.ErrUnauthenticated):
		redirectToLogin(w, r)
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, "Transaction not found", http.StatusNotFound)
	case errors.Is(err, models.ErrForbidden):
		http.Error(w, "You are not allowed to access this transaction", http.StatusForbidden)
	case errors.As(err, &ve):
		http.Error(w, ve.Error(), http.StatusBadRequest)
	default:
		h.serverError(w, r, err)
	}
}

func (h *Handlers) serverError(w http.ResponseWriter, r *http.Request, err error) {
	logging.FromContext(r.Context()).WithError(err).Error("request failed")
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, view string, data any) {
	tmpl, ok := h.templates[view]
	if !ok {
		h.serverError(w, r, fmt.Errorf("unknown view %s", view))
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		h.serverError(w, r, fmt.Errorf("execute template %s: %w", view, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
