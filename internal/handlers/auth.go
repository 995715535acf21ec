package handlers

import (
	"errors"
	"net/http"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/models"
)

// LoginViewModel is the data passed to the login template.
type LoginViewModel struct {
	Layout
	Notice   string
	Error    string
	Next     string
	Username string
}

// SignupViewModel is the data passed to the signup template.
type SignupViewModel struct {
	Layout
	Error    string
	Username string
	Email    string
}

// loggedIn reports whether the request carries a valid session and reissues
// the cookie when the session was renewed.
func (h *Handlers) loggedIn(w http.ResponseWriter, r *http.Request) bool {
	id, err := h.auth.RequireIdentity(r.Context(), sessionToken(r))
	if err != nil {
		return false
	}
	if id.Renewed {
		h.setSessionCookie(w, id.Token, id.ExpiresAt)
	}
	return true
}

// LoginForm renders the login page. Logged-in users go straight to the dashboard.
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	if h.loggedIn(w, r) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	vm := LoginViewModel{
		Layout: Layout{Title: "Log in"},
		Next:   r.URL.Query().Get("next"),
	}
	if r.URL.Query().Get("registered") != "" {
		vm.Notice = "Account created. Please log in."
	}
	h.render(w, r, http.StatusOK, "login.html", vm)
}

// Login handles the login form submission.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	username := r.FormValue("username")
	next := r.FormValue("next")

	_, session, err := h.auth.Login(r.Context(), username, r.FormValue("password"))
	if errors.Is(err, models.ErrInvalidCredentials) {
		h.render(w, r, http.StatusUnauthorized, "login.html", LoginViewModel{
			Layout:   Layout{Title: "Log in"},
			Error:    "Invalid username or password",
			Next:     next,
			Username: username,
		})
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.setSessionCookie(w, session.Token, session.ExpiresAt)
	http.Redirect(w, r, safeNext(next), http.StatusSeeOther)
}

// SignupForm renders the registration page.
func (h *Handlers) SignupForm(w http.ResponseWriter, r *http.Request) {
	if h.loggedIn(w, r) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	h.render(w, r, http.StatusOK, "signup.html", SignupViewModel{Layout: Layout{Title: "Sign up"}})
}

// Signup handles the registration form submission.
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	confirm := r.FormValue("confirm_password")
	in := auth.RegisterInput{
		Username:             r.FormValue("username"),
		Email:                r.FormValue("email"),
		Password:             r.FormValue("password"),
		PasswordConfirmation: &confirm,
	}

	_, err := h.auth.Register(r.Context(), in)
	if err == nil {
		http.Redirect(w, r, "/login?registered=1", http.StatusSeeOther)
		return
	}

	vm := SignupViewModel{
		Layout:   Layout{Title: "Sign up"},
		Username: in.Username,
		Email:    in.Email,
	}
	var ve *models.ValidationError
	switch {
	case errors.Is(err, models.ErrDuplicateUsername):
		vm.Error = "That username is already taken"
		h.render(w, r, http.StatusConflict, "signup.html", vm)
	case errors.Is(err, models.ErrDuplicateEmail):
		vm.Error = "That email is already registered"
		h.render(w, r, http.StatusConflict, "signup.html", vm)
	case errors.As(err, &ve):
		vm.Error = ve.Message
		h.render(w, r, http.StatusBadRequest, "signup.html", vm)
	default:
		h.serverError(w, r, err)
	}
}

// Logout ends the session and returns to the login page.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), sessionToken(r)); err != nil {
		h.serverError(w, r, err)
		return
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
