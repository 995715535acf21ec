package handlers

import (
	"io/fs"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"finance-tracker/internal/logging"
	"finance-tracker/web"
)

// NewRouter wires every route. Pages other than login, signup, health and
// static assets require a session.
func NewRouter(h *Handlers, logger logrus.FieldLogger) (http.Handler, error) {
	static, err := fs.Sub(web.StaticFS, "static")
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter()
	r.Use(logging.Middleware(logger), SecurityHeaders)

	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	r.HandleFunc("/signup", h.SignupForm).Methods(http.MethodGet)
	r.HandleFunc("/signup", h.Signup).Methods(http.MethodPost)
	r.HandleFunc("/login", h.LoginForm).Methods(http.MethodGet)
	r.HandleFunc("/login", h.Login).Methods(http.MethodPost)

	protected := r.NewRoute().Subrouter()
	protected.Use(h.AuthMiddleware)
	protected.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	}).Methods(http.MethodGet)
	protected.HandleFunc("/logout", h.Logout).Methods(http.MethodGet)
	protected.HandleFunc("/dashboard", h.Dashboard).Methods(http.MethodGet)
	protected.HandleFunc("/add_transaction", h.AddTransactionForm).Methods(http.MethodGet)
	protected.HandleFunc("/add_transaction", h.AddTransaction).Methods(http.MethodPost)
	protected.HandleFunc("/edit_transaction/{id:[0-9]+}", h.EditTransactionForm).Methods(http.MethodGet)
	protected.HandleFunc("/edit_transaction/{id:[0-9]+}", h.EditTransaction).Methods(http.MethodPost)
	protected.HandleFunc("/delete_transaction/{id:[0-9]+}", h.DeleteTransaction).Methods(http.MethodGet)
	protected.HandleFunc("/export/csv", h.ExportCSV).Methods(http.MethodGet)
	protected.HandleFunc("/export/pdf", h.ExportPDF).Methods(http.MethodGet)

	return r, nil
}
