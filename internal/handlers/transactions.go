package handlers

import (
	"errors"
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/mux"

	"finance-tracker/internal/ledger"
	"finance-tracker/internal/models"
)

const formDateLayout = "2006-01-02T15:04"

// FormValues holds what the transaction form shows in its inputs.
type FormValues struct {
	Type           string
	Category       string
	CustomCategory string
	Amount         string
	Date           string
	Description    string
}

// FormViewModel is the data passed to the add/edit transaction template.
type FormViewModel struct {
	Layout
	IsEdit            bool
	ID                int64
	Error             string
	Values            FormValues
	IncomeCategories  []string
	ExpenseCategories []string
}

func (h *Handlers) formView(r *http.Request, isEdit bool, id int64, values FormValues, msg string) FormViewModel {
	title := "Add transaction"
	if isEdit {
		title = "Edit transaction"
	}
	return FormViewModel{
		Layout:            Layout{Title: title, User: identity(r).User},
		IsEdit:            isEdit,
		ID:                id,
		Error:             msg,
		Values:            values,
		IncomeCategories:  ledger.IncomeCategories,
		ExpenseCategories: ledger.ExpenseCategories,
	}
}

// valuesFromTransaction fills the form from a stored transaction. Categories
// outside the catalogue show up as the Other placeholder plus custom text.
func valuesFromTransaction(t *models.Transaction) FormValues {
	v := FormValues{
		Type:        string(t.Type),
		Category:    t.Category,
		Amount:      t.Amount.StringFixed(2),
		Date:        t.Date.UTC().Format(formDateLayout),
		Description: t.Description,
	}
	if !slices.Contains(ledger.Categories(t.Type), t.Category) {
		v.Category = ledger.OtherExpense
		if t.IsIncome() {
			v.Category = ledger.OtherIncome
		}
		v.CustomCategory = t.Category
	}
	return v
}

func valuesFromForm(r *http.Request) FormValues {
	return FormValues{
		Type:           r.FormValue("type"),
		Category:       r.FormValue("category"),
		CustomCategory: r.FormValue("custom_category"),
		Amount:         r.FormValue("amount"),
		Date:           r.FormValue("date"),
		Description:    r.FormValue("description"),
	}
}

// formPtr returns nil for fields absent from the submitted form.
func formPtr(r *http.Request, key string) *string {
	if _, ok := r.PostForm[key]; !ok {
		return nil
	}
	v := r.PostForm.Get(key)
	return &v
}

func transactionID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id > 0
}

// AddTransactionForm renders an empty transaction form.
func (h *Handlers) AddTransactionForm(w http.ResponseWriter, r *http.Request) {
	values := FormValues{
		Type: string(models.TypeExpense),
		Date: h.now().UTC().Format(formDateLayout),
	}
	h.render(w, r, http.StatusOK, "form.html", h.formView(r, false, 0, values, ""))
}

// AddTransaction handles the add form submission.
func (h *Handlers) AddTransaction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	values := valuesFromForm(r)
	_, err := h.ledger.Add(r.Context(), identity(r).User.ID, ledger.Input(values))

	var ve *models.ValidationError
	if errors.As(err, &ve) {
		h.render(w, r, http.StatusUnprocessableEntity, "form.html", h.formView(r, false, 0, values, ve.Message))
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// EditTransactionForm renders the form prefilled with a stored transaction.
func (h *Handlers) EditTransactionForm(w http.ResponseWriter, r *http.Request) {
	id, ok := transactionID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	t, err := h.ledger.Get(r.Context(), identity(r).User.ID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "form.html", h.formView(r, true, id, valuesFromTransaction(t), ""))
}

// EditTransaction applies the submitted fields to a stored transaction.
func (h *Handlers) EditTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := transactionID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	patch := ledger.Patch{
		Type:           formPtr(r, "type"),
		Category:       formPtr(r, "category"),
		CustomCategory: formPtr(r, "custom_category"),
		Amount:         formPtr(r, "amount"),
		Date:           formPtr(r, "date"),
		Description:    formPtr(r, "description"),
	}
	_, err := h.ledger.Edit(r.Context(), identity(r).User.ID, id, patch)

	var ve *models.ValidationError
	if errors.As(err, &ve) {
		h.render(w, r, http.StatusUnprocessableEntity, "form.html", h.formView(r, true, id, valuesFromForm(r), ve.Message))
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// DeleteTransaction removes a transaction and returns to the dashboard.
func (h *Handlers) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := transactionID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := h.ledger.Delete(r.Context(), identity(r).User.ID, id); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}
